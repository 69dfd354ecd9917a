package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// commandContext carries the lazily loaded configuration shared by
// subcommands.
type commandContext struct {
	configFlag string
	config     *Config
	configPath string
}

func (c *commandContext) ensureConfig() (*Config, error) {
	if c.config != nil {
		return c.config, nil
	}
	cfg, path, err := LoadConfig(c.configFlag)
	if err != nil {
		return nil, err
	}
	if err := initLogger(cfg.Logging, os.Stderr); err != nil {
		return nil, err
	}
	c.config, c.configPath = cfg, path
	return cfg, nil
}

func (c *commandContext) imageLoader() *ImageLoader {
	return NewImageLoader(time.Duration(c.config.Server.ImageTimeoutSeconds) * time.Second)
}

func (c *commandContext) boardConfig(name string) (BoardConfig, error) {
	for _, b := range c.config.Boards {
		if b.Name == name {
			return b, nil
		}
	}
	return BoardConfig{}, fmt.Errorf("no board named %q in configuration", name)
}

func newRootCommand() *cobra.Command {
	ctx := &commandContext{}

	rootCmd := &cobra.Command{
		Use:           "jukebox",
		Short:         "Picture jukebox: tap a picture, hear a sound",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations["config"] == "skip" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&ctx.configFlag, "config", "c", "", "Configuration file path (default ./jukebox.toml)")

	rootCmd.AddCommand(newServeCommand(ctx))
	rootCmd.AddCommand(newLayoutCommand(ctx))
	rootCmd.AddCommand(newCropCommand(ctx))
	rootCmd.AddCommand(newNormalizeCommand())
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the jukebox web server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), ctx)
		},
	}
}

// runServe builds every configured board and serves them until ctx ends.
// A board that fails to build stops startup.
func runServe(ctx context.Context, cc *commandContext) error {
	cfg := cc.config
	loader := cc.imageLoader()

	store := NewStore()
	for _, bc := range cfg.Boards {
		board, err := NewBoard(ctx, bc, loader)
		if err != nil {
			return fmt.Errorf("board %q: %w", bc.Name, err)
		}
		store.SaveBoard(board)
		log.Info().Str("board", board.ID).Str("name", board.Name).Str("mode", string(board.Layout.Mode)).Int("cells", len(board.Cells)).Msg("board ready")
	}

	var detector LayoutDetector
	if cfg.Gemini.ProjectID != "" {
		gemini, err := NewGeminiClient(ctx, cfg.Gemini)
		if err != nil {
			return err
		}
		defer gemini.Close()
		detector = gemini
		log.Info().Str("project", cfg.Gemini.ProjectID).Str("model", gemini.modelName).Msg("layout detection enabled")
	} else {
		log.Info().Msg("gemini.project_id not set, layout detection disabled")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           NewServer(store, detector, loader),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}

func newLayoutCommand(ctx *commandContext) *cobra.Command {
	var (
		boardName string
		rows      int
		cols      int
		bounds    string
		gap       float64
	)

	cmd := &cobra.Command{
		Use:   "layout",
		Short: "Print the cells of a board or of an ad-hoc percent grid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if boardName != "" {
				bc, err := ctx.boardConfig(boardName)
				if err != nil {
					return err
				}
				board, err := planBoard(cmd.Context(), bc, ctx.imageLoader())
				if err != nil {
					return err
				}
				renderCells(cmd.OutOrStdout(), board.Cells, board.bindings)
				return nil
			}

			rect, err := parseBounds(bounds)
			if err != nil {
				return err
			}
			cells, err := GenerateGrid(rows, cols, rect, gap)
			if err != nil {
				return err
			}
			renderCells(cmd.OutOrStdout(), cells, nil)
			return nil
		},
	}

	cmd.Flags().StringVarP(&boardName, "board", "b", "", "Configured board name")
	cmd.Flags().IntVar(&rows, "rows", 4, "Number of rows")
	cmd.Flags().IntVar(&cols, "cols", 4, "Number of columns")
	cmd.Flags().StringVar(&bounds, "bounds", "0,0,100,100", "Grid bounds as top,left,width,height in percent")
	cmd.Flags().Float64Var(&gap, "gap", 0, "Gap between cells in percent")
	return cmd
}

func newCropCommand(ctx *commandContext) *cobra.Command {
	var boardName, outDir string

	cmd := &cobra.Command{
		Use:   "crop",
		Short: "Write one PNG per cell of a pixel board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			bc, err := ctx.boardConfig(boardName)
			if err != nil {
				return err
			}
			if bc.Layout.Mode != ModePixel {
				return fmt.Errorf("board %q uses a %s layout; crop needs a pixel layout", bc.Name, bc.Layout.Mode)
			}
			board, err := NewBoard(cmd.Context(), bc, ctx.imageLoader())
			if err != nil {
				return err
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			for _, pc := range board.PixelCells {
				img, err := board.CellImage(pc.Index)
				if err != nil {
					return err
				}
				path := filepath.Join(outDir, pc.Label+".png")
				if err := imaging.Save(img, path); err != nil {
					return fmt.Errorf("save %s: %w", path, err)
				}
				log.Debug().Str("file", path).Str("box", pc.Box.String()).Msg("cell cropped")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d cells to %s\n", len(board.PixelCells), outDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&boardName, "board", "b", "", "Configured board name")
	cmd.Flags().StringVarP(&outDir, "out", "o", "cells", "Output directory")
	_ = cmd.MarkFlagRequired("board")
	return cmd
}

func newNormalizeCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "normalize URL...",
		Short:       "Rewrite GitHub blob links into raw content links",
		Args:        cobra.MinimumNArgs(1),
		Annotations: map[string]string{"config": "skip"},
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, arg := range args {
				fmt.Fprintln(cmd.OutOrStdout(), NormalizeShareLink(arg))
			}
			return nil
		},
	}
}

func newConfigCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	cmd.AddCommand(&cobra.Command{
		Use:         "sample",
		Short:       "Print an annotated sample configuration",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"config": "skip"},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprint(cmd.OutOrStdout(), SampleConfig())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Load the configuration and build every board",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			loader := ctx.imageLoader()
			for _, bc := range ctx.config.Boards {
				board, err := NewBoard(cmd.Context(), bc, loader)
				if err != nil {
					return fmt.Errorf("board %q: %w", bc.Name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %d cells (%s)\n", board.Name, len(board.Cells), board.Layout.Mode)
			}
			source := ctx.configPath
			if source == "" {
				source = "defaults"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Configuration OK (%s)\n", source)
			return nil
		},
	})
	return cmd
}

// parseBounds reads "top,left,width,height".
func parseBounds(s string) (Rect, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Rect{}, fmt.Errorf("bounds: want top,left,width,height, got %q", s)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Rect{}, fmt.Errorf("bounds: %w", err)
		}
		vals[i] = v
	}
	return Rect{Top: vals[0], Left: vals[1], Width: vals[2], Height: vals[3]}, nil
}
