package main

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

const defaultConfigFile = "jukebox.toml"

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr                string `toml:"addr"`
	ImageTimeoutSeconds int    `toml:"image_timeout_seconds"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// GeminiConfig enables layout detection through Vertex AI. Detection is
// off when ProjectID is empty.
type GeminiConfig struct {
	ProjectID string `toml:"project_id"`
	Region    string `toml:"region"`
	Model     string `toml:"model"`
}

// BoardConfig describes one picture board.
type BoardConfig struct {
	Name         string          `toml:"name" json:"name"`
	Image        string          `toml:"image" json:"image"`
	Layout       Layout          `toml:"layout" json:"layout"`
	Radius       float64         `toml:"radius" json:"radius"`
	Audio        []string        `toml:"audio" json:"audio"`
	DefaultAudio string          `toml:"default_audio" json:"default_audio,omitempty"`
	Hotspots     []CustomHotspot `toml:"hotspots" json:"hotspots,omitempty"`
}

// Config is the jukebox configuration file.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Logging LoggingConfig `toml:"logging"`
	Gemini  GeminiConfig  `toml:"gemini"`
	Boards  []BoardConfig `toml:"boards"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:                ":8080",
			ImageTimeoutSeconds: 15,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Gemini: GeminiConfig{
			Region: defaultRegion,
			Model:  defaultModel,
		},
	}
}

// LoadConfig reads path, or ./jukebox.toml when path is empty. A missing
// default file is not an error; a missing explicit file is.
func LoadConfig(path string) (*Config, string, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = defaultConfigFile
	}

	file, err := os.Open(path)
	switch {
	case err == nil:
		defer file.Close()
		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, "", fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		path = ""
	default:
		return nil, "", fmt.Errorf("open config: %w", err)
	}

	cfg.applyEnv()
	cfg.normalize(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, path, nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Addr = ":" + port
	}
	if v := os.Getenv("GCP_PROJECT_ID"); v != "" {
		c.Gemini.ProjectID = v
	}
	if v := os.Getenv("GCP_REGION"); v != "" {
		c.Gemini.Region = v
	}
}

// normalize trims values and resolves relative image paths against the
// directory holding the config file.
func (c *Config) normalize(baseDir string) {
	c.Server.Addr = strings.TrimSpace(c.Server.Addr)
	if c.Server.ImageTimeoutSeconds <= 0 {
		c.Server.ImageTimeoutSeconds = 15
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Gemini.Region == "" {
		c.Gemini.Region = defaultRegion
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = defaultModel
	}

	for i := range c.Boards {
		b := &c.Boards[i]
		b.Name = strings.TrimSpace(b.Name)
		b.Image = strings.TrimSpace(b.Image)
		b.Layout.Mode = LayoutMode(strings.ToLower(strings.TrimSpace(string(b.Layout.Mode))))
		if b.Layout.Mode == "" {
			b.Layout.Mode = ModePercent
		}
		if b.Image != "" && !isRemote(b.Image) && !filepath.IsAbs(b.Image) && baseDir != "" {
			b.Image = filepath.Join(baseDir, b.Image)
		}
	}
}

// Validate checks the parts of the configuration that can be checked
// without touching images.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}

	seen := make(map[string]bool, len(c.Boards))
	for i, b := range c.Boards {
		if b.Name == "" {
			return fmt.Errorf("boards[%d]: name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("boards[%d]: duplicate name %q", i, b.Name)
		}
		seen[b.Name] = true
		if err := b.Validate(); err != nil {
			return fmt.Errorf("board %q: %w", b.Name, err)
		}
	}
	return nil
}

// Validate checks a board without loading its image. Pixel layouts are
// fully checked only once the image size is known.
func (b BoardConfig) Validate() error {
	if b.Image == "" {
		return errors.New("image is required")
	}
	if b.Radius < 0 {
		return errors.New("radius must not be negative")
	}
	if len(b.Hotspots) > 0 {
		if b.Layout.Mode == ModePixel {
			return fmt.Errorf("%w: custom hotspots need a percent layout", ErrInvalidGridConfiguration)
		}
		_, _, err := CustomCells(b.Hotspots)
		return err
	}
	switch b.Layout.Mode {
	case ModePercent, "":
		_, err := GenerateGrid(b.Layout.Rows, b.Layout.Cols, b.Layout.Bounds, b.Layout.Gap)
		return err
	case ModePixel:
		if !finite(b.Layout.Gap) || b.Layout.Gap < 0 {
			return fmt.Errorf("%w: gap %g is invalid", ErrInvalidGridConfiguration, b.Layout.Gap)
		}
		return validateGrid(b.Layout.Rows, b.Layout.Cols, Rect{}, 0)
	default:
		return fmt.Errorf("%w: unknown layout mode %q", ErrInvalidGridConfiguration, b.Layout.Mode)
	}
}

// SampleConfig returns the annotated example configuration.
func SampleConfig() string {
	return sampleConfig
}
