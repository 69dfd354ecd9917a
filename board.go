package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"
)

// ErrCellOutOfRange is returned when a request names a cell the board does
// not have.
var ErrCellOutOfRange = errors.New("jukebox: cell index out of range")

// Board is a background image with its hotspot grid, audio bindings and
// playback session.
type Board struct {
	ID         string
	Name       string
	Image      string
	ImageSrc   string
	Layout     Layout
	Radius     float64
	Cells      []Cell
	PixelCells []PixelCell
	CreatedAt  time.Time

	mu       sync.Mutex
	bindings Bindings
	session  Session
	img      image.Image // decoded image, pixel layouts only
}

// BoardView is the JSON representation of a board at one point in time.
type BoardView struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Image      string      `json:"image"`
	ImageSrc   string      `json:"image_src,omitempty"`
	Layout     Layout      `json:"layout"`
	Radius     float64     `json:"radius"`
	Cells      []Cell      `json:"cells"`
	PixelCells []PixelCell `json:"pixel_cells,omitempty"`
	Bindings   Bindings    `json:"bindings"`
	Session    Session     `json:"session"`
	CreatedAt  time.Time   `json:"created_at"`
}

// NewBoard builds a board from its configuration. Nothing is returned
// unless the image resolves and the layout is valid.
func NewBoard(ctx context.Context, cfg BoardConfig, loader *ImageLoader) (*Board, error) {
	b, err := planBoard(ctx, cfg, loader)
	if err != nil {
		return nil, err
	}
	if b.img == nil {
		if b.ImageSrc, err = ResolveImageSource(cfg.Image); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// planBoard computes geometry and bindings. Only pixel layouts touch the
// image, since they need its size.
func planBoard(ctx context.Context, cfg BoardConfig, loader *ImageLoader) (*Board, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	b := &Board{
		Name:    cfg.Name,
		Image:   cfg.Image,
		Layout:  cfg.Layout,
		Radius:  cfg.Radius,
		session: NewSession(),
	}
	if b.Layout.Mode == "" {
		b.Layout.Mode = ModePercent
	}

	audio := cfg.Audio
	var err error
	switch {
	case len(cfg.Hotspots) > 0:
		if b.Cells, audio, err = CustomCells(cfg.Hotspots); err != nil {
			return nil, err
		}
	case cfg.Layout.Mode == ModePixel:
		if b.img, err = loader.Load(ctx, cfg.Image); err != nil {
			return nil, err
		}
		if b.Cells, b.PixelCells, err = cfg.Layout.Cells(b.img.Bounds().Size()); err != nil {
			return nil, err
		}
	default:
		if b.Cells, _, err = cfg.Layout.Cells(image.Point{}); err != nil {
			return nil, err
		}
	}

	b.bindings = Bind(b.Cells, audio)
	if cfg.DefaultAudio != "" {
		b.bindings = b.bindings.Fill(cfg.DefaultAudio)
	}
	return b, nil
}

// View returns a copy of the board safe to encode.
func (b *Board) View() BoardView {
	b.mu.Lock()
	defer b.mu.Unlock()

	bindings := make(Bindings, len(b.bindings))
	copy(bindings, b.bindings)

	return BoardView{
		ID:         b.ID,
		Name:       b.Name,
		Image:      b.Image,
		ImageSrc:   b.ImageSrc,
		Layout:     b.Layout,
		Radius:     b.Radius,
		Cells:      b.Cells,
		PixelCells: b.PixelCells,
		Bindings:   bindings,
		Session:    b.session,
		CreatedAt:  b.CreatedAt,
	}
}

// Activate plays the audio bound to cell index through sink.
func (b *Board) Activate(index int, sink AudioSink) (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if index < 0 || index >= len(b.Cells) {
		return b.session, fmt.Errorf("%w: %d", ErrCellOutOfRange, index)
	}
	b.session = Activate(b.session, b.bindings, index, sink)
	return b.session, nil
}

// Finished marks locator as done playing.
func (b *Board) Finished(locator string) Session {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = Finish(b.session, locator)
	return b.session
}

// SetBinding replaces the audio bound to cell index and returns the stored,
// normalized locator.
func (b *Board) SetBinding(index int, locator string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	next, err := b.bindings.Replace(index, locator)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrCellOutOfRange, err)
	}
	b.bindings = next
	return next[index], nil
}

// CellImage returns the cropped picture for cell index of a pixel board.
func (b *Board) CellImage(index int) (image.Image, error) {
	if b.img == nil {
		return nil, fmt.Errorf("board %q has no pixel layout", b.Name)
	}
	if index < 0 || index >= len(b.PixelCells) {
		return nil, fmt.Errorf("%w: %d", ErrCellOutOfRange, index)
	}
	return CropCell(b.img, b.PixelCells[index]), nil
}
