package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/base64x"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

const maxImageSize = 20 << 20 // 20 Mo

// ErrImageLoad is returned when a background image cannot be read, fetched
// or decoded.
var ErrImageLoad = errors.New("jukebox: image load failure")

// isRemote reports whether src is fetched over HTTP rather than read from disk.
func isRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// imageMIME picks the data URI type from the file extension.
func imageMIME(path string) string {
	if strings.ToLower(filepath.Ext(path)) == ".png" {
		return "image/png"
	}
	return "image/jpeg"
}

// ResolveImageSource returns something an <img> can display: remote URLs
// unchanged, local files inlined as a base64 data URI.
func ResolveImageSource(src string) (string, error) {
	if src == "" {
		return "", fmt.Errorf("%w: empty image source", ErrImageLoad)
	}
	if isRemote(src) {
		return src, nil
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrImageLoad, err)
	}
	return "data:" + imageMIME(src) + ";base64," + base64x.StdEncoding.EncodeToString(data), nil
}

// ImageLoader decodes background images for pixel layouts.
type ImageLoader struct {
	client *http.Client
}

// NewImageLoader returns a loader whose remote fetches give up after timeout.
func NewImageLoader(timeout time.Duration) *ImageLoader {
	return &ImageLoader{client: &http.Client{Timeout: timeout}}
}

// Load fetches or opens src and decodes it.
func (l *ImageLoader) Load(ctx context.Context, src string) (image.Image, error) {
	if src == "" {
		return nil, fmt.Errorf("%w: empty image source", ErrImageLoad)
	}
	if !isRemote(src) {
		img, err := imaging.Open(src)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrImageLoad, err)
		}
		return img, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageLoad, err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", ErrImageLoad, src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s: status %d", ErrImageLoad, src, resp.StatusCode)
	}
	img, err := imaging.Decode(io.LimitReader(resp.Body, maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrImageLoad, src, err)
	}
	return img, nil
}

// CropCell cuts one pixel cell out of the decoded image.
func CropCell(img image.Image, pc PixelCell) *image.NRGBA {
	return imaging.Crop(img, pc.Box.Add(img.Bounds().Min))
}
