package main

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"
	"google.golang.org/genai"
)

const detectPrompt = `This picture is a board of equally sized square or rectangular tiles laid out in a regular grid.

Return the grid position as JSON:
{
  "rows": <number of tile rows>,
  "cols": <number of tile columns>,
  "gap": <space between two adjacent tiles, in percent of the image width>,
  "bounds": {
    "top": <top edge of the first tile row, percent of image height>,
    "left": <left edge of the first tile column, percent of image width>,
    "width": <width from the first column's left edge to the last column's right edge, percent of image width>,
    "height": <height from the first row's top edge to the last row's bottom edge, percent of image height>
  }
}

Rules:
- All values are numbers between 0 and 100.
- Ignore frames, titles and decorations around the tiles.
- Answer ONLY with the JSON, no comment and no markdown.`

// LayoutSuggestion is a percent layout proposed for an uploaded image.
type LayoutSuggestion struct {
	Rows   int     `json:"rows"`
	Cols   int     `json:"cols"`
	Gap    float64 `json:"gap"`
	Bounds Rect    `json:"bounds"`
	Cells  []Cell  `json:"cells,omitempty"`
}

// Layout returns the suggestion as a percent layout.
func (s LayoutSuggestion) Layout() Layout {
	return Layout{Mode: ModePercent, Rows: s.Rows, Cols: s.Cols, Gap: s.Gap, Bounds: s.Bounds}
}

// DetectLayout sends an image to Gemini and returns the grid it sees. The
// suggestion is checked with GenerateGrid before it is returned.
func (g *GeminiClient) DetectLayout(ctx context.Context, imageData []byte, mimeType string) (*LayoutSuggestion, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName,
		[]*genai.Content{{
			Role: "user",
			Parts: []*genai.Part{
				{Text: detectPrompt},
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageData}},
			},
		}},
		&genai.GenerateContentConfig{
			Temperature:      genai.Ptr(float32(0.1)),
			TopP:             genai.Ptr(float32(1)),
			ResponseMIMEType: "application/json",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return nil, fmt.Errorf("empty gemini response")
	}
	return parseLayoutSuggestion(text)
}

func parseLayoutSuggestion(text string) (*LayoutSuggestion, error) {
	var s LayoutSuggestion
	if err := sonic.UnmarshalString(text, &s); err != nil {
		return nil, fmt.Errorf("parse layout JSON: %w\nraw response: %s", err, text)
	}

	cells, err := GenerateGrid(s.Rows, s.Cols, s.Bounds, s.Gap)
	if err != nil {
		return nil, fmt.Errorf("suggested layout: %w", err)
	}
	if last := cells[len(cells)-1]; last.Top+last.Height > 100+1e-6 || last.Left+last.Width > 100+1e-6 {
		return nil, fmt.Errorf("suggested layout: %w: grid leaves the image", ErrInvalidGridConfiguration)
	}
	s.Cells = cells
	return &s, nil
}
