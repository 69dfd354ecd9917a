package main

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLayoutSuggestion(t *testing.T) {
	s, err := parseLayoutSuggestion(`{"rows":4,"cols":4,"gap":2,"bounds":{"top":16.5,"left":4.5,"width":91,"height":77}}`)
	require.NoError(t, err)
	assert.Equal(t, 4, s.Rows)
	assert.Len(t, s.Cells, 16)
	assert.Equal(t, ModePercent, s.Layout().Mode)
	assert.InDelta(t, 74.25, s.Cells[15].Left, 1e-4)
}

func TestParseLayoutSuggestionRejects(t *testing.T) {
	for name, text := range map[string]string{
		"not json":        `here is your grid`,
		"zero rows":       `{"rows":0,"cols":4,"bounds":{"width":90,"height":90}}`,
		"gap too large":   `{"rows":4,"cols":4,"gap":2,"bounds":{"width":3,"height":90}}`,
		"outside picture": `{"rows":2,"cols":2,"bounds":{"top":50,"left":0,"width":90,"height":90}}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseLayoutSuggestion(text)
			require.Error(t, err)
		})
	}

	_, err := parseLayoutSuggestion(`{"rows":4,"cols":4,"gap":2,"bounds":{"width":3,"height":90}}`)
	assert.True(t, errors.Is(err, ErrInvalidGridConfiguration))
}

func TestDetectLayoutIntegration(t *testing.T) {
	projectID := os.Getenv("GCP_PROJECT_ID")
	if projectID == "" {
		t.Skip("GCP_PROJECT_ID not set, skipping integration test")
	}

	ctx := context.Background()
	client, err := NewGeminiClient(ctx, GeminiConfig{ProjectID: projectID})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	defer client.Close()

	imageData, err := os.ReadFile("test_data/board.png")
	if err != nil {
		t.Skipf("read image: %v", err)
	}

	s, err := client.DetectLayout(ctx, imageData, "image/png")
	if err != nil {
		t.Fatalf("detect layout: %v", err)
	}
	t.Logf("Suggested layout: %dx%d gap=%g bounds=%+v", s.Rows, s.Cols, s.Gap, s.Bounds)
}
