package main

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	shareHost = "github.com"
	rawHost   = "raw.githubusercontent.com"
)

// ErrPlaybackRejected is returned by an AudioSink that refuses to play,
// for instance because nobody is listening.
var ErrPlaybackRejected = errors.New("jukebox: playback rejected")

// Bindings maps a cell index to an audio locator. An empty string means the
// cell is silent.
type Bindings []string

// Bind pairs each cell with the resource at the same position. Cells past
// the end of resources bind to silence. Locators are normalized.
func Bind(cells []Cell, resources []string) Bindings {
	b := make(Bindings, len(cells))
	for i := range cells {
		if i < len(resources) {
			b[i] = NormalizeShareLink(strings.TrimSpace(resources[i]))
		}
	}
	return b
}

// Lookup returns the locator bound to index, or "" when there is none.
func (b Bindings) Lookup(index int) string {
	if index < 0 || index >= len(b) {
		return ""
	}
	return b[index]
}

// Fill returns a copy where every silent cell is bound to locator.
func (b Bindings) Fill(locator string) Bindings {
	locator = NormalizeShareLink(strings.TrimSpace(locator))
	out := make(Bindings, len(b))
	for i, v := range b {
		if v == "" {
			v = locator
		}
		out[i] = v
	}
	return out
}

// Replace returns a copy with the binding at index set to locator.
func (b Bindings) Replace(index int, locator string) (Bindings, error) {
	if index < 0 || index >= len(b) {
		return nil, fmt.Errorf("cell index %d out of range [0,%d)", index, len(b))
	}
	out := make(Bindings, len(b))
	copy(out, b)
	out[index] = NormalizeShareLink(strings.TrimSpace(locator))
	return out, nil
}

// NormalizeShareLink rewrites a GitHub "blob" page URL into its
// raw.githubusercontent.com equivalent. Anything else, including input that
// fails to parse, is returned unchanged.
func NormalizeShareLink(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host != shareHost {
		return raw
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return raw
	}

	// owner / repo / "blob" / branch / path...
	parts := strings.Split(strings.TrimPrefix(u.EscapedPath(), "/"), "/")
	if len(parts) < 5 || parts[2] != "blob" {
		return raw
	}
	for _, p := range parts {
		if p == "" {
			return raw
		}
	}

	rest := append([]string{parts[0], parts[1]}, parts[3:]...)
	return "https://" + rawHost + "/" + strings.Join(rest, "/")
}

// PlaybackState is the state of a board's player.
type PlaybackState string

const (
	StateIdle    PlaybackState = "idle"
	StatePlaying PlaybackState = "playing"
)

// Session is the playback state of one board. It is a plain value: Activate
// takes the current session and returns the next one.
type Session struct {
	State     PlaybackState `json:"state"`
	Index     int           `json:"index"`
	Locator   string        `json:"locator,omitempty"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// NewSession returns an idle session.
func NewSession() Session {
	return Session{State: StateIdle, Index: -1}
}

// AudioSink plays a locator. Implementations return ErrPlaybackRejected
// when playback is refused.
type AudioSink interface {
	Play(locator string) error
}

// Activate handles a tap on cell index. Silent cells leave the session as it
// was. Otherwise the new locator preempts whatever was playing. Sink
// failures never reach the caller.
func Activate(s Session, b Bindings, index int, sink AudioSink) Session {
	locator := b.Lookup(index)
	if locator == "" {
		return s
	}

	next := Session{
		State:     StatePlaying,
		Index:     index,
		Locator:   locator,
		UpdatedAt: time.Now(),
	}
	if sink == nil {
		return next
	}
	if err := sink.Play(locator); err != nil && !errors.Is(err, ErrPlaybackRejected) {
		log.Debug().Err(err).Str("locator", locator).Msg("audio sink failed")
	}
	return next
}

// Finish returns the session to idle if locator is what it is playing.
// A late report for a preempted locator is ignored.
func Finish(s Session, locator string) Session {
	if s.State != StatePlaying || s.Locator != locator {
		return s
	}
	return Session{State: StateIdle, Index: -1, UpdatedAt: time.Now()}
}
