package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeShareLink(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"https://github.com/aki3note/musicbook1/blob/main/inu.wav", "https://raw.githubusercontent.com/aki3note/musicbook1/main/inu.wav"},
		{"https://github.com/you/repo/blob/main/sounds/01.mp3", "https://raw.githubusercontent.com/you/repo/main/sounds/01.mp3"},
		{"http://github.com/you/repo/blob/dev/a.ogg?raw=true#frag", "https://raw.githubusercontent.com/you/repo/dev/a.ogg"},
		{"https://github.com/you/repo/blob/main/my%20song.mp3", "https://raw.githubusercontent.com/you/repo/main/my%20song.mp3"},
		{"", ""},
		{"https://example.com/audio.mp3", "https://example.com/audio.mp3"},
		{"https://raw.githubusercontent.com/you/repo/main/a.mp3", "https://raw.githubusercontent.com/you/repo/main/a.mp3"},
		{"https://github.com/aki3note/musicbook1", "https://github.com/aki3note/musicbook1"},
		{"https://github.com/you/repo/tree/main/sounds", "https://github.com/you/repo/tree/main/sounds"},
		{"https://github.com/you/repo/blob/main/", "https://github.com/you/repo/blob/main/"},
		{"https://gist.github.com/you/repo/blob/main/a.mp3", "https://gist.github.com/you/repo/blob/main/a.mp3"},
		{"ftp://github.com/you/repo/blob/main/a.mp3", "ftp://github.com/you/repo/blob/main/a.mp3"},
		{"://not a url", "://not a url"},
		{"sounds/local.mp3", "sounds/local.mp3"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeShareLink(tc.in), "input %q", tc.in)
	}
}

func TestBindShorterResources(t *testing.T) {
	cells, err := GenerateGrid(4, 4, boardBounds, 2)
	require.NoError(t, err)

	b := Bind(cells, []string{"a.mp3", "", ""})
	require.Len(t, b, 16)
	assert.Equal(t, "a.mp3", b.Lookup(0))
	for i := 1; i < 16; i++ {
		assert.Empty(t, b.Lookup(i), "cell %d", i)
	}
	assert.Empty(t, b.Lookup(16))
	assert.Empty(t, b.Lookup(-1))
}

func TestBindNormalizesAndIgnoresExtras(t *testing.T) {
	cells, err := GenerateGrid(1, 2, Rect{Width: 100, Height: 100}, 0)
	require.NoError(t, err)

	b := Bind(cells, []string{
		" https://github.com/aki3note/musicbook1/blob/main/inu.wav ",
		"b.mp3",
		"extra.mp3",
	})
	assert.Equal(t, Bindings{"https://raw.githubusercontent.com/aki3note/musicbook1/main/inu.wav", "b.mp3"}, b)
}

func TestBindingsFillAndReplace(t *testing.T) {
	b := Bindings{"a.mp3", "", ""}

	filled := b.Fill("blank.mp3")
	assert.Equal(t, Bindings{"a.mp3", "blank.mp3", "blank.mp3"}, filled)
	assert.Equal(t, Bindings{"a.mp3", "", ""}, b, "Fill must not mutate")

	replaced, err := b.Replace(2, "https://github.com/you/repo/blob/main/c.mp3")
	require.NoError(t, err)
	assert.Equal(t, "https://raw.githubusercontent.com/you/repo/main/c.mp3", replaced[2])
	assert.Empty(t, b[2], "Replace must not mutate")

	_, err = b.Replace(3, "x.mp3")
	require.Error(t, err)
}

type recordingSink struct {
	played []string
	err    error
}

func (s *recordingSink) Play(locator string) error {
	s.played = append(s.played, locator)
	return s.err
}

func TestActivatePlaysAndPreempts(t *testing.T) {
	b := Bindings{"a.mp3", "b.mp3", ""}
	sink := &recordingSink{}

	s := Activate(NewSession(), b, 0, sink)
	assert.Equal(t, StatePlaying, s.State)
	assert.Equal(t, "a.mp3", s.Locator)
	assert.Equal(t, 0, s.Index)

	s = Activate(s, b, 1, sink)
	assert.Equal(t, StatePlaying, s.State)
	assert.Equal(t, "b.mp3", s.Locator)
	assert.Equal(t, []string{"a.mp3", "b.mp3"}, sink.played)
}

func TestActivateSilentCellIsNoop(t *testing.T) {
	b := Bindings{"a.mp3", ""}
	sink := &recordingSink{}

	before := Activate(NewSession(), b, 0, sink)
	after := Activate(before, b, 1, sink)
	assert.Equal(t, before, after)

	after = Activate(before, b, 99, sink)
	assert.Equal(t, before, after)
	assert.Equal(t, []string{"a.mp3"}, sink.played)
}

func TestActivateSwallowsSinkErrors(t *testing.T) {
	b := Bindings{"a.mp3"}

	for _, err := range []error{ErrPlaybackRejected, errors.New("decoder exploded")} {
		sink := &recordingSink{err: err}
		s := Activate(NewSession(), b, 0, sink)
		assert.Equal(t, StatePlaying, s.State)
		assert.Equal(t, "a.mp3", s.Locator)
	}

	s := Activate(NewSession(), b, 0, nil)
	assert.Equal(t, StatePlaying, s.State)
}

func TestFinish(t *testing.T) {
	b := Bindings{"a.mp3", "b.mp3"}
	s := Activate(NewSession(), b, 0, nil)
	s = Activate(s, b, 1, nil)

	// a.mp3 was preempted; its late end report changes nothing.
	assert.Equal(t, s, Finish(s, "a.mp3"))

	idle := Finish(s, "b.mp3")
	assert.Equal(t, StateIdle, idle.State)
	assert.Empty(t, idle.Locator)
	assert.Equal(t, -1, idle.Index)
}
