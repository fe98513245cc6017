package viewmodel

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/jackielii/heritage/internal/content"
)

type mockPlayer struct {
	mock.Mock
}

func (m *mockPlayer) Play() error  { return m.Called().Error(0) }
func (m *mockPlayer) Pause() error { return m.Called().Error(0) }

// countingPlayer tracks the resource's real state for property tests.
type countingPlayer struct {
	playing bool
	plays   int
	pauses  int
}

func (c *countingPlayer) Play() error {
	c.playing = true
	c.plays++
	return nil
}

func (c *countingPlayer) Pause() error {
	c.playing = false
	c.pauses++
	return nil
}

func TestNew_InitialState(t *testing.T) {
	vm := New()
	assert.Equal(t, content.Landmarks, vm.ActiveSection())
	assert.Equal(t, Paused, vm.Playback())
	assert.False(t, vm.IsPlaying())
}

func TestSelectSection_AllSections(t *testing.T) {
	for _, s := range content.Sections {
		t.Run(s.Slug(), func(t *testing.T) {
			vm := New()
			vm.SelectSection(s)
			assert.Equal(t, s, vm.ActiveSection())
			assert.Equal(t, Paused, vm.Playback(), "selecting a section must not touch playback")
		})
	}
}

func TestTogglePlayback_IssuesCommands(t *testing.T) {
	p := &mockPlayer{}
	p.On("Play").Return(nil).Once()
	p.On("Pause").Return(nil).Once()

	vm := New()
	require.NoError(t, vm.TogglePlayback(p))
	assert.Equal(t, Playing, vm.Playback())
	require.NoError(t, vm.TogglePlayback(p))
	assert.Equal(t, Paused, vm.Playback())

	p.AssertExpectations(t)
}

func TestTogglePlayback_NoAudio(t *testing.T) {
	vm := New()
	err := vm.TogglePlayback(nil)
	require.ErrorIs(t, err, ErrNoAudio)
	assert.Equal(t, Paused, vm.Playback())
}

func TestTogglePlayback_CommandFailureKeepsFlag(t *testing.T) {
	boom := errors.New("autoplay blocked")
	p := &mockPlayer{}
	p.On("Play").Return(boom).Once()

	vm := New()
	err := vm.TogglePlayback(p)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, Paused, vm.Playback())
	p.AssertExpectations(t)
}

func TestMusicScenario(t *testing.T) {
	p := &countingPlayer{}
	vm := New()

	vm.SelectSection(content.Music)
	require.NoError(t, vm.TogglePlayback(p))
	assert.Equal(t, Playing, vm.Playback())
	assert.True(t, p.playing)

	vm.OnPlaybackEnded()
	assert.Equal(t, Paused, vm.Playback())
	assert.Equal(t, content.Music, vm.ActiveSection())
}

func TestRestore_InvalidSectionFallsBack(t *testing.T) {
	vm := Restore(State{Section: content.Section(99), Playing: Playing})
	assert.Equal(t, content.Landmarks, vm.ActiveSection())
	assert.Equal(t, Playing, vm.Playback())

	vm = Restore(State{Section: content.Tales})
	assert.Equal(t, State{Section: content.Tales, Playing: Paused}, vm.State())
}

func TestVisible_FollowsActiveSection(t *testing.T) {
	c, err := content.Default()
	require.NoError(t, err)

	vm := New()
	assert.Len(t, vm.Visible(c).Landmarks, len(c.Landmarks))
	vm.SelectSection(content.Tales)
	d := vm.Visible(c)
	require.NotNil(t, d.Tale)
	assert.Equal(t, c.Tale.Title, d.Tale.Title)
}

func TestProperty_TogglePairIsIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		start := PlaybackState(rapid.Bool().Draw(t, "playing"))
		section := rapid.SampledFrom(content.Sections).Draw(t, "section")
		vm := Restore(State{Section: section, Playing: start})
		p := &countingPlayer{playing: bool(start)}

		if err := vm.TogglePlayback(p); err != nil {
			t.Fatalf("first toggle: %v", err)
		}
		if err := vm.TogglePlayback(p); err != nil {
			t.Fatalf("second toggle: %v", err)
		}
		if vm.Playback() != start {
			t.Fatalf("toggle pair changed playback: %v -> %v", start, vm.Playback())
		}
		if vm.ActiveSection() != section {
			t.Fatalf("toggle changed section")
		}
	})
}

func TestProperty_EndedAlwaysPauses(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		vm := New()
		p := &countingPlayer{}
		steps := rapid.SliceOf(rapid.IntRange(0, 2)).Draw(t, "steps")
		for _, step := range steps {
			switch step {
			case 0:
				vm.SelectSection(rapid.SampledFrom(content.Sections).Draw(t, "s"))
			case 1:
				_ = vm.TogglePlayback(p)
			case 2:
				vm.OnPlaybackEnded()
				p.playing = false
			}
			if vm.IsPlaying() != p.playing {
				t.Fatalf("flag %v diverged from resource %v", vm.IsPlaying(), p.playing)
			}
		}
		vm.OnPlaybackEnded()
		vm.OnPlaybackEnded()
		if vm.Playback() != Paused {
			t.Fatalf("expected paused after ended")
		}
	})
}
