// Package viewmodel holds the page's view state: the active section and
// whether the audio resource is playing. It has no rendering or transport
// dependencies so transitions can be tested in isolation.
package viewmodel

import (
	"errors"
	"fmt"

	"github.com/jackielii/heritage/internal/content"
)

// ErrNoAudio is returned by TogglePlayback when there is no audio resource.
var ErrNoAudio = errors.New("no audio resource")

// Player is the audio resource the playback flag mirrors.
type Player interface {
	Play() error
	Pause() error
}

// PlaybackState is Playing or Paused.
type PlaybackState bool

const (
	Paused  PlaybackState = false
	Playing PlaybackState = true
)

func (p PlaybackState) String() string {
	if p == Playing {
		return "playing"
	}
	return "paused"
}

// State is the serializable snapshot of a ContentViewModel.
type State struct {
	Section content.Section
	Playing PlaybackState
}

// ContentViewModel is the state behind one page load. It is not safe for
// concurrent use; callers serialize events per page.
type ContentViewModel struct {
	active  content.Section
	playing PlaybackState
}

// New returns the initial state: Landmarks, Paused.
func New() *ContentViewModel {
	return &ContentViewModel{active: content.Landmarks, playing: Paused}
}

// Restore rebuilds a view model from a snapshot. An out-of-range section
// falls back to Landmarks.
func Restore(s State) *ContentViewModel {
	vm := &ContentViewModel{active: s.Section, playing: s.Playing}
	if !vm.active.Valid() {
		vm.active = content.Landmarks
	}
	return vm
}

// State returns a snapshot for storage.
func (vm *ContentViewModel) State() State {
	return State{Section: vm.active, Playing: vm.playing}
}

func (vm *ContentViewModel) ActiveSection() content.Section { return vm.active }

func (vm *ContentViewModel) Playback() PlaybackState { return vm.playing }

func (vm *ContentViewModel) IsPlaying() bool { return vm.playing == Playing }

// SelectSection makes s the active section. Nothing else changes.
func (vm *ContentViewModel) SelectSection(s content.Section) {
	vm.active = s
}

// TogglePlayback flips the playback flag and issues the matching command to
// p. The flag only changes when the command succeeds.
func (vm *ContentViewModel) TogglePlayback(p Player) error {
	if p == nil {
		return ErrNoAudio
	}
	if vm.playing == Playing {
		if err := p.Pause(); err != nil {
			return fmt.Errorf("pausing audio: %w", err)
		}
		vm.playing = Paused
		return nil
	}
	if err := p.Play(); err != nil {
		return fmt.Errorf("starting audio: %w", err)
	}
	vm.playing = Playing
	return nil
}

// OnPlaybackEnded is called when the audio resource reaches end of stream.
func (vm *ContentViewModel) OnPlaybackEnded() {
	vm.playing = Paused
}

// Visible returns the dataset the active section displays.
func (vm *ContentViewModel) Visible(c *content.Catalog) content.Dataset {
	return c.Dataset(vm.active)
}
