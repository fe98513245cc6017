package web

import (
	"context"
	"encoding/gob"
	"errors"
	"net/http"
	"slices"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/google/uuid"

	"github.com/jackielii/heritage/internal/config"
	"github.com/jackielii/heritage/internal/content"
	"github.com/jackielii/heritage/internal/metrics"
	"github.com/jackielii/heritage/internal/pages"
	"github.com/jackielii/heritage/internal/viewmodel"
)

// ErrUnknownPageLoad is returned for a page load id the session does not
// hold, typically after it expired or was evicted.
var ErrUnknownPageLoad = errors.New("unknown page load")

const (
	// pageLoadParam carries the page load id on every htmx request; the
	// layout sets it through hx-vals.
	pageLoadParam = "page_load"
	pageLoadsKey  = "page_loads"
	// maxPageLoads bounds the view models one session keeps.
	maxPageLoads  = 16
)

func init() {
	gob.Register(viewmodel.State{})
}
// pageLoad is one rendered document and the view model behind it. Each
// document carries its own <audio> element, so each gets its own state.
type pageLoad struct {
	ID string
	VM *viewmodel.ContentViewModel
}

// stateStore keeps the view model of each of a visitor's page loads in
// their session.
type stateStore struct {
	sessions *scs.SessionManager
}

func pageLoadKey(id string) string { return "page_load:" + id }

// Begin starts a page load in the initial state. The oldest page load is
// dropped once the session holds maxPageLoads.
func (s *stateStore) Begin(ctx context.Context) *pageLoad {
	pl := &pageLoad{ID: uuid.NewString(), VM: viewmodel.New()}
	ids, _ := s.sessions.Get(ctx, pageLoadsKey).([]string)
	ids = append(ids, pl.ID)
	for len(ids) > maxPageLoads {
		s.sessions.Remove(ctx, pageLoadKey(ids[0]))
		ids = ids[1:]
	}
	s.sessions.Put(ctx, pageLoadsKey, slices.Clone(ids))
	s.Save(ctx, pl)
	return pl
}

// Load returns the page load with the given id.
func (s *stateStore) Load(ctx context.Context, id string) (*pageLoad, error) {
	if id == "" {
		return nil, HTTPError{Code: http.StatusBadRequest, Message: "missing page load id"}
	}
	if err := uuid.Validate(id); err != nil {
		return nil, HTTPError{Code: http.StatusBadRequest, Message: "malformed page load id"}
	}
	st, ok := s.sessions.Get(ctx, pageLoadKey(id)).(viewmodel.State)
	if !ok {
		return nil, ErrUnknownPageLoad
	}
	return &pageLoad{ID: id, VM: viewmodel.Restore(st)}, nil
}

func (s *stateStore) Save(ctx context.Context, pl *pageLoad) {
	s.sessions.Put(ctx, pageLoadKey(pl.ID), pl.VM.State())
}

// ForRequest returns the page load a request acts on. A response that
// renders the whole document brings a new paused <audio>, so it starts a
// new page load; fragment requests name theirs in pageLoadParam.
func (s *stateStore) ForRequest(r *http.Request) (*pageLoad, error) {
	if pages.RendersPage(r.Context()) {
		return s.Begin(r.Context()), nil
	}
	return s.Load(r.Context(), r.FormValue(pageLoadParam))
}

// Browser audio events, dispatched as HX-Trigger headers.
const (
	eventAudioPlay       = "audio-play"
	eventAudioPause      = "audio-pause"
	eventPlaybackChanged = "playback-changed"
)

// triggerPlayer is the server side of the page's <audio> element: commands
// become htmx trigger events that app.js forwards to the element.
type triggerPlayer struct {
	events []string
}

func (p *triggerPlayer) Play() error {
	p.events = append(p.events, eventAudioPlay)
	metrics.RecordPlaybackCommand("play")
	return nil
}

func (p *triggerPlayer) Pause() error {
	p.events = append(p.events, eventAudioPause)
	metrics.RecordPlaybackCommand("pause")
	return nil
}

// playerFor returns the player for the catalog's song, or nil when the
// song has no audio.
func playerFor(c *content.Catalog, tp *triggerPlayer) viewmodel.Player {
	if c.Song.AudioURL == "" {
		return nil
	}
	return tp
}
