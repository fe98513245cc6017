package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jackielii/heritage/internal/config"
	"github.com/jackielii/heritage/internal/content"
	"github.com/jackielii/heritage/internal/qr"
	"github.com/jackielii/heritage/internal/viewmodel"
)

var fakePNG = []byte("\x89PNG fake")

func readyEncoder() qr.Encoder {
	return qr.EncoderFunc(func(context.Context, string, qr.Options) ([]byte, error) {
		return fakePNG, nil
	})
}

func failingEncoder() qr.Encoder {
	return qr.EncoderFunc(func(context.Context, string, qr.Options) ([]byte, error) {
		return nil, errors.New("encoder exploded")
	})
}

type testSite struct {
	t           *testing.T
	server      *httptest.Server
	client      *http.Client
	slot        *qr.Slot
	// sizeEncodes counts encodes of the extra download sizes.
	sizeEncodes *atomic.Int32
	// pageLoad is the id of the last full document, sent with htmx
	// requests the way hx-vals does in the browser.
	pageLoad    string
}

var pageLoadRe = regexp.MustCompile(`page_load&#34;:&#34;([0-9a-f-]{36})&#34;`)

type siteOption func(*content.Catalog)

func newTestSite(t *testing.T, enc qr.Encoder, wait bool, opts ...siteOption) *testSite {
	t.Helper()
	cat, err := content.Default()
	require.NoError(t, err)
	for _, opt := range opts {
		opt(cat)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	slot := qr.NewSlot(enc, "https://heritage.example/", qr.DefaultOptions(), logger)
	slot.Start(context.Background())
	if wait {
		<-slot.Done()
	}

	sizeEncodes := new(atomic.Int32)
	sizes := qr.NewCachedEncoder(qr.EncoderFunc(func(_ context.Context, _ string, opts qr.Options) ([]byte, error) {
		sizeEncodes.Add(1)
		return fmt.Appendf(nil, "png@%d", opts.Width), nil
	}), 0)

	srv, err := NewServer(Deps{
		Logger:   logger,
		Catalog:  content.StaticStore(cat),
		QR:       slot,
		QRSizes:  sizes,
		Sessions: NewSessionManager(config.Defaults().Session),
	})
	require.NoError(t, err)

	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testSite{t: t, server: ts, client: &http.Client{Jar: jar}, slot: slot, sizeEncodes: sizeEncodes}
}

// newTab opens another page in the same browser: same cookies, no page
// load yet.
func (s *testSite) newTab() *testSite {
	tab := *s
	tab.pageLoad = ""
	return &tab
}

func htmxHeaders(target string) map[string]string {
	return map[string]string{"HX-Request": "true", "HX-Target": target}
}

func (s *testSite) do(method, path string, form url.Values, headers map[string]string) (*http.Response, string) {
	s.t.Helper()
	if headers["HX-Request"] == "true" && s.pageLoad != "" {
		if method == http.MethodGet {
			u, err := url.Parse(path)
			require.NoError(s.t, err)
			q := u.Query()
			q.Set(pageLoadParam, s.pageLoad)
			u.RawQuery = q.Encode()
			path = u.String()
		} else {
			withID := url.Values{pageLoadParam: {s.pageLoad}}
			for k, v := range form {
				withID[k] = v
			}
			form = withID
		}
	}
	var body io.Reader = http.NoBody
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, s.server.URL+path, body)
	require.NoError(s.t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := s.client.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(s.t, err)
	if m := pageLoadRe.FindSubmatch(b); m != nil {
		s.pageLoad = string(m[1])
	}
	return resp, string(b)
}

func (s *testSite) selectSection(slug string) (*http.Response, string) {
	return s.do(http.MethodPost, "/section", url.Values{"section": {slug}}, htmxHeaders("content"))
}

func (s *testSite) toggle() (*http.Response, string) {
	return s.do(http.MethodPost, "/playback/toggle", nil, htmxHeaders("player-control"))
}

func (s *testSite) control() string {
	_, body := s.do(http.MethodGet, "/playback/control", nil, htmxHeaders("player-control"))
	return body
}

func selectedTab(slug string) string {
	return fmt.Sprintf(`aria-controls="panel-%s" aria-selected="true"`, slug)
}

func TestHome_InitialState(t *testing.T) {
	s := newTestSite(t, readyEncoder(), true)
	resp, body := s.do(http.MethodGet, "/", nil, nil)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.True(t, strings.HasPrefix(body, "<!doctype html>"))
	assert.Contains(t, body, selectedTab("landmarks"))
	assert.Contains(t, body, `id="panel-landmarks"`)
	assert.Contains(t, body, "Мечеть Кул-Шариф")
	assert.Contains(t, body, `<audio id="audio"`)
	assert.NotEmpty(t, s.pageLoad, "the document names its page load")
	for _, slug := range []string{"landmarks", "culture", "music", "tales"} {
		assert.Contains(t, body, fmt.Sprintf(`name="section" value="%s"`, slug))
	}
}

func TestSection_SwapsContent(t *testing.T) {
	s := newTestSite(t, readyEncoder(), true)
	s.do(http.MethodGet, "/", nil, nil)

	resp, body := s.selectSection("music")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(body, `<div id="content">`), body)
	assert.NotContains(t, body, "<!doctype html>")
	assert.NotContains(t, body, `<audio`, "audio element lives outside the swapped fragment")
	assert.Contains(t, body, selectedTab("music"))
	assert.Contains(t, body, `id="player-control"`)
	assert.Contains(t, body, `aria-pressed="false"`)

	_, body = s.selectSection("tales")
	assert.Contains(t, body, `id="panel-tales"`)
	assert.Contains(t, body, `class="moral"`)

	// a plain form post falls back to the full page
	_, body = s.do(http.MethodPost, "/section", url.Values{"section": {"culture"}}, nil)
	assert.True(t, strings.HasPrefix(body, "<!doctype html>"))
	assert.Contains(t, body, selectedTab("culture"))
}

func TestSection_Unknown(t *testing.T) {
	s := newTestSite(t, readyEncoder(), true)
	s.do(http.MethodGet, "/", nil, nil)

	resp, _ := s.selectSection("cuisine")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// state is untouched
	_, body := s.do(http.MethodGet, "/", nil, htmxHeaders("content"))
	assert.Contains(t, body, selectedTab("landmarks"))
}

func TestPlayback_Toggle(t *testing.T) {
	s := newTestSite(t, readyEncoder(), true)
	s.do(http.MethodGet, "/", nil, nil)
	s.selectSection("music")

	resp, body := s.toggle()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("HX-Trigger"), eventAudioPlay)
	assert.Contains(t, body, `aria-pressed="true"`)

	resp, body = s.toggle()
	assert.Contains(t, resp.Header.Get("HX-Trigger"), eventAudioPause)
	assert.Contains(t, body, `aria-pressed="false"`)
}

func TestPlayback_EndedResetsFlag(t *testing.T) {
	s := newTestSite(t, readyEncoder(), true)
	s.do(http.MethodGet, "/", nil, nil)
	s.selectSection("music")
	s.toggle()
	require.Contains(t, s.control(), `aria-pressed="true"`)

	resp, _ := s.do(http.MethodPost, "/playback/ended", nil, map[string]string{"HX-Request": "true"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("HX-Trigger"), eventPlaybackChanged)
	assert.Contains(t, s.control(), `aria-pressed="false"`)

	// ended while already paused stays paused
	s.do(http.MethodPost, "/playback/ended", nil, map[string]string{"HX-Request": "true"})
	assert.Contains(t, s.control(), `aria-pressed="false"`)
}

func TestPlayback_SurvivesTabSwitch(t *testing.T) {
	s := newTestSite(t, readyEncoder(), true)
	s.do(http.MethodGet, "/", nil, nil)
	s.selectSection("music")
	s.toggle()

	s.selectSection("culture")
	_, body := s.selectSection("music")
	assert.Contains(t, body, `aria-pressed="true"`)
}

func TestHome_FullLoadResets(t *testing.T) {
	s := newTestSite(t, readyEncoder(), true)
	s.do(http.MethodGet, "/", nil, nil)
	s.selectSection("music")
	s.toggle()

	first := s.pageLoad
	_, body := s.do(http.MethodGet, "/", nil, nil)
	assert.NotEqual(t, first, s.pageLoad)
	assert.Contains(t, body, selectedTab("landmarks"))
	assert.Contains(t, s.control(), `aria-pressed="false"`)
}

func TestPlayback_PageLoadsAreIndependent(t *testing.T) {
	first := newTestSite(t, readyEncoder(), true)
	first.do(http.MethodGet, "/", nil, nil)
	first.selectSection("music")
	resp, _ := first.toggle()
	require.Contains(t, resp.Header.Get("HX-Trigger"), eventAudioPlay)

	// a second page in the same browser starts from scratch
	second := first.newTab()
	_, body := second.do(http.MethodGet, "/", nil, nil)
	require.NotEmpty(t, second.pageLoad)
	assert.NotEqual(t, first.pageLoad, second.pageLoad)
	assert.Contains(t, body, selectedTab("landmarks"))
	assert.Contains(t, second.control(), `aria-pressed="false"`)

	// and leaves the first page's playing audio alone
	resp, body = first.toggle()
	assert.Contains(t, resp.Header.Get("HX-Trigger"), eventAudioPause)
	assert.NotContains(t, resp.Header.Get("HX-Trigger"), eventAudioPlay)
	assert.Contains(t, body, `aria-pressed="false"`)

	_, body = second.selectSection("music")
	assert.Contains(t, body, `aria-pressed="false"`)
	resp, _ = second.toggle()
	assert.Contains(t, resp.Header.Get("HX-Trigger"), eventAudioPlay)
}

func TestSection_PlainPostStartsNewPageLoad(t *testing.T) {
	s := newTestSite(t, readyEncoder(), true)
	s.do(http.MethodGet, "/", nil, nil)
	s.selectSection("music")
	s.toggle()
	playing := s.pageLoad

	// the no-script form post renders a new document with a paused <audio>
	_, body := s.do(http.MethodPost, "/section", url.Values{"section": {"music"}}, nil)
	assert.True(t, strings.HasPrefix(body, "<!doctype html>"))
	assert.NotEqual(t, playing, s.pageLoad)
	assert.Contains(t, body, selectedTab("music"))
	assert.Contains(t, body, `aria-pressed="false"`)
	assert.Contains(t, s.control(), `aria-pressed="false"`)

	resp, _ := s.toggle()
	assert.Contains(t, resp.Header.Get("HX-Trigger"), eventAudioPlay)
}

func TestPlayback_UnknownPageLoad(t *testing.T) {
	s := newTestSite(t, readyEncoder(), true)
	s.do(http.MethodGet, "/", nil, nil)

	s.pageLoad = uuid.NewString()
	resp, _ := s.toggle()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("HX-Refresh"))

	s.pageLoad = "not-a-uuid"
	resp, _ = s.toggle()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	s.pageLoad = ""
	resp, _ = s.toggle()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStateStore_EvictsOldestPageLoad(t *testing.T) {
	sm := NewSessionManager(config.Defaults().Session)
	st := &stateStore{sessions: sm}
	var ids []string
	h := sm.LoadAndSave(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for range maxPageLoads + 1 {
			ids = append(ids, st.Begin(r.Context()).ID)
		}
		_, err := st.Load(r.Context(), ids[0])
		assert.ErrorIs(t, err, ErrUnknownPageLoad)
		pl, err := st.Load(r.Context(), ids[len(ids)-1])
		require.NoError(t, err)
		assert.Equal(t, content.Landmarks, pl.VM.ActiveSection())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", http.NoBody))
	assert.Len(t, ids, maxPageLoads+1)
}

func TestHome_DeepLink(t *testing.T) {
	s := newTestSite(t, readyEncoder(), true)

	_, body := s.do(http.MethodGet, "/?section=tales", nil, nil)
	assert.Contains(t, body, selectedTab("tales"))

	resp, _ := s.do(http.MethodGet, "/?section=bogus", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHome_UnknownTargetRetargetsBody(t *testing.T) {
	s := newTestSite(t, readyEncoder(), true)
	resp, body := s.do(http.MethodGet, "/", nil, htmxHeaders("sidebar"))
	assert.Equal(t, "body", resp.Header.Get("HX-Retarget"))
	assert.True(t, strings.HasPrefix(body, "<!doctype html>"))
}

func TestPlayback_NoAudio(t *testing.T) {
	s := newTestSite(t, readyEncoder(), true, func(c *content.Catalog) { c.Song.AudioURL = "" })
	_, page := s.do(http.MethodGet, "/?section=music", nil, nil)
	assert.NotContains(t, page, `<audio`)
	assert.Contains(t, page, "disabled")

	resp, _ := s.toggle()
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, s.control(), `aria-pressed="false"`)
}

func TestQR_Ready(t *testing.T) {
	s := newTestSite(t, readyEncoder(), true)

	_, body := s.do(http.MethodGet, "/qr/panel", nil, htmxHeaders("qr-panel"))
	assert.True(t, strings.HasPrefix(body, `<section id="qr-panel">`), body)
	assert.Contains(t, body, `src="/qr/image.png"`)
	assert.Contains(t, body, `href="/qr/download"`)
	assert.Contains(t, body, `href="/qr/download?width=512"`)
	assert.Contains(t, body, `width="256" height="256"`)
	assert.NotContains(t, body, "hx-get")

	resp, img := s.do(http.MethodGet, "/qr/image.png", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	assert.Equal(t, string(fakePNG), img)

	resp, img = s.do(http.MethodGet, "/qr/download", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "attachment; filename=tatarstan-qr.png", resp.Header.Get("Content-Disposition"))
	assert.Equal(t, string(fakePNG), img)
}

func TestQR_DownloadSizes(t *testing.T) {
	s := newTestSite(t, readyEncoder(), true)

	for range 3 {
		resp, img := s.do(http.MethodGet, "/qr/download?width=1024", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "png@1024", img)
		assert.Equal(t, "attachment; filename=tatarstan-qr.png", resp.Header.Get("Content-Disposition"))
	}
	assert.Equal(t, int32(1), s.sizeEncodes.Load(), "repeated sizes are served from the cache")

	// the configured width is the slot's own image
	_, img := s.do(http.MethodGet, "/qr/download?width=256", nil, nil)
	assert.Equal(t, string(fakePNG), img)
	assert.Equal(t, int32(1), s.sizeEncodes.Load())

	for _, width := range []string{"300", "big"} {
		resp, _ := s.do(http.MethodGet, "/qr/download?width="+width, nil, nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, width)
	}
}

func TestQR_Pending(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	enc := qr.EncoderFunc(func(context.Context, string, qr.Options) ([]byte, error) {
		<-release
		return fakePNG, nil
	})
	s := newTestSite(t, enc, false)

	_, body := s.do(http.MethodGet, "/qr/panel", nil, htmxHeaders("qr-panel"))
	assert.Contains(t, body, `hx-trigger="load delay:1s"`)
	assert.Contains(t, body, `class="spinner"`)

	resp, _ := s.do(http.MethodGet, "/qr/download", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = s.do(http.MethodGet, "/qr/download?width=512", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(0), s.sizeEncodes.Load())
}

func TestQR_FailureStaysLoading(t *testing.T) {
	s := newTestSite(t, failingEncoder(), true)
	require.Equal(t, qr.Failed, s.slot.Status())

	for range 3 {
		_, body := s.do(http.MethodGet, "/qr/panel", nil, htmxHeaders("qr-panel"))
		assert.Contains(t, body, `class="spinner"`)
		assert.NotContains(t, body, "hx-get", "failed panel stops polling")
		assert.NotContains(t, body, "<img")
	}
	resp, _ := s.do(http.MethodGet, "/qr/image.png", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, qr.Failed, s.slot.Status(), "no retry")
}

func TestAmbientRoutes(t *testing.T) {
	s := newTestSite(t, readyEncoder(), true)
	s.do(http.MethodGet, "/", nil, nil)
	s.selectSection("culture")

	resp, body := s.do(http.MethodGet, "/healthz", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", body)

	_, body = s.do(http.MethodGet, "/metrics", nil, nil)
	assert.Contains(t, body, `heritage_section_selections_total{section="culture"}`)
	assert.Contains(t, body, `heritage_http_requests_total{code="200",method="POST",page="section"}`)

	resp, body = s.do(http.MethodGet, "/static/app.js", nil, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, eventAudioPlay)
}

func TestServer_PrintRoutes(t *testing.T) {
	srv, err := NewServer(Deps{
		Catalog:  content.StaticStore(mustDefault(t)),
		QR:       qr.NewSlot(readyEncoder(), "https://heritage.example/", qr.DefaultOptions(), nil),
		Sessions: NewSessionManager(config.Defaults().Session),
	})
	require.NoError(t, err)
	var sb strings.Builder
	require.NoError(t, srv.PrintRoutes(&sb))
	for _, route := range []string{"/section", "/playback/toggle", "/qr/download", "/healthz"} {
		assert.Contains(t, sb.String(), route)
	}

	_, err = NewServer(Deps{})
	require.Error(t, err)
}

func mustDefault(t *testing.T) *content.Catalog {
	t.Helper()
	c, err := content.Default()
	require.NoError(t, err)
	return c
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{HTTPError{Code: http.StatusTeapot, Message: "x"}, http.StatusTeapot},
		{fmt.Errorf("props: %w", content.ErrUnknownSection), http.StatusBadRequest},
		{qr.ErrNotReady, http.StatusNotFound},
		{fmt.Errorf("%w: 300", qr.ErrUnsupportedWidth), http.StatusBadRequest},
		{ErrUnknownPageLoad, http.StatusConflict},
		{viewmodel.ErrNoAudio, http.StatusConflict},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, statusFor(tt.err).Code, tt.err.Error())
	}
}
