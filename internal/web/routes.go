package web

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/angelofallars/htmx-go"
	"github.com/go-playground/form/v4"

	"github.com/jackielii/heritage/internal/content"
	"github.com/jackielii/heritage/internal/metrics"
	"github.com/jackielii/heritage/internal/qr"
)

// site is the portal's page tree.
type site struct {
	home     homePage      `route:"GET / Home"`
	section  sectionPage   `route:"POST /section Section"`
	playback playbackPages `route:"/playback"`
	qrCode   qrPages       `route:"/qr"`
	health   healthPage    `route:"GET /healthz"`
	metrics  metricsPage   `route:"GET /metrics"`
}

type playbackPages struct {
	control playbackControlPage `route:"GET /control"`
	toggle  playbackTogglePage  `route:"POST /toggle"`
	ended   playbackEndedPage   `route:"POST /ended"`
}

type qrPages struct {
	panel    qrPanelPage    `route:"GET /panel"`
	image    qrImagePage    `route:"GET /image.png"`
	download qrDownloadPage `route:"GET /download"`
}

// homePage is the full document. Rendering it starts a fresh page load;
// ?section= opens a tab directly.
type homePage struct{}

func (homePage) Props(r *http.Request, st *stateStore, cs *content.Store, slot *qr.Slot) (pageData, error) {
	var deepLink *content.Section
	if slug := r.URL.Query().Get("section"); slug != "" {
		s, err := content.ParseSection(slug)
		if err != nil {
			return pageData{}, err
		}
		deepLink = &s
	}

	pl, err := st.ForRequest(r)
	if err != nil {
		return pageData{}, err
	}
	if deepLink != nil {
		pl.VM.SelectSection(*deepLink)
		st.Save(r.Context(), pl)
	}
	return newPageData(cs, pl, slot), nil
}

func (homePage) Page(d pageData) templ.Component    { return layout(d) }
func (homePage) Content(d pageData) templ.Component { return contentView(d) }

type sectionForm struct {
	Section string `form:"section"`
}

// sectionPage switches the active tab. The no-script form post renders the
// whole document, which starts a new page load on the chosen tab.
type sectionPage struct{}

func (sectionPage) Props(r *http.Request, st *stateStore, cs *content.Store, slot *qr.Slot, dec *form.Decoder) (pageData, error) {
	if err := r.ParseForm(); err != nil {
		return pageData{}, HTTPError{Code: http.StatusBadRequest, Message: "invalid form"}
	}
	var f sectionForm
	if err := dec.Decode(&f, r.PostForm); err != nil {
		return pageData{}, HTTPError{Code: http.StatusBadRequest, Message: "invalid form"}
	}
	s, err := content.ParseSection(f.Section)
	if err != nil {
		return pageData{}, err
	}

	pl, err := st.ForRequest(r)
	if err != nil {
		return pageData{}, err
	}
	pl.VM.SelectSection(s)
	st.Save(r.Context(), pl)
	metrics.RecordSectionSelection(s.Slug())
	return newPageData(cs, pl, slot), nil
}

func (sectionPage) Page(d pageData) templ.Component    { return layout(d) }
func (sectionPage) Content(d pageData) templ.Component { return contentView(d) }

type playbackControlPage struct{}

func (playbackControlPage) Props(r *http.Request, st *stateStore, cs *content.Store, slot *qr.Slot) (pageData, error) {
	pl, err := st.ForRequest(r)
	if err != nil {
		return pageData{}, err
	}
	return newPageData(cs, pl, slot), nil
}

func (playbackControlPage) Page(d pageData) templ.Component          { return layout(d) }
func (playbackControlPage) PlayerControl(d pageData) templ.Component { return playerControl(d) }

// playbackTogglePage flips the playback flag and tells the browser to play
// or pause through an HX-Trigger event.
type playbackTogglePage struct {
	state   *stateStore
	catalog *content.Store
}

func (p *playbackTogglePage) Init(st *stateStore, cs *content.Store) {
	p.state, p.catalog = st, cs
}

func (p *playbackTogglePage) ServeHTTP(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()
	pl, err := p.state.ForRequest(r)
	if err != nil {
		return err
	}
	c := p.catalog.Catalog()
	player := &triggerPlayer{}
	if err := pl.VM.TogglePlayback(playerFor(c, player)); err != nil {
		return err
	}
	p.state.Save(ctx, pl)

	resp := htmx.NewResponse()
	for _, event := range player.events {
		resp = resp.AddTrigger(htmx.Trigger(event))
	}
	return resp.RenderTempl(ctx, w, playerControl(pageData{Catalog: c, PageLoad: pl.ID, VM: pl.VM}))
}

// playbackEndedPage receives the audio element's ended event.
type playbackEndedPage struct {
	state *stateStore
}

func (p *playbackEndedPage) Init(st *stateStore) { p.state = st }

func (p *playbackEndedPage) ServeHTTP(w http.ResponseWriter, r *http.Request) error {
	pl, err := p.state.ForRequest(r)
	if err != nil {
		return err
	}
	pl.VM.OnPlaybackEnded()
	p.state.Save(r.Context(), pl)
	return htmx.NewResponse().AddTrigger(htmx.Trigger(eventPlaybackChanged)).Write(w)
}

type qrPanelPage struct{}

func (qrPanelPage) Props(r *http.Request, st *stateStore, cs *content.Store, slot *qr.Slot) (pageData, error) {
	pl, err := st.ForRequest(r)
	if err != nil {
		return pageData{}, err
	}
	return newPageData(cs, pl, slot), nil
}

func (qrPanelPage) Page(d pageData) templ.Component    { return layout(d) }
func (qrPanelPage) QrPanel(d pageData) templ.Component { return qrPanel(d) }

type qrImagePage struct {
	slot *qr.Slot
}

func (p *qrImagePage) Init(slot *qr.Slot) { p.slot = slot }

func (p *qrImagePage) ServeHTTP(w http.ResponseWriter, r *http.Request) error {
	data, err := p.slot.Bytes()
	if err != nil {
		return err
	}
	writePNG(w, data)
	return nil
}

// qrDownloadPage serves the image as an attachment with a fixed name.
// ?width= picks one of the larger print sizes.
type qrDownloadPage struct {
	slot  *qr.Slot
	sizes qr.Encoder
}

func (p *qrDownloadPage) Init(slot *qr.Slot, sizes *qr.CachedEncoder) {
	p.slot, p.sizes = slot, sizes
}

func (p *qrDownloadPage) ServeHTTP(w http.ResponseWriter, r *http.Request) error {
	width := p.slot.Options().Width
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return HTTPError{Code: http.StatusBadRequest, Message: "invalid width"}
		}
		width = n
	}
	data, err := p.slot.Render(r.Context(), p.sizes, width)
	if err != nil {
		return err
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": qr.DownloadFilename,
	}))
	writePNG(w, data)
	return nil
}

func writePNG(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(data)
}

type healthPage struct{}

func (healthPage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

type metricsPage struct {
	handler http.Handler
}

func (p *metricsPage) Init() { p.handler = metrics.Handler() }

func (p *metricsPage) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.handler.ServeHTTP(w, r)
}
