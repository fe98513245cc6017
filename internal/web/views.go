package web

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"

	"github.com/jackielii/heritage/internal/content"
	"github.com/jackielii/heritage/internal/pages"
	"github.com/jackielii/heritage/internal/qr"
	"github.com/jackielii/heritage/internal/viewmodel"
)

const (
	qrHeading     = "QR-код этой страницы"
	qrLoading     = "Загрузка QR-кода"
	qrDownload    = "Скачать QR-код"
	labelPlay     = "Воспроизвести"
	labelPause    = "Пауза"
	labelLocation = "Местоположение"
	labelCoords   = "Координаты"
)

// pageData is what every view of the portal renders from.
type pageData struct {
	Catalog  *content.Catalog
	PageLoad string
	VM       *viewmodel.ContentViewModel
	QR       qr.Status
	QRText   string
	QRWidth  int
}

func newPageData(cs *content.Store, pl *pageLoad, slot *qr.Slot) pageData {
	return pageData{
		Catalog:  cs.Catalog(),
		PageLoad: pl.ID,
		VM:       pl.VM,
		QR:       slot.Status(),
		QRText:   slot.Text(),
		QRWidth:  slot.Options().Width,
	}
}

// htmlWriter keeps the first write error so views can write freely and
// check once at the end.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) printf(format string, args ...any) {
	if h.err == nil {
		_, h.err = fmt.Fprintf(h.w, format, args...)
	}
}

func (h *htmlWriter) render(ctx context.Context, c templ.Component) {
	if h.err == nil {
		h.err = c.Render(ctx, h.w)
	}
}

func esc(s string) string { return templ.EscapeString(s) }

// escURL sanitizes u for use in href/src attributes.
func escURL(u string) string { return esc(string(templ.URL(u))) }

// pageLoadVals is the hx-vals payload naming the page load.
func pageLoadVals(id string) string {
	return fmt.Sprintf(`{%q:%q}`, pageLoadParam, id)
}

func urlFor(ctx context.Context, page any, args ...any) string {
	u, err := pages.URLFor(ctx, page, args...)
	if err != nil {
		return "#"
	}
	return esc(u)
}

// audioElement lives outside #content so switching tabs never replaces
// the playing element.
func audioElement(d pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if d.Catalog.Song.AudioURL == "" {
			return nil
		}
		h := &htmlWriter{w: w}
		h.printf("<audio id=\"audio\" preload=\"none\" src=\"%s\" hx-post=\"%s\" hx-trigger=\"ended\" hx-swap=\"none\"></audio>\n",
			escURL(d.Catalog.Song.AudioURL), urlFor(ctx, playbackEndedPage{}))
		return h.err
	})
}

// tabBar renders one form per section so selection also works without
// JavaScript.
func tabBar(d pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		action := urlFor(ctx, sectionPage{})
		h.raw("<nav class=\"tabs\" role=\"tablist\">\n")
		for _, s := range content.Sections {
			h.printf("<form method=\"post\" action=\"%s\" hx-post=\"%s\" hx-target=\"#content\" hx-swap=\"outerHTML\">", action, action)
			h.printf("<input type=\"hidden\" name=\"section\" value=\"%s\">", s.Slug())
			h.printf("<button type=\"submit\" role=\"tab\" aria-controls=\"panel-%s\" aria-selected=\"%t\">%s</button></form>\n",
				s.Slug(), s == d.VM.ActiveSection(), esc(d.Catalog.TabLabel(s)))
		}
		h.raw("</nav>\n")
		return h.err
	})
}

func landmarksPanel(landmarks []content.Landmark) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw("<div class=\"grid\">\n")
		for _, l := range landmarks {
			h.raw("<article class=\"card landmark\">")
			if l.Image != "" {
				h.printf("<img src=\"%s\" alt=\"%s\" loading=\"lazy\">", escURL(l.Image), esc(l.Name))
			}
			h.printf("<div class=\"body\"><span class=\"id\">#%d</span><h3>%s</h3>", l.ID, esc(l.Name))
			h.printf("<p class=\"foreign\">%s</p><p>%s</p>", esc(l.NameForeign), esc(l.Description))
			h.printf("<p class=\"meta\" title=\"%s\">%s</p>", labelLocation, esc(l.Location))
			h.printf("<p class=\"meta coords\" title=\"%s\">%s</p>", labelCoords, esc(l.Coordinates))
			h.raw("</div></article>\n")
		}
		h.raw("</div>\n")
		return h.err
	})
}

func culturePanel(blocks []content.CultureBlock) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		for _, b := range blocks {
			class := "card culture-block"
			if b.ImageRight {
				class += " right"
			}
			h.printf("<article class=\"%s\">", class)
			if b.Image != "" {
				h.printf("<div class=\"picture\"><img src=\"%s\" alt=\"%s\" loading=\"lazy\"></div>", escURL(b.Image), esc(b.ImageAlt))
			}
			h.printf("<div class=\"text\"><h3>%s</h3><p>%s</p><div class=\"tags\">", esc(b.Title), esc(b.Body))
			for _, tag := range b.Tags {
				h.printf("<span class=\"tag\">%s</span>", esc(tag))
			}
			h.raw("</div></div></article>\n")
		}
		return h.err
	})
}

func musicPanel(d pageData, song *content.Song) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.printf("<article class=\"card song\"><h2>%s</h2><p class=\"subtitle\">%s</p>\n", esc(song.Title), esc(song.Subtitle))
		h.raw("<div class=\"player\">")
		h.render(ctx, playerControl(d))
		h.raw("</div>\n")
		h.render(ctx, lyrics(song.OriginalHeading, song.Original))
		h.render(ctx, lyrics(song.TranslationHeading, song.Translation))
		h.raw("</article>\n")
		return h.err
	})
}

func lyrics(heading string, stanzas []content.Stanza) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if len(stanzas) == 0 {
			return nil
		}
		h := &htmlWriter{w: w}
		h.printf("<div class=\"lyrics\"><h3>%s</h3>", esc(heading))
		for _, stanza := range stanzas {
			h.raw("<div class=\"stanza\">")
			for _, line := range stanza {
				h.printf("<p>%s</p>", esc(line))
			}
			h.raw("</div>")
		}
		h.raw("</div>\n")
		return h.err
	})
}

// playerControl is the play/pause button. It refreshes itself when the
// audio element reports the end of the track.
func playerControl(d pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.printf("<div id=\"player-control\" hx-get=\"%s\" hx-trigger=\"%s from:body\" hx-swap=\"outerHTML\">",
			urlFor(ctx, playbackControlPage{}), eventPlaybackChanged)
		label, icon := labelPlay, "&#9654;"
		if d.VM.IsPlaying() {
			label, icon = labelPause, "&#10074;&#10074;"
		}
		if d.Catalog.Song.AudioURL == "" {
			h.printf("<button type=\"button\" disabled aria-label=\"%s\" aria-pressed=\"%t\">%s</button>", label, d.VM.IsPlaying(), icon)
		} else {
			h.printf("<button type=\"button\" hx-post=\"%s\" hx-target=\"#player-control\" hx-swap=\"outerHTML\" aria-label=\"%s\" aria-pressed=\"%t\">%s</button>",
				urlFor(ctx, playbackTogglePage{}), label, d.VM.IsPlaying(), icon)
		}
		h.raw("</div>")
		return h.err
	})
}

func talePanel(tale *content.Tale) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.printf("<article class=\"card tale\"><h2>%s</h2><p class=\"subtitle\">%s</p>\n", esc(tale.Title), esc(tale.Subtitle))
		for _, p := range tale.Paragraphs {
			h.printf("<p>%s</p>\n", esc(p))
		}
		if tale.Moral != "" {
			h.printf("<p class=\"moral\">%s</p>\n", esc(tale.Moral))
		}
		h.raw("</article>\n")
		return h.err
	})
}

// qrPanel polls itself while the code is pending. A failed encode keeps
// the loading indicator but stops polling.
func qrPanel(d pageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		switch d.QR {
		case qr.Ready:
			h.raw("<section id=\"qr-panel\">")
			h.printf("<h2>%s</h2>", qrHeading)
			h.printf("<img src=\"%s\" alt=\"%s\" width=\"%d\" height=\"%d\">",
				urlFor(ctx, qrImagePage{}), esc(d.QRText), d.QRWidth, d.QRWidth)
			download := urlFor(ctx, qrDownloadPage{})
			h.printf("<div><a class=\"download\" href=\"%s\" download=\"%s\">%s</a>",
				download, qr.DownloadFilename, qrDownload)
			for _, width := range qr.DownloadWidths {
				h.printf(" <a class=\"download size\" href=\"%s?width=%d\" download=\"%s\">%d px</a>",
					download, width, qr.DownloadFilename, width)
			}
			h.raw("</div>")
		case qr.Pending:
			h.printf("<section id=\"qr-panel\" hx-get=\"%s\" hx-trigger=\"load delay:1s\" hx-swap=\"outerHTML\">",
				urlFor(ctx, qrPanelPage{}))
			h.printf("<h2>%s</h2><div class=\"spinner\" role=\"status\" aria-label=\"%s\"></div>", qrHeading, qrLoading)
		default:
			h.raw("<section id=\"qr-panel\">")
			h.printf("<h2>%s</h2><div class=\"spinner\" role=\"status\" aria-label=\"%s\"></div>", qrHeading, qrLoading)
		}
		h.raw("</section>\n")
		return h.err
	})
}
