// Package web serves the portal: the page tree, its views, and the session
// holding each visitor's view model.
package web

import (
	"embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/form/v4"

	"github.com/jackielii/heritage/internal/content"
	"github.com/jackielii/heritage/internal/logging"
	"github.com/jackielii/heritage/internal/metrics"
	"github.com/jackielii/heritage/internal/pages"
	"github.com/jackielii/heritage/internal/qr"
	"github.com/jackielii/heritage/internal/tracing"
)

//go:embed static/*
var staticFS embed.FS

// Deps are the collaborators the site is built from.
type Deps struct {
	Logger   *slog.Logger
	Catalog  *content.Store
	QR       *qr.Slot
	// QRSizes encodes the extra download sizes; a process-lifetime cache
	// over the PNG encoder when nil.
	QRSizes  *qr.CachedEncoder
	Sessions *scs.SessionManager
}

type Server struct {
	router *chi.Mux
	pages  *pages.StructPages
}

func NewServer(d Deps) (*Server, error) {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Catalog == nil || d.QR == nil || d.Sessions == nil {
		return nil, errors.New("web: catalog, qr slot and sessions are required")
	}
	if d.QRSizes == nil {
		d.QRSizes = qr.NewCachedEncoder(qr.NewPNGEncoder(), 0)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, logging.Requests(d.Logger), middleware.Recoverer)

	sp := pages.New(
		pages.WithErrorHandler(errorHandler(d.Logger)),
		pages.WithTargetSelector(pages.HTMXTarget),
		pages.WithMiddlewares(instrument, wrapMiddleware(d.Sessions.LoadAndSave)),
	)
	decoder := form.NewDecoder()
	decoder.SetTagName("form")
	if err := sp.MountPages(pages.NewChiRouter(r), site{}, "/", "Heritage",
		&stateStore{sessions: d.Sessions},
		d.Catalog,
		d.QR,
		d.QRSizes,
		decoder,
	); err != nil {
		return nil, fmt.Errorf("mounting pages: %w", err)
	}
	r.Handle("/static/*", http.FileServer(http.FS(staticFS)))

	return &Server{router: r, pages: sp}, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// PrintRoutes lists every page route.
func (s *Server) PrintRoutes(w io.Writer) error {
	return s.pages.PrintRoutes(w)
}

// instrument labels metrics and spans with the page name rather than the
// raw path.
func instrument(next http.Handler, pn *pages.PageNode) http.Handler {
	return metrics.Middleware(pn.Name, tracing.Middleware(pn.Name, next))
}

// wrapMiddleware converts a standard middleware to a pages.MiddlewareFunc
func wrapMiddleware(mw func(http.Handler) http.Handler) pages.MiddlewareFunc {
	return func(next http.Handler, _ *pages.PageNode) http.Handler {
		return mw(next)
	}
}
