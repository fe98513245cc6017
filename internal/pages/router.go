package pages

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Router registers page handlers. Route opens a nested route group.
type Router interface {
	Route(path string, fn func(Router))
	HandleMethod(method, path string, handler http.Handler)
}

type chiRouter struct {
	router chi.Router
}

// NewChiRouter adapts a chi router to Router.
func NewChiRouter(r chi.Router) *chiRouter {
	return &chiRouter{router: r}
}

func (r *chiRouter) Route(path string, fn func(Router)) {
	if path == "/" || path == "" {
		fn(r)
		return
	}
	r.router.Route(path, func(r chi.Router) {
		fn(&chiRouter{router: r})
	})
}

func (r *chiRouter) HandleMethod(method, path string, handler http.Handler) {
	if method == methodAll || method == "" {
		r.router.Handle(path, handler)
	} else {
		r.router.Method(method, path, handler)
	}
}

func (r *chiRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.router.ServeHTTP(w, req)
}
