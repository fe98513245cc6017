package pages

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"slices"
	"sync"

	"github.com/angelofallars/htmx-go"
)

// MiddlewareFunc wraps a page handler. The node is the page being wrapped.
type MiddlewareFunc func(http.Handler, *PageNode) http.Handler

type StructPages struct {
	onError        func(http.ResponseWriter, *http.Request, error)
	middlewares    []MiddlewareFunc
	targetSelector func(*http.Request) (string, error)
	mu             sync.Mutex
	mounted        []*PageNode
}

type Option func(*StructPages)

func New(options ...Option) *StructPages {
	sp := &StructPages{
		onError: func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		},
		targetSelector: func(*http.Request) (string, error) { return "Page", nil },
	}
	for _, opt := range options {
		opt(sp)
	}
	return sp
}

func WithErrorHandler(onError func(http.ResponseWriter, *http.Request, error)) Option {
	return func(sp *StructPages) {
		sp.onError = onError
	}
}

// WithMiddlewares adds middlewares applied to every page, outermost first.
func WithMiddlewares(middlewares ...MiddlewareFunc) Option {
	return func(sp *StructPages) {
		sp.middlewares = append(sp.middlewares, middlewares...)
	}
}

// WithTargetSelector sets how a request picks the component to render.
// See HTMXTarget.
func WithTargetSelector(fn func(*http.Request) (string, error)) Option {
	return func(sp *StructPages) {
		sp.targetSelector = fn
	}
}

// MountPages parses the page tree rooted at page and registers it on
// router. args are injected by type into Init, Props, Middlewares and
// component methods.
func (sp *StructPages) MountPages(router Router, page any, route, title string, args ...any) error {
	pc, err := parsePageTree(route, page, args...)
	if err != nil {
		return err
	}
	if pc.root.Title == "" {
		pc.root.Title = title
	}
	mws := append([]MiddlewareFunc{withParseContext(pc)}, sp.middlewares...)
	if err := sp.registerPage(router, pc, pc.root, mws); err != nil {
		return err
	}
	sp.mu.Lock()
	sp.mounted = append(sp.mounted, pc.root)
	sp.mu.Unlock()
	return nil
}

func (sp *StructPages) registerPage(router Router, pc *parseContext, node *PageNode, inherited []MiddlewareFunc) error {
	if node.Route == "" {
		return fmt.Errorf("page %s has an empty route", node.Name)
	}
	mws := inherited
	if node.Middlewares != nil {
		res, err := pc.callMethod(node, node.Middlewares)
		if err != nil {
			return fmt.Errorf("calling Middlewares on %s: %w", node.Name, err)
		}
		if len(res) != 1 {
			return fmt.Errorf("Middlewares on %s must return a single result", node.Name)
		}
		own, ok := res[0].Interface().([]MiddlewareFunc)
		if !ok {
			return fmt.Errorf("Middlewares on %s must return []MiddlewareFunc", node.Name)
		}
		mws = append(slices.Clone(inherited), own...)
	}

	handler, err := sp.buildHandler(node, pc)
	if err != nil {
		return err
	}
	if handler != nil {
		for i := len(mws) - 1; i >= 0; i-- {
			handler = mws[i](handler, node)
		}
	}

	if len(node.Children) == 0 {
		if handler == nil {
			return fmt.Errorf("page %s has neither a handler nor components", node.Name)
		}
		router.HandleMethod(node.Method, node.Route, handler)
		return nil
	}

	// children go first so a parent handler never shadows them
	var errs []error
	router.Route(node.Route, func(r Router) {
		for _, child := range node.Children {
			errs = append(errs, sp.registerPage(r, pc, child, mws))
		}
		if handler != nil {
			r.HandleMethod(node.Method, "/", handler)
		}
	})
	return errors.Join(errs...)
}

func (sp *StructPages) buildHandler(node *PageNode, pc *parseContext) (http.Handler, error) {
	if h := sp.valueHandler(node.Value); h != nil {
		return h, nil
	}
	if len(node.Components) == 0 {
		return nil, nil
	}
	pageComp := node.Components["Page"]
	if pageComp == nil {
		return nil, fmt.Errorf("page %s does not have a Page component", node.Name)
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name, err := sp.targetSelector(r)
		if err != nil {
			sp.onError(w, r, err)
			return
		}
		resp := htmx.NewResponse()
		method, ok := node.Components[name]
		if !ok {
			method = pageComp
			if htmx.IsHTMX(r) && name != "Page" {
				// the target has no fragment of its own, swap the whole document
				resp = resp.Retarget("body")
			}
		}
		r = r.WithContext(componentCtx.WithValue(r.Context(), method.Name))

		var args []reflect.Value
		if node.Props != nil {
			res, err := pc.callMethod(node, node.Props, reflect.ValueOf(r))
			if err != nil {
				sp.onError(w, r, err)
				return
			}
			if args, err = extractError(res); err != nil {
				sp.onError(w, r, fmt.Errorf("props for %s: %w", node.Name, err))
				return
			}
		}

		comp, err := pc.callComponentMethod(node, method, args...)
		if err != nil {
			sp.onError(w, r, err)
			return
		}
		buf := bufferPool.Get().(*bytes.Buffer)
		defer func() {
			buf.Reset()
			bufferPool.Put(buf)
		}()
		if err := comp.Render(r.Context(), buf); err != nil {
			sp.onError(w, r, fmt.Errorf("rendering %s.%s: %w", node.Name, method.Name, err))
			return
		}
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
		}
		if err := resp.Write(w); err != nil {
			return
		}
		_, _ = io.Copy(w, buf)
	}), nil
}

var bufferPool = sync.Pool{
	New: func() any { return new(bytes.Buffer) },
}

// valueHandler returns the page itself when it implements http.Handler or
// the error-returning variant.
func (sp *StructPages) valueHandler(v reflect.Value) http.Handler {
	if !v.IsValid() {
		return nil
	}
	// value receivers show up as wrappers on the pointer type
	if m, ok := v.Type().MethodByName("ServeHTTP"); !ok || isPromotedMethod(&m) {
		if m, ok := v.Type().Elem().MethodByName("ServeHTTP"); !ok || isPromotedMethod(&m) {
			return nil
		}
	}
	switch {
	case v.Type().Implements(handlerType):
		return v.Interface().(http.Handler)
	case v.Type().Implements(errHandlerType):
		h := v.Interface().(errHandler)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := h.ServeHTTP(w, r); err != nil {
				sp.onError(w, r, err)
			}
		})
	}
	return nil
}
