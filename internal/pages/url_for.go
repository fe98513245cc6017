package pages

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/jackielii/ctxkey"
)

var pcCtx = ctxkey.New[*parseContext]("pages.parseContext", nil)

func withParseContext(pc *parseContext) MiddlewareFunc {
	return func(next http.Handler, _ *PageNode) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(pcCtx.WithValue(r.Context(), pc)))
		})
	}
}

// URLFor returns the route of the page whose type matches page. page may
// also be a func(*PageNode) bool selecting a node. Path parameters such as
// {section} are filled from args: either positionally, or as a single
// map[string]any keyed by parameter name.
//
//	URLFor(ctx, sectionPage{})           // "/section"
//	URLFor(ctx, landmarkPage{}, 3)       // "/landmarks/3"
func URLFor(ctx context.Context, page any, args ...any) (string, error) {
	pc := pcCtx.Value(ctx)
	if pc == nil {
		return "", errors.New("urlfor: page tree not found in context")
	}
	pattern, err := pc.urlFor(page)
	if err != nil {
		return "", err
	}
	return formatPath(pattern, args...)
}

func (p *parseContext) urlFor(page any) (string, error) {
	if match, ok := page.(func(*PageNode) bool); ok {
		for node := range p.root.All() {
			if match(node) {
				return node.FullRoute(), nil
			}
		}
		return "", errors.New("urlfor: no page node matched")
	}
	want := pointerType(reflect.TypeOf(page))
	for node := range p.root.All() {
		if node.Value.Type() == want {
			return node.FullRoute(), nil
		}
	}
	return "", fmt.Errorf("urlfor: no page node found for %s", want)
}

func pointerType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Pointer {
		return t
	}
	return reflect.PointerTo(t)
}

// formatPath substitutes {name} segments of pattern.
func formatPath(pattern string, args ...any) (string, error) {
	var (
		sb    strings.Builder
		named map[string]any
		next  int
	)
	if len(args) == 1 {
		named, _ = args[0].(map[string]any)
	}
	rest := pattern
	for {
		start := strings.IndexByte(rest, '{')
		if start < 0 {
			sb.WriteString(rest)
			break
		}
		end := strings.IndexByte(rest[start:], '}')
		if end < 0 {
			return pattern, fmt.Errorf("urlfor: pattern %s: unmatched {", pattern)
		}
		sb.WriteString(rest[:start])
		name := strings.TrimSuffix(rest[start+1:start+end], "...")
		rest = rest[start+end+1:]

		switch {
		case named != nil:
			v, ok := named[name]
			if !ok {
				return pattern, fmt.Errorf("urlfor: pattern %s: argument %s not provided", pattern, name)
			}
			fmt.Fprint(&sb, v)
		case next < len(args):
			fmt.Fprint(&sb, args[next])
			next++
		default:
			return pattern, fmt.Errorf("urlfor: pattern %s: not enough arguments", pattern)
		}
	}
	if named == nil && next < len(args) {
		return pattern, fmt.Errorf("urlfor: pattern %s: %d unused arguments", pattern, len(args)-next)
	}
	return sb.String(), nil
}
