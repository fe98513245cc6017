package pages

import (
	"fmt"
	"iter"
	"path"
	"reflect"
	"strings"
)

// PageNode is one page in a parsed tree.
type PageNode struct {
	Name        string
	Title       string
	Method      string
	Route       string
	Value       reflect.Value
	Props       *reflect.Method
	Components  map[string]*reflect.Method
	Middlewares *reflect.Method
	Parent      *PageNode
	Children    []*PageNode
}

// FullRoute joins the routes from the root down to pn.
func (pn *PageNode) FullRoute() string {
	if pn.Parent == nil {
		return pn.Route
	}
	return path.Join(pn.Parent.FullRoute(), pn.Route)
}

// All walks pn and its descendants depth first.
func (pn *PageNode) All() iter.Seq[*PageNode] {
	return func(yield func(*PageNode) bool) {
		pn.walk(yield)
	}
}

func (pn *PageNode) walk(yield func(*PageNode) bool) bool {
	if !yield(pn) {
		return false
	}
	for _, child := range pn.Children {
		if !child.walk(yield) {
			return false
		}
	}
	return true
}

func (pn *PageNode) String() string {
	var sb strings.Builder
	sb.WriteString("PageNode{")
	sb.WriteString("\n  name: " + pn.Name)
	sb.WriteString("\n  title: " + pn.Title)
	sb.WriteString("\n  route: " + pn.Method + " " + pn.Route)
	sb.WriteString("\n  middlewares: " + formatMethod(pn.Middlewares))
	sb.WriteString("\n  props: " + formatMethod(pn.Props))
	if pn.Value.IsValid() && pn.Value.Type().Implements(handlerType) {
		sb.WriteString("\n  is http.Handler: true")
	}
	for _, name := range sortedKeys(pn.Components) {
		sb.WriteString("\n  component: " + name + " -> " + formatMethod(pn.Components[name]))
	}
	for i, child := range pn.Children {
		fmt.Fprintf(&sb, "\n  child %d:", i+1)
		for _, line := range strings.SplitAfter(strings.TrimRight(child.String(), "\n"), "\n") {
			sb.WriteString("  " + line)
		}
	}
	sb.WriteString("\n}")
	return sb.String()
}
