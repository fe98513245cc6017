package pages

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"maps"
	"net/http"
	"reflect"
	"runtime"
	"slices"
	"strings"
)

type parseContext struct {
	root *PageNode
	args *argRegistry
}

func parsePageTree(route string, page any, args ...any) (*parseContext, error) {
	pc := &parseContext{args: newArgRegistry()}
	for _, v := range args {
		if err := pc.args.add(v); err != nil {
			return nil, fmt.Errorf("error adding argument to registry: %w", err)
		}
	}
	root, err := pc.parsePage(route, "", page)
	if err != nil {
		return nil, err
	}
	pc.root = root
	return pc, nil
}

func (p *parseContext) parsePage(route, fieldName string, page any) (*PageNode, error) {
	if page == nil {
		return nil, fmt.Errorf("page for route %q is nil", route)
	}
	// always hold a pointer so Init and pointer receivers see the same value
	v := reflect.ValueOf(page)
	if v.Kind() != reflect.Pointer {
		ptr := reflect.New(v.Type())
		ptr.Elem().Set(v)
		v = ptr
	}
	st, pt := v.Type().Elem(), v.Type()
	if st.Kind() != reflect.Struct {
		return nil, fmt.Errorf("page %s must be a struct, got %s", cmp.Or(fieldName, st.String()), st.Kind())
	}

	node := &PageNode{Value: v, Name: cmp.Or(fieldName, st.Name())}
	node.Method, node.Route, node.Title = parseTag(route)

	for i := range st.NumField() {
		field := st.Field(i)
		childRoute, ok := field.Tag.Lookup("route")
		if !ok {
			continue
		}
		typ := field.Type
		if typ.Kind() == reflect.Pointer {
			typ = typ.Elem()
		}
		child, err := p.parsePage(childRoute, field.Name, reflect.New(typ).Interface())
		if err != nil {
			return nil, err
		}
		child.Parent = node
		node.Children = append(node.Children, child)
	}

	var initMethod *reflect.Method
	for _, t := range []reflect.Type{st, pt} {
		for i := range t.NumMethod() {
			method := t.Method(i)
			if isPromotedMethod(&method) {
				continue
			}
			if isComponent(&method) {
				if node.Components == nil {
					node.Components = make(map[string]*reflect.Method)
				}
				node.Components[method.Name] = &method
				continue
			}
			switch method.Name {
			case "Props":
				node.Props = &method
			case "Middlewares":
				node.Middlewares = &method
			case "Init":
				initMethod = &method
			}
		}
	}

	if initMethod != nil {
		res, err := p.callMethod(node, initMethod)
		if err != nil {
			return nil, fmt.Errorf("calling Init on %s: %w", node.Name, err)
		}
		if _, err := extractError(res); err != nil {
			return nil, fmt.Errorf("Init on %s: %w", node.Name, err)
		}
	}
	return node, nil
}

// callMethod calls method on pn's value. args fill the leading parameters;
// the rest are injected by type from the registry, or *PageNode.
func (p *parseContext) callMethod(pn *PageNode, method *reflect.Method, args ...reflect.Value) ([]reflect.Value, error) {
	v := pn.Value
	if method.Type.In(0).Kind() != reflect.Pointer {
		v = v.Elem()
	}
	in := make([]reflect.Value, method.Type.NumIn())
	in[0] = v
	filled := 1
	for i := range min(len(in)-1, len(args)) {
		in[i+1] = args[i]
		filled++
	}
	pnv := reflect.ValueOf(pn)
	for i := filled; i < len(in); i++ {
		argType := method.Type.In(i)
		switch argType {
		case pnv.Type():
			in[i] = pnv
		case pnv.Type().Elem():
			in[i] = pnv.Elem()
		default:
			val, ok := p.args.get(argType)
			if !ok {
				return nil, fmt.Errorf("method %s requires argument of type %s, but not found",
					formatMethod(method), argType.String())
			}
			in[i] = val
		}
	}
	return method.Func.Call(in), nil
}

func (p *parseContext) callComponentMethod(pn *PageNode, method *reflect.Method, args ...reflect.Value) (component, error) {
	results, err := p.callMethod(pn, method, args...)
	if err != nil {
		return nil, fmt.Errorf("error calling component method %s: %w", formatMethod(method), err)
	}
	comp, ok := results[0].Interface().(component)
	if !ok || comp == nil {
		return nil, fmt.Errorf("method %s returned a nil component", formatMethod(method))
	}
	return comp, nil
}

func parseTag(route string) (method, path, title string) {
	method = methodAll
	parts := strings.Fields(route)
	switch {
	case len(parts) == 0:
		return method, "/", ""
	case len(parts) == 1:
		return method, parts[0], ""
	}
	if m := strings.ToUpper(parts[0]); slices.Contains(validMethod, m) {
		return m, parts[1], strings.Join(parts[2:], " ")
	}
	return method, parts[0], strings.Join(parts[1:], " ")
}

const methodAll = "ALL"

var validMethod = []string{
	http.MethodGet,
	http.MethodHead,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
	http.MethodConnect,
	http.MethodOptions,
	http.MethodTrace,
	methodAll,
}

type component interface {
	Render(context.Context, io.Writer) error
}

var componentType = reflect.TypeOf((*component)(nil)).Elem()

func isComponent(t *reflect.Method) bool {
	return t.Type.NumOut() == 1 && t.Type.Out(0).Implements(componentType)
}

// isPromotedMethod reports whether method was promoted from an embedded
// type or is a pointer wrapper for a value method.
// https://github.com/golang/go/issues/73883
func isPromotedMethod(method *reflect.Method) bool {
	pc := method.Func.Pointer()
	fn := runtime.FuncForPC(pc)
	file, line := fn.FileLine(pc)
	return file == "<autogenerated>" && line == 1
}

var (
	errorType      = reflect.TypeOf((*error)(nil)).Elem()
	handlerType    = reflect.TypeOf((*http.Handler)(nil)).Elem()
	errHandlerType = reflect.TypeOf((*errHandler)(nil)).Elem()
)

type errHandler interface {
	ServeHTTP(http.ResponseWriter, *http.Request) error
}

// extractError splits a trailing error result off res.
func extractError(res []reflect.Value) ([]reflect.Value, error) {
	if len(res) == 0 || !res[len(res)-1].Type().AssignableTo(errorType) {
		return res, nil
	}
	last := res[len(res)-1]
	res = res[:len(res)-1]
	if last.IsNil() {
		return res, nil
	}
	return res, last.Interface().(error)
}

func formatMethod(method *reflect.Method) string {
	if method == nil || !method.Func.IsValid() {
		return "<nil>"
	}
	return fmt.Sprintf("%s.%s", method.Type.In(0).String(), method.Name)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
