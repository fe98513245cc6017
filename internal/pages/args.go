package pages

import (
	"fmt"
	"reflect"
)

// argRegistry holds the values injected into page methods by type.
// Registration order is kept so interface lookups are deterministic.
type argRegistry struct {
	types  []reflect.Type
	values map[reflect.Type]reflect.Value
}

func newArgRegistry() *argRegistry {
	return &argRegistry{values: make(map[reflect.Type]reflect.Value)}
}

func (args *argRegistry) add(v any) error {
	if v == nil {
		return nil
	}
	typ := reflect.TypeOf(v)
	if _, ok := args.values[typ]; ok {
		return fmt.Errorf("duplicate type %s in args registry", typ)
	}
	args.types = append(args.types, typ)
	args.values[typ] = reflect.ValueOf(v)
	return nil
}

// get finds a value for want: an exact match, the element behind a
// registered pointer, or the first registered value implementing want.
func (args *argRegistry) get(want reflect.Type) (reflect.Value, bool) {
	if v, ok := args.values[want]; ok {
		return v, true
	}
	if want.Kind() != reflect.Pointer {
		if v, ok := args.values[reflect.PointerTo(want)]; ok && !v.IsNil() {
			return v.Elem(), true
		}
	}
	if want.Kind() == reflect.Interface {
		for _, t := range args.types {
			if t.Implements(want) {
				return args.values[t], true
			}
		}
	}
	return reflect.Value{}, false
}
