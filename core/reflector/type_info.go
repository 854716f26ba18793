// Package reflector derives cached, fully qualified type names. The actor
// runtime uses these names as dispatch keys for event handlers.
package reflector

import (
	"reflect"
	"sync"
)

var cache sync.Map // reflect.Type -> string

// NameFor returns the qualified name ("pkg/path.TypeName") of type T.
func NameFor[T any]() string {
	return nameForType(reflect.TypeOf((*T)(nil)).Elem())
}

// NameOf returns the qualified name of the dynamic type of x.
// Returns "" for nil.
func NameOf(x any) string {
	if x == nil {
		return ""
	}
	return nameForType(reflect.TypeOf(x))
}

// nameForType unwraps pointers so *T and T share one dispatch key.
func nameForType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if v, ok := cache.Load(t); ok {
		return v.(string)
	}
	name := t.PkgPath() + "." + t.Name()
	if t.Name() == "" {
		// unnamed types (maps, slices, funcs) fall back to their
		// syntactic representation
		name = t.String()
	}
	cache.Store(t, name)
	return name
}
