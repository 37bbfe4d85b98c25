package code

import "reflect"

// identityOf returns a stable, comparable identity for an interface value
// backed by a pointer-like concrete type (pointer, map, chan, func, or
// slice). wazero.Runtime implementations satisfy this, which lets Cache key
// its compiled-module table per engine instance without requiring
// wazero.Runtime itself to be comparable.
func identityOf(v interface{}) uintptr {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return rv.Pointer()
	case reflect.Slice:
		return rv.Pointer()
	default:
		// Interfaces backed by a struct value rather than a pointer have no
		// stable address; fall back to 0 so all such engines collide into a
		// single cache bucket. wazero.Runtime is always reference-typed in
		// practice, so this path is not expected to be exercised.
		return 0
	}
}
