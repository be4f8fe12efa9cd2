package arena

import (
	"reflect"
	"sync"
	"unsafe"
)

var pointerTypes sync.Map // reflect.Type -> bool

// HasPointers reports whether values of type T contain Go pointers: pointers,
// strings, slices, maps, channels, funcs or interfaces, directly or in a
// field or array element. The garbage collector does not scan arena memory,
// so such values must not be the only reference to what they point at.
func HasPointers[T any]() bool {
	t := reflect.TypeFor[T]()
	if v, ok := pointerTypes.Load(t); ok {
		return v.(bool)
	}
	has := hasPointers(t)
	pointerTypes.Store(t, has)
	return has
}

func hasPointers(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.UnsafePointer, reflect.String, reflect.Slice,
		reflect.Map, reflect.Chan, reflect.Func, reflect.Interface:
		return true
	case reflect.Array:
		return t.Len() > 0 && hasPointers(t.Elem())
	case reflect.Struct:
		for i := range t.NumField() {
			if hasPointers(t.Field(i).Type) {
				return true
			}
		}
	}
	return false
}

// MakeSlice returns n elements of storage for a container. Types without
// pointers come from a; types with pointers come from the Go heap so the
// garbage collector sees what they reference. The elements are not zeroed
// unless the memory was already zero.
//
// Under ReturnError an allocation failure is returned; under Panic it is
// fatal before MakeSlice returns.
func MakeSlice[T any](a *Arena, n int) ([]T, error) {
	a.panicIfReleased()
	if n <= 0 {
		return nil, nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	if size == 0 || HasPointers[T]() {
		return make([]T, n), nil
	}
	b, err := a.Alloc(size*n, int(unsafe.Alignof(zero)))
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*T)(unsafe.Pointer(unsafe.SliceData(b))), n), nil
}
