package hashmap

import (
	"unsafe"

	"github.com/cespare/xxhash/v2"
	"github.com/pavanmanishd/arena/v2/str"
)

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

// FNV1a returns the 64-bit FNV-1a hash of b.
func FNV1a(b []byte) uint64 {
	h := uint64(fnvOffset64)
	for _, c := range b {
		h ^= uint64(c)
		h *= fnvPrime64
	}
	return h
}

// keyBytes returns the memory of k, or the contents of k if it is a string.
func keyBytes[K any](k *K) []byte {
	switch v := any(k).(type) {
	case *string:
		return unsafe.Slice(unsafe.StringData(*v), len(*v))
	case *str.String:
		return v.Bytes()
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(k)), unsafe.Sizeof(*k))
}

// DefaultHash hashes the raw bytes of k with FNV-1a. Strings, both Go strings
// and str.String, are hashed by content. Other keys must not have padding
// bytes or contain pointers to equal but distinct data.
func DefaultHash[K any](k K) uint64 {
	return FNV1a(keyBytes(&k))
}

// XXHash is DefaultHash with xxHash64 in place of FNV-1a. It is faster for
// long keys.
func XXHash[K any](k K) uint64 {
	return xxhash.Sum64(keyBytes(&k))
}
