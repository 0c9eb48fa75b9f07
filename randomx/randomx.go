// Package randomx is a cgo binding to the RandomX proof-of-work library
// (https://github.com/tevador/RandomX). RandomX itself is an external
// collaborator: this package only wraps its cache/dataset/VM lifecycle,
// it does not reimplement the algorithm.
//
// Thread safety: Cache and Dataset mutation (NewCache, InitRange) is not
// safe to call concurrently with VM creation or hashing against the same
// instance. Callers (see package hashctx) serialize mutation with a mutex
// and only ever share read-only snapshots with hashing goroutines. A VM is
// never safe for concurrent use by more than one goroutine.
package randomx

/*
#cgo CFLAGS: -I${SRCDIR}/include
#cgo LDFLAGS: -L${SRCDIR}/lib -lrandomx -lstdc++ -lm
#cgo linux LDFLAGS: -lpthread
#cgo darwin LDFLAGS: -lpthread

#include <stdlib.h>
#include <randomx.h>
*/
import "C"

import (
	"errors"
	"unsafe"
)

// HashSize is the size in bytes of a RandomX hash output.
const HashSize = 32

// Flag mirrors the randomx_flags bitmask from randomx.h.
type Flag uint32

const (
	FlagDefault     Flag = 0
	FlagLargePages  Flag = 1 << 0
	FlagHardAES     Flag = 1 << 1
	FlagFullMem     Flag = 1 << 2
	FlagJIT         Flag = 1 << 3
	FlagSecure      Flag = 1 << 4
	FlagArgon2SSSE3 Flag = 1 << 5
	FlagArgon2AVX2  Flag = 1 << 6
	FlagArgon2      Flag = 1 << 7
)

// FastFlags returns the flag combination favouring the fast mining path:
// the library's recommended flags for the current CPU, plus JIT code
// generation, hardware AES, and full-memory (dataset) mode. Large pages
// are not requested.
func FastFlags() Flag {
	return Flag(C.randomx_get_flags()) | FlagJIT | FlagHardAES | FlagFullMem
}

// Errors returned by this package.
var (
	ErrCacheAlloc   = errors.New("randomx: failed to allocate cache")
	ErrDatasetAlloc = errors.New("randomx: failed to allocate dataset")
	ErrVMCreate     = errors.New("randomx: failed to create vm")
	ErrInvalidSeed  = errors.New("randomx: seed must be non-empty")
)

// Cache is the ~256 MiB keyed structure derived from a seed. It must be
// released with Release once no VM references it.
type Cache struct {
	ptr *C.randomx_cache
}

// NewCache allocates and initializes a cache for the given seed. This is
// the slow (~1-2s) step of a seed transition.
func NewCache(flags Flag, seed []byte) (*Cache, error) {
	if len(seed) == 0 {
		return nil, ErrInvalidSeed
	}

	ptr := C.randomx_alloc_cache(C.randomx_flags(flags))
	if ptr == nil {
		return nil, ErrCacheAlloc
	}

	C.randomx_init_cache(ptr, unsafe.Pointer(&seed[0]), C.size_t(len(seed)))

	return &Cache{ptr: ptr}, nil
}

// Release frees the cache. The cache must not be used afterwards.
func (c *Cache) Release() {
	if c == nil || c.ptr == nil {
		return
	}
	C.randomx_release_cache(c.ptr)
	c.ptr = nil
}

// Dataset is the ~2 GiB table derived from a Cache, used by the fast
// hashing path. It must be released with Release.
type Dataset struct {
	ptr *C.randomx_dataset
}

// DatasetItemCount returns the number of items the library expects
// InitRange to be called over, in total across however many goroutines
// share the work.
func DatasetItemCount() uint64 {
	return uint64(C.randomx_dataset_item_count())
}

// NewDataset allocates (but does not initialize) a dataset.
func NewDataset(flags Flag) (*Dataset, error) {
	ptr := C.randomx_alloc_dataset(C.randomx_flags(flags))
	if ptr == nil {
		return nil, ErrDatasetAlloc
	}
	return &Dataset{ptr: ptr}, nil
}

// InitRange initializes dataset items [start, start+count) from cache.
// Callers parallelize the full DatasetItemCount() range across goroutines
// by calling InitRange with disjoint subranges.
func (d *Dataset) InitRange(cache *Cache, start, count uint64) {
	C.randomx_init_dataset(d.ptr, cache.ptr, C.ulong(start), C.ulong(count))
}

// Release frees the dataset. The dataset must not be used afterwards.
func (d *Dataset) Release() {
	if d == nil || d.ptr == nil {
		return
	}
	C.randomx_release_dataset(d.ptr)
	d.ptr = nil
}

// VM is an instance of the RandomX virtual machine bound to one
// (cache, dataset) pair at creation time. It is not thread-safe; each
// hashing goroutine must own exactly one VM.
type VM struct {
	ptr *C.randomx_vm
}

// NewVM creates a VM bound to cache and, when non-nil, dataset (full-memory
// / fast mode). dataset may be nil to run in light mode.
func NewVM(flags Flag, cache *Cache, dataset *Dataset) (*VM, error) {
	var dsPtr *C.randomx_dataset
	if dataset != nil {
		dsPtr = dataset.ptr
	}

	ptr := C.randomx_create_vm(C.randomx_flags(flags), cache.ptr, dsPtr)
	if ptr == nil {
		return nil, ErrVMCreate
	}
	return &VM{ptr: ptr}, nil
}

// CalculateHash computes the RandomX hash of input.
func (v *VM) CalculateHash(input []byte) [HashSize]byte {
	var out [HashSize]byte

	if len(input) == 0 {
		var zero byte
		C.randomx_calculate_hash(v.ptr, unsafe.Pointer(&zero), 0, unsafe.Pointer(&out[0]))
		return out
	}

	C.randomx_calculate_hash(v.ptr, unsafe.Pointer(&input[0]), C.size_t(len(input)), unsafe.Pointer(&out[0]))
	return out
}

// Destroy releases the VM. The VM must not be used afterwards.
func (v *VM) Destroy() {
	if v == nil || v.ptr == nil {
		return
	}
	C.randomx_destroy_vm(v.ptr)
	v.ptr = nil
}
