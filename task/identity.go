package task

import "unsafe"

// uintptrOf returns the numeric address of p, used solely as an identity
// key for the will_wake comparison in Waker.Same. The pointer is never
// reconstructed from this value.
func uintptrOf[T any](p *T) uintptr {
	return uintptr(unsafe.Pointer(p))
}
