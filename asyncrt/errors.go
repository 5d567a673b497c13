package asyncrt

import "errors"

var (
	// ErrNoRuntime is returned by Current when Build has not been called.
	ErrNoRuntime = errors.New("asyncrt: no runtime built")

	// ErrRuntimeAlreadyBuilt is returned by Build when called more than
	// once in a process.
	ErrRuntimeAlreadyBuilt = errors.New("asyncrt: runtime already built")

	// ErrAlreadyInitialized is returned by Init on a second call, and by
	// Spawn once Init has returned.
	ErrAlreadyInitialized = errors.New("asyncrt: already initialized")
)
