// Package rlog is the runtime's structured-logging façade. It wraps
// github.com/joeycumines/logiface (the teacher's own structured-logging
// library, sibling to eventloop in the same monorepo) with the stumpy
// backend, rather than hand-rolling a bespoke Logger interface the way
// eventloop/logging.go does — the teacher ships a real logging library
// next to eventloop, so using it is the more idiomatic choice for code
// written in the teacher's house style.
package rlog

import (
	"io"
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Logger is the structured logger used throughout this module. It is a thin
// rename of logiface's generic logger, fixed to the stumpy event type.
type Logger = logiface.Logger[*stumpy.Event]

var (
	mu      sync.RWMutex
	current = newDefault(os.Stderr)
)

func newDefault(w io.Writer) *Logger {
	return stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(logiface.LevelInformational),
	)
}

// SetOutput reconfigures the package-level logger to write to w, at the
// given level. Intended for tests and embedding applications; the runtime
// itself never constructs a Logger directly, it always goes through Get.
func SetOutput(w io.Writer, level logiface.Level) {
	mu.Lock()
	defer mu.Unlock()
	current = stumpy.L.New(
		stumpy.L.WithStumpy(stumpy.WithWriter(w)),
		stumpy.L.WithLevel(level),
	)
}

// Get returns the current package-level logger.
func Get() *Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}
