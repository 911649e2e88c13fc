// Package platform centralizes the OS-facing seams the rest of the
// module wants swappable under test: wall-clock time and id
// generation. It mirrors the kv package's own Clock interface
// (internal/kv/log.go) but at module scope, so callers that only need
// "a timestamp" or "an id" — vfs's file ids, dynamic's auto-generated
// row ids — don't each invent their own seam.
package platform

import (
	"time"

	"github.com/google/uuid"
)

// Clock abstracts wall-clock time.
type Clock interface {
	Now() time.Time
}

// SystemClock reports the real time.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }

// IDGen abstracts id generation.
type IDGen interface {
	NewID() string
}

// UUIDGen generates random UUIDv4 strings via google/uuid.
type UUIDGen struct{}

// NewID returns a fresh UUIDv4 string.
func (UUIDGen) NewID() string { return uuid.NewString() }

var (
	defaultClock Clock = SystemClock{}
	defaultIDGen IDGen = UUIDGen{}
)

// Now returns the current time via the default clock.
func Now() time.Time { return defaultClock.Now() }

// NewID returns a fresh id via the default generator.
func NewID() string { return defaultIDGen.NewID() }

// SetClock overrides the default clock (tests only; not safe to call
// concurrently with Now/NewID).
func SetClock(c Clock) { defaultClock = c }

// SetIDGen overrides the default id generator (tests only).
func SetIDGen(g IDGen) { defaultIDGen = g }
