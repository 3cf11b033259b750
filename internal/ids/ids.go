// Package ids generates lexicographically sortable entity identifiers.
package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a fresh ULID. Identifiers sort by creation time, which keeps
// access-log and token scans cheap.
func New() string {
	return NewAt(time.Now())
}

// NewAt returns a ULID stamped with the given time. Used by tests that
// need identifiers inside a simulated clock window.
func NewAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
