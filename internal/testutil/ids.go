package testutil

import (
	"fmt"
	"sync"

	"github.com/roach88/rmerge/internal/ir"
)

// SequentialIDs generates "<prefix>-1", "<prefix>-2", ... as recipient
// unique ids. It can be reset so the same scenario produces the same ids
// on every run.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type SequentialIDs struct {
	mu     sync.Mutex
	prefix string
	seq    int64
}

// NewSequentialIDs creates a generator. An empty prefix defaults to "r".
func NewSequentialIDs(prefix string) *SequentialIDs {
	if prefix == "" {
		prefix = "r"
	}
	return &SequentialIDs{prefix: prefix}
}

// Generate returns the next id. Implements engine.IDGenerator.
func (g *SequentialIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%s-%d", g.prefix, g.seq)
}

// Reset restarts the sequence at 1.
func (g *SequentialIDs) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq = 0
}

// OrphanServiceIDs returns a source of predictable service ids for
// records orphaned by a merge: ffffffff-0000-4000-8000-000000000001, ...
func OrphanServiceIDs() func() ir.ServiceID {
	var (
		mu  sync.Mutex
		seq int
	)
	return func() ir.ServiceID {
		mu.Lock()
		defer mu.Unlock()
		seq++
		return ir.MustParseServiceID(fmt.Sprintf("ffffffff-0000-4000-8000-%012d", seq))
	}
}
