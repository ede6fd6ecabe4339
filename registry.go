package contig

import (
	"sync"
	"sync/atomic"

	"github.com/projectdiscovery/gologger"
	"github.com/tidwall/btree"
)

// Chunk is an aligned contiguous sub-range of a region owned by a client. Its
// start address is its identity: the registry never holds two live chunks
// with the same start. A strategy's Carve needs to fill only Start and Size;
// the rest is handled by the facade.
type Chunk struct {
	Start uint64
	Size  uint64

	reg  *Region
	refs atomic.Int32
}

// Region returns the region the chunk was carved from.
func (c *Chunk) Region() *Region {
	return c.reg
}

// ReleaseStatus is the three-valued outcome of releasing a chunk reference.
type ReleaseStatus int

const (
	// ReleaseNotFound means no live chunk starts at the given address.
	ReleaseNotFound ReleaseStatus = iota
	// ReleaseStillLive means other references keep the chunk allocated.
	ReleaseStillLive
	// ReleaseFreed means the last reference was dropped and the memory
	// returned to its region's free pool.
	ReleaseFreed
)

func (s ReleaseStatus) String() string {
	switch s {
	case ReleaseStillLive:
		return "still-live"
	case ReleaseFreed:
		return "freed"
	default:
		return "not-found"
	}
}

// chunkRegistry is the process-wide index of live chunks keyed by start
// address. Its mutex is never held across a strategy call and is always
// acquired before any region mutex.
type chunkRegistry struct {
	mu      sync.Mutex
	byStart *btree.BTreeG[*Chunk]
}

func newChunkRegistry() *chunkRegistry {
	return &chunkRegistry{
		byStart: btree.NewBTreeG[*Chunk](func(a, b *Chunk) bool {
			return a.Start < b.Start
		}),
	}
}

// insert links a freshly carved chunk into the index with one reference. A
// collision means the strategy handed out an address that is already live;
// the chunk is refused so the caller can unwind.
func (r *chunkRegistry) insert(chunk *Chunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byStart.Get(chunk); ok {
		gologger.Warning().Msgf("chunk at %#x already indexed, refusing duplicate", chunk.Start)
		return ErrBusy
	}
	chunk.refs.Store(1)
	r.byStart.Set(chunk)
	return nil
}

// find locates the live chunk starting exactly at addr. A miss is a warning:
// callers pass addresses they were handed by Alloc.
func (r *chunkRegistry) find(addr uint64) *Chunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunk, ok := r.byStart.Get(&Chunk{Start: addr})
	if !ok {
		gologger.Warning().Msgf("no chunk starting at %#x", addr)
		return nil
	}
	return chunk
}

// retain increments the reference count of the chunk starting at addr. The
// lookup and the increment happen under the registry mutex so they cannot
// interleave with the final release of the same chunk.
func (r *chunkRegistry) retain(addr uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	chunk, ok := r.byStart.Get(&Chunk{Start: addr})
	if !ok {
		gologger.Warning().Msgf("no chunk starting at %#x", addr)
		return ErrNotFound
	}
	chunk.refs.Add(1)
	return nil
}

// release drops one reference from the chunk starting at addr. When the last
// reference goes, the chunk is unlinked while the registry mutex is still
// held, then returned to its region under the region mutex.
func (r *chunkRegistry) release(addr uint64) ReleaseStatus {
	r.mu.Lock()
	chunk, ok := r.byStart.Get(&Chunk{Start: addr})
	if !ok {
		r.mu.Unlock()
		gologger.Warning().Msgf("no chunk starting at %#x", addr)
		return ReleaseNotFound
	}
	if chunk.refs.Add(-1) > 0 {
		r.mu.Unlock()
		return ReleaseStillLive
	}
	r.byStart.Delete(chunk)
	r.mu.Unlock()

	reg := chunk.reg
	reg.mu.Lock()
	reg.strategy.Free(chunk)
	reg.users--
	reg.freeSpace.Add(chunk.Size)
	reg.mu.Unlock()

	gologger.Debug().Msgf("put(%#x): destroyed", addr)
	return ReleaseFreed
}

// len reports the number of live chunks.
func (r *chunkRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.byStart.Len()
}
