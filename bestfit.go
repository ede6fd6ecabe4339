package contig

import (
	"fmt"

	"github.com/tidwall/btree"
)

func init() {
	RegisterStrategy(&bestFit{})
}

// bestFit carves the smallest hole that satisfies size and alignment and
// coalesces adjacent holes on free.
type bestFit struct{}

// bfHole is a free range of a region. Holes live in two ordered indices: by
// start for neighbour queries during coalescing, and by (size, start) for the
// smallest-fit search. A hole's fields are only mutated while it is out of
// every index keyed by the mutated field.
type bfHole struct {
	start uint64
	size  uint64
}

func (h *bfHole) end() uint64 {
	return h.start + h.size
}

// bfState is the strategy's private per-region state.
type bfState struct {
	byStart *btree.BTreeG[*bfHole]
	bySize  *btree.BTreeG[*bfHole]
}

func newBFState() *bfState {
	return &bfState{
		byStart: btree.NewBTreeG[*bfHole](func(a, b *bfHole) bool {
			return a.start < b.start
		}),
		bySize: btree.NewBTreeG[*bfHole](func(a, b *bfHole) bool {
			if a.size != b.size {
				return a.size < b.size
			}
			return a.start < b.start
		}),
	}
}

func (b *bestFit) Name() string {
	return "bf"
}

// Init installs a single hole spanning the whole region.
func (b *bestFit) Init(reg *Region) error {
	st := newBFState()
	hole := &bfHole{start: reg.Start, size: reg.Size}
	st.byStart.Set(hole)
	st.bySize.Set(hole)
	reg.SetPrivate(st)
	return nil
}

// Teardown verifies the region drained back to a single full-extent hole.
func (b *bestFit) Teardown(reg *Region) error {
	st, ok := reg.Private().(*bfState)
	if !ok {
		return fmt.Errorf("region %s has no best-fit state", reg.Name)
	}
	reg.SetPrivate(nil)
	if n := st.byStart.Len(); n != 1 {
		return fmt.Errorf("region %s has %d residual holes at teardown", reg.Name, n)
	}
	hole, _ := st.byStart.Min()
	if hole.start != reg.Start || hole.size != reg.Size {
		return fmt.Errorf("region %s residual hole [%#x, %#x) does not span the region",
			reg.Name, hole.start, hole.end())
	}
	return nil
}

func (b *bestFit) Carve(reg *Region, size, alignment uint64) *Chunk {
	st := reg.Private().(*bfState)

	// Walk holes in (size, start) order starting at the smallest hole that
	// could fit, until one has a large enough aligned interior.
	var (
		hole  *bfHole
		start uint64
	)
	st.bySize.Ascend(&bfHole{size: size}, func(h *bfHole) bool {
		a := alignUp(h.start, alignment)
		if a < h.end() && h.end()-a >= size {
			hole = h
			start = a
			return false
		}
		return true
	})
	if hole == nil {
		return nil
	}
	return st.take(hole, start, size, alignment)
}

func (b *bestFit) Free(chunk *Chunk) {
	st := chunk.reg.Private().(*bfState)
	st.free(chunk.Start, chunk.Size)
}

// take removes a size bytes large chunk starting at start from hole. There
// are three cases: the chunk takes the whole hole, the chunk sits at one edge
// of the hole, or the chunk is strictly inside it.
func (st *bfState) take(hole *bfHole, start, size, alignment uint64) *Chunk {
	holeEnd := hole.end()

	// Whole hole. An exact-size fit implies start == hole.start because the
	// aligned interior was already known to hold size bytes.
	if size == hole.size {
		st.bySize.Delete(hole)
		st.byStart.Delete(hole)
		return &Chunk{Start: hole.start, Size: size}
	}

	if start != hole.start && start+size != holeEnd {
		// Strictly inside. If the space left after the chunk is a multiple
		// of the alignment, slide the chunk to the high edge instead of
		// splitting the hole in two.
		left := holeEnd - (start + size)
		if left%alignment == 0 {
			start += left
		} else {
			next := &bfHole{start: start + size, size: left}
			st.byStart.Set(next)
			st.bySize.Set(next)

			st.bySize.Delete(hole)
			hole.size = start - hole.start
			st.bySize.Set(hole)
			return &Chunk{Start: start, Size: size}
		}
	}

	// At one edge. Start order is preserved unless the chunk sits at the
	// low edge, in which case the hole's start moves past it.
	st.bySize.Delete(hole)
	if start == hole.start {
		st.byStart.Delete(hole)
		hole.start += size
		hole.size -= size
		st.byStart.Set(hole)
	} else {
		hole.size -= size
	}
	st.bySize.Set(hole)
	return &Chunk{Start: start, Size: size}
}

// free reinserts [start, start+size) as a hole and merges it with its
// immediate predecessor and successor in start order when adjacent. The
// merged hole is maximal: no two adjacent holes survive.
func (st *bfState) free(start, size uint64) {
	hole := &bfHole{start: start, size: size}
	st.byStart.Set(hole)
	st.bySize.Set(hole)

	var prev *bfHole
	st.byStart.Descend(hole, func(h *bfHole) bool {
		if h == hole {
			return true
		}
		prev = h
		return false
	})
	if prev != nil && prev.end() == hole.start {
		st.byStart.Delete(prev)
		st.bySize.Delete(prev)
		st.byStart.Delete(hole)
		st.bySize.Delete(hole)
		hole.start = prev.start
		hole.size += prev.size
		st.byStart.Set(hole)
		st.bySize.Set(hole)
	}

	var next *bfHole
	st.byStart.Ascend(hole, func(h *bfHole) bool {
		if h == hole {
			return true
		}
		next = h
		return false
	})
	if next != nil && hole.end() == next.start {
		st.byStart.Delete(next)
		st.bySize.Delete(next)
		st.bySize.Delete(hole)
		hole.size += next.size
		st.bySize.Set(hole)
	}
}

// holes returns the region's free ranges in start order. Test helper.
func (st *bfState) holes() []bfHole {
	out := make([]bfHole, 0, st.byStart.Len())
	st.byStart.Scan(func(h *bfHole) bool {
		out = append(out, *h)
		return true
	})
	return out
}
