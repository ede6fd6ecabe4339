package contig

import (
	"sync"
	"sync/atomic"

	radix "github.com/armon/go-radix"
	"github.com/projectdiscovery/gologger"
)

// Region is a physically contiguous range reserved at startup and managed by
// one strategy. Everything except users, freeSpace and the strategy's private
// state is immutable once the region is installed in the table.
type Region struct {
	Name      string
	Start     uint64
	Size      uint64
	Alignment uint64

	// StrategyName and StrategyParams are the raw values from the region
	// grammar. StrategyName may be empty, selecting the default strategy.
	StrategyName   string
	StrategyParams string

	strategy Strategy
	private  interface{}

	users     uint
	freeSpace atomic.Uint64

	// mu serializes the users count, free-space accounting and every
	// strategy call on this region.
	mu sync.Mutex
}

// FreeSpace returns the bytes not currently carved out of the region. The
// value is a snapshot; concurrent allocations may change it immediately.
func (r *Region) FreeSpace() uint64 {
	return r.freeSpace.Load()
}

// Users returns the number of live chunks carved out of the region.
func (r *Region) Users() uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.users
}

// Private returns the strategy-owned opaque state bound to the region.
func (r *Region) Private() interface{} {
	return r.private
}

// SetPrivate binds strategy-owned state to the region. Called by a strategy's
// Init; the state lives until Teardown.
func (r *Region) SetPrivate(v interface{}) {
	r.private = v
}

// end returns the first address past the region.
func (r *Region) end() uint64 {
	return r.Start + r.Size
}

// ReserveFunc produces a physical base address for a region of the given size
// and alignment. start is a hint; zero means the callee picks. Reservation
// happens once per region before any client is admitted.
type ReserveFunc func(size, alignment, start uint64) (uint64, error)

// defaultReserve hands out addresses from a synthetic physical base so the
// allocator is usable without a real memory back end. A nonzero hint wins.
func defaultReserve() ReserveFunc {
	next := uint64(0x10000000)
	return func(size, alignment, start uint64) (uint64, error) {
		if start != 0 {
			return start, nil
		}
		base := alignUp(next, alignment)
		next = base + size
		return base, nil
	}
}

// regionTable is the process table of usable regions. It is read-only after
// newRegionTable returns; lookups take no lock.
type regionTable struct {
	byName  *radix.Tree
	list    []*Region
	dropped int
}

// newRegionTable reserves backing memory for each parsed region, binds and
// initialises strategies, and installs the survivors. A region that cannot be
// reserved is dropped; a region whose strategy cannot be bound or initialised
// is kept but stays invisible to the allocator.
func newRegionTable(regions []*Region, reserve ReserveFunc) *regionTable {
	table := &regionTable{byName: radix.New()}
	for _, reg := range regions {
		base, err := reserve(reg.Size, reg.Alignment, reg.Start)
		if err != nil {
			gologger.Error().Msgf("init: %s: unable to reserve %#x bytes at %#x: %v",
				reg.Name, reg.Size, reg.Start, err)
			table.dropped++
			continue
		}
		reg.Start = base

		strategy := findStrategy(reg.StrategyName)
		if strategy == nil {
			name := reg.StrategyName
			if name == "" {
				name = "(default)"
			}
			gologger.Error().Msgf("init: %s: %s: no such strategy", reg.Name, name)
		} else if err := strategy.Init(reg); err != nil {
			gologger.Error().Msgf("init: %s: %s: unable to initialise strategy: %v",
				reg.Name, strategy.Name(), err)
		} else {
			reg.strategy = strategy
			reg.StrategyName = strategy.Name()
			gologger.Debug().Msgf("init: %s: %s: initialised strategy", reg.Name, reg.StrategyName)
		}

		table.byName.Insert(reg.Name, reg)
		table.list = append(table.list, reg)
		gologger.Debug().Msgf("init: %s: %#x bytes at %#x", reg.Name, reg.Size, reg.Start)
	}
	if table.dropped > 0 {
		gologger.Warning().Msgf("init: dropped %v region(s) that could not be reserved", table.dropped)
	}
	return table
}

// find returns the region registered under name, or nil.
func (t *regionTable) find(name string) *Region {
	v, ok := t.byName.Get(name)
	if !ok {
		return nil
	}
	return v.(*Region)
}
