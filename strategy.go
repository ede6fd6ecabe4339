package contig

import (
	"sync"
)

// Strategy is the per-region allocation policy. Init creates the strategy's
// private state and Teardown discards it; Carve and Free use it and run with
// the owning region's mutex held. A strategy mints the Chunk records it hands out and reclaims
// them in Free; it never touches the region's user or free-space accounting.
//
// Carve receives a nonzero power of two alignment. It returns the allocated
// chunk or nil when no hole fits.
type Strategy interface {
	// Name is the identifier used by the region grammar's strategy field.
	Name() string
	// Init prepares the strategy's private state for a region. A region
	// whose Init fails stays in the table but is never allocated from.
	Init(reg *Region) error
	// Teardown releases the private state. It may assume no chunks are
	// live in the region and reports leftover fragmentation as an error.
	Teardown(reg *Region) error
	// Carve takes a size bytes large chunk out of the region's free space.
	Carve(reg *Region, size, alignment uint64) *Chunk
	// Free returns a carved chunk to the region's free space.
	Free(chunk *Chunk)
}

var (
	strategiesMu sync.Mutex
	strategies   []Strategy
)

// RegisterStrategy makes a strategy available to region configs by name.
// The first registered strategy is the default for regions that do not name
// one. Registration must happen before New; duplicate names panic.
func RegisterStrategy(s Strategy) {
	strategiesMu.Lock()
	defer strategiesMu.Unlock()
	for _, known := range strategies {
		if known.Name() == s.Name() {
			panic("contig: strategy " + s.Name() + " registered twice")
		}
	}
	strategies = append(strategies, s)
}

// findStrategy resolves a strategy by name, case-sensitive. The empty name
// resolves to the first registered strategy.
func findStrategy(name string) Strategy {
	strategiesMu.Lock()
	defer strategiesMu.Unlock()
	if len(strategies) == 0 {
		return nil
	}
	if name == "" {
		return strategies[0]
	}
	for _, s := range strategies {
		if s.Name() == name {
			return s
		}
	}
	return nil
}
