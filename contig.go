// Package contig partitions boot-reserved contiguous memory regions into
// aligned chunks. Clients request memory by a (device, kind) pair which a
// routing table maps to an ordered list of candidate regions; chunks are
// reference counted and return to their region's free pool when the last
// reference is dropped.
package contig

import (
	"fmt"

	"github.com/projectdiscovery/gologger"
)

// DefaultPageSize is used when Options does not specify a page size.
const DefaultPageSize = 4096

// CMA Options
type Options struct {
	// Regions is the region list string, e.g.
	// "reg1=64M:bf;reg2=32M@0x100000:bf;reg3=64M/1M:bf".
	Regions string
	// Routes is the routing rules string, e.g.
	// "foo=reg1;bar/firmware=reg3;/*=reg2;*/*=reg2,reg1".
	Routes string
	// PageSize is the allocation granularity regions are rounded to.
	// Must be a power of two; defaults to DefaultPageSize.
	PageSize uint64
	// Reserve produces the physical base address of each region. Defaults
	// to a synthetic reservation suitable for tests and tooling.
	Reserve ReserveFunc
}

func (o *Options) Validate() error {
	if o.PageSize == 0 {
		o.PageSize = DefaultPageSize
	}
	if !isPow2(o.PageSize) {
		return fmt.Errorf("%w: page size %#x is not a power of two", ErrInvalidArgument, o.PageSize)
	}
	if o.Reserve == nil {
		o.Reserve = defaultReserve()
	}
	return nil
}

// CMA is the contiguous memory allocator front door. It is safe for
// concurrent use once New returns.
type CMA struct {
	pageSize uint64
	regions  *regionTable
	routes   *routeTable
	chunks   *chunkRegistry
}

// New parses both config strings, reserves backing memory for each region,
// binds strategies and returns a ready allocator. Config errors reject the
// whole config; per-region binding failures only disable that region.
func New(opts *Options) (*CMA, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	regions, err := parseRegions(opts.Regions, opts.PageSize)
	if err != nil {
		return nil, err
	}
	rules, err := parseRoutes(opts.Routes)
	if err != nil {
		return nil, err
	}
	return &CMA{
		pageSize: opts.PageSize,
		regions:  newRegionTable(regions, opts.Reserve),
		routes:   &routeTable{rules: rules},
		chunks:   newChunkRegistry(),
	}, nil
}

// Alloc carves a size bytes large chunk aligned to alignment out of the first
// routed region that can hold it and returns the chunk's physical start
// address. Alignment must be a power of two or zero (no constraint).
func (c *CMA) Alloc(dev, kind string, size, alignment uint64) (uint64, error) {
	gologger.Debug().Msgf("allocate %#x/%#x for %s/%s", size, alignment, dev, kind)

	if size == 0 || alignment&(alignment-1) != 0 {
		return 0, fmt.Errorf("%w: size %#x, alignment %#x", ErrInvalidArgument, size, alignment)
	}
	if alignment == 0 {
		alignment = 1
	}

	names, err := c.routes.resolve(dev, kind)
	if err != nil {
		return 0, err
	}

	chunk, err := c.allocFrom(names, size, alignment)
	if err != nil {
		return 0, err
	}
	gologger.Debug().Msgf("allocated at %#x", chunk.Start)
	return chunk.Start, nil
}

// allocFrom tries each routed region in order. The unlocked free-space test
// only skips regions: a stale read either costs one candidate or is caught
// again by the carve under the region mutex.
func (c *CMA) allocFrom(names []string, size, alignment uint64) (*Chunk, error) {
	for _, name := range names {
		reg := c.regions.find(name)
		if reg == nil || reg.strategy == nil {
			continue
		}
		if reg.FreeSpace() < size {
			continue
		}

		reg.mu.Lock()
		chunk := reg.strategy.Carve(reg, size, alignment)
		if chunk != nil {
			reg.users++
			reg.freeSpace.Store(reg.freeSpace.Load() - chunk.Size)
		}
		reg.mu.Unlock()
		if chunk == nil {
			continue
		}
		chunk.reg = reg

		if err := c.chunks.insert(chunk); err != nil {
			// The strategy produced an address that is already live.
			// Reconcile the region and give up rather than hand out
			// memory that aliases an existing chunk.
			reg.mu.Lock()
			reg.users--
			reg.freeSpace.Store(reg.freeSpace.Load() + chunk.Size)
			reg.strategy.Free(chunk)
			reg.mu.Unlock()
			return nil, err
		}
		return chunk, nil
	}
	return nil, fmt.Errorf("%w: no routed region can hold %#x bytes", ErrNoMemory, size)
}

// Info describes the regions a (device, kind) pair may draw from.
type Info struct {
	// LowerBound is the smallest address that could ever be returned for
	// the pair; UpperBound is one past the largest.
	LowerBound uint64
	UpperBound uint64
	// TotalSize is the summed size of the routed regions, Count how many
	// of them exist.
	TotalSize uint64
	Count     int
}

// Info aggregates region bounds for a (device, kind) pair. Names routed to
// unknown regions are silently skipped.
func (c *CMA) Info(dev, kind string) (Info, error) {
	names, err := c.routes.resolve(dev, kind)
	if err != nil {
		return Info{}, err
	}
	info := Info{LowerBound: ^uint64(0)}
	for _, name := range names {
		reg := c.regions.find(name)
		if reg == nil {
			continue
		}
		info.TotalSize += reg.Size
		if reg.Start < info.LowerBound {
			info.LowerBound = reg.Start
		}
		if reg.end() > info.UpperBound {
			info.UpperBound = reg.end()
		}
		info.Count++
	}
	return info, nil
}

// Retain increases the reference count of the chunk starting at addr.
func (c *CMA) Retain(addr uint64) error {
	gologger.Debug().Msgf("get(%#x)", addr)
	return c.chunks.retain(addr)
}

// Release drops one reference from the chunk starting at addr. The memory is
// only reclaimed when the status is ReleaseFreed; a ReleaseStillLive chunk
// may still disappear as soon as the other holders release it.
func (c *CMA) Release(addr uint64) ReleaseStatus {
	gologger.Debug().Msgf("put(%#x)", addr)
	return c.chunks.release(addr)
}

// Regions returns the installed regions in config order.
func (c *CMA) Regions() []*Region {
	out := make([]*Region, len(c.regions.list))
	copy(out, c.regions.list)
	return out
}

// DroppedRegions returns how many configured regions were discarded because
// their backing memory could not be reserved.
func (c *CMA) DroppedRegions() int {
	return c.regions.dropped
}

// Close tears down every region's strategy. It refuses while chunks are
// live; a correct shutdown releases all chunks first.
func (c *CMA) Close() error {
	if n := c.chunks.len(); n > 0 {
		return fmt.Errorf("%w: %d chunks still live", ErrBusy, n)
	}
	var firstErr error
	for _, reg := range c.regions.list {
		if reg.strategy == nil {
			continue
		}
		reg.mu.Lock()
		err := reg.strategy.Teardown(reg)
		reg.strategy = nil
		reg.mu.Unlock()
		if err != nil {
			gologger.Error().Msgf("teardown: %s: %v", reg.Name, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
