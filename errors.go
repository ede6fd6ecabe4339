package contig

import (
	"github.com/projectdiscovery/utils/errkit"
)

var (
	// ErrInvalidArgument is returned for zero sizes, non power of two
	// alignments and malformed config input.
	ErrInvalidArgument = errkit.New("invalid argument")
	// ErrNoMemory is returned when no candidate region can fit the request.
	ErrNoMemory = errkit.New("out of memory")
	// ErrNotFound is returned when no route matches a (device, kind) pair or
	// when an address does not identify a live chunk.
	ErrNotFound = errkit.New("not found")
	// ErrNoSpace is returned when a config declares more regions or routing
	// rules than the framework supports.
	ErrNoSpace = errkit.New("too many entries")
	// ErrBusy signals that a strategy handed out a chunk whose start address
	// collides with a live chunk. This is a strategy bug.
	ErrBusy = errkit.New("duplicate chunk start")
)
