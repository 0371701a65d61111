package systems

import "sync/atomic"

// IDAllocator hands out entity ids for agents and food from one counter.
// The first id is 1; zero means "no entity".
type IDAllocator struct {
	last atomic.Uint32
}

// Next returns a fresh id.
func (a *IDAllocator) Next() EntityID {
	return EntityID(a.last.Add(1))
}

