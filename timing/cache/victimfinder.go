package cache

import (
	akitacache "github.com/sarchlab/akita/v4/mem/cache"
)

// lruVictimFinder picks replacement victims by last-access timestamp. It
// keeps one timestamp per (set, way); the directory blocks carry no time.
type lruVictimFinder struct {
	lastAccess [][]uint64
}

func newLRUVictimFinder(numSets, numWays int) *lruVictimFinder {
	f := &lruVictimFinder{
		lastAccess: make([][]uint64, numSets),
	}
	for i := range f.lastAccess {
		f.lastAccess[i] = make([]uint64, numWays)
	}
	return f
}

// FindVictim returns the first invalid way of the set, or, if every way is
// valid, the way with the oldest timestamp. Ways are scanned in ascending
// order, so ties go to the lowest way.
func (f *lruVictimFinder) FindVictim(set *akitacache.Set) *akitacache.Block {
	for _, block := range set.Blocks {
		if !block.IsValid {
			return block
		}
	}

	victim := set.Blocks[0]
	for _, block := range set.Blocks[1:] {
		if f.stamp(block) < f.stamp(victim) {
			victim = block
		}
	}

	return victim
}

func (f *lruVictimFinder) touch(block *akitacache.Block, now uint64) {
	f.lastAccess[block.SetID][block.WayID] = now
}

func (f *lruVictimFinder) stamp(block *akitacache.Block) uint64 {
	return f.lastAccess[block.SetID][block.WayID]
}

func (f *lruVictimFinder) reset() {
	for _, set := range f.lastAccess {
		for i := range set {
			set[i] = 0
		}
	}
}
