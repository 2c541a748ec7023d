package ssg

import "sort"

// Neighbor is a candidate in a pool. Unexpanded marks candidates whose own
// neighbors have not been visited yet.
type Neighbor struct {
	ID         uint32
	Distance   float32
	Unexpanded bool
}

// SimpleNeighbor is one slot of a fixed capacity edge row.
type SimpleNeighbor struct {
	ID       uint32
	Distance float32
}

// sentinel marks an empty slot. Every slot after the first empty one is empty too.
const sentinel float32 = -1

func (s SimpleNeighbor) empty() bool { return s.Distance == sentinel }

// pool is a candidate list sorted by ascending distance with a fixed capacity.
// items has one spare slot so an insertion into a full pool can shift the tail
// before the worst element falls off.
type pool struct {
	items    []Neighbor
	size     int
	capacity int
}

func newPool(capacity int) *pool {
	return &pool{items: make([]Neighbor, capacity+1), capacity: capacity}
}

func (p *pool) reset(capacity int) {
	if cap(p.items) < capacity+1 {
		p.items = make([]Neighbor, capacity+1)
	}
	p.items = p.items[:capacity+1]
	p.capacity = capacity
	p.size = 0
}

func (p *pool) full() bool { return p.size >= p.capacity }

// worst returns the largest retained distance. Only valid on a non-empty pool.
func (p *pool) worst() float32 { return p.items[p.size-1].Distance }

// slice returns the retained candidates.
func (p *pool) slice() []Neighbor { return p.items[:p.size] }

// insert places nn at its rank and returns that rank. Equal distances keep
// insertion order. When nn is rejected, either because the pool is full and nn is
// not closer than the worst candidate or because its id is already present at the
// same distance, insert returns the capacity.
func (p *pool) insert(nn Neighbor) int {
	if p.capacity == 0 || (p.full() && nn.Distance >= p.worst()) {
		return p.capacity
	}
	r := sort.Search(p.size, func(i int) bool { return p.items[i].Distance > nn.Distance })
	for j := r - 1; j >= 0 && p.items[j].Distance == nn.Distance; j-- {
		if p.items[j].ID == nn.ID {
			return p.capacity
		}
	}
	copy(p.items[r+1:p.size+1], p.items[r:p.size])
	p.items[r] = nn
	if p.size < p.capacity {
		p.size++
	}
	return r
}
