package ssg

import "sync"

// lockSet hands out the mutex guarding a node's edge row.
// One mutex per node avoids contention entirely; sharding by id mod S bounds the
// memory at the cost of unrelated nodes sharing a lock. Callers never hold two
// locks at once, so sharing cannot deadlock.
type lockSet interface {
	of(id uint32) *sync.Mutex
}

type nodeLocks []sync.Mutex

func (l nodeLocks) of(id uint32) *sync.Mutex { return &l[id] }

type shardedLocks []sync.Mutex

func (l shardedLocks) of(id uint32) *sync.Mutex { return &l[id%uint32(len(l))] }

// newLockSet returns per-node locks, or shards locks when 0 < shards < n.
func newLockSet(n, shards int) lockSet {
	if shards > 0 && shards < n {
		return make(shardedLocks, shards)
	}
	return make(nodeLocks, n)
}
