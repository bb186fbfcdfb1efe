package cull

import "sync"

// numLockShards is the number of mutexes guarding concurrent writes to
// a depth image. Must be a power of two.
const numLockShards = 64

// shardLocks stripes a depth image's rows over a fixed set of mutexes
// so concurrent beam splats on different rows rarely contend.
type shardLocks struct{ mu [numLockShards]sync.Mutex }

func (sl *shardLocks) rowLock(y int) *sync.Mutex {
	return &sl.mu[y&(numLockShards-1)]
}
