package application

import (
	"context"
	"sync"

	"github.com/wms-platform/task-engine/internal/domain"
)

// keyedMutex hands out one local mutex per key
type keyedMutex struct {
	mu    sync.Mutex
	local map[string]*sync.Mutex
}

func (k *keyedMutex) lock(key string) *sync.Mutex {
	k.mu.Lock()
	m, ok := k.local[key]
	if !ok {
		if k.local == nil {
			k.local = make(map[string]*sync.Mutex)
		}
		m = &sync.Mutex{}
		k.local[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m
}

// hold takes the local mutex for key, then the distributed lock if any
func (k *keyedMutex) hold(key string, distributed func() (func(), error)) (func(), error) {
	m := k.lock(key)
	if distributed == nil {
		return m.Unlock, nil
	}
	release, err := distributed()
	if err != nil {
		m.Unlock()
		return nil, err
	}
	return func() {
		release()
		m.Unlock()
	}, nil
}

// ZoneLocks serialises claim decisions per (warehouse, zone). The local
// mutex orders goroutines of this replica; the optional distributed lock
// orders replicas.
type ZoneLocks struct {
	keys        keyedMutex
	distributed domain.ZoneLock
}

// NewZoneLocks creates zone locks; distributed may be nil
func NewZoneLocks(distributed domain.ZoneLock) *ZoneLocks {
	return &ZoneLocks{distributed: distributed}
}

// Acquire blocks until the zone is held by the caller
func (l *ZoneLocks) Acquire(ctx context.Context, warehouseID, zone string) (func(), error) {
	var distributed func() (func(), error)
	if l.distributed != nil {
		distributed = func() (func(), error) { return l.distributed.Acquire(ctx, warehouseID, zone) }
	}
	return l.keys.hold(warehouseID+"/"+zone, distributed)
}

// WorkerLocks serialises the claims of one worker, so the open-task check
// and the claim that follows it act as one step
type WorkerLocks struct {
	keys        keyedMutex
	distributed domain.WorkerLock
}

// NewWorkerLocks creates worker locks; distributed may be nil
func NewWorkerLocks(distributed domain.WorkerLock) *WorkerLocks {
	return &WorkerLocks{distributed: distributed}
}

// Acquire blocks until the worker is held by the caller
func (l *WorkerLocks) Acquire(ctx context.Context, workerID string) (func(), error) {
	var distributed func() (func(), error)
	if l.distributed != nil {
		distributed = func() (func(), error) { return l.distributed.AcquireWorker(ctx, workerID) }
	}
	return l.keys.hold(workerID, distributed)
}
