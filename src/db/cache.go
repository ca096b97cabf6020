package db

import (
	"fmt"
	"sync"
	"time"

	"budgee-ledger/src/models"

	"github.com/dgraph-io/ristretto/v2"
)

const snapshotTTL = 5 * time.Minute

// SnapshotCache keeps dashboard snapshots in ristretto. Keys carry a
// per-user generation, so invalidating a user is a counter bump and the
// orphaned entries age out on their own.
type SnapshotCache struct {
	cache *ristretto.Cache[string, *models.DashboardSnapshot]

	mu          sync.RWMutex
	generations map[int64]uint64
}

func NewSnapshotCache(maxCost int64) (*SnapshotCache, error) {
	if maxCost <= 0 {
		maxCost = 10000
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, *models.DashboardSnapshot]{
		NumCounters: maxCost * 10, // number of keys to track frequency of
		MaxCost:     maxCost,
		BufferItems: 64, // number of keys per Get buffer
	})
	if err != nil {
		return nil, fmt.Errorf("initialize snapshot cache: %w", err)
	}
	return &SnapshotCache{cache: cache, generations: map[int64]uint64{}}, nil
}

func (c *SnapshotCache) generation(userID int64) uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.generations[userID]
}

func snapshotKey(userID int64, gen uint64, p models.Period) string {
	return fmt.Sprintf("%d:%d:%s", userID, gen, p)
}

// Get looks up the snapshot for the user's current generation and returns
// that generation for a following Set.
func (c *SnapshotCache) Get(userID int64, p models.Period) (*models.DashboardSnapshot, uint64, bool) {
	gen := c.generation(userID)
	snap, ok := c.cache.Get(snapshotKey(userID, gen, p))
	return snap, gen, ok
}

// Set stores snap under gen. A snapshot whose generation has moved on was
// read before a commit and is dropped.
func (c *SnapshotCache) Set(userID int64, p models.Period, gen uint64, snap *models.DashboardSnapshot) {
	if c.generation(userID) != gen {
		return
	}
	c.cache.SetWithTTL(snapshotKey(userID, gen, p), snap, 1, snapshotTTL)
}

func (c *SnapshotCache) InvalidateUser(userID int64) {
	c.mu.Lock()
	c.generations[userID]++
	c.mu.Unlock()
}

// Wait blocks until buffered writes are visible to Get.
func (c *SnapshotCache) Wait() {
	c.cache.Wait()
}

func (c *SnapshotCache) Close() {
	c.cache.Close()
}
