package db

import (
	"testing"
	"time"

	"budgee-ledger/src/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotCache(t *testing.T) {
	c, err := NewSnapshotCache(100)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	march := models.Period{Year: 2025, Month: time.March}
	april := models.Period{Year: 2025, Month: time.April}
	snap := &models.DashboardSnapshot{Period: march}

	_, gen, ok := c.Get(1, march)
	require.False(t, ok)
	c.Set(1, march, gen, snap)
	c.Set(2, march, 0, &models.DashboardSnapshot{Period: march})
	c.Wait()

	got, _, ok := c.Get(1, march)
	require.True(t, ok)
	assert.Same(t, snap, got)

	_, _, ok = c.Get(1, april)
	assert.False(t, ok)

	c.InvalidateUser(1)
	_, _, ok = c.Get(1, march)
	assert.False(t, ok, "invalidated user misses")

	_, _, ok = c.Get(2, march)
	assert.True(t, ok, "other users keep their entries")
}

func TestSnapshotCache_DropsSnapshotReadBeforeInvalidation(t *testing.T) {
	c, err := NewSnapshotCache(100)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	march := models.Period{Year: 2025, Month: time.March}
	_, gen, ok := c.Get(1, march)
	require.False(t, ok)

	// A commit lands while the snapshot is being built.
	c.InvalidateUser(1)
	c.Set(1, march, gen, &models.DashboardSnapshot{Period: march})
	c.Wait()

	_, current, ok := c.Get(1, march)
	assert.False(t, ok)
	assert.Equal(t, gen+1, current)
}
