package sqlite_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/riders-api/riders/database/sqlite"
)

func getRandomString(t *testing.T) string {
	t.Helper()
	n, err := rand.Int(rand.Reader, big.NewInt(math.MaxInt64))
	require.NoError(t, err, "random string")
	return fmt.Sprintf("test%x", n.Int64())
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// setupTestStore migrates a uniquely named table in an in-memory database.
func setupTestStore(t *testing.T) (*sqlite.Store, *fakeClock) {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err, "open")
	t.Cleanup(func() { _ = db.Close() })

	table := "cache_" + getRandomString(t)
	require.NoError(t, sqlite.Migrate(ctx, db, table), "migrate")

	store, err := sqlite.NewStore(db, table)
	require.NoError(t, err, "new store")

	clock := &fakeClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	store.SetClock(clock.Now)

	return store, clock
}
