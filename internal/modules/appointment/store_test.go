// README: DB-backed store tests; skipped unless TIDY_TEST_DSN is set.
package appointment

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tidyhome/internal/infra"
	"tidyhome/internal/modules/home"
	"tidyhome/internal/modules/pricing"
	"tidyhome/internal/types"
)

func setupTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	dsn := os.Getenv("TIDY_TEST_DSN")
	if dsn == "" {
		t.Skip("TIDY_TEST_DSN not set; skipping DB-backed store tests")
	}

	ctx := context.Background()
	pool, err := infra.NewDB(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, infra.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, "TRUNCATE TABLE requests, appointment_events, appointments, homes")
	require.NoError(t, err)
	return pool
}

func seedHome(t *testing.T, pool *pgxpool.Pool) *home.Home {
	t.Helper()
	now := time.Now()
	h := &home.Home{
		ID:                types.NewID(),
		OwnerID:           "owner-1",
		Address:           home.Address{Street: "1 Valencia St", City: "San Francisco", State: "CA", Zipcode: "94110"},
		NumBeds:           2,
		NumBaths:          2,
		TimeWindowDefault: pricing.WindowAnytime,
		Access:            home.Access{Method: home.AccessCode, Detail: "1234"},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	require.NoError(t, home.NewStore(pool).Create(context.Background(), h))
	return h
}

func TestStoreRoundTripAndCompareAndSwap(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()
	h := seedHome(t, pool)
	store := NewStore(pool)

	a := &Appointment{
		ID:                types.NewID(),
		HomeID:            h.ID,
		OwnerID:           h.OwnerID,
		Date:              Day(time.Now().AddDate(0, 0, 9)),
		Price:             types.USD(250),
		EmployeesNeeded:   1,
		EmployeesAssigned: []types.ID{},
		Status:            StatusOpen,
		TimeWindow:        pricing.WindowAnytime,
		CancellationFee:   types.USD(0),
		CreatedAt:         time.Now(),
	}
	require.NoError(t, store.Create(ctx, a))

	got, err := store.Get(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Date, got.Date)
	assert.Equal(t, types.USD(250), got.Price)
	assert.Empty(t, got.EmployeesAssigned)

	got.EmployeesAssigned = []types.ID{"cleaner-1"}
	got.Status = StatusStaffed
	ok, err := store.Update(ctx, got, 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Update(ctx, got, 0)
	require.NoError(t, err)
	assert.False(t, ok, "stale version must not write")

	mine, err := store.ListByCleaner(ctx, "cleaner-1")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, 1, mine[0].StaffingVersion)

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreRejectsOverCapacity(t *testing.T) {
	pool := setupTestPool(t)
	ctx := context.Background()
	h := seedHome(t, pool)
	store := NewStore(pool)

	a := &Appointment{
		ID:                types.NewID(),
		HomeID:            h.ID,
		OwnerID:           h.OwnerID,
		Date:              Day(time.Now().AddDate(0, 0, 2)),
		Price:             types.USD(250),
		EmployeesNeeded:   1,
		EmployeesAssigned: []types.ID{},
		Status:            StatusOpen,
		TimeWindow:        pricing.WindowAnytime,
		CreatedAt:         time.Now(),
	}
	require.NoError(t, store.Create(ctx, a))

	a.EmployeesAssigned = []types.ID{"c1", "c2"}
	_, err := store.Update(ctx, a, 0)
	assert.Error(t, err, "capacity check constraint")
}
