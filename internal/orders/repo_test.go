package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/danielvega/tradeyard-backend/pkg/db/models"
	"github.com/danielvega/tradeyard-backend/pkg/enums"
)

func setupOrdersTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	orders := `
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  item_id TEXT NOT NULL,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  price_snapshot TEXT NOT NULL,
  note TEXT,
  status TEXT NOT NULL DEFAULT 'pending',
  version INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME,
  closed_at DATETIME
);`
	require.NoError(t, db.Exec(orders).Error)
	require.NoError(t, db.Exec("DELETE FROM orders").Error)
	return db
}

func seedOrder(t *testing.T, db *gorm.DB, status enums.OrderStatus, createdAt time.Time) *models.Order {
	t.Helper()
	order := &models.Order{
		ID:            uuid.New(),
		ItemID:        uuid.New(),
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		PriceSnapshot: decimal.RequireFromString("50.00"),
		Status:        status,
		Version:       1,
		CreatedAt:     createdAt,
	}
	require.NoError(t, db.Create(order).Error)
	return order
}

func TestRepoCreateAndFindByID(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := &models.Order{
		ID:            uuid.New(),
		ItemID:        uuid.New(),
		BuyerID:       uuid.New(),
		SellerID:      uuid.New(),
		PriceSnapshot: decimal.RequireFromString("19.99"),
		Status:        enums.OrderStatusPending,
		Version:       1,
	}
	_, err := repo.Create(ctx, order)
	require.NoError(t, err)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.BuyerID, found.BuyerID)
	assert.Equal(t, enums.OrderStatusPending, found.Status)
	assert.True(t, found.PriceSnapshot.Equal(decimal.RequireFromString("19.99")))
}

func TestRepoFindOpenByItem(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	open := seedOrder(t, db, enums.OrderStatusPaid, time.Now())
	closed := seedOrder(t, db, enums.OrderStatusCancelled, time.Now())

	found, err := repo.FindOpenByItem(ctx, open.ItemID)
	require.NoError(t, err)
	assert.Equal(t, open.ID, found.ID)

	_, err = repo.FindOpenByItem(ctx, closed.ItemID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepoFindPendingBefore(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	old := seedOrder(t, db, enums.OrderStatusPending, time.Now().Add(-time.Hour))
	seedOrder(t, db, enums.OrderStatusPending, time.Now())
	seedOrder(t, db, enums.OrderStatusPaid, time.Now().Add(-time.Hour))

	rows, err := repo.FindPendingBefore(ctx, time.Now().Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, old.ID, rows[0].ID)
}

func TestRepoFindPendingBeforeHonorsLimit(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		seedOrder(t, db, enums.OrderStatusPending, time.Now().Add(-time.Hour))
	}

	rows, err := repo.FindPendingBefore(ctx, time.Now(), 3)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestRepoUpdateStatusCAS(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	order := seedOrder(t, db, enums.OrderStatusPending, time.Now())

	applied, err := repo.UpdateStatusCAS(ctx, order.ID, 1, map[string]any{"status": enums.OrderStatusPaid})
	require.NoError(t, err)
	assert.True(t, applied)

	found, err := repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, found.Status)
	assert.Equal(t, 2, found.Version)

	// Stale writer loses.
	applied, err = repo.UpdateStatusCAS(ctx, order.ID, 1, map[string]any{"status": enums.OrderStatusShipped})
	require.NoError(t, err)
	assert.False(t, applied)

	found, err = repo.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, found.Status)
}

func TestRepoListByUser(t *testing.T) {
	db := setupOrdersTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	buyer := seedOrder(t, db, enums.OrderStatusPending, time.Now())
	seedOrder(t, db, enums.OrderStatusPending, time.Now())

	rows, err := repo.ListByUser(ctx, buyer.BuyerID, ListFilters{Role: RoleBuyer})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, buyer.ID, rows[0].ID)

	rows, err = repo.ListByUser(ctx, buyer.SellerID, ListFilters{Role: RoleSeller})
	require.NoError(t, err)
	require.Len(t, rows, 1)

	status := enums.OrderStatusCancelled
	rows, err = repo.ListByUser(ctx, buyer.BuyerID, ListFilters{Role: RoleBuyer, Status: &status})
	require.NoError(t, err)
	assert.Len(t, rows, 0)
}
