package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/danielvega/tradeyard-backend/pkg/db/models"
)

// Repository defines persistence operations for the orders table.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) (*models.Order, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindOpenByItem(ctx context.Context, itemID uuid.UUID) (*models.Order, error)
	FindPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filters ListFilters) ([]models.Order, error)
	// UpdateStatusCAS applies updates only when the stored version still
	// matches expectedVersion, bumping version by one. Returns false when
	// a concurrent writer got there first.
	UpdateStatusCAS(ctx context.Context, id uuid.UUID, expectedVersion int, updates map[string]any) (bool, error)
}
