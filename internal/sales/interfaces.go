package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
)

// Repository persists sale documents.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateSale(ctx context.Context, sale *models.Sale) (*models.Sale, error)
	FindSale(ctx context.Context, id uuid.UUID) (*models.Sale, error)
	ListRecent(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.Sale, error)
	SearchByProductName(ctx context.Context, vendorID uuid.UUID, name string) ([]models.Sale, error)
	CountForRange(ctx context.Context, vendorID uuid.UUID, from, to time.Time) (int64, error)
	MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) error
}
