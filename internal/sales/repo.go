package sales

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds a sales repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateSale(ctx context.Context, sale *models.Sale) (*models.Sale, error) {
	if err := r.db.WithContext(ctx).Create(sale).Error; err != nil {
		return nil, err
	}
	return sale, nil
}

func (r *repository) FindSale(ctx context.Context, id uuid.UUID) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&sale).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *repository) ListRecent(ctx context.Context, vendorID uuid.UUID, limit int) ([]models.Sale, error) {
	var sales []models.Sale
	err := r.db.WithContext(ctx).
		Where("vendor_id = ?", vendorID).
		Order("created_at DESC").
		Limit(limit).
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *repository) SearchByProductName(ctx context.Context, vendorID uuid.UUID, name string) ([]models.Sale, error) {
	var sales []models.Sale
	err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND ? = ANY(product_names)", vendorID, name).
		Order("created_at DESC").
		Find(&sales).Error
	if err != nil {
		return nil, err
	}
	return sales, nil
}

func (r *repository) CountForRange(ctx context.Context, vendorID uuid.UUID, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("vendor_id = ? AND created_at >= ? AND created_at < ?", vendorID, from, to).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MarkCancelled flips a sale to cancelled. The status guard keeps the
// write idempotent under concurrent cancellations.
func (r *repository) MarkCancelled(ctx context.Context, id uuid.UUID, reason string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Sale{}).
		Where("id = ? AND status <> ?", id, enums.SaleStatusCancelled).
		Updates(map[string]any{
			"status":        enums.SaleStatusCancelled,
			"cancel_reason": reason,
			"cancelled_at":  at,
		}).Error
}
