// Package authsession owns the price-edit authorization protocol: the
// per-client state machine, the supervisor approval surface, and the
// session records backing both.
package authsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
)

// Repository persists authorization sessions and edit requests. Session
// rows are never deleted; inactive rows are the audit trail.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Transaction runs fn against a repository bound to a single transaction,
// so multi-write operations commit or roll back together.
func (r *Repository) Transaction(ctx context.Context, fn func(repo *Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTx(tx))
	})
}

// CreateSession inserts a new active session after checking that the
// vendor has no other active one. The check-then-create runs inside one
// transaction; it is still a convention, not a storage constraint, so two
// issuers racing on different connections can both pass. Known gap.
func (r *Repository) CreateSession(ctx context.Context, session *models.AuthorizationSession) (*models.AuthorizationSession, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.AuthorizationSession
		err := tx.Where("vendor_id = ? AND active = ?", session.VendorID, true).
			First(&existing).Error
		if err == nil {
			return pkgerrors.New(pkgerrors.CodeAlreadyActive,
				fmt.Sprintf("vendor %s already holds session %s", session.VendorID, existing.ID))
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(session).Error
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}

// FindSession loads one session row.
func (r *Repository) FindSession(ctx context.Context, id uuid.UUID) (*models.AuthorizationSession, error) {
	var session models.AuthorizationSession
	if err := r.db.WithContext(ctx).First(&session, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &session, nil
}

// FindActiveByVendor returns the vendor's active session, or nil.
func (r *Repository) FindActiveByVendor(ctx context.Context, vendorID uuid.UUID) (*models.AuthorizationSession, error) {
	var session models.AuthorizationSession
	err := r.db.WithContext(ctx).
		Where("vendor_id = ? AND active = ?", vendorID, true).
		First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// DeactivateSession flips the session inactive with the given reason.
// Idempotent: a row that is already inactive is left untouched and no
// error is returned, so redundant or out-of-order deliveries are harmless.
func (r *Repository) DeactivateSession(ctx context.Context, id uuid.UUID, reason enums.SessionEndReason, endedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.AuthorizationSession{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]any{
			"active":     false,
			"end_reason": reason,
			"ended_at":   endedAt,
		}).Error
}

// ClaimTab stamps the session with the claiming tab's identity so exactly
// one tab renders visible ownership. First claim wins.
func (r *Repository) ClaimTab(ctx context.Context, id uuid.UUID, tabID string) error {
	return r.db.WithContext(ctx).
		Model(&models.AuthorizationSession{}).
		Where("id = ? AND owner_tab_id IS NULL", id).
		Update("owner_tab_id", tabID).Error
}

// FindExpired returns every active session past its expiry. Records
// written before expiry stamping carry a NULL expires_at and fall back to
// created_at plus the legacy lifetime.
func (r *Repository) FindExpired(ctx context.Context, now time.Time, legacyLifetime time.Duration) ([]models.AuthorizationSession, error) {
	var sessions []models.AuthorizationSession
	legacyCutoff := now.Add(-legacyLifetime)
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Where("(expires_at IS NOT NULL AND expires_at <= ?) OR (expires_at IS NULL AND created_at <= ?)", now, legacyCutoff).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}

// CreateEditRequest inserts a pending request.
func (r *Repository) CreateEditRequest(ctx context.Context, request *models.EditRequest) (*models.EditRequest, error) {
	if err := r.db.WithContext(ctx).Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

// FindEditRequest loads one request row.
func (r *Repository) FindEditRequest(ctx context.Context, id uuid.UUID) (*models.EditRequest, error) {
	var request models.EditRequest
	if err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

// ListPendingRequests returns all requests awaiting a decision, oldest first.
func (r *Repository) ListPendingRequests(ctx context.Context) ([]models.EditRequest, error) {
	var requests []models.EditRequest
	err := r.db.WithContext(ctx).
		Where("status = ?", enums.EditRequestStatusPending).
		Order("requested_at asc").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

// ResolveEditRequest moves a pending request into a terminal state.
// Requests already resolved are left untouched.
func (r *Repository) ResolveEditRequest(ctx context.Context, id uuid.UUID, status enums.EditRequestStatus, resolvedAt time.Time) error {
	if !status.IsTerminal() {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("%q is not a terminal request status", status))
	}
	return r.db.WithContext(ctx).
		Model(&models.EditRequest{}).
		Where("id = ? AND status = ?", id, enums.EditRequestStatusPending).
		Updates(map[string]any{
			"status":      status,
			"resolved_at": resolvedAt,
		}).Error
}
