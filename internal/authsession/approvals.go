package authsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cantadelicia/estanquillo-backend/pkg/config"
	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/cantadelicia/estanquillo-backend/pkg/metrics"
	"github.com/cantadelicia/estanquillo-backend/pkg/notify"
)

// Approvals is the supervisor-side decision surface for edit requests.
// Approving converts the request into an active AuthorizationSession and
// announces it on the notification channel; the requesting client picks
// the activation up in its Run loop.
type Approvals struct {
	repo    *Repository
	hub     *notify.Hub
	cfg     config.SessionConfig
	logg    *logger.Logger
	metrics *metrics.SessionMetrics
	now     func() time.Time
}

// NewApprovals builds the approval service.
func NewApprovals(repo *Repository, hub *notify.Hub, cfg config.SessionConfig, logg *logger.Logger, m *metrics.SessionMetrics, now func() time.Time) (*Approvals, error) {
	if repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if hub == nil {
		return nil, fmt.Errorf("notify hub required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if now == nil {
		now = time.Now
	}
	return &Approvals{repo: repo, hub: hub, cfg: cfg, logg: logg, metrics: m, now: now}, nil
}

// ListPending returns the requests awaiting a decision.
func (a *Approvals) ListPending(ctx context.Context) ([]models.EditRequest, error) {
	return a.repo.ListPendingRequests(ctx)
}

// Approve turns a pending request into an active session. Rejected when
// the request is already resolved or the vendor still holds another
// active session.
func (a *Approvals) Approve(ctx context.Context, requestID uuid.UUID) (*models.AuthorizationSession, error) {
	request, err := a.findPending(ctx, requestID)
	if err != nil {
		return nil, err
	}

	now := a.now()
	expires := now.Add(a.cfg.TTL)
	session := &models.AuthorizationSession{
		ID:         uuid.New(),
		VendorID:   request.VendorID,
		VendorName: request.VendorName,
		CartID:     request.CartID,
		CartName:   request.CartName,
		Active:     true,
		CreatedAt:  now,
		ExpiresAt:  &expires,
	}
	// CreateSession enforces the one-active-per-vendor convention. Session
	// insert and request resolution commit together so a failed resolution
	// never strands an active session behind a still-pending request.
	err = a.repo.Transaction(ctx, func(repo *Repository) error {
		if _, err := repo.CreateSession(ctx, session); err != nil {
			return err
		}
		return repo.ResolveEditRequest(ctx, request.ID, enums.EditRequestStatusApproved, now)
	})
	if err != nil {
		return nil, err
	}

	a.metrics.IncGranted("approved")
	a.publish(notify.KindSessionGranted, request.VendorID, sessionEvent{
		SessionID: session.ID,
		CartID:    session.CartID,
		RequestID: request.ID,
		ExpiresAt: &expires,
	})

	logCtx := a.logg.WithFields(ctx, map[string]any{
		"request_id": request.ID.String(),
		"session_id": session.ID.String(),
	})
	a.logg.Info(a.logg.WithVendorID(logCtx, request.VendorID.String()), "edit request approved")
	return session, nil
}

// Deny resolves a pending request without creating a session.
func (a *Approvals) Deny(ctx context.Context, requestID uuid.UUID) error {
	request, err := a.findPending(ctx, requestID)
	if err != nil {
		return err
	}
	if err := a.repo.ResolveEditRequest(ctx, request.ID, enums.EditRequestStatusDenied, a.now()); err != nil {
		return err
	}

	a.publish(notify.KindEditResolved, request.VendorID, sessionEvent{
		RequestID: request.ID,
		CartID:    request.CartID,
		Reason:    string(enums.EditRequestStatusDenied),
	})
	a.logg.Info(a.logg.WithVendorID(ctx, request.VendorID.String()), "edit request denied")
	return nil
}

func (a *Approvals) findPending(ctx context.Context, requestID uuid.UUID) (*models.EditRequest, error) {
	request, err := a.repo.FindEditRequest(ctx, requestID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "edit request not found")
		}
		return nil, err
	}
	if request.Status != enums.EditRequestStatusPending {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("request is already %s", request.Status))
	}
	return request, nil
}

func (a *Approvals) publish(kind notify.Kind, vendorID uuid.UUID, payload sessionEvent) {
	data, err := notify.Marshal(payload)
	if err != nil {
		return
	}
	a.hub.Publish(notify.Event{
		Kind:     kind,
		VendorID: vendorID,
		CartID:   payload.CartID.String(),
		Data:     data,
	})
}
