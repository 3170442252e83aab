package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/cantadelicia/estanquillo-backend/pkg/config"
	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/cantadelicia/estanquillo-backend/pkg/metrics"
	"github.com/cantadelicia/estanquillo-backend/pkg/notify"
)

// sessionSweepRepo is the slice of the session repository the sweep uses.
type sessionSweepRepo interface {
	FindExpired(ctx context.Context, now time.Time, legacyLifetime time.Duration) ([]models.AuthorizationSession, error)
	DeactivateSession(ctx context.Context, id uuid.UUID, reason enums.SessionEndReason, endedAt time.Time) error
}

// SessionSweepJobParams configure the expired-session sweep.
type SessionSweepJobParams struct {
	Logger     *logger.Logger
	Repository sessionSweepRepo
	Hub        *notify.Hub
	Config     config.SessionConfig
	Metrics    *metrics.SessionMetrics
}

// NewSessionSweepJob builds the job that deactivates overdue sessions.
// It is the backstop for clients whose local countdown never fired:
// closed tabs, crashed devices, records written before expires_at existed.
func NewSessionSweepJob(params SessionSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("session repository required")
	}
	if params.Hub == nil {
		return nil, fmt.Errorf("notify hub required")
	}
	return &sessionSweepJob{
		logg:    params.Logger,
		repo:    params.Repository,
		hub:     params.Hub,
		cfg:     params.Config,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

type sessionSweepJob struct {
	logg    *logger.Logger
	repo    sessionSweepRepo
	hub     *notify.Hub
	cfg     config.SessionConfig
	metrics *metrics.SessionMetrics
	now     func() time.Time
}

func (j *sessionSweepJob) Name() string { return "session-sweep" }

// Run deactivates every overdue session it can reach. Per-session
// failures are aggregated, not fatal: the surviving rows stay active and
// the next cycle retries them.
func (j *sessionSweepJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	expired, err := j.repo.FindExpired(ctx, now, j.cfg.LegacyLifetime)
	if err != nil {
		return fmt.Errorf("scan expired sessions: %w", err)
	}
	if len(expired) == 0 {
		return nil
	}

	var errs error
	swept := 0
	for _, session := range expired {
		if err := j.repo.DeactivateSession(ctx, session.ID, enums.SessionEndReasonExpired, now); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("session %s: %w", session.ID, err))
			continue
		}
		swept++
		j.metrics.IncSwept()
		j.metrics.IncEnded(string(enums.SessionEndReasonExpired))
		j.publishExpired(session)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned": len(expired),
		"swept":   swept,
	})
	j.logg.Info(logCtx, "session sweep complete")
	return errs
}

// sweepEvent mirrors the session payload clients decode.
type sweepEvent struct {
	SessionID uuid.UUID `json:"session_id"`
	CartID    uuid.UUID `json:"cart_id"`
	Reason    string    `json:"reason"`
}

func (j *sessionSweepJob) publishExpired(session models.AuthorizationSession) {
	data, err := notify.Marshal(sweepEvent{
		SessionID: session.ID,
		CartID:    session.CartID,
		Reason:    string(enums.SessionEndReasonExpired),
	})
	if err != nil {
		return
	}
	j.hub.Publish(notify.Event{
		Kind:     notify.KindSessionEnded,
		VendorID: session.VendorID,
		CartID:   session.CartID.String(),
		Data:     data,
	})
}
