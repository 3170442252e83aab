package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/cantadelicia/estanquillo-backend/pkg/config"
	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/cantadelicia/estanquillo-backend/pkg/notify"
)

type fakeSessionRepo struct {
	expired      []models.AuthorizationSession
	scanErr      error
	failFor      uuid.UUID
	deactivated  []uuid.UUID
	legacyWindow time.Duration
}

func (f *fakeSessionRepo) FindExpired(_ context.Context, _ time.Time, legacy time.Duration) ([]models.AuthorizationSession, error) {
	f.legacyWindow = legacy
	if f.scanErr != nil {
		return nil, f.scanErr
	}
	return f.expired, nil
}

func (f *fakeSessionRepo) DeactivateSession(_ context.Context, id uuid.UUID, _ enums.SessionEndReason, _ time.Time) error {
	if id == f.failFor {
		return errors.New("write failed")
	}
	f.deactivated = append(f.deactivated, id)
	return nil
}

func newSweepJob(t *testing.T, repo *fakeSessionRepo, hub *notify.Hub) *sessionSweepJob {
	t.Helper()
	jobIface, err := NewSessionSweepJob(SessionSweepJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "sweep-test", Output: io.Discard}),
		Repository: repo,
		Hub:        hub,
		Config: config.SessionConfig{
			TTL:            5 * time.Minute,
			SweepInterval:  30 * time.Second,
			LegacyLifetime: 10 * time.Minute,
		},
	})
	if err != nil {
		t.Fatalf("NewSessionSweepJob: %v", err)
	}
	job, ok := jobIface.(*sessionSweepJob)
	if !ok {
		t.Fatalf("expected sessionSweepJob, got %T", jobIface)
	}
	return job
}

func expiredSession(vendorID uuid.UUID) models.AuthorizationSession {
	return models.AuthorizationSession{
		ID:       uuid.New(),
		VendorID: vendorID,
		CartID:   uuid.New(),
		Active:   true,
	}
}

func TestSessionSweepDeactivatesAndPublishes(t *testing.T) {
	vendorID := uuid.New()
	hub := notify.NewHub(16)
	t.Cleanup(hub.Close)
	sub := hub.Subscribe(notify.VendorFilter(vendorID))
	defer sub.Close()

	repo := &fakeSessionRepo{
		expired: []models.AuthorizationSession{
			expiredSession(vendorID),
			expiredSession(vendorID),
		},
	}
	job := newSweepJob(t, repo, hub)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(repo.deactivated) != 2 {
		t.Fatalf("expected 2 deactivations, got %d", len(repo.deactivated))
	}
	if repo.legacyWindow != 10*time.Minute {
		t.Fatalf("legacy fallback window not passed through, got %s", repo.legacyWindow)
	}

	for i := 0; i < 2; i++ {
		select {
		case ev := <-sub.Events():
			if ev.Kind != notify.KindSessionEnded {
				t.Fatalf("unexpected event kind %s", ev.Kind)
			}
		case <-time.After(time.Second):
			t.Fatal("expected a session-ended event")
		}
	}
}

// One stuck row must not block the rest; it is reported and retried on
// the next cycle.
func TestSessionSweepAggregatesFailures(t *testing.T) {
	vendorID := uuid.New()
	hub := notify.NewHub(16)
	t.Cleanup(hub.Close)

	stuck := expiredSession(vendorID)
	healthy := expiredSession(vendorID)
	repo := &fakeSessionRepo{
		expired: []models.AuthorizationSession{stuck, healthy},
		failFor: stuck.ID,
	}
	job := newSweepJob(t, repo, hub)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(repo.deactivated) != 1 || repo.deactivated[0] != healthy.ID {
		t.Fatalf("healthy session should still be swept, got %v", repo.deactivated)
	}
}

func TestSessionSweepPropagatesScanErrors(t *testing.T) {
	hub := notify.NewHub(16)
	t.Cleanup(hub.Close)
	repo := &fakeSessionRepo{scanErr: errors.New("db down")}
	job := newSweepJob(t, repo, hub)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSessionSweepNoopWhenNothingExpired(t *testing.T) {
	hub := notify.NewHub(16)
	t.Cleanup(hub.Close)
	repo := &fakeSessionRepo{}
	job := newSweepJob(t, repo, hub)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(repo.deactivated) != 0 {
		t.Fatal("nothing should be deactivated")
	}
}
