package authsession

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cantadelicia/estanquillo-backend/internal/cart"
	"github.com/cantadelicia/estanquillo-backend/pkg/config"
	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
	"github.com/cantadelicia/estanquillo-backend/pkg/metrics"
	"github.com/cantadelicia/estanquillo-backend/pkg/notify"
)

// ClientContext identifies the tab a Manager runs for. Passed in at
// construction so tests can instantiate several independent contexts in
// one process to simulate multi-tab races.
type ClientContext struct {
	TabID       string
	VendorID    uuid.UUID
	DisplayName string
	Role        enums.VendorRole
}

// State of the per-client authorization machine.
type State string

const (
	StateNoSession State = "no_session"
	StatePending   State = "pending"
	StateActive    State = "active"
)

// StatusKind classifies the human-readable events the UI turns into toasts.
type StatusKind string

const (
	StatusPending  StatusKind = "pending"
	StatusGranted  StatusKind = "granted"
	StatusDenied   StatusKind = "denied"
	StatusExpired  StatusKind = "expired"
	StatusRevoked  StatusKind = "revoked"
	StatusConsumed StatusKind = "consumed"
)

// Status is one UI-facing lifecycle notification.
type Status struct {
	Kind    StatusKind
	Message string
}

// sessionEvent is the payload carried on session notify events. Grants
// carry the stored expiry so observing tabs count down from the stamped
// deadline, not from delivery time.
type sessionEvent struct {
	SessionID uuid.UUID  `json:"session_id"`
	CartID    uuid.UUID  `json:"cart_id"`
	RequestID uuid.UUID  `json:"request_id,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// cartView is what the manager needs from the device's cart store.
type cartView interface {
	ActiveCartID() uuid.UUID
	Active() cart.Cart
	RefreshEditMode(ctx context.Context) bool
}

// Manager runs the authorization state machine for one client tab:
// NoSession -> Pending -> Active -> {Expired, Revoked, Consumed} -> NoSession.
// Supervisors skip Pending. It implements cart.SessionBinder so the cart
// store can consult it on switches and closes.
//
// Lock discipline: the cart store calls into the manager while holding its
// own lock, so the manager must never touch the cart store while holding
// mu. Cart reads happen before locking; edit-mode refreshes happen after
// unlocking.
type Manager struct {
	client  ClientContext
	repo    *Repository
	hub     *notify.Hub
	carts   cartView
	cfg     config.SessionConfig
	logg    *logger.Logger
	metrics *metrics.SessionMetrics
	now     func() time.Time

	mu               sync.Mutex
	state            State
	pendingRequestID uuid.UUID
	sessionID        uuid.UUID
	authorizedCartID uuid.UUID
	timer            *time.Timer
	status           chan Status
}

// ManagerOptions wires a Manager.
type ManagerOptions struct {
	Client  ClientContext
	Repo    *Repository
	Hub     *notify.Hub
	Carts   cartView
	Config  config.SessionConfig
	Logger  *logger.Logger
	Metrics *metrics.SessionMetrics
	Now     func() time.Time
}

// NewManager builds the state machine for one client tab.
func NewManager(opts ManagerOptions) (*Manager, error) {
	if opts.Client.TabID == "" {
		return nil, fmt.Errorf("tab id required")
	}
	if opts.Client.VendorID == uuid.Nil {
		return nil, fmt.Errorf("vendor id required")
	}
	if !opts.Client.Role.IsValid() {
		return nil, fmt.Errorf("invalid vendor role %q", opts.Client.Role)
	}
	if opts.Repo == nil {
		return nil, fmt.Errorf("repository required")
	}
	if opts.Hub == nil {
		return nil, fmt.Errorf("notify hub required")
	}
	if opts.Carts == nil {
		return nil, fmt.Errorf("cart view required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Manager{
		client:  opts.Client,
		repo:    opts.Repo,
		hub:     opts.Hub,
		carts:   opts.Carts,
		cfg:     opts.Config,
		logg:    opts.Logger,
		metrics: opts.Metrics,
		now:     opts.Now,
		state:   StateNoSession,
		status:  make(chan Status, 8),
	}, nil
}

// State returns the current machine state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// ActiveSessionID returns the held session, if any.
func (m *Manager) ActiveSessionID() (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID, m.state == StateActive
}

// StatusEvents is the UI toast feed. Slow consumers miss events.
func (m *Manager) StatusEvents() <-chan Status {
	return m.status
}

// RequestEdit asks for price-edit rights on the active cart. Supervisors
// self-grant (and toggle off on a second call); vendors file an
// EditRequest and wait for approval.
func (m *Manager) RequestEdit(ctx context.Context) error {
	active := m.carts.Active()

	var err error
	if m.client.Role.IsPrivileged() {
		err = m.requestEditSupervisor(ctx, active)
	} else {
		err = m.requestEditVendor(ctx, active)
	}
	if err != nil {
		return err
	}
	m.carts.RefreshEditMode(ctx)
	return nil
}

func (m *Manager) requestEditSupervisor(ctx context.Context, active cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateActive {
		// Manual toggle-off.
		m.deactivateLocked(ctx, enums.SessionEndReasonRevoked)
		return nil
	}
	if m.state == StatePending {
		return pkgerrors.New(pkgerrors.CodeAlreadyPending, "request already pending")
	}
	if active.IsEmpty() {
		return pkgerrors.New(pkgerrors.CodeEmptyCart, "cannot authorize an empty cart")
	}

	now := m.now()
	expires := now.Add(m.cfg.TTL)
	tabID := m.client.TabID
	session := &models.AuthorizationSession{
		ID:         uuid.New(),
		VendorID:   m.client.VendorID,
		VendorName: m.client.DisplayName,
		CartID:     active.ID,
		CartName:   active.DisplayName,
		OwnerTabID: &tabID,
		Active:     true,
		CreatedAt:  now,
		ExpiresAt:  &expires,
	}
	if _, err := m.repo.CreateSession(ctx, session); err != nil {
		return err
	}

	m.state = StateActive
	m.sessionID = session.ID
	m.authorizedCartID = active.ID
	m.armTimerLocked(expires)
	m.metrics.IncGranted("self")
	m.publishGranted(session.ID, active.ID, uuid.Nil, expires)
	m.emit(StatusGranted, "authorization granted")
	return nil
}

func (m *Manager) requestEditVendor(ctx context.Context, active cart.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.state {
	case StatePending:
		return pkgerrors.New(pkgerrors.CodeAlreadyPending, "request already pending")
	case StateActive:
		return pkgerrors.New(pkgerrors.CodeAlreadyActive, "session already active")
	}
	if active.IsEmpty() {
		return pkgerrors.New(pkgerrors.CodeEmptyCart, "cannot request authorization for an empty cart")
	}

	request := &models.EditRequest{
		ID:                  uuid.New(),
		VendorID:            m.client.VendorID,
		VendorName:          m.client.DisplayName,
		CartID:              active.ID,
		CartName:            active.DisplayName,
		Snapshot:            snapshotLines(active),
		RequestedTotalCents: active.SubtotalCents(),
		Status:              enums.EditRequestStatusPending,
		RequestedAt:         m.now(),
	}
	if _, err := m.repo.CreateEditRequest(ctx, request); err != nil {
		return err
	}

	m.state = StatePending
	m.pendingRequestID = request.ID
	m.publishEvent(notify.KindEditRequested, sessionEvent{RequestID: request.ID, CartID: active.ID})
	m.emit(StatusPending, "authorization requested")
	return nil
}

func snapshotLines(c cart.Cart) []models.EditRequestLine {
	out := make([]models.EditRequestLine, 0, len(c.Lines))
	for _, line := range c.Lines {
		out = append(out, models.EditRequestLine{
			ProductName:    line.ProductName,
			Quantity:       line.Quantity,
			UnitPriceCents: line.UnitPriceCents,
			LineTotalCents: line.LineTotalCents,
		})
	}
	return out
}

// CancelPendingRequest withdraws the vendor's pending request and
// proactively deactivates any session that was approved out-of-band.
func (m *Manager) CancelPendingRequest(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePending {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "no pending request to cancel")
	}

	if err := m.repo.ResolveEditRequest(ctx, m.pendingRequestID, enums.EditRequestStatusCancelled, m.now()); err != nil {
		return err
	}

	if session, err := m.repo.FindActiveByVendor(ctx, m.client.VendorID); err != nil {
		m.logg.Error(ctx, "checking for out-of-band approval", err)
	} else if session != nil {
		if err := m.repo.DeactivateSession(ctx, session.ID, enums.SessionEndReasonCancelled, m.now()); err != nil {
			m.logg.Error(ctx, "deactivating out-of-band session", err)
		} else {
			m.publishEnded(session.ID, session.CartID, enums.SessionEndReasonCancelled)
			m.metrics.IncEnded(string(enums.SessionEndReasonCancelled))
		}
	}

	m.state = StateNoSession
	m.pendingRequestID = uuid.Nil
	return nil
}

// Run consumes the vendor's notification feed until the context ends.
func (m *Manager) Run(ctx context.Context) {
	sub := m.hub.Subscribe(notify.VendorFilter(m.client.VendorID))
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			m.handleEvent(ctx, ev)
		}
	}
}

func (m *Manager) handleEvent(ctx context.Context, ev notify.Event) {
	var payload sessionEvent
	if len(ev.Data) > 0 {
		if err := json.Unmarshal(ev.Data, &payload); err != nil {
			m.logg.Error(ctx, "decoding session event", err)
			return
		}
	}

	switch ev.Kind {
	case notify.KindSessionGranted:
		m.handleActivation(ctx, payload)
	case notify.KindSessionEnded:
		m.handleDeactivation(ctx, payload)
	case notify.KindEditResolved:
		m.handleResolution(payload)
	}
}

// handleActivation reacts to an approval observed on the channel. When the
// approved cart is the one on screen the machine claims tab ownership and
// turns edit mode on; otherwise the authorized cart id is recorded and the
// machine waits for the vendor to switch to it.
func (m *Manager) handleActivation(ctx context.Context, payload sessionEvent) {
	onScreen := payload.CartID == m.carts.ActiveCartID()

	m.mu.Lock()
	if payload.SessionID == uuid.Nil || payload.SessionID == m.sessionID || m.state == StateActive {
		m.mu.Unlock()
		return
	}

	m.state = StateActive
	m.sessionID = payload.SessionID
	m.authorizedCartID = payload.CartID
	m.pendingRequestID = uuid.Nil
	// Count down from the expiry the approver stamped on the row. A
	// lagging delivery must not stretch the session past it.
	expires := m.now().Add(m.cfg.TTL)
	if payload.ExpiresAt != nil {
		expires = *payload.ExpiresAt
	}
	m.armTimerLocked(expires)

	if onScreen {
		if err := m.repo.ClaimTab(ctx, payload.SessionID, m.client.TabID); err != nil {
			m.logg.Error(ctx, "claiming tab ownership", err)
		}
		m.emit(StatusGranted, "authorization granted")
	} else {
		m.emit(StatusGranted, "authorization granted for another cart")
	}
	m.mu.Unlock()

	if onScreen {
		m.carts.RefreshEditMode(ctx)
	}
}

func (m *Manager) handleDeactivation(ctx context.Context, payload sessionEvent) {
	m.mu.Lock()
	if m.state != StateActive || payload.SessionID != m.sessionID {
		m.mu.Unlock()
		return
	}

	m.clearLocked()
	switch enums.SessionEndReason(payload.Reason) {
	case enums.SessionEndReasonExpired:
		m.emit(StatusExpired, "session expired")
	case enums.SessionEndReasonConsumed:
		m.emit(StatusConsumed, "session consumed")
	default:
		m.emit(StatusRevoked, "session revoked")
	}
	m.mu.Unlock()

	m.carts.RefreshEditMode(ctx)
}

func (m *Manager) handleResolution(payload sessionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePending || payload.RequestID != m.pendingRequestID {
		return
	}
	if payload.Reason != string(enums.EditRequestStatusDenied) {
		return
	}
	m.state = StateNoSession
	m.pendingRequestID = uuid.Nil
	m.emit(StatusDenied, "authorization denied")
}

// CartSwitched implements cart.SessionBinder: the incoming cart holds edit
// rights only when it is the authorized one.
func (m *Manager) CartSwitched(_ context.Context, cartID uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateActive && cartID == m.authorizedCartID
}

// CartClosing implements cart.SessionBinder: closing the authorized cart
// revokes its session before removal. The store re-evaluates edit mode
// itself afterwards.
func (m *Manager) CartClosing(ctx context.Context, cartID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive || cartID != m.authorizedCartID {
		return
	}
	m.deactivateLocked(ctx, enums.SessionEndReasonRevoked)
}

// Consume ends the session as part of a successful sale submission.
// Returns the consumed session id for the sale record.
func (m *Manager) Consume(ctx context.Context) (uuid.UUID, bool) {
	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return uuid.Nil, false
	}
	id := m.sessionID
	m.deactivateLocked(ctx, enums.SessionEndReasonConsumed)
	m.mu.Unlock()

	m.carts.RefreshEditMode(ctx)
	return id, true
}

// Teardown best-effort deactivates on tab close or logout. Failures are
// logged, never surfaced: the sweep is the backstop.
func (m *Manager) Teardown(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateActive {
		m.state = StateNoSession
		m.pendingRequestID = uuid.Nil
		return
	}

	if err := m.repo.DeactivateSession(ctx, m.sessionID, enums.SessionEndReasonLogout, m.now()); err != nil {
		m.logg.Error(ctx, "teardown deactivation failed, sweep will retry", err)
	} else {
		m.publishEnded(m.sessionID, m.authorizedCartID, enums.SessionEndReasonLogout)
		m.metrics.IncEnded(string(enums.SessionEndReasonLogout))
	}
	m.clearLocked()
}

// deactivateLocked writes the deactivation, publishes it, and resets local
// state. Caller holds mu and refreshes cart edit mode after unlocking.
func (m *Manager) deactivateLocked(ctx context.Context, reason enums.SessionEndReason) {
	if err := m.repo.DeactivateSession(ctx, m.sessionID, reason, m.now()); err != nil {
		m.logg.Error(ctx, "deactivating session, sweep will retry", err)
	}
	m.publishEnded(m.sessionID, m.authorizedCartID, reason)
	m.metrics.IncEnded(string(reason))
	m.clearLocked()

	switch reason {
	case enums.SessionEndReasonConsumed:
		m.emit(StatusConsumed, "session consumed")
	case enums.SessionEndReasonExpired:
		m.emit(StatusExpired, "session expired")
	default:
		m.emit(StatusRevoked, "session revoked")
	}
}

// expire fires from the local countdown. The sweep covers the case where
// this never runs because the tab died.
func (m *Manager) expire() {
	ctx := context.Background()

	m.mu.Lock()
	if m.state != StateActive {
		m.mu.Unlock()
		return
	}
	m.deactivateLocked(ctx, enums.SessionEndReasonExpired)
	m.mu.Unlock()

	m.carts.RefreshEditMode(ctx)
}

func (m *Manager) armTimerLocked(expiresAt time.Time) {
	if m.timer != nil {
		m.timer.Stop()
	}
	d := expiresAt.Sub(m.now())
	if d < 0 {
		d = 0
	}
	m.timer = time.AfterFunc(d, m.expire)
}

func (m *Manager) clearLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.state = StateNoSession
	m.sessionID = uuid.Nil
	m.authorizedCartID = uuid.Nil
	m.pendingRequestID = uuid.Nil
}

func (m *Manager) publishGranted(sessionID, cartID, requestID uuid.UUID, expiresAt time.Time) {
	m.publishEvent(notify.KindSessionGranted, sessionEvent{
		SessionID: sessionID,
		CartID:    cartID,
		RequestID: requestID,
		ExpiresAt: &expiresAt,
	})
}

func (m *Manager) publishEnded(sessionID, cartID uuid.UUID, reason enums.SessionEndReason) {
	m.publishEvent(notify.KindSessionEnded, sessionEvent{
		SessionID: sessionID,
		CartID:    cartID,
		Reason:    string(reason),
	})
}

func (m *Manager) publishEvent(kind notify.Kind, payload sessionEvent) {
	data, err := notify.Marshal(payload)
	if err != nil {
		return
	}
	m.hub.Publish(notify.Event{
		Kind:     kind,
		VendorID: m.client.VendorID,
		CartID:   payload.CartID.String(),
		Data:     data,
	})
}

func (m *Manager) emit(kind StatusKind, message string) {
	select {
	case m.status <- Status{Kind: kind, Message: message}:
	default:
	}
}
