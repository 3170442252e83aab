package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cantadelicia/estanquillo-backend/internal/catalog"
	"github.com/cantadelicia/estanquillo-backend/pkg/db/models"
	"github.com/cantadelicia/estanquillo-backend/pkg/enums"
	pkgerrors "github.com/cantadelicia/estanquillo-backend/pkg/errors"
	"github.com/cantadelicia/estanquillo-backend/pkg/logger"
)

// ProductLoader reads catalog records for line pricing and stock capture.
type ProductLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// SessionBinder lets the store consult the vendor's authorization session
// on cart transitions. CartSwitched is the only place edit mode is
// re-evaluated on a switch; CartClosing revokes a session bound to a cart
// being removed.
type SessionBinder interface {
	CartSwitched(ctx context.Context, cartID uuid.UUID) bool
	CartClosing(ctx context.Context, cartID uuid.UUID)
}

// Store holds the open carts of one vendor device. In-memory state is
// authoritative for the process lifetime; every mutation writes the full
// snapshot through to the durable cache.
type Store struct {
	mu          sync.Mutex
	vendorID    uuid.UUID
	deviceID    string
	cap         int
	carts       []*Cart
	active      int
	nameCounter int
	editMode    bool

	snapshots SnapshotStore
	products  ProductLoader
	binder    SessionBinder
	logg      *logger.Logger
	now       func() time.Time
}

// StoreOptions configures a device cart store.
type StoreOptions struct {
	VendorID  uuid.UUID
	DeviceID  string
	Cap       int
	Snapshots SnapshotStore
	Products  ProductLoader
	Binder    SessionBinder
	Logger    *logger.Logger
	Now       func() time.Time
}

// NewStore restores the device snapshot and guarantees at least one cart.
func NewStore(ctx context.Context, opts StoreOptions) (*Store, error) {
	if opts.VendorID == uuid.Nil {
		return nil, fmt.Errorf("vendor id required")
	}
	if opts.DeviceID == "" {
		return nil, fmt.Errorf("device id required")
	}
	if opts.Cap <= 0 {
		return nil, fmt.Errorf("cart cap must be positive")
	}
	if opts.Products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Store{
		vendorID:  opts.VendorID,
		deviceID:  opts.DeviceID,
		cap:       opts.Cap,
		snapshots: opts.Snapshots,
		products:  opts.Products,
		binder:    opts.Binder,
		logg:      opts.Logger,
		now:       opts.Now,
	}

	if s.snapshots != nil {
		snap, err := s.snapshots.Load(ctx)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			s.restore(snap)
		}
	}
	if len(s.carts) == 0 {
		s.appendCart()
	}
	return s, nil
}

func (s *Store) restore(snap *Snapshot) {
	s.carts = make([]*Cart, 0, len(snap.Carts))
	for i := range snap.Carts {
		c := snap.Carts[i]
		s.carts = append(s.carts, &c)
	}
	s.active = snap.ActiveIndex
	if s.active < 0 || s.active >= len(s.carts) {
		s.active = 0
	}
	s.nameCounter = snap.NameCounter
}

// SetBinder attaches the session binder after construction; the store and
// the session manager reference each other, so one side has to be wired
// second.
func (s *Store) SetBinder(binder SessionBinder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.binder = binder
}

// Carts returns a copy of the open cart list.
func (s *Store) Carts() []Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Cart, 0, len(s.carts))
	for _, c := range s.carts {
		out = append(out, c.clone())
	}
	return out
}

// ActiveIndex returns the active cart's position.
func (s *Store) ActiveIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Active returns a copy of the active cart.
func (s *Store) Active() Cart {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.carts[s.active].clone()
}

// ActiveCartID returns the active cart's id.
func (s *Store) ActiveCartID() uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.carts[s.active].ID
}

// EditModeActive reports whether price fields are currently editable.
func (s *Store) EditModeActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editMode
}

// RefreshEditMode re-asks the binder about the active cart. The session
// manager calls this when an approval lands for the cart already on screen.
func (s *Store) RefreshEditMode(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.binder == nil {
		s.editMode = false
		return false
	}
	s.editMode = s.binder.CartSwitched(ctx, s.carts[s.active].ID)
	return s.editMode
}

// CreateCart appends a new empty cart and makes it active. Rejected with
// CAPACITY_EXCEEDED at the device cap.
func (s *Store) CreateCart(ctx context.Context) (Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.carts) >= s.cap {
		return Cart{}, pkgerrors.New(pkgerrors.CodeCapacity,
			fmt.Sprintf("device already holds %d carts", len(s.carts))).
			WithDetails(map[string]any{"cap": s.cap})
	}

	c := s.appendCart()
	s.persist(ctx)
	return c.clone(), nil
}

// appendCart allocates the lowest unused display number and activates the
// new cart. Caller holds the lock (or is still constructing).
func (s *Store) appendCart() *Cart {
	number := s.lowestUnusedNumber()
	if number > s.nameCounter {
		s.nameCounter = number
	}
	now := s.now()
	c := &Cart{
		ID:            uuid.New(),
		Number:        number,
		DisplayName:   fmt.Sprintf("Carrito %d", number),
		Lines:         []Line{},
		SaleType:      enums.SaleTypeRetail,
		PaymentMethod: enums.PaymentMethodCash,
		CreatedAt:     now,
		ModifiedAt:    now,
	}
	s.carts = append(s.carts, c)
	s.active = len(s.carts) - 1
	return c
}

func (s *Store) lowestUnusedNumber() int {
	used := make(map[int]bool, len(s.carts))
	for _, c := range s.carts {
		used[c.Number] = true
	}
	for n := 1; ; n++ {
		if !used[n] {
			return n
		}
	}
}

// SwitchCart activates the cart at index. The outgoing state is persisted
// and edit mode is re-evaluated against the vendor's session; this is the
// sole toggle point on a switch.
func (s *Store) SwitchCart(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.carts) {
		return pkgerrors.New(pkgerrors.CodeOutOfRange,
			fmt.Sprintf("no cart at index %d", index))
	}

	s.active = index
	if s.binder != nil {
		s.editMode = s.binder.CartSwitched(ctx, s.carts[index].ID)
	} else {
		s.editMode = false
	}
	s.persist(ctx)
	return nil
}

// CloseCart removes the cart at index. The last remaining cart is
// protected; closing a non-empty cart needs explicit confirmation; closing
// the authorized cart revokes its session first.
func (s *Store) CloseCart(ctx context.Context, index int, confirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.carts) {
		return pkgerrors.New(pkgerrors.CodeOutOfRange,
			fmt.Sprintf("no cart at index %d", index))
	}
	if len(s.carts) == 1 {
		return pkgerrors.New(pkgerrors.CodeLastCart, "cannot close the only cart")
	}
	target := s.carts[index]
	if !target.IsEmpty() && !confirmed {
		return pkgerrors.New(pkgerrors.CodeConfirmationRequired,
			"cart has items, confirm before closing").
			WithDetails(map[string]any{"lines": len(target.Lines)})
	}

	if s.binder != nil {
		s.binder.CartClosing(ctx, target.ID)
	}

	s.carts = append(s.carts[:index], s.carts[index+1:]...)
	switch {
	case s.active == index:
		if s.active >= len(s.carts) {
			s.active = len(s.carts) - 1
		}
		if s.binder != nil {
			s.editMode = s.binder.CartSwitched(ctx, s.carts[s.active].ID)
		} else {
			s.editMode = false
		}
	case s.active > index:
		s.active--
	}

	s.persist(ctx)
	return nil
}

// RenameCart sets the display name of the cart at index.
func (s *Store) RenameCart(ctx context.Context, index int, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.carts) {
		return pkgerrors.New(pkgerrors.CodeOutOfRange,
			fmt.Sprintf("no cart at index %d", index))
	}
	if name == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart name cannot be empty")
	}
	s.carts[index].DisplayName = name
	s.touch(s.carts[index])
	s.persist(ctx)
	return nil
}

// AddLine appends a line for the product under the given shape, capturing
// availability and pricing at creation time.
func (s *Store) AddLine(ctx context.Context, productID uuid.UUID, shape catalog.Shape, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if quantity <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "product not found")
	}

	active := s.carts[s.active]
	proj, err := catalog.Project(product, shape, active.SaleType)
	if err != nil {
		return err
	}
	if proj.AvailableStock.LessThan(decimalFromInt(quantity)) {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("quantity %d exceeds available stock %s", quantity, proj.AvailableStock)).
			WithDetails(map[string]any{"available": proj.AvailableStock.String()})
	}

	line := Line{
		ProductID:      productID,
		ProductName:    product.Name,
		Shape:          catalog.RecordOf(shape),
		Quantity:       quantity,
		UnitPriceCents: proj.UnitPriceCents,
		UnitCostCents:  proj.UnitCostCents,
		AvailableStock: proj.AvailableStock,
	}
	line.recompute()
	active.Lines = append(active.Lines, line)
	s.touch(active)
	s.persist(ctx)
	return nil
}

// SetLineQuantity changes a line's quantity, capped by the stock captured
// when the line was created. A zero quantity removes the line.
func (s *Store) SetLineQuantity(ctx context.Context, lineIndex, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.carts[s.active]
	if lineIndex < 0 || lineIndex >= len(active.Lines) {
		return pkgerrors.New(pkgerrors.CodeOutOfRange,
			fmt.Sprintf("no line at index %d", lineIndex))
	}
	if quantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}

	if quantity == 0 {
		active.Lines = append(active.Lines[:lineIndex], active.Lines[lineIndex+1:]...)
		s.touch(active)
		s.persist(ctx)
		return nil
	}

	line := &active.Lines[lineIndex]
	if line.AvailableStock.LessThan(decimalFromInt(quantity)) {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("quantity %d exceeds available stock %s", quantity, line.AvailableStock)).
			WithDetails(map[string]any{"available": line.AvailableStock.String()})
	}
	line.Quantity = quantity
	line.recompute()
	s.touch(active)
	s.persist(ctx)
	return nil
}

// SetLineUnitPrice overrides a line's unit price. Allowed only while an
// authorization session holds edit mode open for this cart.
func (s *Store) SetLineUnitPrice(ctx context.Context, lineIndex, priceCents int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.editMode {
		return pkgerrors.New(pkgerrors.CodeForbidden, "price editing is not authorized for this cart")
	}
	active := s.carts[s.active]
	if lineIndex < 0 || lineIndex >= len(active.Lines) {
		return pkgerrors.New(pkgerrors.CodeOutOfRange,
			fmt.Sprintf("no line at index %d", lineIndex))
	}
	if priceCents < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}

	line := &active.Lines[lineIndex]
	line.UnitPriceCents = priceCents
	line.recompute()
	s.touch(active)
	s.persist(ctx)
	return nil
}

// SetSaleType re-prices every line of the active cart through the
// projector. A line whose product cannot be re-read keeps its old price.
func (s *Store) SetSaleType(ctx context.Context, saleType enums.SaleType) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !saleType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown sale type %q", saleType))
	}

	active := s.carts[s.active]
	active.SaleType = saleType
	for i := range active.Lines {
		line := &active.Lines[i]
		product, err := s.products.FindByID(ctx, line.ProductID)
		if err != nil {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{"product_id": line.ProductID.String()}),
				"cannot re-read product during sale type change, keeping price")
			continue
		}
		shape, err := line.Shape.Resolve()
		if err != nil {
			continue
		}
		proj, err := catalog.Project(product, shape, saleType)
		if err != nil {
			continue
		}
		line.UnitPriceCents = proj.UnitPriceCents
		line.UnitCostCents = proj.UnitCostCents
		line.AvailableStock = proj.AvailableStock
		line.recompute()
	}
	s.touch(active)
	s.persist(ctx)
	return nil
}

// SetPaymentMethod records how the active cart will be paid.
func (s *Store) SetPaymentMethod(ctx context.Context, method enums.PaymentMethod) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !method.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("unknown payment method %q", method))
	}
	active := s.carts[s.active]
	active.PaymentMethod = method
	s.touch(active)
	s.persist(ctx)
	return nil
}

// ClearActive empties the active cart after a submitted sale and resets
// its configuration.
func (s *Store) ClearActive(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	active := s.carts[s.active]
	active.Lines = []Line{}
	active.SaleType = enums.SaleTypeRetail
	active.PaymentMethod = enums.PaymentMethodCash
	s.editMode = false
	s.touch(active)
	s.persist(ctx)
}

func (s *Store) touch(c *Cart) {
	c.ModifiedAt = s.now()
}

// persist writes the full snapshot through to the durable cache. Failures
// are logged, never surfaced: the in-memory state stays authoritative.
func (s *Store) persist(ctx context.Context) {
	if s.snapshots == nil {
		return
	}
	snap := Snapshot{
		Carts:       make([]Cart, 0, len(s.carts)),
		ActiveIndex: s.active,
		NameCounter: s.nameCounter,
	}
	for _, c := range s.carts {
		snap.Carts = append(snap.Carts, c.clone())
	}
	if err := s.snapshots.Save(ctx, snap); err != nil {
		s.logg.Error(ctx, "failed to persist cart snapshot", err)
	}
}
