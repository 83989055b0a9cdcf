package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"salon-service/internal/common/logger"
	"salon-service/internal/domain"
	"salon-service/internal/repository"
	"salon-service/internal/routing"
)

// RevisionNotifierInterface broadcasts a new revision to every other device
// looking at the same table. Best-effort: failures are logged, never returned.
type RevisionNotifierInterface interface {
	NotifyRevision(ctx context.Context, ev domain.RevisionEvent) error
}

// TicketSinkInterface hands routed tickets to the dispatch side (the broker).
type TicketSinkInterface interface {
	PublishTickets(ctx context.Context, tickets []routing.Ticket) error
}

// SaleFinalizerInterface is the sale-finalization collaborator. An error means
// the sale was rejected; a context deadline means the outcome is unknown.
type SaleFinalizerInterface interface {
	FinalizeSale(ctx context.Context, draft domain.SaleDraft) (int64, error)
}

// CancellationAuditorInterface records discarded orders for later review.
type CancellationAuditorInterface interface {
	RecordCancellation(ctx context.Context, tableID int64, reason, origin string, items []domain.LineItem) error
}

type TableOrderServiceInterface interface {
	Get(ctx context.Context, tableID int64) (Result, error)
	StartOrEnsure(ctx context.Context, tableID int64, origin string) (Result, error)
	AddItem(ctx context.Context, tableID, productID int64, quantity int, expectedRev uint64, origin string) (Result, error)
	UpdateQuantity(ctx context.Context, tableID, productID int64, quantity int, expectedRev uint64, origin string) (Result, error)
	RemoveItem(ctx context.Context, tableID, productID int64, expectedRev uint64, override bool, origin string) (Result, error)
	SendToKitchen(ctx context.Context, tableID int64, expectedRev uint64, origin string) (Result, error)
	RequestBill(ctx context.Context, tableID int64, expectedRev uint64, origin string) (Result, error)
	Finalize(ctx context.Context, tableID int64, expectedRev uint64, origin string) (FinalizeResult, error)
	Cancel(ctx context.Context, tableID int64, reason, origin string) (Result, error)
	Invalidate(tableID int64)
	InvalidateAll()
}

// Result is returned by every mutation. Order is a copy (nil once the table is
// libre again). Degraded means the in-memory mutation succeeded but a
// persistence write did not, so durability is at risk until reconciliation.
type Result struct {
	State    domain.TableState
	Order    *domain.ActiveOrder
	Tickets  []routing.Ticket
	Degraded bool
}

type FinalizeResult struct {
	SaleID   int64
	State    domain.TableState
	Degraded bool
}

type Deps struct {
	Tables          repository.TableRepositoryInterface
	Snapshots       repository.SnapshotRepositoryInterface
	Catalog         repository.CatalogRepositoryInterface
	Router          *routing.Router
	Tickets         TicketSinkInterface
	Notifier        RevisionNotifierInterface
	Finalizer       SaleFinalizerInterface
	Auditor         CancellationAuditorInterface
	Logger          *logger.Logger
	FinalizeTimeout time.Duration
	Now             func() time.Time
}

// TableOrderService owns the one-active-order-per-table aggregates. Slots are
// lazily loaded from persistence and guarded by a per-table mutex so mutations
// on different tables never block each other.
type TableOrderService struct {
	deps Deps

	mu    sync.Mutex
	slots map[int64]*slot
}

type slot struct {
	mu     sync.Mutex
	loaded bool
	table  domain.Table
	order  *domain.ActiveOrder
}

func New(deps Deps) *TableOrderService {
	if deps.Now == nil {
		deps.Now = func() time.Time { return time.Now().UTC() }
	}
	if deps.FinalizeTimeout <= 0 {
		deps.FinalizeTimeout = 15 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = logger.New("table-order")
	}
	return &TableOrderService{deps: deps, slots: make(map[int64]*slot)}
}

// acquire returns the table's slot with its mutex held. The caller must call
// release. A failed load is not cached.
func (s *TableOrderService) acquire(ctx context.Context, tableID int64) (*slot, func(), error) {
	s.mu.Lock()
	sl, ok := s.slots[tableID]
	if !ok {
		sl = &slot{}
		s.slots[tableID] = sl
	}
	s.mu.Unlock()

	sl.mu.Lock()
	if !sl.loaded {
		if err := s.load(ctx, tableID, sl); err != nil {
			sl.mu.Unlock()
			s.mu.Lock()
			if s.slots[tableID] == sl {
				delete(s.slots, tableID)
			}
			s.mu.Unlock()
			return nil, nil, err
		}
		sl.loaded = true
	}
	return sl, sl.mu.Unlock, nil
}

func (s *TableOrderService) load(ctx context.Context, tableID int64, sl *slot) error {
	table, err := s.deps.Tables.Get(ctx, tableID)
	if err != nil {
		return err
	}
	snap, err := s.deps.Snapshots.Load(ctx, tableID)
	if err != nil {
		return err
	}
	sl.table = table
	if snap != nil {
		sl.order = domain.OrderFromSnapshot(*snap)
	}
	return nil
}

// Invalidate drops a table's in-memory slot so the next operation reloads it
// from persistence. Used after external repairs and cross-device notifications.
func (s *TableOrderService) Invalidate(tableID int64) {
	s.mu.Lock()
	delete(s.slots, tableID)
	s.mu.Unlock()
}

func (s *TableOrderService) InvalidateAll() {
	s.mu.Lock()
	s.slots = make(map[int64]*slot)
	s.mu.Unlock()
}

func (s *TableOrderService) Get(ctx context.Context, tableID int64) (Result, error) {
	sl, release, err := s.acquire(ctx, tableID)
	if err != nil {
		return Result{}, err
	}
	defer release()
	return s.result(sl), nil
}

func (s *TableOrderService) StartOrEnsure(ctx context.Context, tableID int64, origin string) (Result, error) {
	sl, release, err := s.acquire(ctx, tableID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	if sl.order != nil {
		return s.result(sl), nil
	}
	if sl.table.State == domain.StateFueraDeServicio {
		return Result{}, domain.ErrTableUnavailable
	}

	next, err := domain.Transition(sl.table.State, domain.EventFirstItem)
	if err != nil {
		return Result{}, err
	}

	now := s.deps.Now()
	sl.order = &domain.ActiveOrder{
		TableID:   tableID,
		Items:     []domain.LineItem{},
		Revision:  0,
		CreatedAt: now,
		UpdatedAt: now,
		Origin:    origin,
	}
	sl.table.State = next

	res := s.result(sl)
	res.Degraded = s.persist(ctx, sl, true)
	s.notify(ctx, sl, origin)
	s.deps.Logger.Info("order_started", map[string]any{"table_id": tableID, "origin": origin})
	return res, nil
}

func (s *TableOrderService) AddItem(ctx context.Context, tableID, productID int64, quantity int, expectedRev uint64, origin string) (Result, error) {
	if quantity <= 0 {
		return Result{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	sl, release, err := s.acquire(ctx, tableID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	if err := s.checkWritable(sl, expectedRev); err != nil {
		return Result{}, err
	}

	product, err := s.deps.Catalog.Resolve(ctx, productID)
	if err != nil {
		return Result{}, err
	}

	// same product, not yet sent: merge instead of adding a second line
	merged := false
	for i := range sl.order.Items {
		it := &sl.order.Items[i]
		if it.ProductID == productID && !it.Sent {
			it.Quantity += quantity
			merged = true
			break
		}
	}
	if !merged {
		sl.order.Items = append(sl.order.Items, domain.LineItem{
			ProductID: productID,
			Name:      product.Name,
			Quantity:  quantity,
			UnitPrice: product.UnitPrice,
		})
	}
	s.bump(sl, origin)

	res := s.result(sl)
	res.Degraded = s.persist(ctx, sl, false)
	s.notify(ctx, sl, origin)
	return res, nil
}

func (s *TableOrderService) UpdateQuantity(ctx context.Context, tableID, productID int64, quantity int, expectedRev uint64, origin string) (Result, error) {
	if quantity <= 0 {
		return Result{}, fmt.Errorf("quantity must be positive, got %d; remove the item instead", quantity)
	}

	sl, release, err := s.acquire(ctx, tableID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	if err := s.checkWritable(sl, expectedRev); err != nil {
		return Result{}, err
	}

	idx, sentExists := findLine(sl.order, productID)
	if idx < 0 {
		if sentExists {
			return Result{}, domain.ErrItemAlreadySent
		}
		return Result{}, fmt.Errorf("product %d not in order for table %d", productID, tableID)
	}
	sl.order.Items[idx].Quantity = quantity
	s.bump(sl, origin)

	res := s.result(sl)
	res.Degraded = s.persist(ctx, sl, false)
	s.notify(ctx, sl, origin)
	return res, nil
}

func (s *TableOrderService) RemoveItem(ctx context.Context, tableID, productID int64, expectedRev uint64, override bool, origin string) (Result, error) {
	sl, release, err := s.acquire(ctx, tableID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	if err := s.checkWritable(sl, expectedRev); err != nil {
		return Result{}, err
	}

	idx, sentExists := findLine(sl.order, productID)
	if idx < 0 {
		if !sentExists {
			return Result{}, fmt.Errorf("product %d not in order for table %d", productID, tableID)
		}
		if !override {
			return Result{}, domain.ErrItemAlreadySent
		}
		// supervisor cancellation of an already-dispatched item: allowed, audited
		idx = sentLineIndex(sl.order, productID)
		s.deps.Logger.Info("supervisor_override_remove", map[string]any{
			"table_id": tableID, "product_id": productID, "origin": origin,
		})
	}

	sl.order.Items = append(sl.order.Items[:idx], sl.order.Items[idx+1:]...)
	// an emptied order stays open; the waiter cancels or finalizes explicitly
	s.bump(sl, origin)

	res := s.result(sl)
	res.Degraded = s.persist(ctx, sl, false)
	s.notify(ctx, sl, origin)
	return res, nil
}

func (s *TableOrderService) SendToKitchen(ctx context.Context, tableID int64, expectedRev uint64, origin string) (Result, error) {
	sl, release, err := s.acquire(ctx, tableID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	if sl.order == nil {
		return Result{}, domain.ErrNoActiveOrder
	}
	if err := s.checkRevision(sl, expectedRev); err != nil {
		return Result{}, err
	}
	next, err := domain.Transition(sl.table.State, domain.EventSendToKitchen)
	if err != nil {
		return Result{}, err
	}

	unsent := sl.order.UnsentItems()
	if len(unsent) == 0 {
		return Result{}, domain.ErrNothingToSend
	}

	// categories come from the catalog at dispatch time
	ticketItems := make([]domain.TicketItem, 0, len(unsent))
	for _, it := range unsent {
		product, err := s.deps.Catalog.Resolve(ctx, it.ProductID)
		if err != nil {
			return Result{}, err
		}
		ticketItems = append(ticketItems, domain.TicketItem{
			ProductID: it.ProductID,
			Name:      it.Name,
			Quantity:  it.Quantity,
			Category:  product.Category,
		})
	}

	tickets, err := s.deps.Router.Route(sl.table.Number, s.deps.Now(), ticketItems)
	if err != nil {
		return Result{}, err
	}

	// publish before mutating: a broker failure leaves the order untouched and
	// the call retryable (at the cost of a possible duplicate ticket later)
	if s.deps.Tickets != nil {
		if err := s.deps.Tickets.PublishTickets(ctx, tickets); err != nil {
			return Result{}, fmt.Errorf("publish tickets: %w", err)
		}
	}

	printerByProduct := make(map[int64]int64, len(ticketItems))
	for _, tk := range tickets {
		for _, it := range tk.Items {
			printerByProduct[it.ProductID] = tk.PrinterID
		}
	}
	for i := range sl.order.Items {
		it := &sl.order.Items[i]
		if !it.Sent {
			it.Sent = true
			it.PrinterID = printerByProduct[it.ProductID]
		}
	}
	sl.table.State = next
	s.bump(sl, origin)

	res := s.result(sl)
	res.Tickets = tickets
	res.Degraded = s.persist(ctx, sl, true)
	s.notify(ctx, sl, origin)
	s.deps.Logger.Info("sent_to_kitchen", map[string]any{
		"table_id": tableID, "tickets": len(tickets), "origin": origin,
	})
	return res, nil
}

func (s *TableOrderService) RequestBill(ctx context.Context, tableID int64, expectedRev uint64, origin string) (Result, error) {
	sl, release, err := s.acquire(ctx, tableID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	if sl.order == nil {
		return Result{}, domain.ErrNoActiveOrder
	}
	if err := s.checkRevision(sl, expectedRev); err != nil {
		return Result{}, err
	}
	next, err := domain.Transition(sl.table.State, domain.EventRequestBill)
	if err != nil {
		return Result{}, err
	}

	sl.table.State = next
	s.bump(sl, origin)

	res := s.result(sl)
	res.Degraded = s.persist(ctx, sl, true)
	s.notify(ctx, sl, origin)
	return res, nil
}

func (s *TableOrderService) Finalize(ctx context.Context, tableID int64, expectedRev uint64, origin string) (FinalizeResult, error) {
	sl, release, err := s.acquire(ctx, tableID)
	if err != nil {
		return FinalizeResult{}, err
	}
	defer release()

	if sl.order == nil {
		return FinalizeResult{}, domain.ErrNoActiveOrder
	}
	if err := s.checkRevision(sl, expectedRev); err != nil {
		return FinalizeResult{}, err
	}
	next, err := domain.Transition(sl.table.State, domain.EventFinalize)
	if err != nil {
		return FinalizeResult{}, err
	}

	order := sl.order.Clone()
	draft := domain.SaleDraft{
		TableID:     tableID,
		TableNumber: sl.table.Number,
		Items:       order.Items,
		Subtotal:    order.Subtotal(),
		Origin:      origin,
	}

	fctx, cancel := context.WithTimeout(ctx, s.deps.FinalizeTimeout)
	defer cancel()
	saleID, err := s.deps.Finalizer.FinalizeSale(fctx, draft)
	if err != nil {
		// on timeout the sale may or may not exist downstream; keep the order
		// until a definitive answer so the operation stays retryable
		if errors.Is(err, context.DeadlineExceeded) {
			return FinalizeResult{}, fmt.Errorf("finalization outcome unknown for table %d: %w", tableID, err)
		}
		return FinalizeResult{}, fmt.Errorf("%w: %v", domain.ErrFinalizationRejected, err)
	}

	lastRev := sl.order.Revision
	sl.order = nil
	sl.table.State = next

	degraded := false
	if err := s.deps.Snapshots.Delete(ctx, tableID); err != nil {
		s.deps.Logger.Error("snapshot_delete_failed", err, map[string]any{"table_id": tableID})
		degraded = true
	}
	if err := s.deps.Tables.SetState(ctx, tableID, sl.table.State); err != nil {
		s.deps.Logger.Error("table_state_persist_failed", err, map[string]any{"table_id": tableID})
		degraded = true
	}
	s.notifyRevision(ctx, tableID, lastRev+1, origin)
	s.deps.Logger.Info("sale_finalized", map[string]any{
		"table_id": tableID, "sale_id": saleID, "subtotal": draft.Subtotal, "origin": origin,
	})
	return FinalizeResult{SaleID: saleID, State: sl.table.State, Degraded: degraded}, nil
}

// Cancel discards the active order without a revision check: cancellation
// always wins over concurrent edits.
func (s *TableOrderService) Cancel(ctx context.Context, tableID int64, reason, origin string) (Result, error) {
	sl, release, err := s.acquire(ctx, tableID)
	if err != nil {
		return Result{}, err
	}
	defer release()

	if sl.order == nil {
		return Result{}, domain.ErrNoActiveOrder
	}

	items := sl.order.Clone().Items
	lastRev := sl.order.Revision
	sl.order = nil
	sl.table.State = domain.StateLibre

	degraded := false
	if s.deps.Auditor != nil {
		// audit trail must not block the cancel itself
		if err := s.deps.Auditor.RecordCancellation(ctx, tableID, reason, origin, items); err != nil {
			s.deps.Logger.Error("cancellation_audit_failed", err, map[string]any{"table_id": tableID})
			degraded = true
		}
	}
	if err := s.deps.Snapshots.Delete(ctx, tableID); err != nil {
		s.deps.Logger.Error("snapshot_delete_failed", err, map[string]any{"table_id": tableID})
		degraded = true
	}
	if err := s.deps.Tables.SetState(ctx, tableID, domain.StateLibre); err != nil {
		s.deps.Logger.Error("table_state_persist_failed", err, map[string]any{"table_id": tableID})
		degraded = true
	}
	s.notifyRevision(ctx, tableID, lastRev+1, origin)
	s.deps.Logger.Info("order_cancelled", map[string]any{
		"table_id": tableID, "reason": reason, "origin": origin,
	})
	return Result{State: domain.StateLibre, Degraded: degraded}, nil
}

// ---- helpers ----

// checkWritable covers the common item-mutation preconditions.
func (s *TableOrderService) checkWritable(sl *slot, expectedRev uint64) error {
	if sl.order == nil {
		return domain.ErrNoActiveOrder
	}
	if sl.table.State == domain.StateCuentaPedida {
		return domain.ErrOrderClosed
	}
	return s.checkRevision(sl, expectedRev)
}

func (s *TableOrderService) checkRevision(sl *slot, expectedRev uint64) error {
	if sl.order.Revision != expectedRev {
		return &domain.RevisionConflictError{TableID: sl.table.ID, Expected: expectedRev, Actual: sl.order.Revision}
	}
	return nil
}

func (s *TableOrderService) bump(sl *slot, origin string) {
	sl.order.Revision++
	sl.order.UpdatedAt = s.deps.Now()
	sl.order.Origin = origin
}

func (s *TableOrderService) result(sl *slot) Result {
	res := Result{State: sl.table.State}
	if sl.order != nil {
		cp := sl.order.Clone()
		res.Order = &cp
	}
	return res
}

// persist writes the snapshot (and optionally the table state) and reports
// whether the call should be flagged degraded.
func (s *TableOrderService) persist(ctx context.Context, sl *slot, withState bool) bool {
	degraded := false
	if err := s.deps.Snapshots.Save(ctx, sl.order.Snapshot()); err != nil {
		s.deps.Logger.Error("snapshot_persist_failed", err, map[string]any{"table_id": sl.table.ID})
		degraded = true
	}
	if withState {
		if err := s.deps.Tables.SetState(ctx, sl.table.ID, sl.table.State); err != nil {
			s.deps.Logger.Error("table_state_persist_failed", err, map[string]any{"table_id": sl.table.ID})
			degraded = true
		}
	}
	return degraded
}

func (s *TableOrderService) notify(ctx context.Context, sl *slot, origin string) {
	s.notifyRevision(ctx, sl.table.ID, sl.order.Revision, origin)
}

func (s *TableOrderService) notifyRevision(ctx context.Context, tableID int64, revision uint64, origin string) {
	if s.deps.Notifier == nil {
		return
	}
	ev := domain.RevisionEvent{TableID: tableID, Revision: revision, Origin: origin, SentAt: s.deps.Now()}
	if err := s.deps.Notifier.NotifyRevision(ctx, ev); err != nil {
		s.deps.Logger.Error("revision_notify_failed", err, map[string]any{"table_id": tableID})
	}
}

// findLine locates the unsent line for a product. sentExists reports whether a
// sent line for that product is present instead.
func findLine(order *domain.ActiveOrder, productID int64) (idx int, sentExists bool) {
	idx = -1
	for i, it := range order.Items {
		if it.ProductID != productID {
			continue
		}
		if it.Sent {
			sentExists = true
			continue
		}
		idx = i
		return idx, sentExists
	}
	return idx, sentExists
}

func sentLineIndex(order *domain.ActiveOrder, productID int64) int {
	for i, it := range order.Items {
		if it.ProductID == productID && it.Sent {
			return i
		}
	}
	return -1
}
