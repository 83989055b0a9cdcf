package domain

import "time"

type TableShape string

const (
	ShapeRound       TableShape = "round"
	ShapeSquare      TableShape = "square"
	ShapeRectangular TableShape = "rectangular"
	ShapeOval        TableShape = "oval"
)

// Table is a physical seating unit ("mesa") inside a sector. Geometry is plain
// coordinate storage for the layout editor; the engine only cares about State.
type Table struct {
	ID       int64      `json:"id"`
	Number   int        `json:"number"`
	Capacity int        `json:"capacity"`
	Shape    TableShape `json:"shape"`
	PosX     float64    `json:"pos_x"`
	PosY     float64    `json:"pos_y"`
	Size     float64    `json:"size"`
	SectorID int64      `json:"sector_id"`
	State    TableState `json:"state"`
	Active   bool       `json:"active"`
}

type PrinterCategory string

const (
	CategoryKitchen PrinterCategory = "kitchen"
	CategoryBar     PrinterCategory = "bar"
	CategoryDessert PrinterCategory = "dessert"
)

// PrinterDestination is a comandera: a physical ticket printer with a category
// and a priority rank (1 = primary). Rank must be unique within a category.
type PrinterDestination struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Category PrinterCategory `json:"category"`
	Active   bool            `json:"active"`
	Priority int             `json:"priority"`
}

// Product is the read-only view the engine gets from the catalog collaborator.
type Product struct {
	ID        int64           `json:"id"`
	Name      string          `json:"name"`
	UnitPrice float64         `json:"unit_price"`
	Category  PrinterCategory `json:"category"`
}

// LineItem belongs to an ActiveOrder. UnitPrice is snapshotted when the item is
// added, so later catalog price edits never change an open order. PrinterID is
// zero until the item has been routed to a comandera.
type LineItem struct {
	ProductID int64   `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unit_price"`
	Sent      bool    `json:"sent"`
	PrinterID int64   `json:"printer_id,omitempty"`
}

// ActiveOrder is the draft order bound to exactly one table. Revision grows by
// one on every accepted mutation and is the optimistic-concurrency token shared
// between devices pointed at the same table.
type ActiveOrder struct {
	TableID   int64      `json:"table_id"`
	Items     []LineItem `json:"items"`
	Revision  uint64     `json:"revision"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Origin    string     `json:"origin"`
}

// Subtotal is the running total over all line items, sent or not.
func (o *ActiveOrder) Subtotal() float64 {
	total := 0.0
	for _, it := range o.Items {
		total += float64(it.Quantity) * it.UnitPrice
	}
	return total
}

// UnsentItems returns the line items not yet dispatched to a comandera.
func (o *ActiveOrder) UnsentItems() []LineItem {
	out := make([]LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		if !it.Sent {
			out = append(out, it)
		}
	}
	return out
}

// Clone returns a deep copy safe to hand to callers outside the store lock.
func (o *ActiveOrder) Clone() ActiveOrder {
	cp := *o
	cp.Items = make([]LineItem, len(o.Items))
	copy(cp.Items, o.Items)
	return cp
}

// OrderSnapshot is the persisted form of an ActiveOrder, keyed by table id and
// shared across devices with last-write-wins per revision.
type OrderSnapshot struct {
	TableID   int64      `json:"table_id"`
	Revision  uint64     `json:"revision"`
	Items     []LineItem `json:"items"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	Origin    string     `json:"origin"`
}

// Snapshot converts the order to its persisted form.
func (o *ActiveOrder) Snapshot() OrderSnapshot {
	cp := o.Clone()
	return OrderSnapshot{
		TableID:   cp.TableID,
		Revision:  cp.Revision,
		Items:     cp.Items,
		CreatedAt: cp.CreatedAt,
		UpdatedAt: cp.UpdatedAt,
		Origin:    cp.Origin,
	}
}

// OrderFromSnapshot rebuilds an in-memory order from its persisted form.
func OrderFromSnapshot(s OrderSnapshot) *ActiveOrder {
	items := make([]LineItem, len(s.Items))
	copy(items, s.Items)
	return &ActiveOrder{
		TableID:   s.TableID,
		Items:     items,
		Revision:  s.Revision,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		Origin:    s.Origin,
	}
}

// SaleDraft is what the engine hands to the sale-finalization collaborator.
type SaleDraft struct {
	TableID     int64      `json:"table_id"`
	TableNumber int        `json:"table_number"`
	Items       []LineItem `json:"items"`
	Subtotal    float64    `json:"subtotal"`
	Origin      string     `json:"origin"`
}
