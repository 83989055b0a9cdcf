package domain

import "time"

// RevisionEvent is broadcast on the revisiones_fanout exchange after every
// successful mutation so other devices on the same table can re-read.
type RevisionEvent struct {
	TableID  int64     `json:"table_id"`
	Revision uint64    `json:"revision"`
	Origin   string    `json:"origin"`
	SentAt   time.Time `json:"sent_at"`
}

// TicketItem is one printed line on a comandera ticket.
type TicketItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Category  PrinterCategory `json:"category"`
}

// TicketMessage is the per-printer payload published to comandas_topic. The
// physical dispatch beyond the broker is someone else's problem.
type TicketMessage struct {
	PrinterID   int64        `json:"printer_id"`
	PrinterName string       `json:"printer_name"`
	TableNumber int          `json:"table_number"`
	Items       []TicketItem `json:"items"`
	Degraded    bool         `json:"degraded_routing,omitempty"`
	IssuedAt    time.Time    `json:"issued_at"`
}
