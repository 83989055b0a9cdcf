package routing

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"salon-service/internal/domain"
)

// Ticket is one comandera print job: every sent item that resolved to the same
// printer, in the order the items were added.
type Ticket struct {
	PrinterID   int64
	PrinterName string
	TableNumber int
	Items       []domain.TicketItem
	Degraded    bool
	IssuedAt    time.Time
}

// Router holds the comandera routing table and resolves sent items to printer
// destinations. Routing is deterministic and side-effect-free; dispatching the
// resulting tickets is the caller's job.
type Router struct {
	mu    sync.RWMutex
	dests []domain.PrinterDestination
}

func NewRouter(dests []domain.PrinterDestination) (*Router, error) {
	r := &Router{}
	if err := r.SetDestinations(dests); err != nil {
		return nil, err
	}
	return r, nil
}

// SetDestinations replaces the routing table. Priority ranks must be unique
// within a category; configurations violating that are rejected wholesale.
func (r *Router) SetDestinations(dests []domain.PrinterDestination) error {
	seen := make(map[domain.PrinterCategory]map[int]bool)
	for _, d := range dests {
		if d.Priority < 1 {
			return fmt.Errorf("printer %q: priority rank %d out of range", d.Name, d.Priority)
		}
		if seen[d.Category] == nil {
			seen[d.Category] = make(map[int]bool)
		}
		if seen[d.Category][d.Priority] {
			return fmt.Errorf("duplicate priority rank %d in category %s", d.Priority, d.Category)
		}
		seen[d.Category][d.Priority] = true
	}

	cp := make([]domain.PrinterDestination, len(dests))
	copy(cp, dests)
	r.mu.Lock()
	r.dests = cp
	r.mu.Unlock()
	return nil
}

// SetActive flips one destination's active flag, e.g. when a printer goes down
// mid-service. Unknown ids are ignored.
func (r *Router) SetActive(printerID int64, active bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.dests {
		if r.dests[i].ID == printerID {
			r.dests[i].Active = active
		}
	}
}

// Route maps a batch of sent items to per-printer tickets. Each category goes
// to its lowest-rank active destination; a category with no active destination
// falls back to the lowest-rank active destination overall and the resulting
// ticket is flagged degraded so the floor staff get warned. With zero active
// destinations anywhere it returns ErrNoActivePrinters and no items may be
// marked sent.
func (r *Router) Route(tableNumber int, issuedAt time.Time, items []domain.TicketItem) ([]Ticket, error) {
	if len(items) == 0 {
		return nil, nil
	}

	// copy the table so SetActive flips never race with an in-flight pass
	r.mu.RLock()
	dests := make([]domain.PrinterDestination, len(r.dests))
	copy(dests, r.dests)
	r.mu.RUnlock()

	fallback := lowestRankActive(dests, "")
	if fallback == nil {
		return nil, domain.ErrNoActivePrinters
	}

	byPrinter := make(map[int64]*Ticket)
	for _, it := range items {
		dest := lowestRankActive(dests, it.Category)
		degraded := false
		if dest == nil {
			dest = fallback
			degraded = true
		}
		tk, ok := byPrinter[dest.ID]
		if !ok {
			tk = &Ticket{
				PrinterID:   dest.ID,
				PrinterName: dest.Name,
				TableNumber: tableNumber,
				IssuedAt:    issuedAt,
			}
			byPrinter[dest.ID] = tk
		}
		tk.Items = append(tk.Items, it)
		if degraded {
			tk.Degraded = true
		}
	}

	out := make([]Ticket, 0, len(byPrinter))
	for _, tk := range byPrinter {
		out = append(out, *tk)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrinterID < out[j].PrinterID })
	return out, nil
}

// lowestRankActive picks the active destination with the smallest priority
// rank. An empty category matches every destination (the fallback scan).
func lowestRankActive(dests []domain.PrinterDestination, cat domain.PrinterCategory) *domain.PrinterDestination {
	var best *domain.PrinterDestination
	for i := range dests {
		d := &dests[i]
		if !d.Active {
			continue
		}
		if cat != "" && d.Category != cat {
			continue
		}
		if best == nil || d.Priority < best.Priority {
			best = d
		}
	}
	if best == nil {
		return nil
	}
	cp := *best
	return &cp
}
