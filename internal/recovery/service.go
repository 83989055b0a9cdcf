package recovery

import (
	"context"
	"errors"
	"fmt"

	"salon-service/internal/common/logger"
	"salon-service/internal/domain"
	"salon-service/internal/repository"
)

// OrphanPolicy decides what to do with a snapshot whose table claims to be
// free: re-attach the order (force the table to ocupada) or discard it.
type OrphanPolicy string

const (
	OrphanReattach OrphanPolicy = "reattach"
	OrphanDiscard  OrphanPolicy = "discard"
)

type AnomalyKind string

const (
	// table state implies an order but no snapshot exists
	AnomalyStateWithoutOrder AnomalyKind = "state_without_order"
	// snapshot exists but the table state implies none
	AnomalyOrphanSnapshot AnomalyKind = "orphan_snapshot"
	// snapshot references a table that no longer exists (or was deactivated)
	AnomalyUnknownTable AnomalyKind = "unknown_table"
)

type Anomaly struct {
	TableID  int64
	Kind     AnomalyKind
	Previous domain.TableState
	Action   string
}

type Report struct {
	Checked   int
	Anomalies []Anomaly
}

// InvalidatorInterface lets the service drop stale in-memory slots after it
// repaired the persisted state underneath them.
type InvalidatorInterface interface {
	Invalidate(tableID int64)
	InvalidateAll()
}

// Service repairs the occupancy⇔active-order invariant against persistence.
// It runs on process start and whenever a cross-device notification suggests
// the in-memory view may be stale; it is the source of truth on conflicts.
type Service struct {
	tables    repository.TableRepositoryInterface
	snapshots repository.SnapshotRepositoryInterface
	store     InvalidatorInterface
	policy    OrphanPolicy
	lg        *logger.Logger
}

func NewService(tables repository.TableRepositoryInterface, snapshots repository.SnapshotRepositoryInterface,
	store InvalidatorInterface, policy OrphanPolicy, lg *logger.Logger) *Service {
	if policy != OrphanDiscard {
		policy = OrphanReattach
	}
	if lg == nil {
		lg = logger.New("recovery")
	}
	return &Service{tables: tables, snapshots: snapshots, store: store, policy: policy, lg: lg}
}

// Reconcile checks every table against every snapshot and repairs mismatches.
// Each anomaly is repaired and logged exactly once per run.
func (s *Service) Reconcile(ctx context.Context) (Report, error) {
	tables, err := s.tables.ListAll(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: %w", err)
	}
	snaps, err := s.snapshots.LoadAll(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: %w", err)
	}

	byTable := make(map[int64]domain.OrderSnapshot, len(snaps))
	for _, sn := range snaps {
		byTable[sn.TableID] = sn
	}

	var report Report
	for _, t := range tables {
		report.Checked++
		_, hasSnap := byTable[t.ID]
		delete(byTable, t.ID)

		anom, err := s.repair(ctx, t, hasSnap)
		if err != nil {
			return report, err
		}
		if anom != nil {
			report.Anomalies = append(report.Anomalies, *anom)
		}
	}

	// leftovers reference tables we no longer know about
	for tableID := range byTable {
		if err := s.snapshots.Delete(ctx, tableID); err != nil {
			return report, err
		}
		if s.store != nil {
			s.store.Invalidate(tableID)
		}
		anom := Anomaly{TableID: tableID, Kind: AnomalyUnknownTable, Action: "snapshot discarded"}
		s.logAnomaly(anom)
		report.Anomalies = append(report.Anomalies, anom)
	}
	return report, nil
}

// ReconcileTable repairs a single table, typically in response to a
// cross-device revision notification.
func (s *Service) ReconcileTable(ctx context.Context, tableID int64) (Report, error) {
	snap, err := s.snapshots.Load(ctx, tableID)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile table %d: %w", tableID, err)
	}

	t, err := s.tables.Get(ctx, tableID)
	if errors.Is(err, domain.ErrTableNotFound) {
		if snap == nil {
			return Report{Checked: 1}, nil
		}
		if err := s.snapshots.Delete(ctx, tableID); err != nil {
			return Report{}, err
		}
		if s.store != nil {
			s.store.Invalidate(tableID)
		}
		anom := Anomaly{TableID: tableID, Kind: AnomalyUnknownTable, Action: "snapshot discarded"}
		s.logAnomaly(anom)
		return Report{Checked: 1, Anomalies: []Anomaly{anom}}, nil
	}
	if err != nil {
		return Report{}, fmt.Errorf("reconcile table %d: %w", tableID, err)
	}

	report := Report{Checked: 1}
	anom, err := s.repair(ctx, t, snap != nil)
	if err != nil {
		return report, err
	}
	if anom != nil {
		report.Anomalies = append(report.Anomalies, *anom)
	}
	return report, nil
}

func (s *Service) repair(ctx context.Context, t domain.Table, hasSnap bool) (*Anomaly, error) {
	switch {
	case t.State.OccupiedFamily() && !hasSnap:
		if err := s.tables.SetState(ctx, t.ID, domain.StateLibre); err != nil {
			return nil, fmt.Errorf("repair table %d: %w", t.ID, err)
		}
		if s.store != nil {
			s.store.Invalidate(t.ID)
		}
		anom := Anomaly{TableID: t.ID, Kind: AnomalyStateWithoutOrder, Previous: t.State, Action: "table reset to libre"}
		s.logAnomaly(anom)
		return &anom, nil

	case !t.State.OccupiedFamily() && hasSnap:
		anom := Anomaly{TableID: t.ID, Kind: AnomalyOrphanSnapshot, Previous: t.State}
		if s.policy == OrphanReattach {
			if err := s.tables.SetState(ctx, t.ID, domain.StateOcupada); err != nil {
				return nil, fmt.Errorf("repair table %d: %w", t.ID, err)
			}
			anom.Action = "order re-attached, table forced to ocupada"
		} else {
			if err := s.snapshots.Delete(ctx, t.ID); err != nil {
				return nil, fmt.Errorf("repair table %d: %w", t.ID, err)
			}
			anom.Action = "snapshot discarded"
		}
		if s.store != nil {
			s.store.Invalidate(t.ID)
		}
		s.logAnomaly(anom)
		return &anom, nil
	}
	return nil, nil
}

// ResetAll clears every active order and frees every table. Operator-invoked
// emergency action; there is deliberately no undo.
func (s *Service) ResetAll(ctx context.Context) error {
	if err := s.snapshots.DeleteAll(ctx); err != nil {
		return fmt.Errorf("reset all: %w", err)
	}
	if err := s.tables.SetAllStates(ctx, domain.StateLibre); err != nil {
		return fmt.Errorf("reset all: %w", err)
	}
	if s.store != nil {
		s.store.InvalidateAll()
	}
	s.lg.Info("reset_all", nil)
	return nil
}

type Stats struct {
	ActiveOrders   int     `json:"active_orders"`
	OccupiedTables int     `json:"occupied_tables"`
	TotalLineItems int     `json:"total_line_items"`
	PendingTotal   float64 `json:"pending_total"`
}

// Stats summarizes the persisted state for operational dashboards.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	tables, err := s.tables.ListAll(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	snaps, err := s.snapshots.LoadAll(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}

	st := Stats{ActiveOrders: len(snaps)}
	for _, t := range tables {
		if t.State.OccupiedFamily() {
			st.OccupiedTables++
		}
	}
	for _, sn := range snaps {
		st.TotalLineItems += len(sn.Items)
		order := domain.OrderFromSnapshot(sn)
		st.PendingTotal += order.Subtotal()
	}
	return st, nil
}

func (s *Service) logAnomaly(a Anomaly) {
	s.lg.Error("invariant_anomaly", nil, map[string]any{
		"table_id": a.TableID,
		"kind":     string(a.Kind),
		"previous": string(a.Previous),
		"action":   a.Action,
	})
}
