package recovery

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salon-service/internal/common/logger"
	"salon-service/internal/domain"
)

type fakeTables struct {
	tables map[int64]domain.Table
}

func (f *fakeTables) Get(_ context.Context, id int64) (domain.Table, error) {
	t, ok := f.tables[id]
	if !ok {
		return domain.Table{}, domain.ErrTableNotFound
	}
	return t, nil
}

func (f *fakeTables) ListAll(_ context.Context) ([]domain.Table, error) {
	out := make([]domain.Table, 0, len(f.tables))
	for _, t := range f.tables {
		out = append(out, t)
	}
	return out, nil
}

func (f *fakeTables) SetState(_ context.Context, id int64, state domain.TableState) error {
	t, ok := f.tables[id]
	if !ok {
		return domain.ErrTableNotFound
	}
	t.State = state
	f.tables[id] = t
	return nil
}

func (f *fakeTables) SetAllStates(_ context.Context, state domain.TableState) error {
	for id, t := range f.tables {
		t.State = state
		f.tables[id] = t
	}
	return nil
}

type fakeSnapshots struct {
	snaps map[int64]domain.OrderSnapshot
}

func (f *fakeSnapshots) Load(_ context.Context, id int64) (*domain.OrderSnapshot, error) {
	s, ok := f.snaps[id]
	if !ok {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

func (f *fakeSnapshots) LoadAll(_ context.Context) ([]domain.OrderSnapshot, error) {
	out := make([]domain.OrderSnapshot, 0, len(f.snaps))
	for _, s := range f.snaps {
		out = append(out, s)
	}
	return out, nil
}

func (f *fakeSnapshots) Save(_ context.Context, snap domain.OrderSnapshot) error {
	f.snaps[snap.TableID] = snap
	return nil
}

func (f *fakeSnapshots) Delete(_ context.Context, id int64) error {
	delete(f.snaps, id)
	return nil
}

func (f *fakeSnapshots) DeleteAll(_ context.Context) error {
	f.snaps = make(map[int64]domain.OrderSnapshot)
	return nil
}

type fakeInvalidator struct {
	invalidated []int64
	all         bool
}

func (f *fakeInvalidator) Invalidate(tableID int64) { f.invalidated = append(f.invalidated, tableID) }
func (f *fakeInvalidator) InvalidateAll()           { f.all = true }

func table(id int64, state domain.TableState) domain.Table {
	return domain.Table{ID: id, Number: int(id), Capacity: 4, State: state, Active: true}
}

func snapshot(tableID int64, revision uint64) domain.OrderSnapshot {
	return domain.OrderSnapshot{
		TableID:  tableID,
		Revision: revision,
		Items: []domain.LineItem{
			{ProductID: 1, Name: "hamburguesa", Quantity: 2, UnitPrice: 8.5},
		},
	}
}

func newService(tables *fakeTables, snaps *fakeSnapshots, inv *fakeInvalidator, policy OrphanPolicy) *Service {
	return NewService(tables, snaps, inv, policy, logger.NewWithWriter("recovery-test", io.Discard))
}

func TestReconcileClean(t *testing.T) {
	tables := &fakeTables{tables: map[int64]domain.Table{
		1: table(1, domain.StateLibre),
		2: table(2, domain.StateOcupada),
	}}
	snaps := &fakeSnapshots{snaps: map[int64]domain.OrderSnapshot{
		2: snapshot(2, 3),
	}}
	svc := newService(tables, snaps, &fakeInvalidator{}, OrphanReattach)

	report, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Empty(t, report.Anomalies)
}

func TestReconcileOccupiedWithoutOrder(t *testing.T) {
	for _, state := range []domain.TableState{
		domain.StateOcupada, domain.StateEsperandoPedido, domain.StateCuentaPedida,
	} {
		t.Run(string(state), func(t *testing.T) {
			tables := &fakeTables{tables: map[int64]domain.Table{7: table(7, state)}}
			snaps := &fakeSnapshots{snaps: map[int64]domain.OrderSnapshot{}}
			inv := &fakeInvalidator{}
			svc := newService(tables, snaps, inv, OrphanReattach)

			report, err := svc.Reconcile(context.Background())
			require.NoError(t, err)
			require.Len(t, report.Anomalies, 1, "repaired and reported exactly once")
			anom := report.Anomalies[0]
			assert.Equal(t, AnomalyStateWithoutOrder, anom.Kind)
			assert.Equal(t, state, anom.Previous)

			assert.Equal(t, domain.StateLibre, tables.tables[7].State)
			assert.Equal(t, []int64{7}, inv.invalidated)
		})
	}
}

func TestReconcileOrphanSnapshot(t *testing.T) {
	t.Run("reattach", func(t *testing.T) {
		tables := &fakeTables{tables: map[int64]domain.Table{3: table(3, domain.StateLibre)}}
		snaps := &fakeSnapshots{snaps: map[int64]domain.OrderSnapshot{3: snapshot(3, 5)}}
		inv := &fakeInvalidator{}
		svc := newService(tables, snaps, inv, OrphanReattach)

		report, err := svc.Reconcile(context.Background())
		require.NoError(t, err)
		require.Len(t, report.Anomalies, 1)
		assert.Equal(t, AnomalyOrphanSnapshot, report.Anomalies[0].Kind)

		assert.Equal(t, domain.StateOcupada, tables.tables[3].State)
		assert.Contains(t, snaps.snaps, int64(3), "order survives under reattach")
		assert.Equal(t, []int64{3}, inv.invalidated)
	})

	t.Run("discard", func(t *testing.T) {
		tables := &fakeTables{tables: map[int64]domain.Table{3: table(3, domain.StateLibre)}}
		snaps := &fakeSnapshots{snaps: map[int64]domain.OrderSnapshot{3: snapshot(3, 5)}}
		inv := &fakeInvalidator{}
		svc := newService(tables, snaps, inv, OrphanDiscard)

		report, err := svc.Reconcile(context.Background())
		require.NoError(t, err)
		require.Len(t, report.Anomalies, 1)
		assert.Equal(t, AnomalyOrphanSnapshot, report.Anomalies[0].Kind)

		assert.Equal(t, domain.StateLibre, tables.tables[3].State)
		assert.NotContains(t, snaps.snaps, int64(3))
	})

	t.Run("reserved table with snapshot is also an orphan", func(t *testing.T) {
		tables := &fakeTables{tables: map[int64]domain.Table{4: table(4, domain.StateReservada)}}
		snaps := &fakeSnapshots{snaps: map[int64]domain.OrderSnapshot{4: snapshot(4, 1)}}
		svc := newService(tables, snaps, &fakeInvalidator{}, OrphanReattach)

		report, err := svc.Reconcile(context.Background())
		require.NoError(t, err)
		require.Len(t, report.Anomalies, 1)
		assert.Equal(t, domain.StateOcupada, tables.tables[4].State)
	})
}

func TestReconcileUnknownTableSnapshot(t *testing.T) {
	tables := &fakeTables{tables: map[int64]domain.Table{1: table(1, domain.StateLibre)}}
	snaps := &fakeSnapshots{snaps: map[int64]domain.OrderSnapshot{99: snapshot(99, 2)}}
	inv := &fakeInvalidator{}
	svc := newService(tables, snaps, inv, OrphanReattach)

	report, err := svc.Reconcile(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Anomalies, 1)
	assert.Equal(t, AnomalyUnknownTable, report.Anomalies[0].Kind)
	assert.NotContains(t, snaps.snaps, int64(99))
	assert.Equal(t, []int64{99}, inv.invalidated)
}

func TestReconcileTable(t *testing.T) {
	t.Run("healthy table", func(t *testing.T) {
		tables := &fakeTables{tables: map[int64]domain.Table{5: table(5, domain.StateOcupada)}}
		snaps := &fakeSnapshots{snaps: map[int64]domain.OrderSnapshot{5: snapshot(5, 1)}}
		svc := newService(tables, snaps, &fakeInvalidator{}, OrphanReattach)

		report, err := svc.ReconcileTable(context.Background(), 5)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Checked)
		assert.Empty(t, report.Anomalies)
	})

	t.Run("occupied without order", func(t *testing.T) {
		tables := &fakeTables{tables: map[int64]domain.Table{5: table(5, domain.StateEsperandoPedido)}}
		snaps := &fakeSnapshots{snaps: map[int64]domain.OrderSnapshot{}}
		svc := newService(tables, snaps, &fakeInvalidator{}, OrphanReattach)

		report, err := svc.ReconcileTable(context.Background(), 5)
		require.NoError(t, err)
		require.Len(t, report.Anomalies, 1)
		assert.Equal(t, domain.StateLibre, tables.tables[5].State)
	})

	t.Run("snapshot for deleted table", func(t *testing.T) {
		tables := &fakeTables{tables: map[int64]domain.Table{}}
		snaps := &fakeSnapshots{snaps: map[int64]domain.OrderSnapshot{5: snapshot(5, 1)}}
		svc := newService(tables, snaps, &fakeInvalidator{}, OrphanReattach)

		report, err := svc.ReconcileTable(context.Background(), 5)
		require.NoError(t, err)
		require.Len(t, report.Anomalies, 1)
		assert.Equal(t, AnomalyUnknownTable, report.Anomalies[0].Kind)
		assert.Empty(t, snaps.snaps)
	})

	t.Run("unknown table without snapshot is a no-op", func(t *testing.T) {
		tables := &fakeTables{tables: map[int64]domain.Table{}}
		snaps := &fakeSnapshots{snaps: map[int64]domain.OrderSnapshot{}}
		svc := newService(tables, snaps, &fakeInvalidator{}, OrphanReattach)

		report, err := svc.ReconcileTable(context.Background(), 5)
		require.NoError(t, err)
		assert.Empty(t, report.Anomalies)
	})
}

func TestResetAll(t *testing.T) {
	tables := &fakeTables{tables: map[int64]domain.Table{
		1: table(1, domain.StateOcupada),
		2: table(2, domain.StateCuentaPedida),
		3: table(3, domain.StateLibre),
	}}
	snaps := &fakeSnapshots{snaps: map[int64]domain.OrderSnapshot{
		1: snapshot(1, 4),
		2: snapshot(2, 9),
	}}
	inv := &fakeInvalidator{}
	svc := newService(tables, snaps, inv, OrphanReattach)

	require.NoError(t, svc.ResetAll(context.Background()))

	assert.Empty(t, snaps.snaps)
	for id, tbl := range tables.tables {
		assert.Equal(t, domain.StateLibre, tbl.State, "table %d", id)
	}
	assert.True(t, inv.all)
}

func TestStats(t *testing.T) {
	tables := &fakeTables{tables: map[int64]domain.Table{
		1: table(1, domain.StateOcupada),
		2: table(2, domain.StateEsperandoPedido),
		3: table(3, domain.StateLibre),
		4: table(4, domain.StateReservada),
	}}
	snaps := &fakeSnapshots{snaps: map[int64]domain.OrderSnapshot{
		1: snapshot(1, 2),
		2: snapshot(2, 7),
	}}
	svc := newService(tables, snaps, nil, OrphanReattach)

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ActiveOrders)
	assert.Equal(t, 2, stats.OccupiedTables)
	assert.Equal(t, 2, stats.TotalLineItems)
	assert.InDelta(t, 34.0, stats.PendingTotal, 1e-9)
}

func TestDefaultPolicyIsReattach(t *testing.T) {
	svc := newService(&fakeTables{}, &fakeSnapshots{}, nil, OrphanPolicy("nonsense"))
	assert.Equal(t, OrphanReattach, svc.policy)
}
