package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"salon-service/internal/domain"
)

type SnapshotRepositoryInterface interface {
	// Load returns nil when the table has no snapshot.
	Load(ctx context.Context, tableID int64) (*domain.OrderSnapshot, error)
	LoadAll(ctx context.Context) ([]domain.OrderSnapshot, error)
	// Save is last-write-wins per revision: a stored snapshot with a revision
	// at or above the incoming one is left alone.
	Save(ctx context.Context, snap domain.OrderSnapshot) error
	Delete(ctx context.Context, tableID int64) error
	DeleteAll(ctx context.Context) error
}

type SnapshotRepository struct {
	db *sql.DB
}

func NewSnapshotRepository(db *sql.DB) SnapshotRepositoryInterface {
	return &SnapshotRepository{db: db}
}

func (r *SnapshotRepository) Load(ctx context.Context, tableID int64) (*domain.OrderSnapshot, error) {
	var (
		snap  domain.OrderSnapshot
		items []byte
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT mesa_id, revision, items, created_at, updated_at, origen
		FROM venta_activa_snapshots WHERE mesa_id=$1
	`, tableID).Scan(&snap.TableID, &snap.Revision, &items, &snap.CreatedAt, &snap.UpdatedAt, &snap.Origin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot for table %d: %w", tableID, err)
	}
	if err := json.Unmarshal(items, &snap.Items); err != nil {
		return nil, fmt.Errorf("decode snapshot items for table %d: %w", tableID, err)
	}
	return &snap, nil
}

func (r *SnapshotRepository) LoadAll(ctx context.Context) ([]domain.OrderSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT mesa_id, revision, items, created_at, updated_at, origen
		FROM venta_activa_snapshots ORDER BY mesa_id
	`)
	if err != nil {
		return nil, fmt.Errorf("load snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.OrderSnapshot
	for rows.Next() {
		var (
			snap  domain.OrderSnapshot
			items []byte
		)
		if err := rows.Scan(&snap.TableID, &snap.Revision, &items, &snap.CreatedAt, &snap.UpdatedAt, &snap.Origin); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if err := json.Unmarshal(items, &snap.Items); err != nil {
			return nil, fmt.Errorf("decode snapshot items for table %d: %w", snap.TableID, err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

func (r *SnapshotRepository) Save(ctx context.Context, snap domain.OrderSnapshot) error {
	items, err := json.Marshal(snap.Items)
	if err != nil {
		return fmt.Errorf("encode snapshot items: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO venta_activa_snapshots (mesa_id, revision, items, created_at, updated_at, origen)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (mesa_id) DO UPDATE SET
		  revision   = EXCLUDED.revision,
		  items      = EXCLUDED.items,
		  updated_at = EXCLUDED.updated_at,
		  origen     = EXCLUDED.origen
		WHERE venta_activa_snapshots.revision < EXCLUDED.revision
	`, snap.TableID, snap.Revision, items, snap.CreatedAt, snap.UpdatedAt, snap.Origin)
	if err != nil {
		return fmt.Errorf("%w: table %d: %v", domain.ErrPersistenceFailure, snap.TableID, err)
	}
	return nil
}

func (r *SnapshotRepository) Delete(ctx context.Context, tableID int64) error {
	if _, err := r.db.ExecContext(ctx,
		`DELETE FROM venta_activa_snapshots WHERE mesa_id=$1`, tableID); err != nil {
		return fmt.Errorf("%w: delete table %d: %v", domain.ErrPersistenceFailure, tableID, err)
	}
	return nil
}

func (r *SnapshotRepository) DeleteAll(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM venta_activa_snapshots`); err != nil {
		return fmt.Errorf("%w: delete all: %v", domain.ErrPersistenceFailure, err)
	}
	return nil
}
