package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"salon-service/internal/domain"
)

type TableRepositoryInterface interface {
	Get(ctx context.Context, tableID int64) (domain.Table, error)
	ListAll(ctx context.Context) ([]domain.Table, error)
	SetState(ctx context.Context, tableID int64, state domain.TableState) error
	SetAllStates(ctx context.Context, state domain.TableState) error
}

type TableRepository struct {
	db *sql.DB
}

func NewTableRepository(db *sql.DB) TableRepositoryInterface {
	return &TableRepository{db: db}
}

const tableColumns = `id, numero, capacidad, forma, pos_x, pos_y, tamano, sector_id, estado, activa`

func (r *TableRepository) Get(ctx context.Context, tableID int64) (domain.Table, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tableColumns+` FROM mesas WHERE id=$1 AND activa`, tableID)
	t, err := scanTable(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Table{}, domain.ErrTableNotFound
	}
	if err != nil {
		return domain.Table{}, fmt.Errorf("get table %d: %w", tableID, err)
	}
	return t, nil
}

func (r *TableRepository) ListAll(ctx context.Context) ([]domain.Table, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tableColumns+` FROM mesas WHERE activa ORDER BY numero`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []domain.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *TableRepository) SetState(ctx context.Context, tableID int64, state domain.TableState) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE mesas SET estado=$2, updated_at=now() WHERE id=$1 AND activa`, tableID, state)
	if err != nil {
		return fmt.Errorf("set table %d state: %w", tableID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrTableNotFound
	}
	return nil
}

func (r *TableRepository) SetAllStates(ctx context.Context, state domain.TableState) error {
	_, err := r.db.ExecContext(ctx, `UPDATE mesas SET estado=$1, updated_at=now() WHERE activa`, state)
	if err != nil {
		return fmt.Errorf("set all table states: %w", err)
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanTable(row rowScanner) (domain.Table, error) {
	var t domain.Table
	err := row.Scan(&t.ID, &t.Number, &t.Capacity, &t.Shape, &t.PosX, &t.PosY,
		&t.Size, &t.SectorID, &t.State, &t.Active)
	return t, err
}
