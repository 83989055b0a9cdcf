package repository

import (
	"context"
	"database/sql"
	"fmt"

	"salon-service/internal/domain"
)

type SaleRepositoryInterface interface {
	// FinalizeSale persists the draft as a closed sale and returns its id.
	FinalizeSale(ctx context.Context, draft domain.SaleDraft) (int64, error)
	// RecordCancellation keeps the audit trail for discarded orders.
	RecordCancellation(ctx context.Context, tableID int64, reason, origin string, items []domain.LineItem) error
}

type SaleRepository struct {
	db *sql.DB
}

func NewSaleRepository(db *sql.DB) SaleRepositoryInterface {
	return &SaleRepository{db: db}
}

func (r *SaleRepository) FinalizeSale(ctx context.Context, draft domain.SaleDraft) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin finalize tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var saleID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO ventas (mesa_id, numero_mesa, subtotal, origen, created_at)
		VALUES ($1,$2,$3,$4,now())
		RETURNING id
	`, draft.TableID, draft.TableNumber, draft.Subtotal, draft.Origin).Scan(&saleID)
	if err != nil {
		return 0, fmt.Errorf("insert venta: %w", err)
	}

	for _, it := range draft.Items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO venta_items (venta_id, producto_id, nombre, cantidad, precio_unitario, created_at)
			VALUES ($1,$2,$3,$4,$5,now())
		`, saleID, it.ProductID, it.Name, it.Quantity, it.UnitPrice); err != nil {
			return 0, fmt.Errorf("insert venta item %s: %w", it.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit finalize tx: %w", err)
	}
	return saleID, nil
}

func (r *SaleRepository) RecordCancellation(ctx context.Context, tableID int64, reason, origin string, items []domain.LineItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancellation tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var cancelID int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO venta_cancelaciones (mesa_id, motivo, origen, created_at)
		VALUES ($1,$2,$3,now())
		RETURNING id
	`, tableID, reason, origin).Scan(&cancelID)
	if err != nil {
		return fmt.Errorf("insert cancelacion: %w", err)
	}

	for _, it := range items {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO venta_cancelacion_items (cancelacion_id, producto_id, nombre, cantidad, precio_unitario, enviado)
			VALUES ($1,$2,$3,$4,$5,$6)
		`, cancelID, it.ProductID, it.Name, it.Quantity, it.UnitPrice, it.Sent); err != nil {
			return fmt.Errorf("insert cancelacion item %s: %w", it.Name, err)
		}
	}

	return tx.Commit()
}
