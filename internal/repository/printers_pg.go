package repository

import (
	"context"
	"database/sql"
	"fmt"

	"salon-service/internal/domain"
)

type PrinterRepositoryInterface interface {
	ListDestinations(ctx context.Context) ([]domain.PrinterDestination, error)
}

type PrinterRepository struct {
	db *sql.DB
}

func NewPrinterRepository(db *sql.DB) PrinterRepositoryInterface {
	return &PrinterRepository{db: db}
}

func (r *PrinterRepository) ListDestinations(ctx context.Context) ([]domain.PrinterDestination, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, nombre, categoria, activa, prioridad
		FROM comanderas ORDER BY categoria, prioridad
	`)
	if err != nil {
		return nil, fmt.Errorf("list comanderas: %w", err)
	}
	defer rows.Close()

	var out []domain.PrinterDestination
	for rows.Next() {
		var d domain.PrinterDestination
		if err := rows.Scan(&d.ID, &d.Name, &d.Category, &d.Active, &d.Priority); err != nil {
			return nil, fmt.Errorf("scan comandera: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
