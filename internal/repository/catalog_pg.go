package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"salon-service/internal/domain"
)

type CatalogRepositoryInterface interface {
	Resolve(ctx context.Context, productID int64) (domain.Product, error)
}

type CatalogRepository struct {
	db *sql.DB
}

func NewCatalogRepository(db *sql.DB) CatalogRepositoryInterface {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) Resolve(ctx context.Context, productID int64) (domain.Product, error) {
	var p domain.Product
	err := r.db.QueryRowContext(ctx, `
		SELECT id, nombre, precio, categoria FROM productos WHERE id=$1 AND activo
	`, productID).Scan(&p.ID, &p.Name, &p.UnitPrice, &p.Category)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, fmt.Errorf("product %d not found", productID)
	}
	if err != nil {
		return domain.Product{}, fmt.Errorf("resolve product %d: %w", productID, err)
	}
	return p, nil
}
