package repository

import "database/sql"

// Repository bundles every store the engine talks to over one Postgres pool.
type Repository struct {
	Tables    TableRepositoryInterface
	Snapshots SnapshotRepositoryInterface
	Printers  PrinterRepositoryInterface
	Catalog   CatalogRepositoryInterface
	Sales     SaleRepositoryInterface
}

func New(db *sql.DB) *Repository {
	return &Repository{
		Tables:    NewTableRepository(db),
		Snapshots: NewSnapshotRepository(db),
		Printers:  NewPrinterRepository(db),
		Catalog:   NewCatalogRepository(db),
		Sales:     NewSaleRepository(db),
	}
}
