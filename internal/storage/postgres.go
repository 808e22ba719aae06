package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/L1nMay/porty/internal/catalog"
	"github.com/L1nMay/porty/internal/model"
)

// Postgres serves the port catalog from the port_catalog table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(dsn string) (*Postgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Migrate applies the bundled schema.
func (p *Postgres) Migrate() error {
	return RunMigrations(p.db, migrationsFS)
}

// Load implements catalog.Source.
func (p *Postgres) Load(ctx context.Context) ([]model.PortSpec, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT port, protocol, description
		FROM port_catalog
		ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PortSpec
	for rows.Next() {
		var spec model.PortSpec
		if err := rows.Scan(&spec.Port, &spec.Protocol, &spec.Description); err != nil {
			return nil, err
		}
		out = append(out, spec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return catalog.Normalize(out)
}

// ReplaceCatalog swaps the table contents for specs.
func (p *Postgres) ReplaceCatalog(ctx context.Context, specs []model.PortSpec) error {
	specs, err := catalog.Normalize(specs)
	if err != nil {
		return err
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM port_catalog`); err != nil {
		return err
	}
	for i, spec := range specs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO port_catalog (position, port, protocol, description)
			VALUES ($1, $2, $3, $4)
		`, i, spec.Port, spec.Protocol, spec.Description); err != nil {
			return fmt.Errorf("insert port %d: %w", spec.Port, err)
		}
	}
	return tx.Commit()
}
