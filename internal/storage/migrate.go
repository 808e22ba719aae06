package storage

import (
	"database/sql"
	"embed"
	"io/fs"
	"path"
	"sort"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// RunMigrations executes every .sql file under migrations/ in name order.
func RunMigrations(db *sql.DB, fsys fs.FS) error {
	files, err := fs.ReadDir(fsys, "migrations")
	if err != nil {
		return err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Name() < files[j].Name() })

	for _, f := range files {
		if path.Ext(f.Name()) != ".sql" {
			continue
		}
		b, err := fs.ReadFile(fsys, path.Join("migrations", f.Name()))
		if err != nil {
			return err
		}
		if _, err := db.Exec(string(b)); err != nil {
			return err
		}
	}
	return nil
}
