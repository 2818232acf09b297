package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/db"
)

// Migration20260301090001CreateStoreRelocations records every successful move
// of the central store
func Migration20260301090001CreateStoreRelocations() db.Migration {
	return db.Migration{
		Version:     20260301090001,
		Description: "Create store_relocations table",
		Up: func(tx *sql.Tx) error {
			if _, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS store_relocations (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					from_path TEXT NOT NULL,
					to_path TEXT NOT NULL,
					relocated_at DATETIME NOT NULL
				)
			`); err != nil {
				return errors.Wrap(err, "failed to create store_relocations table")
			}
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_store_relocations_relocated_at ON store_relocations(relocated_at DESC)`)
			return errors.Wrap(err, "failed to create relocation index")
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP TABLE IF EXISTS store_relocations")
			return errors.Wrap(err, "failed to drop store_relocations table")
		},
	}
}
