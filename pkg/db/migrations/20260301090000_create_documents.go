package migrations

import (
	"database/sql"

	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/db"
)

// Migration20260301090000CreateDocuments creates the versioned document table
// holding the catalog, platform list and settings
func Migration20260301090000CreateDocuments() db.Migration {
	return db.Migration{
		Version:     20260301090000,
		Description: "Create documents table",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
				CREATE TABLE IF NOT EXISTS documents (
					key TEXT PRIMARY KEY,
					version INTEGER NOT NULL,
					data TEXT NOT NULL,
					updated_at DATETIME NOT NULL
				)
			`)
			return errors.Wrap(err, "failed to create documents table")
		},
		Down: func(tx *sql.Tx) error {
			_, err := tx.Exec("DROP TABLE IF EXISTS documents")
			return errors.Wrap(err, "failed to drop documents table")
		},
	}
}
