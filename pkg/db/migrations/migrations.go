// Package migrations contains the state database migrations.
// Migrations use Rails-style timestamp versioning (YYYYMMDDHHmmss).
package migrations

import (
	"github.com/d0ublecl1ck/skills-manager/pkg/db"
)

// All returns all registered migrations in the correct order.
// New migrations should be added to this list.
func All() []db.Migration {
	return []db.Migration{
		Migration20260301090000CreateDocuments(),
		Migration20260301090001CreateStoreRelocations(),
	}
}
