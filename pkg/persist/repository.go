package persist

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/catalog"
	"github.com/d0ublecl1ck/skills-manager/pkg/db"
	"github.com/d0ublecl1ck/skills-manager/pkg/db/migrations"
	"github.com/d0ublecl1ck/skills-manager/pkg/logger"
	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// Document keys
const (
	KeyCatalog   = "catalog"
	KeyPlatforms = "platforms"
	KeySettings  = "settings"
)

type document struct {
	Key       string    `db:"key"`
	Version   int       `db:"version"`
	Data      string    `db:"data"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Relocation is one recorded move of the central store
type Relocation struct {
	ID          int64     `db:"id" json:"id"`
	FromPath    string    `db:"from_path" json:"fromPath"`
	ToPath      string    `db:"to_path" json:"toPath"`
	RelocatedAt time.Time `db:"relocated_at" json:"relocatedAt"`
}

// Repository reads and writes documents in the state database
type Repository struct {
	db  *sqlx.DB
	now func() time.Time
}

// Open opens the state database at dbPath, applying pending migrations
func Open(ctx context.Context, dbPath string) (*Repository, error) {
	sqlDB, err := db.OpenMigrated(ctx, dbPath, migrations.All())
	if err != nil {
		return nil, errors.Wrap(err, "failed to open state database")
	}
	return &Repository{db: sqlDB, now: time.Now}, nil
}

// Close closes the database
func (r *Repository) Close() error {
	return r.db.Close()
}

// load returns the stored document, or version 0 with nil data when absent
func (r *Repository) load(ctx context.Context, key string) (int, []byte, error) {
	var doc document
	err := r.db.GetContext(ctx, &doc, "SELECT key, version, data, updated_at FROM documents WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, errors.Wrapf(err, "failed to load %s document", key)
	}
	return doc.Version, []byte(doc.Data), nil
}

func (r *Repository) save(ctx context.Context, key string, version int, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s document", key)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO documents (key, version, data, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET version = excluded.version, data = excluded.data, updated_at = excluded.updated_at
	`, key, version, string(data), r.now().UTC())
	return errors.Wrapf(err, "failed to save %s document", key)
}

// LoadCatalog returns the stored catalog migrated to the current version.
// A missing document yields an empty catalog.
func (r *Repository) LoadCatalog(ctx context.Context) (catalog.State, error) {
	version, data, err := r.load(ctx, KeyCatalog)
	if err != nil {
		return catalog.State{}, err
	}
	if version > 0 && version < CatalogVersion {
		logger.G(ctx).WithField("from", version).WithField("to", CatalogVersion).Info("migrating catalog document")
	}
	return MigrateCatalog(version, data)
}

// SaveCatalog writes the catalog at the current version
func (r *Repository) SaveCatalog(ctx context.Context, state catalog.State) error {
	return r.save(ctx, KeyCatalog, CatalogVersion, state)
}

// LoadPlatforms returns the effective platform list
func (r *Repository) LoadPlatforms(ctx context.Context) ([]catalogtypes.Platform, error) {
	version, data, err := r.load(ctx, KeyPlatforms)
	if err != nil {
		return nil, err
	}
	return MigratePlatforms(version, data)
}

// SavePlatforms writes the platform list
func (r *Repository) SavePlatforms(ctx context.Context, list []catalogtypes.Platform) error {
	return r.save(ctx, KeyPlatforms, PlatformsVersion, list)
}

// LoadSettings returns the stored settings with defaults applied
func (r *Repository) LoadSettings(ctx context.Context) (Settings, error) {
	version, data, err := r.load(ctx, KeySettings)
	if err != nil {
		return Settings{}, err
	}
	return MigrateSettings(version, data)
}

// SaveSettings writes the settings
func (r *Repository) SaveSettings(ctx context.Context, settings Settings) error {
	settings.RecycleBinRetentionDays = catalog.ClampRetention(settings.RecycleBinRetentionDays)
	return r.save(ctx, KeySettings, SettingsVersion, settings)
}

// RecordRelocation appends a store move to the relocation history
func (r *Repository) RecordRelocation(ctx context.Context, from, to string) error {
	_, err := r.db.ExecContext(ctx,
		"INSERT INTO store_relocations (from_path, to_path, relocated_at) VALUES (?, ?, ?)",
		from, to, r.now().UTC())
	return errors.Wrap(err, "failed to record store relocation")
}

// Relocations returns the relocation history, newest first
func (r *Repository) Relocations(ctx context.Context) ([]Relocation, error) {
	var out []Relocation
	err := r.db.SelectContext(ctx, &out,
		"SELECT id, from_path, to_path, relocated_at FROM store_relocations ORDER BY relocated_at DESC, id DESC")
	if err != nil {
		return nil, errors.Wrap(err, "failed to list store relocations")
	}
	return out, nil
}

// AutoSave persists the catalog after every store transition until the
// returned function is called. Save failures are logged.
func (r *Repository) AutoSave(ctx context.Context, store *catalog.Store) func() {
	return store.Subscribe(func(state catalog.State) {
		if err := r.SaveCatalog(ctx, state); err != nil {
			logger.G(ctx).WithError(err).Error("failed to persist catalog")
		}
	})
}
