package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/d0ublecl1ck/skills-manager/pkg/backend/local"
	"github.com/d0ublecl1ck/skills-manager/pkg/bulk"
	"github.com/d0ublecl1ck/skills-manager/pkg/catalog"
	"github.com/d0ublecl1ck/skills-manager/pkg/config"
	"github.com/d0ublecl1ck/skills-manager/pkg/db"
	"github.com/d0ublecl1ck/skills-manager/pkg/logger"
	"github.com/d0ublecl1ck/skills-manager/pkg/persist"
	"github.com/d0ublecl1ck/skills-manager/pkg/platforms"
	"github.com/d0ublecl1ck/skills-manager/pkg/presenter"
	"github.com/d0ublecl1ck/skills-manager/pkg/reconcile"
	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// app is the wired state of one skillsm invocation
type app struct {
	cfg       config.Config
	repo      *persist.Repository
	settings  persist.Settings
	platforms []catalogtypes.Platform

	store   *catalog.Store
	service *reconcile.Service
	manager *catalog.Manager
	runner  *bulk.Runner

	stopSave func()
}

// storagePath is the effective central store location
func (a *app) storagePath() string {
	return a.cfg.ResolveStoragePath(a.settings.StoragePath)
}

func (a *app) retentionDays() int {
	return a.cfg.ResolveRetentionDays(a.settings.RecycleBinRetentionDays)
}

// openApp loads persisted state and runs the startup sequence: resolve the
// effective platforms, sweep expired trash, then make sure every tracked skill
// has a store directory. Catalog changes are saved as they happen.
func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	dbPath, err := resolveDBPath(cfg)
	if err != nil {
		return nil, err
	}

	repo, err := persist.Open(ctx, dbPath)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, repo: repo, stopSave: func() {}}
	if err := a.load(ctx); err != nil {
		repo.Close()
		return nil, err
	}
	return a, nil
}

// resolveDBPath prefers the configured database path over the default one
func resolveDBPath(cfg config.Config) (string, error) {
	if cfg.DBPath != "" {
		return cfg.DBPath, nil
	}
	return db.DefaultDBPath()
}

func (a *app) load(ctx context.Context) error {
	settings, err := a.repo.LoadSettings(ctx)
	if err != nil {
		return err
	}
	a.settings = settings

	stored, err := a.repo.LoadPlatforms(ctx)
	if err != nil {
		return err
	}
	a.platforms = config.ApplyPlatforms(stored, a.cfg.Platforms)

	state, err := a.repo.LoadCatalog(ctx)
	if err != nil {
		return err
	}

	a.store = catalog.NewStore()
	a.store.Load(state)
	a.stopSave = a.repo.AutoSave(ctx, a.store)

	b := local.New()
	a.service = reconcile.NewService(a.store, b, reconcile.StaticEnvironment{Platforms: a.platforms, Path: a.storagePath()})
	a.manager = catalog.NewManager(a.store, a.service)
	a.runner = bulk.NewRunner(a.manager, a.service, bulk.WithObserver(newProgressPrinter().observe))

	if _, err := a.manager.CleanExpiredTrash(ctx, a.retentionDays()); err != nil {
		logger.G(ctx).WithError(err).Warn("failed to remove expired skills from disk")
	}
	if err := a.service.Bootstrap(ctx); err != nil {
		logger.G(ctx).WithError(err).Warn("central store bootstrap failed")
	}
	return nil
}

// Close stops saving and closes the database. The catalog was saved on
// every change, so nothing is flushed here.
func (a *app) Close() {
	a.stopSave()
	a.repo.Close()
}

// mustOpenApp opens the app or exits
func mustOpenApp(ctx context.Context) *app {
	a, err := openApp(ctx)
	if err != nil {
		presenter.Error(err, "Failed to load skillsm state")
		os.Exit(1)
	}
	return a
}

// findSkill looks a skill up by id first and then by case-insensitive name
func findSkill(list []catalogtypes.Skill, ref string) (catalogtypes.Skill, error) {
	for _, sk := range list {
		if sk.ID == ref {
			return sk, nil
		}
	}
	key := catalogtypes.NormalizeName(ref)
	for _, sk := range list {
		if catalogtypes.NormalizeName(sk.Name) == key {
			return sk, nil
		}
	}
	return catalogtypes.Skill{}, errors.Wrapf(catalog.ErrSkillNotFound, "%q", ref)
}

// parseAgents validates a list of platform ids, accepting comma separated values
func parseAgents(values []string) ([]catalogtypes.AgentID, error) {
	out := []catalogtypes.AgentID{}
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			id := catalogtypes.AgentID(strings.TrimSpace(part))
			if id == "" {
				continue
			}
			if !platforms.IsKnown(id) {
				return nil, errors.Wrapf(platforms.ErrUnknownPlatform, "%q", id)
			}
			out = append(out, id)
		}
	}
	return out, nil
}

// progressPrinter prints progress entries of bulk runs when they change
type progressPrinter struct {
	mu   sync.Mutex
	seen map[string]string
}

func newProgressPrinter() *progressPrinter {
	return &progressPrinter{seen: make(map[string]string)}
}

func (p *progressPrinter) observe(channel string, runID uint64, entries []catalogtypes.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ev := range entries {
		key := fmt.Sprintf("%s/%d/%s", channel, runID, ev.ID)
		state := fmt.Sprintf("%s|%s", ev.Status, ev.Label)
		if p.seen[key] == state {
			continue
		}
		p.seen[key] = state
		presenter.Progress(ev)
	}
}
