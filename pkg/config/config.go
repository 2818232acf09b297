// Package config reads skillsm configuration from viper: the config file,
// SKILLSM_* environment variables and bound command line flags.
package config

import (
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/d0ublecl1ck/skills-manager/pkg/catalog"
	"github.com/d0ublecl1ck/skills-manager/pkg/platforms"
	catalogtypes "github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

// EnvPrefix is the prefix of every environment variable read by skillsm
const EnvPrefix = "SKILLSM"

// Configuration keys
const (
	KeyStoragePath   = "storage_path"
	KeyRetentionDays = "recycle_bin_retention_days"
	KeyDBPath        = "db_path"
	KeyLogLevel      = "log_level"
	KeyLogFormat     = "log_format"
	KeyWatchDebounce = "watch.debounce"
	KeyTrashSchedule = "watch.trash_schedule"
	KeyPlatforms     = "platforms"
)

// WatchConfig configures the watch command
type WatchConfig struct {
	// Debounce is the quiet period in milliseconds before a change burst triggers detection
	Debounce      int    `mapstructure:"debounce"`
	TrashSchedule string `mapstructure:"trash_schedule"`
}

// DebounceDuration returns Debounce as a duration
func (w WatchConfig) DebounceDuration() time.Duration {
	return time.Duration(w.Debounce) * time.Millisecond
}

// PlatformOverride adjusts one platform of the effective list. Unset fields
// leave the persisted value alone.
type PlatformOverride struct {
	ID          catalogtypes.AgentID `mapstructure:"id"`
	CurrentPath string               `mapstructure:"current_path"`
	Enabled     *bool                `mapstructure:"enabled"`
}

// Config is the resolved configuration
type Config struct {
	StoragePath             string             `mapstructure:"storage_path"`
	RecycleBinRetentionDays int                `mapstructure:"recycle_bin_retention_days"`
	DBPath                  string             `mapstructure:"db_path"`
	LogLevel                string             `mapstructure:"log_level"`
	LogFormat               string             `mapstructure:"log_format"`
	Watch                   WatchConfig        `mapstructure:"watch"`
	Platforms               []PlatformOverride `mapstructure:"-"`
}

// Init sets defaults, the environment prefix and the config file locations
// on v. A missing config file is not an error.
func Init(v *viper.Viper) error {
	v.SetDefault(KeyStoragePath, "")
	v.SetDefault(KeyDBPath, "")
	v.SetDefault(KeyRetentionDays, 0)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "text")
	v.SetDefault(KeyWatchDebounce, 500)
	v.SetDefault(KeyTrashSchedule, "@hourly")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.skillsm")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return errors.Wrap(err, "failed to read config file")
	}
	return nil
}

// Load decodes the configuration held by v
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, errors.Wrap(err, "failed to unmarshal configuration")
	}

	overrides, err := decodePlatforms(v.Get(KeyPlatforms))
	if err != nil {
		return cfg, err
	}
	cfg.Platforms = overrides

	if cfg.Watch.Debounce < 0 {
		return cfg, errors.Errorf("watch debounce cannot be negative: %d", cfg.Watch.Debounce)
	}
	if cfg.Watch.TrashSchedule != "" {
		if _, err := cron.ParseStandard(cfg.Watch.TrashSchedule); err != nil {
			return cfg, errors.Wrapf(err, "invalid trash schedule %q", cfg.Watch.TrashSchedule)
		}
	}
	return cfg, nil
}

func decodePlatforms(raw any) ([]PlatformOverride, error) {
	if raw == nil {
		return nil, nil
	}

	var out []PlatformOverride
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create platform decoder")
	}
	if err := decoder.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode platform overrides")
	}

	for _, o := range out {
		if !platforms.IsKnown(o.ID) {
			return nil, errors.Wrapf(platforms.ErrUnknownPlatform, "platform override %q", o.ID)
		}
	}
	return out, nil
}

// ApplyPlatforms returns list with the overrides applied
func ApplyPlatforms(list []catalogtypes.Platform, overrides []PlatformOverride) []catalogtypes.Platform {
	out := make([]catalogtypes.Platform, len(list))
	copy(out, list)
	for _, o := range overrides {
		for i := range out {
			if out[i].ID != o.ID {
				continue
			}
			if path := strings.TrimSpace(o.CurrentPath); path != "" {
				out[i].CurrentPath = path
			}
			if o.Enabled != nil {
				out[i].Enabled = *o.Enabled
			}
		}
	}
	return out
}

// ResolveStoragePath returns the configured store location, falling back to
// the persisted one
func (c Config) ResolveStoragePath(persisted string) string {
	if path := strings.TrimSpace(c.StoragePath); path != "" {
		return path
	}
	return persisted
}

// ResolveRetentionDays picks the retention period the same way as the
// storage path, clamped to at least one day
func (c Config) ResolveRetentionDays(persisted int) int {
	if c.RecycleBinRetentionDays != 0 {
		return catalog.ClampRetention(c.RecycleBinRetentionDays)
	}
	return catalog.ClampRetention(persisted)
}
