// Package local implements backend.Backend on the local filesystem. Skills
// are plain directories: the central store holds one directory per skill and
// distribution copies it into every root of every enabled platform.
package local

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/backend"
	"github.com/d0ublecl1ck/skills-manager/pkg/logger"
	"github.com/d0ublecl1ck/skills-manager/pkg/platforms"
	"github.com/d0ublecl1ck/skills-manager/pkg/types/catalog"
)

var _ backend.Backend = (*Backend)(nil)

// CommandRunner runs an external program to completion
type CommandRunner interface {
	Run(ctx context.Context, dir, name string, args ...string) error
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if output, err := cmd.CombinedOutput(); err != nil {
		return errors.Wrapf(err, "%s %s: %s", name, strings.Join(args, " "), strings.TrimSpace(string(output)))
	}
	return nil
}

// Backend is the local filesystem executor
type Backend struct {
	runner      CommandRunner
	attempts    uint
	delay       time.Duration
	maxDelay    time.Duration
	parallelism int
	agentsDir   string
	now         func() time.Time
	newID       func() string
}

// Option configures a Backend
type Option func(*Backend)

// WithRunner replaces the runner used for git, curl, unzip and npx
func WithRunner(r CommandRunner) Option {
	return func(b *Backend) {
		b.runner = r
	}
}

// WithRetry configures how often failing external commands are retried
func WithRetry(attempts uint, delay, maxDelay time.Duration) Option {
	return func(b *Backend) {
		if attempts > 0 {
			b.attempts = attempts
		}
		b.delay = delay
		b.maxDelay = maxDelay
	}
}

// WithParallelism bounds concurrent platform root writes within one distribution
func WithParallelism(n int) Option {
	return func(b *Backend) {
		if n > 0 {
			b.parallelism = n
		}
	}
}

// WithAgentsSkillsDir sets where `npx skills add -g` places installed skills
func WithAgentsSkillsDir(dir string) Option {
	return func(b *Backend) {
		b.agentsDir = dir
	}
}

// WithClock overrides the time source for lastSync/lastUpdate stamps
func WithClock(now func() time.Time) Option {
	return func(b *Backend) {
		b.now = now
	}
}

// New creates a local Backend
func New(opts ...Option) *Backend {
	b := &Backend{
		runner:      execRunner{},
		attempts:    3,
		delay:       time.Second,
		maxDelay:    10 * time.Second,
		parallelism: 4,
		agentsDir:   "~/.agents/skills",
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Backend) stamp() string {
	return catalog.FormatTime(b.now())
}

// storeRoot expands and creates the central store directory
func storeRoot(storagePath string) (string, error) {
	trimmed := strings.TrimSpace(storagePath)
	if trimmed == "" {
		return "", errors.New("storage path is empty")
	}
	root := filepath.Clean(platforms.ExpandTilde(trimmed))
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", errors.Wrapf(err, "failed to create store %s", root)
	}
	return root, nil
}

// run executes an external command, retrying transient failures
func (b *Backend) run(ctx context.Context, label, dir, name string, args ...string) error {
	return b.retry(ctx, label, func() error {
		return b.runner.Run(ctx, dir, name, args...)
	})
}

func (b *Backend) retry(ctx context.Context, label string, fn func() error) error {
	return retry.Do(
		fn,
		retry.RetryIf(func(err error) bool {
			return !errors.Is(err, exec.ErrNotFound)
		}),
		retry.Attempts(b.attempts),
		retry.Delay(b.delay),
		retry.DelayType(retry.BackOffDelay),
		retry.MaxDelay(b.maxDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			logger.G(ctx).WithError(err).WithField("attempt", n+1).Warnf("%s failed, retrying", label)
		}),
	)
}
