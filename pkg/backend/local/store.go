package local

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/d0ublecl1ck/skills-manager/pkg/logger"
	"github.com/d0ublecl1ck/skills-manager/pkg/platforms"
)

// ResetStore deletes the central store. Paths that could only be a mistake
// (empty, filesystem root, home directory) are refused.
func (b *Backend) ResetStore(ctx context.Context, storagePath string) error {
	trimmed := strings.TrimSpace(storagePath)
	if trimmed == "" {
		return errors.New("storage path is empty")
	}
	root := filepath.Clean(platforms.ExpandTilde(trimmed))
	if root == string(filepath.Separator) {
		return errors.Errorf("refusing to delete %s", root)
	}
	if home, err := os.UserHomeDir(); err == nil && samePath(root, home) {
		return errors.Errorf("refusing to delete home directory %s", root)
	}

	if err := os.RemoveAll(root); err != nil {
		return errors.Wrapf(err, "failed to delete store %s", root)
	}
	logger.G(ctx).WithField("store", root).Info("central store deleted")
	return nil
}

// MigrateStore moves every entry of the store at from into to, then removes
// from. Nothing is moved when any entry already exists at the destination.
func (b *Backend) MigrateStore(ctx context.Context, fromStoragePath, toStoragePath string) error {
	if strings.TrimSpace(fromStoragePath) == "" || strings.TrimSpace(toStoragePath) == "" {
		return errors.New("storage path is empty")
	}
	from := filepath.Clean(platforms.ExpandTilde(strings.TrimSpace(fromStoragePath)))
	to := filepath.Clean(platforms.ExpandTilde(strings.TrimSpace(toStoragePath)))

	if samePath(from, to) {
		return nil
	}
	if rel, err := filepath.Rel(from, to); err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return errors.Errorf("cannot migrate store into itself: %s is inside %s", to, from)
	}

	if err := os.MkdirAll(to, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", to)
	}
	if !exists(from) {
		return nil
	}

	entries, err := os.ReadDir(from)
	if err != nil {
		return errors.Wrapf(err, "failed to read store %s", from)
	}

	var conflicts []string
	for _, e := range entries {
		if exists(filepath.Join(to, e.Name())) {
			conflicts = append(conflicts, e.Name())
		}
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return errors.Errorf("destination already contains: %s", strings.Join(conflicts, ", "))
	}

	for _, e := range entries {
		src := filepath.Join(from, e.Name())
		dst := filepath.Join(to, e.Name())
		if e.IsDir() {
			err = moveDir(src, dst)
		} else {
			err = moveFile(src, dst)
		}
		if err != nil {
			return errors.Wrapf(err, "failed to move %s", e.Name())
		}
	}

	if err := os.RemoveAll(from); err != nil {
		return errors.Wrapf(err, "failed to remove old store %s", from)
	}
	logger.G(ctx).WithField("from", from).WithField("to", to).Info("central store migrated")
	return nil
}

func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	info, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "failed to stat %s", src)
	}
	if err := copyFile(src, dst, info.Mode().Perm()); err != nil {
		return err
	}
	return os.Remove(src)
}
