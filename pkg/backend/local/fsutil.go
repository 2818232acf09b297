package local

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// copyDir replaces dst with a copy of src. Symlinks are dereferenced so the
// copy never contains links back into the source tree.
func copyDir(src, dst string) error {
	if err := os.RemoveAll(dst); err != nil {
		return errors.Wrapf(err, "failed to clear %s", dst)
	}
	return copyTree(src, dst, make(map[string]struct{}))
}

func copyTree(src, dst string, stack map[string]struct{}) error {
	info, err := os.Stat(src)
	if err != nil {
		return errors.Wrapf(err, "source dir does not exist: %s", src)
	}
	if !info.IsDir() {
		return errors.Errorf("source is not a dir: %s", src)
	}

	canon, err := filepath.EvalSymlinks(src)
	if err != nil {
		return errors.Wrapf(err, "failed to resolve %s", src)
	}
	if _, seen := stack[canon]; seen {
		return errors.Errorf("symlink cycle detected at %s", src)
	}
	stack[canon] = struct{}{}
	defer delete(stack, canon)

	if err := os.MkdirAll(dst, info.Mode().Perm()|0o700); err != nil {
		return errors.Wrapf(err, "failed to create %s", dst)
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", src)
	}

	for _, entry := range entries {
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())

		target, err := os.Stat(from)
		if err != nil {
			// broken symlink
			continue
		}
		if target.IsDir() {
			if err := copyTree(from, to, stack); err != nil {
				return err
			}
			continue
		}
		if target.Mode().IsRegular() {
			if err := copyFile(from, to, target.Mode().Perm()); err != nil {
				return err
			}
		}
	}
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	srcFile, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "failed to open %s", src)
	}
	defer srcFile.Close()

	dstFile, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", dst)
	}
	defer dstFile.Close()

	if _, err := io.Copy(dstFile, srcFile); err != nil {
		return errors.Wrapf(err, "failed to copy %s -> %s", src, dst)
	}
	return nil
}

// moveDir renames src to dst, falling back to copy and delete across devices
func moveDir(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyDir(src, dst); err != nil {
		return err
	}
	return errors.Wrapf(os.RemoveAll(src), "failed to remove %s after copy", src)
}

func samePath(a, b string) bool {
	if filepath.Clean(a) == filepath.Clean(b) {
		return true
	}
	ra, errA := filepath.EvalSymlinks(a)
	rb, errB := filepath.EvalSymlinks(b)
	return errA == nil && errB == nil && ra == rb
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// uniqueDirName returns desired, or desired-N, whichever does not exist under root
func uniqueDirName(root, desired string) string {
	candidate := desired
	for n := 2; exists(filepath.Join(root, candidate)); n++ {
		candidate = fmt.Sprintf("%s-%d", desired, n)
	}
	return candidate
}
