package assets

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// replaceTree copies src into a fresh sibling of dst and swaps it into
// place, so an interrupted copy never leaves a half-written slot at dst.
// skip, if set, excludes slash-separated paths (and their subtrees).
func replaceTree(src fs.FS, dst string, skip func(string) bool) error {
	parent := filepath.Dir(dst)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", parent, err)
	}
	staging, err := os.MkdirTemp(parent, ".staging-*")
	if err != nil {
		return fmt.Errorf("create staging dir: %w", err)
	}
	defer os.RemoveAll(staging)

	if err := copyTree(src, staging, skip); err != nil {
		return err
	}
	if err := os.RemoveAll(dst); err != nil {
		return fmt.Errorf("remove stale slot %s: %w", dst, err)
	}
	if err := os.Rename(staging, dst); err != nil {
		return fmt.Errorf("rename %s -> %s: %w", staging, dst, err)
	}
	return os.Chmod(dst, 0o755)
}

func copyTree(src fs.FS, dst string, skip func(string) bool) error {
	return fs.WalkDir(src, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p != "." && skip != nil && skip(p) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		target := filepath.Join(dst, filepath.FromSlash(p))
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(src, p, target, fileMode(p, info.Mode()))
	})
}

// fileMode keeps executable bits from the source and marks shell scripts
// executable, since embedded files carry no permissions.
func fileMode(name string, src fs.FileMode) fs.FileMode {
	if src&0o111 != 0 || strings.HasSuffix(path.Base(name), ".sh") {
		return 0o755
	}
	return 0o644
}

func copyFile(src fs.FS, name, target string, mode fs.FileMode) error {
	in, err := src.Open(name)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer in.Close()

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", name, err)
	}
	if err := out.Close(); err != nil {
		return err
	}
	// OpenFile honors the umask; chmod pins the intended mode.
	return os.Chmod(target, mode)
}
