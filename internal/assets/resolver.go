// Package assets locates the quality scripts a run executes: a dev cache
// slot warmed from ./quality, the assets embedded in the binary, a
// version-keyed cache slot, or the project's own ./quality directory.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/go-homedir"
	"go.uber.org/zap"

	"github.com/tjalve/aiq/internal/logging"
)

const (
	// EntryPointName is the aggregate entry point at the root of a quality dir.
	EntryPointName = "check.sh"
	stagesDirName  = "stages"
	launcherDir    = "bin"
	qualityDirName = "quality"
	cacheDirName   = "aiq-cli"
	// DevSlot labels the cache slot warmed in developer mode.
	DevSlot = "dev-local"
)

// ErrNoAssets is returned when no source yields a usable entry point.
var ErrNoAssets = errors.New("no quality assets available")

// Source identifies where a Location came from.
type Source int

const (
	SourceDev Source = iota + 1
	SourcePackaged
	SourceCache
	SourceLocal
)

func (s Source) String() string {
	switch s {
	case SourceDev:
		return "dev"
	case SourcePackaged:
		return "packaged"
	case SourceCache:
		return "cache"
	case SourceLocal:
		return "local"
	}
	return "unknown"
}

// Location is the resolved quality-scripts directory for one invocation.
type Location struct {
	Root       string
	EntryPoint string
	StagesDir  string
	Source     Source
}

func locationAt(root string, src Source) *Location {
	return &Location{
		Root:       root,
		EntryPoint: filepath.Join(root, EntryPointName),
		StagesDir:  filepath.Join(root, stagesDirName),
		Source:     src,
	}
}

// Resolver resolves a Location. All fields are inputs for one invocation.
type Resolver struct {
	// Packaged is the asset tree shipped with the binary; nil if none.
	Packaged fs.FS
	// Version keys the cache slot for packaged assets.
	Version string
	// CacheRoot is the directory holding per-version slots.
	CacheRoot string
	// LocalDir is the project's own quality directory.
	LocalDir string
	// DevMode enables warming the dev slot from LocalDir.
	DevMode bool
	Logger  *logging.Logger
}

// Resolve tries each source in priority order and returns the first usable
// one:
//
//  1. dev mode with a local quality dir: copy into the dev slot
//  2. packaged assets: force-refresh the version slot from them
//  3. an existing version slot with an entry point
//  4. the local quality dir, used in place
func (r *Resolver) Resolve(ctx context.Context) (*Location, error) {
	log := r.Logger
	if log == nil {
		log = logging.NewNop()
	}

	if r.DevMode && isDir(r.LocalDir) {
		loc, err := r.warmDevSlot()
		if err != nil {
			log.Warn(ctx, "dev cache warm-up failed", zap.Error(err))
		} else if isFile(loc.EntryPoint) {
			log.Debug(ctx, "using dev cache slot", zap.String("root", loc.Root))
			return loc, nil
		}
	}

	if r.Packaged != nil {
		loc, err := r.refreshPackagedSlot()
		if err != nil {
			log.Warn(ctx, "refreshing packaged assets failed", zap.Error(err))
		} else if isFile(loc.EntryPoint) {
			log.Debug(ctx, "using packaged assets", zap.String("root", loc.Root))
			return loc, nil
		}
	}

	if loc := locationAt(r.slotDir(r.version()), SourceCache); isFile(loc.EntryPoint) {
		log.Debug(ctx, "using cached assets", zap.String("root", loc.Root))
		return loc, nil
	}

	if loc := locationAt(r.LocalDir, SourceLocal); r.LocalDir != "" && isFile(loc.EntryPoint) {
		log.Debug(ctx, "using local quality directory", zap.String("root", loc.Root))
		return loc, nil
	}

	return nil, fmt.Errorf("%w (tried local %s, cache %s, embedded)",
		ErrNoAssets, r.LocalDir, r.slotDir(r.version()))
}

func (r *Resolver) version() string {
	if r.Version == "" {
		return "dev"
	}
	return r.Version
}

// slotDir returns <CacheRoot>/<label>/quality.
func (r *Resolver) slotDir(label string) string {
	return filepath.Join(r.CacheRoot, label, qualityDirName)
}

func (r *Resolver) warmDevSlot() (*Location, error) {
	dst := r.slotDir(DevSlot)
	src := os.DirFS(r.LocalDir)
	skip := func(p string) bool {
		return strings.Contains(p, "node_modules")
	}
	if err := replaceTree(src, dst, skip); err != nil {
		return nil, err
	}

	loc := locationAt(dst, SourceDev)
	if err := refreshExecBits(loc.Root); err != nil {
		return nil, err
	}
	return loc, nil
}

func (r *Resolver) refreshPackagedSlot() (*Location, error) {
	if _, err := fs.Stat(r.Packaged, EntryPointName); err != nil {
		return nil, fmt.Errorf("packaged assets lack %s: %w", EntryPointName, err)
	}
	dst := r.slotDir(r.version())
	if err := replaceTree(r.Packaged, dst, nil); err != nil {
		return nil, err
	}
	return locationAt(dst, SourcePackaged), nil
}

// refreshExecBits marks the entry point and the launcher scripts under
// bin/ executable.
func refreshExecBits(root string) error {
	targets := []string{filepath.Join(root, EntryPointName)}
	launchers, _ := filepath.Glob(filepath.Join(root, launcherDir, "*.sh"))
	targets = append(targets, launchers...)
	for _, p := range targets {
		if !isFile(p) {
			continue
		}
		if err := os.Chmod(p, 0o755); err != nil {
			return fmt.Errorf("chmod %s: %w", p, err)
		}
	}
	return nil
}

// DefaultCacheRoot returns the cache root: override if set, else
// $XDG_CACHE_HOME/aiq-cli, else ~/.cache/aiq-cli.
func DefaultCacheRoot(override string) (string, error) {
	if override != "" {
		return homedir.Expand(override)
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return filepath.Join(xdg, cacheDirName), nil
	}
	home, err := homedir.Dir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".cache", cacheDirName), nil
}

func isFile(p string) bool {
	info, err := os.Stat(p)
	return err == nil && !info.IsDir()
}

func isDir(p string) bool {
	if p == "" {
		return false
	}
	info, err := os.Stat(p)
	return err == nil && info.IsDir()
}
