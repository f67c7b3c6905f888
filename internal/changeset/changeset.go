// Package changeset computes the files changed between HEAD and the
// merge-base with a base reference, for scoping stages to a diff.
package changeset

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/moby/patternmatcher"
	"go.uber.org/zap"

	"github.com/tjalve/aiq/internal/logging"
)

// DefaultBases are tried in order when no base reference is configured.
var DefaultBases = []string{"origin/main", "main", "master"}

// Resolver lists files changed between base's merge-base with HEAD and HEAD.
type Resolver interface {
	ChangedFiles(ctx context.Context, dir, base string) ([]string, error)
}

// Collector resolves the change set for one invocation. Every failure
// degrades to an empty result.
type Collector struct {
	Resolver Resolver
	// Base is the configured base reference; empty means DefaultBases.
	Base     string
	Excludes []string
	Logger   *logging.Logger
}

// Collect returns the sorted, de-duplicated, exclude-filtered change set.
func (c *Collector) Collect(ctx context.Context, dir string) []string {
	log := c.Logger
	if log == nil {
		log = logging.NewNop()
	}
	r := c.Resolver
	if r == nil {
		r = GoGit{}
	}

	bases := DefaultBases
	if c.Base != "" {
		bases = []string{c.Base}
	}

	var files []string
	var lastErr error
	found := false
	for _, base := range bases {
		got, err := r.ChangedFiles(ctx, dir, base)
		if err != nil {
			lastErr = err
			log.Debug(ctx, "change set unavailable for base", zap.String("base", base), zap.Error(err))
			continue
		}
		files, found = got, true
		log.Debug(ctx, "resolved change set", zap.String("base", base), zap.Int("files", len(got)))
		break
	}
	if !found {
		if lastErr != nil {
			log.Info(ctx, "change scoping disabled", zap.Error(lastErr))
		}
		return nil
	}

	filtered, err := Filter(files, c.Excludes)
	if err != nil {
		log.Warn(ctx, "invalid exclude pattern; using unfiltered change set", zap.Error(err))
		filtered = normalize(files)
	}
	return filtered
}

// Filter drops paths matched by any exclude pattern. A leading "*/"
// segment in a pattern matches at any depth, including the repo root.
func Filter(files, excludes []string) ([]string, error) {
	files = normalize(files)
	if len(excludes) == 0 {
		return files, nil
	}
	pm, err := patternmatcher.New(excludes)
	if err != nil {
		return nil, fmt.Errorf("compile excludes: %w", err)
	}

	out := files[:0]
	for _, f := range files {
		excluded, err := matches(pm, f)
		if err != nil {
			return nil, err
		}
		if !excluded {
			out = append(out, f)
		}
	}
	return out, nil
}

// matches tries f rooted at every directory boundary.
func matches(pm *patternmatcher.PatternMatcher, f string) (bool, error) {
	candidates := []string{f, "/" + f}
	for i := 0; i < len(f); i++ {
		if f[i] == '/' {
			candidates = append(candidates, f[i:])
		}
	}
	for _, c := range candidates {
		ok, err := pm.MatchesOrParentMatches(c)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func normalize(files []string) []string {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for _, f := range files {
		f = strings.TrimSpace(filepath.ToSlash(f))
		if f == "" || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// WriteList writes files one per line to a uniquely named file in tempDir
// (os.TempDir if empty). An empty list writes nothing and returns "".
func WriteList(tempDir string, files []string) (string, error) {
	if len(files) == 0 {
		return "", nil
	}
	f, err := os.CreateTemp(tempDir, "aiq-changed-*.txt")
	if err != nil {
		return "", fmt.Errorf("create changed-file list: %w", err)
	}
	_, werr := f.WriteString(strings.Join(files, "\n") + "\n")
	cerr := f.Close()
	if err := errors.Join(werr, cerr); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write changed-file list: %w", err)
	}
	return f.Name(), nil
}
