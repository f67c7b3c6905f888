package changeset

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNoMergeBase is returned when HEAD and the base share no history.
var ErrNoMergeBase = errors.New("no merge-base")

// GoGit resolves change sets in-process with go-git. It needs no git binary.
type GoGit struct{}

func (GoGit) ChangedFiles(ctx context.Context, dir, base string) ([]string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	headCommit, err := repo.CommitObject(head.Hash())
	if err != nil {
		return nil, fmt.Errorf("load HEAD commit: %w", err)
	}
	baseHash, err := repo.ResolveRevision(plumbing.Revision(base))
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", base, err)
	}
	baseCommit, err := repo.CommitObject(*baseHash)
	if err != nil {
		return nil, fmt.Errorf("load %s commit: %w", base, err)
	}

	bases, err := headCommit.MergeBase(baseCommit)
	if err != nil {
		return nil, fmt.Errorf("merge-base HEAD %s: %w", base, err)
	}
	if len(bases) == 0 {
		return nil, fmt.Errorf("%w between HEAD and %s", ErrNoMergeBase, base)
	}

	from, err := bases[0].Tree()
	if err != nil {
		return nil, err
	}
	to, err := headCommit.Tree()
	if err != nil {
		return nil, err
	}
	changes, err := from.DiffContext(ctx, to)
	if err != nil {
		return nil, fmt.Errorf("diff trees: %w", err)
	}
	return changedNames(changes), nil
}

func changedNames(changes object.Changes) []string {
	names := make([]string, 0, len(changes))
	for _, ch := range changes {
		name := ch.To.Name
		if name == "" {
			name = ch.From.Name
		}
		names = append(names, name)
	}
	return names
}

// ExecGit resolves change sets by shelling out to the git binary.
type ExecGit struct{}

func (ExecGit) ChangedFiles(ctx context.Context, dir, base string) ([]string, error) {
	mb, err := runGit(ctx, dir, "merge-base", "HEAD", base)
	if err != nil {
		return nil, err
	}
	if mb == "" {
		return nil, fmt.Errorf("%w between HEAD and %s", ErrNoMergeBase, base)
	}
	out, err := runGit(ctx, dir, "diff", "--name-only", mb, "HEAD")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return []string{}, nil
	}
	return strings.Split(out, "\n"), nil
}

func runGit(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}
