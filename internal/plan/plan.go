// Package plan merges configuration, progress and invocation flags into the
// ordered list of stages a run executes.
package plan

import (
	"github.com/tjalve/aiq/internal/config"
	"github.com/tjalve/aiq/internal/stage"
)

// Options are the per-invocation plan selectors. Nil pointers mean "not set".
type Options struct {
	// Only reduces the plan to a single stage, bypassing order and bounds.
	Only *int
	// From drops stages below the bound.
	From *int
	// UpTo drops stages above the bound.
	UpTo *int
	// Disable adds stages to the persisted disabled sets for this invocation.
	Disable []int
}

// Compute returns the ordered, deduplicated stage plan.
//
// The base order is cfg.Stages.Order, else prog.Order, else the canonical
// order; unknown identifiers are dropped. Bounds apply next, then Only
// replaces the whole plan. Disabled stages are removed last, so Only on a
// disabled stage yields an empty plan.
func Compute(cfg config.Config, prog config.Progress, opts Options) []int {
	order := cfg.Stages.Order
	if order == nil {
		order = prog.Order
	}
	if order == nil {
		order = stage.Canonical()
	}

	disabled := make(map[int]bool)
	for _, set := range [][]int{cfg.Stages.Disabled, prog.Disabled, opts.Disable} {
		for _, id := range set {
			disabled[id] = true
		}
	}

	target := make([]int, 0, len(order))
	seen := make(map[int]bool)
	for _, id := range order {
		if !stage.Valid(id) || seen[id] {
			continue
		}
		seen[id] = true
		if opts.From != nil && id < *opts.From {
			continue
		}
		if opts.UpTo != nil && id > *opts.UpTo {
			continue
		}
		target = append(target, id)
	}

	if opts.Only != nil {
		target = target[:0]
		if stage.Valid(*opts.Only) {
			target = append(target, *opts.Only)
		}
	}

	out := make([]int, 0, len(target))
	for _, id := range target {
		if !disabled[id] {
			out = append(out, id)
		}
	}
	return out
}
