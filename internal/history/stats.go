package history

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/tjalve/aiq/internal/stage"
)

// ModeStats holds pass rate and duration stats for one run mode.
type ModeStats struct {
	Mode    string  `json:"mode"`
	Count   int     `json:"count"`
	PassPct float64 `json:"pass_pct"`
	Avg     float64 `json:"avg_seconds"`
	P50     float64 `json:"p50_seconds"`
	P95     float64 `json:"p95_seconds"`
}

// StageFailureRate holds how often a stage failed when it was planned.
type StageFailureRate struct {
	Stage      int     `json:"stage"`
	Name       string  `json:"name"`
	Planned    int     `json:"planned"`
	Failed     int     `json:"failed"`
	FailurePct float64 `json:"failure_pct"`
}

// Stats summarizes a window of runs.
type Stats struct {
	Runs   int                `json:"runs"`
	Modes  []ModeStats        `json:"modes"`
	Stages []StageFailureRate `json:"stages"`
}

// Stats summarizes runs started at or after since. A zero since means all.
func (d *DB) Stats(ctx context.Context, since time.Time) (Stats, error) {
	runs, err := d.Recent(ctx, 0)
	if err != nil {
		return Stats{}, fmt.Errorf("query stats: %w", err)
	}
	if !since.IsZero() {
		kept := runs[:0]
		for _, r := range runs {
			if !r.StartedAt.Before(since) {
				kept = append(kept, r)
			}
		}
		runs = kept
	}
	return Summarize(runs), nil
}

// Summarize computes Stats over runs. Stages that were never planned are
// omitted; results are ordered by mode name and stage id.
func Summarize(runs []Run) Stats {
	st := Stats{Runs: len(runs), Modes: []ModeStats{}, Stages: []StageFailureRate{}}

	durations := make(map[string][]float64)
	passes := make(map[string]int)
	planned := make(map[int]int)
	failed := make(map[int]int)
	for _, r := range runs {
		durations[r.Mode] = append(durations[r.Mode], r.Duration.Seconds())
		if r.Passed() {
			passes[r.Mode]++
		}
		for _, id := range r.Plan {
			planned[id]++
		}
		for _, id := range r.FailedStages {
			failed[id]++
		}
		// A failed single-stage run names no failed stages of its own.
		if r.Mode == "single" && !r.Passed() && len(r.FailedStages) == 0 {
			for _, id := range r.Plan {
				failed[id]++
			}
		}
	}

	for mode, values := range durations {
		sort.Float64s(values)
		st.Modes = append(st.Modes, ModeStats{
			Mode:    mode,
			Count:   len(values),
			PassPct: pct(passes[mode], len(values)),
			Avg:     avg(values),
			P50:     percentile(values, 50),
			P95:     percentile(values, 95),
		})
	}
	sort.Slice(st.Modes, func(i, j int) bool { return st.Modes[i].Mode < st.Modes[j].Mode })

	for id, n := range planned {
		st.Stages = append(st.Stages, StageFailureRate{
			Stage:      id,
			Name:       stage.Name(id),
			Planned:    n,
			Failed:     failed[id],
			FailurePct: pct(failed[id], n),
		})
	}
	sort.Slice(st.Stages, func(i, j int) bool { return st.Stages[i].Stage < st.Stages[j].Stage })
	return st
}

// --- helpers ---

func avg(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return math.Round(sum/float64(len(values))*10) / 10
}

func percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	rank := float64(p) / 100.0 * float64(len(sorted)-1)
	lower := int(math.Floor(rank))
	upper := int(math.Ceil(rank))
	if lower == upper || upper >= len(sorted) {
		return math.Round(sorted[lower]*10) / 10
	}
	weight := rank - float64(lower)
	return math.Round((sorted[lower]*(1-weight)+sorted[upper]*weight)*10) / 10
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
