// Package report writes user-facing diagnostics: tagged error/info/warn
// lines and the re-run guidance shown after a failed run.
package report

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/tjalve/aiq/internal/stage"
)

// Reporter writes diagnostics to W.
type Reporter struct {
	W io.Writer

	errTag  *color.Color
	warnTag *color.Color
	infoTag *color.Color
	cmd     *color.Color
}

// New returns a Reporter writing to w. Color is used only when w is a
// terminal and color is not globally disabled.
func New(w io.Writer) *Reporter {
	return NewWithColor(w, isTerminal(w) && !color.NoColor)
}

// NewWithColor returns a Reporter with color forced on or off.
func NewWithColor(w io.Writer, enabled bool) *Reporter {
	r := &Reporter{
		W:       w,
		errTag:  color.New(color.FgRed, color.Bold),
		warnTag: color.New(color.FgYellow),
		infoTag: color.New(color.FgCyan),
		cmd:     color.New(color.Bold),
	}
	for _, c := range []*color.Color{r.errTag, r.warnTag, r.infoTag, r.cmd} {
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return r
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// Errorf writes an [ERROR] line.
func (r *Reporter) Errorf(format string, args ...any) {
	fmt.Fprintf(r.W, "%s %s\n", r.errTag.Sprint("[ERROR]"), fmt.Sprintf(format, args...))
}

// Warnf writes a [WARN] line.
func (r *Reporter) Warnf(format string, args ...any) {
	fmt.Fprintf(r.W, "%s %s\n", r.warnTag.Sprint("[WARN]"), fmt.Sprintf(format, args...))
}

// Infof writes an [INFO] line.
func (r *Reporter) Infof(format string, args ...any) {
	fmt.Fprintf(r.W, "%s %s\n", r.infoTag.Sprint("[INFO]"), fmt.Sprintf(format, args...))
}

// UnknownStage reports a stage id with no catalog entry or no script.
func (r *Reporter) UnknownStage(id int) {
	r.Errorf("Unknown or missing stage: %d", id)
}

// StageFailed prints guidance after a single-stage run exits non-zero.
func (r *Reporter) StageFailed(id int) {
	fmt.Fprintln(r.W)
	fmt.Fprintln(r.W, "To debug this stage with verbose output:")
	fmt.Fprintf(r.W, "  %s\n", r.cmd.Sprintf("aiq run --only %d --verbose", id))
	fmt.Fprintln(r.W)
	fmt.Fprintln(r.W, "To run all stages:")
	fmt.Fprintf(r.W, "  %s\n", r.cmd.Sprint("aiq run"))
}

// FailedStages prints one re-run hint per failed stage. Nothing is printed
// for an empty list.
func (r *Reporter) FailedStages(ids []int) {
	if len(ids) == 0 {
		return
	}
	fmt.Fprintln(r.W)
	fmt.Fprintln(r.W, "To debug failed stages:")
	for _, id := range ids {
		fmt.Fprintf(r.W, "  %s  # Debug stage %d (%s)\n",
			r.cmd.Sprintf("aiq run --only %d --verbose", id), id, stage.Name(id))
	}
	fmt.Fprintln(r.W)
}
