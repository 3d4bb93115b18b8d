// Package diag prints the diagnostics of ralph-mig. Every line starts
// with the program name; failures read "path: stage error: detail".
package diag

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
	colorable "github.com/mattn/go-colorable"
	isatty "github.com/mattn/go-isatty"
)

// Prog prefixes every line.
const Prog = "ralph-mig"

// Reporter serialises diagnostics from concurrent pipelines.
type Reporter struct {
	mu      sync.Mutex
	w       io.Writer
	verbose bool

	path *color.Color
	bad  *color.Color
	warn *color.Color
	good *color.Color
}

// New returns a reporter writing to w. mode is auto, always or never;
// auto colours only when w is a terminal.
func New(w io.Writer, mode string, verbose bool) *Reporter {
	on := false
	switch mode {
	case "always":
		on = true
	case "auto":
		on = isTerminal(w)
	}
	r := &Reporter{
		verbose: verbose,
		path:    color.New(color.Bold),
		bad:     color.New(color.FgRed, color.Bold),
		warn:    color.New(color.FgYellow),
		good:    color.New(color.FgGreen),
	}
	for _, c := range []*color.Color{r.path, r.bad, r.warn, r.good} {
		if on {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	switch f, ok := w.(*os.File); {
	case on && ok:
		r.w = colorable.NewColorable(f)
	case on:
		r.w = w
	default:
		r.w = colorable.NewNonColorable(w)
	}
	return r
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Verbose reports whether progress lines are printed.
func (r *Reporter) Verbose() bool { return r.verbose }

// Failure reports that stage failed on file.
func (r *Reporter) Failure(file, stage string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s: %s: %s: %v\n", Prog, r.path.Sprint(file), r.bad.Sprint(stage+" error"), err)
}

// Errorf reports a failure that belongs to no single file.
func (r *Reporter) Errorf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s: %s: %s\n", Prog, r.bad.Sprint("error"), fmt.Sprintf(format, args...))
}

// Warnf reports a condition that does not fail the run.
func (r *Reporter) Warnf(format string, args ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s: %s: %s\n", Prog, r.warn.Sprint("warning"), fmt.Sprintf(format, args...))
}

// Progressf prints a progress line when verbose.
func (r *Reporter) Progressf(format string, args ...interface{}) {
	if !r.verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s: %s\n", Prog, fmt.Sprintf(format, args...))
}

// Wrote lists an artifact written for file when verbose.
func (r *Reporter) Wrote(file, artifact string) {
	if !r.verbose {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintf(r.w, "%s: %s: %s %s\n", Prog, r.path.Sprint(file), r.good.Sprint("wrote"), artifact)
}
