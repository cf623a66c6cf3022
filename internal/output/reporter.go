package output

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/blackwell-systems/c9install/internal/installer"
)

// Reporter prints installer events as plain CLI lines: a header per
// package, one "Installing <task>" line per task and, when verbose, the raw
// task output. On a terminal, non-verbose runs show a spinner instead of
// the output.
type Reporter struct {
	mu       sync.Mutex
	out      io.Writer
	verbose  bool
	spinner  *Spinner
	progress *ProgressBar
	lastTask *installer.Task

	header *color.Color
	ok     *color.Color
	warn   *color.Color
	fail   *color.Color
}

// NewReporter returns a Reporter writing to out.
func NewReporter(out io.Writer, verbose bool) *Reporter {
	return &Reporter{
		out:     out,
		verbose: verbose,
		header:  color.New(color.Bold, color.FgCyan),
		ok:      color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		fail:    color.New(color.FgRed),
	}
}

// TrackBatch shows a progress bar advancing as each of total packages
// stops.
func (r *Reporter) TrackBatch(total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if total < 2 {
		r.progress = nil
		return
	}
	r.progress = NewProgress(total, "packages")
	r.progress.SetWriter(r.out)
}

// Handle renders one event. It is safe to subscribe it to a factory.
func (r *Reporter) Handle(e installer.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e.Kind {
	case installer.EventStart:
		r.stopSpinner()
		r.lastTask = nil
		pkg := e.Session.Package()
		r.header.Fprintf(r.out, "Package %s %d\n", pkg.Name, pkg.Version)

	case installer.EventEach:
		if e.Task == nil || e.Task == r.lastTask || e.Task.Name == "" {
			return
		}
		r.lastTask = e.Task
		msg := "Installing " + e.Task.Name
		if r.verbose {
			r.stopSpinner()
			fmt.Fprintln(r.out, msg)
			return
		}
		if r.spinner == nil {
			r.spinner = NewSpinner(msg)
			r.spinner.SetWriter(r.out)
			r.spinner.Start()
			return
		}
		r.spinner.UpdateMessage(msg)
		if !writerIsTTY(r.out) {
			fmt.Fprintf(r.out, "%s...\n", msg)
		}

	case installer.EventData:
		if r.verbose {
			r.out.Write(e.Data)
		}

	case installer.EventStop:
		r.stopSpinner()
		pkg := e.Session.Package()
		switch {
		case e.Err == nil:
			r.ok.Fprintf(r.out, "✓ %s %d installed\n", pkg.Name, pkg.Version)
		case errors.Is(e.Err, installer.ErrAborted):
			r.warn.Fprintf(r.out, "- %s %d aborted\n", pkg.Name, pkg.Version)
		default:
			r.fail.Fprintf(r.out, "✗ %s %d failed: %v\n", pkg.Name, pkg.Version, e.Err)
		}
		if r.progress != nil {
			r.progress.Increment()
			if r.progress.Current() == r.progress.total {
				r.progress.Finish()
			}
		}
	}
}

func (r *Reporter) stopSpinner() {
	if r.spinner != nil {
		r.spinner.Stop()
		r.spinner = nil
	}
}

// CompletionMessage lists the packages a run installed, one
// "name version" per line.
func CompletionMessage(res *installer.Result) string {
	var sb strings.Builder
	sb.WriteString("Installation Complete\n")
	if res == nil || len(res.Completed) == 0 {
		sb.WriteString("Nothing needed to be installed.\n")
		return sb.String()
	}
	sb.WriteString("The following packages were installed:\n")
	for _, line := range strings.Split(res.Summary(), "\n") {
		sb.WriteString("  " + line + "\n")
	}
	return sb.String()
}

// FailureMessage explains that a run stopped on err.
func FailureMessage(err error) string {
	return fmt.Sprintf("%v\n\nOne or more errors occurred. Please try to resolve them and\nrun the installer again.\n", err)
}
