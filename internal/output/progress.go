package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal. Falls back to false for
// plain io.Writer values such as *bytes.Buffer.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// ProgressBar shows how many packages of a batch have finished.
// Example: [=========>          ] 2/4 Installing packages
type ProgressBar struct {
	mu          sync.Mutex
	total       int
	current     int
	description string
	width       int
	writer      io.Writer
}

// NewProgress creates a progress bar writing to stdout.
func NewProgress(total int, description string) *ProgressBar {
	return &ProgressBar{
		total:       total,
		description: description,
		width:       30,
		writer:      os.Stdout,
	}
}

// SetWriter sets the output writer (useful for testing).
func (p *ProgressBar) SetWriter(w io.Writer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writer = w
}

// SetDescription changes the text shown after the bar.
func (p *ProgressBar) SetDescription(description string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.description = description
}

// Increment advances the bar by one and redraws it.
func (p *ProgressBar) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current < p.total {
		p.current++
	}
	p.render()
}

// Current returns the number of finished steps.
func (p *ProgressBar) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Finish ends the bar's line on a terminal.
func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if writerIsTTY(p.writer) {
		fmt.Fprintln(p.writer)
	}
}

// render must be called with p.mu held. On a terminal the bar redraws in
// place; elsewhere each step is written as its own line.
func (p *ProgressBar) render() {
	filled := 0
	if p.total > 0 {
		filled = p.current * p.width / p.total
	}

	var bar strings.Builder
	bar.WriteByte('[')
	for i := 0; i < p.width; i++ {
		switch {
		case i < filled-1:
			bar.WriteByte('=')
		case i == filled-1:
			bar.WriteByte('>')
		default:
			bar.WriteByte(' ')
		}
	}
	bar.WriteByte(']')

	line := fmt.Sprintf("%s %d/%d %s", bar.String(), p.current, p.total, p.description)
	if writerIsTTY(p.writer) {
		fmt.Fprintf(p.writer, "\r%s", line)
		return
	}
	fmt.Fprintln(p.writer, line)
}

// Spinner animates while a task produces no visible output.
// Example: |  Installing node (5s elapsed)
type Spinner struct {
	mu        sync.Mutex
	message   string
	chars     []string
	writer    io.Writer
	running   bool
	done      chan struct{}
	startTime time.Time
}

// NewSpinner creates a spinner writing to stdout.
func NewSpinner(message string) *Spinner {
	return &Spinner{
		message: message,
		chars:   []string{"|", "/", "-", "\\"},
		writer:  os.Stdout,
	}
}

// SetWriter sets the output writer (useful for testing).
func (s *Spinner) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = w
}

// Start begins the animation. On a non-TTY writer the message is printed
// once instead.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.startTime = time.Now()
	s.done = make(chan struct{})

	if !writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "%s...\n", s.message)
		return
	}

	go s.animate(s.done)
}

func (s *Spinner) animate(done <-chan struct{}) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	idx := 0
	for {
		select {
		case <-ticker.C:
			s.mu.Lock()
			elapsed := int(time.Since(s.startTime).Seconds())
			fmt.Fprintf(s.writer, "\r%s  %s (%ds elapsed)", s.chars[idx], s.message, elapsed)
			s.mu.Unlock()
			idx = (idx + 1) % len(s.chars)
		case <-done:
			return
		}
	}
}

// UpdateMessage replaces the message while the spinner runs.
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.message = message
}

// Stop ends the animation and clears the line.
func (s *Spinner) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.done)

	if writerIsTTY(s.writer) {
		fmt.Fprintf(s.writer, "\r%s\r", strings.Repeat(" ", len(s.message)+24))
	}
}
