// Package arch detects the host CPU architecture once per process and
// broadcasts the canonical tag to everything waiting on it.
package arch

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Tag is the canonical architecture name used to select install tasks.
type Tag string

const (
	X64        Tag = "x64"
	X86        Tag = "x86"
	Unresolved Tag = "unresolved"
)

func (t Tag) String() string {
	if t == "" {
		return string(Unresolved)
	}
	return string(t)
}

var (
	x64Pattern = regexp.MustCompile(`x86_64`)
	x86Pattern = regexp.MustCompile(`i.*86`)
	// ARM v6/v7 hosts are reported as x86. Existing package manifests select
	// on that value, so it is kept.
	armPattern = regexp.MustCompile(`armv[67]l`)
)

// Canonicalize maps raw probe output (for example `uname -m`) to a Tag.
func Canonicalize(raw string) Tag {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return Unresolved
	case x64Pattern.MatchString(raw):
		return X64
	case x86Pattern.MatchString(raw):
		return X86
	case armPattern.MatchString(raw):
		return X86
	default:
		return Unresolved
	}
}

// Prober returns the raw architecture string of the host.
type Prober interface {
	Probe(ctx context.Context) (string, error)
}

// ProbeFunc adapts a function into a Prober.
type ProbeFunc func(ctx context.Context) (string, error)

// Probe calls f.
func (f ProbeFunc) Probe(ctx context.Context) (string, error) {
	return f(ctx)
}

// UnameProber runs `uname -m`.
type UnameProber struct{}

// Probe executes uname and returns its trimmed output.
func (UnameProber) Probe(ctx context.Context) (string, error) {
	cmd := exec.CommandContext(ctx, "uname", "-m")
	output, err := cmd.Output()
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", fmt.Errorf("uname -m failed: %w (stderr: %s)", err, string(exitErr.Stderr))
		}
		return "", fmt.Errorf("uname -m failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// Detector runs the probe at most once and caches the result for its
// lifetime. Callers that arrive before the probe finishes are queued and
// receive the same tag when it does.
type Detector struct {
	prober Prober
	logger *log.Logger

	ctx    context.Context
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}

	mu        sync.Mutex
	tag       Tag
	resolved  bool
	closed    bool
	callbacks []func(Tag)
}

// New creates a Detector. The probe does not run until the first call to
// Trigger or Resolve.
func New(prober Prober, logger *log.Logger) *Detector {
	if prober == nil {
		prober = UnameProber{}
	}
	if logger == nil {
		logger = log.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Detector{
		prober: prober,
		logger: logger.WithPrefix("arch"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		tag:    Unresolved,
	}
}

// Trigger starts the probe in the background if it has not run yet.
func (d *Detector) Trigger() {
	d.once.Do(func() {
		go d.probe()
	})
}

func (d *Detector) probe() {
	tag := Unresolved
	raw, err := d.prober.Probe(d.ctx)
	if err != nil {
		d.logger.Warn("architecture probe failed", "error", err)
	} else {
		tag = Canonicalize(raw)
		if tag == Unresolved {
			d.logger.Warn("unrecognized architecture", "raw", raw)
		} else {
			d.logger.Debug("architecture resolved", "raw", raw, "tag", tag)
		}
	}

	d.mu.Lock()
	d.tag = tag
	d.resolved = true
	callbacks := d.callbacks
	d.callbacks = nil
	closed := d.closed
	d.mu.Unlock()

	close(d.done)

	if closed {
		return
	}
	for _, fn := range callbacks {
		fn(tag)
	}
}

// Resolve triggers the probe if needed and waits for the broadcast tag.
func (d *Detector) Resolve(ctx context.Context) (Tag, error) {
	d.Trigger()
	select {
	case <-d.done:
		tag, _ := d.Tag()
		return tag, nil
	case <-ctx.Done():
		return Unresolved, ctx.Err()
	}
}

// OnResolved registers fn to be called exactly once with the resolved tag.
// If the tag is already known fn runs immediately on the calling goroutine;
// otherwise it runs on the probe goroutine, in registration order.
// On a closed Detector that never resolved, fn receives Unresolved at once.
// OnResolved does not trigger the probe.
func (d *Detector) OnResolved(fn func(Tag)) {
	d.mu.Lock()
	if d.resolved || d.closed {
		tag := Unresolved
		if d.resolved {
			tag = d.tag
		}
		d.mu.Unlock()
		fn(tag)
		return
	}
	d.callbacks = append(d.callbacks, fn)
	d.mu.Unlock()
}

// Tag returns the cached tag and whether the probe has completed.
func (d *Detector) Tag() (Tag, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.tag, d.resolved
}

// Done is closed once the probe has completed.
func (d *Detector) Done() <-chan struct{} {
	return d.done
}

// Close cancels an in-flight probe. Callbacks still waiting for a tag
// receive Unresolved so nothing blocks on a detector that is gone.
func (d *Detector) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	callbacks := d.callbacks
	d.callbacks = nil
	d.mu.Unlock()
	d.cancel()

	for _, fn := range callbacks {
		fn(Unresolved)
	}
}
