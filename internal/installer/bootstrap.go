package installer

import (
	"context"
	"fmt"
)

// Bootstrap is the first-boot self check: it loads the installed record,
// installs the core package if needed, and only then lets a connection
// proceed.
type Bootstrap struct {
	Factory *Factory
	// Load reads the installed record. A missing record must not be
	// reported as an error.
	Load    func() error
	Request Request
}

// BeforeConnect delays next until the self check has finished. next is told
// whether a package was installed. If the install fails, next is called with
// false and the error is returned.
func (b *Bootstrap) BeforeConnect(ctx context.Context, next func(installed bool)) error {
	if b.Load != nil {
		if err := b.Load(); err != nil {
			b.Factory.logger.Warn("installed record unreadable, assuming nothing is installed", "error", err)
		}
	}

	result := make(chan error, 1)
	req := b.Request
	userDone := req.Done
	req.Done = func(err error) {
		if userDone != nil {
			userDone(err)
		}
		select {
		case result <- err:
		default:
		}
	}

	s, err := b.Factory.CreateSession(ctx, req)
	if err != nil {
		return fmt.Errorf("bootstrap %s: %w", req.Name, err)
	}
	if s == nil {
		next(false)
		return nil
	}

	if b.Factory.manualStart {
		select {
		case <-s.Populated():
		case <-ctx.Done():
			return ctx.Err()
		}
		if err := s.Start(ctx, false); err != nil {
			next(false)
			return fmt.Errorf("bootstrap %s: %w", req.Name, err)
		}
	}

	select {
	case err := <-result:
		if err != nil {
			next(false)
			return fmt.Errorf("bootstrap %s: %w", req.Name, err)
		}
		next(true)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
