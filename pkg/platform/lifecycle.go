package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Hook is a named startup step with its matching shutdown step. Either
// function may be nil.
type Hook struct {
	Name  string
	Start func(context.Context) error
	Stop  func(context.Context) error
}

// Lifecycle runs hooks in registration order on Start and in reverse order
// on Stop. A failed Start stops the hooks that had already started.
type Lifecycle struct {
	mu      sync.Mutex
	hooks   []Hook
	started int
	running bool
}

// NewLifecycle creates an empty lifecycle.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{}
}

// Append registers a hook.
func (l *Lifecycle) Append(h Hook) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hooks = append(l.hooks, h)
}

// OnStop registers a shutdown step with no startup counterpart.
func (l *Lifecycle) OnStop(name string, stop func(context.Context) error) {
	l.Append(Hook{Name: name, Stop: stop})
}

// RegisterCloser closes c on shutdown.
func (l *Lifecycle) RegisterCloser(name string, c interface{ Close() error }) {
	l.OnStop(name, func(context.Context) error { return c.Close() })
}

// Start runs every start step.
func (l *Lifecycle) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return errors.New("lifecycle already started")
	}

	for i, h := range l.hooks {
		if h.Start == nil {
			continue
		}
		if err := h.Start(ctx); err != nil {
			l.stopFrom(ctx, i-1, func(name string, stopErr error) {
				slog.Warn("lifecycle rollback: stop failed", "hook", name, "error", stopErr)
			})
			return fmt.Errorf("starting %s: %w", h.Name, err)
		}
	}
	l.started = len(l.hooks)
	l.running = true
	return nil
}

// Stop runs every stop step in reverse order and joins their errors.
func (l *Lifecycle) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}

	var errs []error
	l.stopFrom(ctx, l.started-1, func(name string, err error) {
		errs = append(errs, fmt.Errorf("stopping %s: %w", name, err))
	})
	l.running = false
	return errors.Join(errs...)
}

// IsStarted reports whether Start succeeded and Stop has not run since.
func (l *Lifecycle) IsStarted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *Lifecycle) stopFrom(ctx context.Context, last int, onErr func(string, error)) {
	for i := last; i >= 0; i-- {
		h := l.hooks[i]
		if h.Stop == nil {
			continue
		}
		if err := h.Stop(ctx); err != nil {
			onErr(h.Name, err)
		}
	}
}
