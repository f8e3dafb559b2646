// Package signals implements spec.md §5's process-level cancellation entry
// point: SIGINT/SIGTERM/SIGQUIT trigger the graceful-cancel path once, and a
// second signal forces immediate exit.
//
// Grounded on the teacher's internal/signals.Watcher (same AddOnClose /
// Close / Done shape), extended with the second-signal force-exit escalation
// spec.md §4.9/§5 requires and the teacher's single-shot Watcher does not.
package signals

import (
	"os"
	"os/signal"
	"sync"
	"syscall"
)

// Watcher watches for SIGINT/SIGTERM/SIGQUIT and runs registered cleanup
// handlers exactly once on the first signal received. A second signal calls
// ForceExit (os.Exit(130) by default) instead of waiting for cleanup.
type Watcher struct {
	doneCh  chan struct{}
	closed  bool
	mu      sync.Mutex
	closers []func()

	// ForceExit is invoked when a second signal arrives, whether or not
	// Close's cleanup handlers have finished. Overridable for tests.
	ForceExit func()
}

// AddOnClose registers a cleanup handler to run when a signal is received.
// Handlers run in registration order.
func (w *Watcher) AddOnClose(closer func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closers = append(w.closers, closer)
}

// Close runs the cleanup handlers registered with this watcher. Safe to call
// more than once; only the first call runs handlers.
func (w *Watcher) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	closers := w.closers
	w.closers = nil
	w.mu.Unlock()

	for _, closer := range closers {
		closer()
	}
	close(w.doneCh)
}

// Done returns a channel that is closed after all cleanup handlers have run.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

// NewWatcher installs the signal handler and returns a Watcher. The first
// SIGINT, SIGTERM, or SIGQUIT runs Close; a second forces immediate exit.
func NewWatcher() *Watcher {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	w := &Watcher{
		doneCh:    make(chan struct{}),
		ForceExit: func() { os.Exit(130) },
	}

	go func() {
		<-signalCh
		go w.Close()
		<-signalCh
		w.ForceExit()
	}()

	return w
}
