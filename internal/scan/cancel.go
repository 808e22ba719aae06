package scan

import (
	"context"
	"sync"

	"github.com/L1nMay/porty/internal/logger"
)

// activeScan remembers the scan in flight so it can be stopped from outside,
// e.g. by the HTTP cancel route or a shutdown signal.
type activeScan struct {
	mu     sync.Mutex
	target string
	cancel context.CancelFunc
}

func (a *activeScan) begin(target string, cancel context.CancelFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.target, a.cancel = target, cancel
}

func (a *activeScan) end() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.target, a.cancel = "", nil
}

// abort cancels the scan and reports its target.
func (a *activeScan) abort() (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel == nil {
		return "", false
	}
	a.cancel()
	target := a.target
	a.target, a.cancel = "", nil
	return target, true
}

func (a *activeScan) running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancel != nil
}

func (r *Runner) IsRunning() bool {
	return r.active.running()
}

// CancelRunning stops the active scan, if any. Run then publishes the
// cancellation and returns the context error without a report.
func (r *Runner) CancelRunning() bool {
	target, ok := r.active.abort()
	if ok {
		logger.Infof("scan cancel requested: target=%s", target)
	}
	return ok
}
