package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/L1nMay/porty/internal/logger"
	"github.com/L1nMay/porty/internal/model"
	"github.com/L1nMay/porty/internal/ports"
	"github.com/L1nMay/porty/internal/report"
)

var ErrScanRunning = errors.New("scan already running")

// PortProber makes one bounded connect attempt. *probe.Prober implements it.
type PortProber interface {
	Probe(ctx context.Context, target string, port int) model.Outcome
}

// ReachabilityChecker sends one best-effort echo. *icmp.Checker implements it.
type ReachabilityChecker interface {
	Check(ctx context.Context, target string) model.Reachability
}

type Runner struct {
	prober PortProber
	reach  ReachabilityChecker
	mu     sync.Mutex

	active activeScan
	hub    *Hub
}

// NewRunner wires the probers. reach may be nil when ICMP is never wanted.
func NewRunner(prober PortProber, reach ReachabilityChecker) *Runner {
	r := &Runner{prober: prober, reach: reach}
	r.hub = NewHub()
	return r
}

/*
Run executes plan and returns its report.

  - ports are resolved, then grouped by protocol if the plan asks for it
  - ICMP runs once before any TCP probe; its failures never abort the scan
  - every port is probed exactly once through the plan's strategy
  - results follow the resolved order whatever the strategy

A Runner runs one scan at a time; a second concurrent call gets ErrScanRunning.
*/
func (r *Runner) Run(ctx context.Context, plan *Plan) (*model.ScanReport, error) {
	if !r.mu.TryLock() {
		return nil, ErrScanRunning
	}
	defer r.mu.Unlock()

	if err := plan.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.active.begin(plan.Target, cancel)
	defer r.active.end()

	specs, err := ports.Resolve(ctx, plan.Selection)
	if err != nil {
		return nil, err
	}
	if plan.GroupByProtocol {
		specs = GroupByProtocol(specs)
	}

	strategy := plan.Strategy()
	total := len(specs)
	logger.Infof("scan started: target=%s ports=%s count=%d strategy=%s", plan.Target, plan.Ports, total, strategy.Name())
	r.hub.Publish(Progress{Percent: 0, Message: "Scan started", Total: total})

	started := time.Now()

	var reach *model.Reachability
	if plan.ICMP && r.reach != nil {
		rr := r.reach.Check(ctx, plan.Target)
		reach = &rr
		logger.Infof("icmp %s: resolved=%q reachable=%t", plan.Target, rr.ResolvedIP, rr.Reachable)
	}

	results, err := strategy.Execute(ctx, specs, r.probeFunc(plan.Target), func(spec model.PortSpec, n int) {
		port := spec.Port
		r.hub.Publish(Progress{
			Percent: percent(n-1, total),
			Message: fmt.Sprintf("scanning port: %d", port),
			Port:    &port,
			Done:    n - 1,
			Total:   total,
		})
	})
	if err != nil {
		r.hub.Publish(Progress{Percent: 100, Message: "Scan cancelled", Total: total})
		return nil, fmt.Errorf("scan %s: %w", plan.Target, err)
	}

	rep := report.Build(plan.Target, reach, results, started, time.Now())
	r.hub.Publish(Progress{Percent: 100, Message: "Scan finished", Done: total, Total: total})
	logger.Infof("scan finished: target=%s scanned=%d open=%d closed=%d in %s",
		rep.Target, len(rep.Results), rep.OpenCount, rep.ClosedCount, rep.Duration().Round(time.Millisecond))

	return rep, nil
}

// RunAsync starts a scan in the background; the report goes to done.
func (r *Runner) RunAsync(ctx context.Context, plan *Plan, done func(*model.ScanReport, error)) {
	go func() {
		rep, err := r.Run(ctx, plan)
		if done != nil {
			done(rep, err)
		}
	}()
}

func (r *Runner) probeFunc(target string) ProbeFunc {
	return func(ctx context.Context, spec model.PortSpec) model.ScanResult {
		return model.ScanResult{
			Spec:    spec,
			Outcome: r.prober.Probe(ctx, target, spec.Port),
		}
	}
}

func percent(done, total int) int {
	if total <= 0 {
		return 100
	}
	return done * 100 / total
}
