package scan

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/L1nMay/porty/internal/model"
)

// ProbeFunc probes one port. It must not fail: every per-port problem is
// folded into the returned outcome.
type ProbeFunc func(ctx context.Context, spec model.PortSpec) model.ScanResult

// StartFunc is called as each probe begins, with the number started so far.
type StartFunc func(spec model.PortSpec, started int)

// Strategy drives a ProbeFunc over specs. Results always come back in the
// order of specs; only the order of StartFunc calls depends on the strategy.
type Strategy interface {
	Execute(ctx context.Context, specs []model.PortSpec, probe ProbeFunc, onStart StartFunc) ([]model.ScanResult, error)
	Name() string
}

// Sequential waits for each probe before issuing the next.
type Sequential struct{}

func (Sequential) Name() string { return "sequential" }

func (Sequential) Execute(ctx context.Context, specs []model.PortSpec, probe ProbeFunc, onStart StartFunc) ([]model.ScanResult, error) {
	results := make([]model.ScanResult, 0, len(specs))
	for i, spec := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if onStart != nil {
			onStart(spec, i+1)
		}
		results = append(results, probe(ctx, spec))
	}
	return results, nil
}

// Pool keeps at most Limit probes in flight. Each result is written to its
// input index, so the final order equals the sequential order.
type Pool struct {
	Limit int
}

func (p Pool) Name() string { return "pool" }

func (p Pool) Execute(ctx context.Context, specs []model.PortSpec, probe ProbeFunc, onStart StartFunc) ([]model.ScanResult, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 1
	}

	results := make([]model.ScanResult, len(specs))
	var started atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, spec := range specs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if onStart != nil {
				onStart(spec, int(started.Add(1)))
			}
			results[i] = probe(gctx, spec)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// StrategyFor picks Sequential for concurrency <= 1.
func StrategyFor(concurrency int) Strategy {
	if concurrency <= 1 {
		return Sequential{}
	}
	return Pool{Limit: concurrency}
}
