package scan

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/L1nMay/porty/internal/catalog"
	"github.com/L1nMay/porty/internal/model"
	"github.com/L1nMay/porty/internal/ports"
	"github.com/L1nMay/porty/internal/probe"
)

// fakeProber reports open for the ports in its set and closed otherwise.
type fakeProber struct {
	open  map[int]bool
	delay func(port int) time.Duration

	mu    sync.Mutex
	calls []int
}

func (f *fakeProber) Probe(ctx context.Context, _ string, port int) model.Outcome {
	f.mu.Lock()
	f.calls = append(f.calls, port)
	f.mu.Unlock()
	if f.delay != nil {
		select {
		case <-time.After(f.delay(port)):
		case <-ctx.Done():
			return model.Outcome{State: model.StateFiltered, Cause: "timeout"}
		}
	}
	if f.open[port] {
		return model.Outcome{State: model.StateOpen}
	}
	return model.Outcome{State: model.StateClosed, Cause: "connection refused"}
}

type fakeReach struct {
	calls atomic.Int32
	res   model.Reachability
}

func (f *fakeReach) Check(context.Context, string) model.Reachability {
	f.calls.Add(1)
	return f.res
}

func rangePlan(target string, start, end int) *Plan {
	return &Plan{Target: target, Selection: ports.ByRange{Start: start, End: end}, Concurrency: 1, AllowPublic: true}
}

func TestRunRangeScenario(t *testing.T) {
	fp := &fakeProber{open: map[int]bool{1001: true}}
	r := NewRunner(fp, nil)

	rep, err := r.Run(context.Background(), rangePlan("127.0.0.1", 1000, 1002))
	require.NoError(t, err)

	require.Len(t, rep.Results, 3)
	assert.Equal(t, 1, rep.OpenCount)
	assert.Equal(t, 2, rep.ClosedCount)
	assert.Equal(t, 1001, rep.OpenPorts()[0].Spec.Port)
	assert.Equal(t, []int{1000, 1001, 1002}, fp.calls)
	assert.Nil(t, rep.ICMPReachable)
}

// loopbackTriple binds a listener on p and checks p-1 and p+1 are free.
func loopbackTriple(t *testing.T) (net.Listener, int) {
	t.Helper()
	for attempt := 0; attempt < 20; attempt++ {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		require.NoError(t, err)
		p := l.Addr().(*net.TCPAddr).Port
		if p <= 1 || p >= 65535 || !portFree(p-1) || !portFree(p+1) {
			_ = l.Close()
			continue
		}
		go func() {
			for {
				c, err := l.Accept()
				if err != nil {
					return
				}
				_ = c.Close()
			}
		}()
		t.Cleanup(func() { _ = l.Close() })
		return l, p
	}
	t.Skip("could not find three adjacent loopback ports")
	return nil, 0
}

func portFree(p int) bool {
	l, err := net.Listen("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(p)))
	if err != nil {
		return false
	}
	_ = l.Close()
	return true
}

func TestRunRangeAgainstLoopback(t *testing.T) {
	_, p := loopbackTriple(t)
	r := NewRunner(probe.New(500*time.Millisecond), nil)

	rep, err := r.Run(context.Background(), rangePlan("127.0.0.1", p-1, p+1))
	require.NoError(t, err)

	require.Len(t, rep.Results, 3)
	assert.Equal(t, 1, rep.OpenCount)
	assert.Equal(t, 2, rep.ClosedCount)
	assert.True(t, rep.Results[1].Outcome.Open())
	assert.False(t, rep.Results[0].Outcome.Open())
	assert.False(t, rep.Results[2].Outcome.Open())
}

func TestRunCatalogScenario(t *testing.T) {
	fp := &fakeProber{}
	r := NewRunner(fp, nil)
	plan := &Plan{
		Target: "127.0.0.1",
		Selection: ports.ByCatalog{Source: catalog.Static{
			{Port: 80, Protocol: "HTTP"},
			{Port: 443, Protocol: "HTTPS"},
		}},
		AllowPublic: true,
	}

	rep, err := r.Run(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, rep.Results, 2)
	assert.Zero(t, rep.OpenCount)
	assert.Equal(t, 2, rep.ClosedCount)
	assert.Equal(t, "HTTP", rep.Results[0].Spec.Protocol)
	assert.Equal(t, "HTTPS", rep.Results[1].Spec.Protocol)
}

func TestRunMissingCatalogIsFatal(t *testing.T) {
	fp := &fakeProber{}
	r := NewRunner(fp, nil)
	plan := &Plan{
		Target:      "127.0.0.1",
		Selection:   ports.ByCatalog{Source: catalog.NewFile(filepath.Join(t.TempDir(), "ports.yaml"))},
		AllowPublic: true,
	}

	rep, err := r.Run(context.Background(), plan)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Nil(t, rep)
	assert.Empty(t, fp.calls)
}

func TestRunIsIdempotent(t *testing.T) {
	fp := &fakeProber{open: map[int]bool{3: true, 7: true}}
	r := NewRunner(fp, nil)

	first, err := r.Run(context.Background(), rangePlan("10.0.0.1", 1, 10))
	require.NoError(t, err)
	second, err := r.Run(context.Background(), rangePlan("10.0.0.1", 1, 10))
	require.NoError(t, err)

	assert.Equal(t, first.OpenCount, second.OpenCount)
	assert.Equal(t, first.ClosedCount, second.ClosedCount)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestPoolKeepsInputOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	delays := map[int]time.Duration{}
	for p := 1; p <= 200; p++ {
		delays[p] = time.Duration(rng.Intn(5)) * time.Millisecond
	}
	fp := &fakeProber{
		open:  map[int]bool{17: true, 150: true},
		delay: func(p int) time.Duration { return delays[p] },
	}
	r := NewRunner(fp, nil)

	seq, err := r.Run(context.Background(), rangePlan("127.0.0.1", 1, 200))
	require.NoError(t, err)

	plan := rangePlan("127.0.0.1", 1, 200)
	plan.Concurrency = 50
	pooled, err := r.Run(context.Background(), plan)
	require.NoError(t, err)

	require.Len(t, pooled.Results, 200)
	for i := range seq.Results {
		assert.Equal(t, seq.Results[i].Spec, pooled.Results[i].Spec)
		assert.Equal(t, seq.Results[i].Outcome.State, pooled.Results[i].Outcome.State)
	}
	assert.Equal(t, 2, pooled.OpenCount)
}

func TestPoolRespectsLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	probeFn := func(ctx context.Context, spec model.PortSpec) model.ScanResult {
		n := inFlight.Add(1)
		for {
			old := peak.Load()
			if n <= old || peak.CompareAndSwap(old, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return model.ScanResult{Spec: spec, Outcome: model.Outcome{State: model.StateClosed}}
	}

	specs, err := ports.Resolve(context.Background(), ports.ByRange{Start: 1, End: 100})
	require.NoError(t, err)

	results, err := Pool{Limit: 8}.Execute(context.Background(), specs, probeFn, nil)
	require.NoError(t, err)
	assert.Len(t, results, 100)
	assert.LessOrEqual(t, peak.Load(), int32(8))
}

func TestRunGroupByProtocol(t *testing.T) {
	fp := &fakeProber{}
	r := NewRunner(fp, nil)
	plan := &Plan{
		Target: "127.0.0.1",
		Selection: ports.ByCatalog{Source: catalog.Static{
			{Port: 443, Protocol: "https"},
			{Port: 22, Protocol: "SSH"},
			{Port: 80, Protocol: "HTTP"},
			{Port: 8080, Protocol: "HTTP"},
		}},
		GroupByProtocol: true,
		AllowPublic:     true,
	}

	rep, err := r.Run(context.Background(), plan)
	require.NoError(t, err)

	got := make([]int, 0, len(rep.Results))
	for _, res := range rep.Results {
		got = append(got, res.Spec.Port)
	}
	assert.Equal(t, []int{80, 8080, 443, 22}, got)
	assert.Equal(t, got, fp.calls)
}

func TestRunICMPOnce(t *testing.T) {
	reach := &fakeReach{res: model.Reachability{ResolvedIP: "127.0.0.1", Reachable: true}}
	r := NewRunner(&fakeProber{}, reach)

	plan := rangePlan("localhost", 1, 5)
	plan.ICMP = true
	rep, err := r.Run(context.Background(), plan)
	require.NoError(t, err)

	assert.Equal(t, int32(1), reach.calls.Load())
	require.NotNil(t, rep.ICMPReachable)
	assert.True(t, *rep.ICMPReachable)
	assert.Equal(t, "127.0.0.1", rep.ResolvedIP)

	plan.ICMP = false
	rep, err = r.Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Equal(t, int32(1), reach.calls.Load())
	assert.Nil(t, rep.ICMPReachable)
}

func TestRunPublishesProgress(t *testing.T) {
	r := NewRunner(&fakeProber{}, nil)
	ch := r.HubSubscribe()
	defer r.HubUnsubscribe(ch)

	_, err := r.Run(context.Background(), rangePlan("127.0.0.1", 0, 2))
	require.NoError(t, err)

	var events []Progress
	for len(ch) > 0 {
		events = append(events, <-ch)
	}
	require.NotEmpty(t, events)
	assert.Equal(t, "Scan started", events[0].Message)
	assert.Equal(t, "Scan finished", events[len(events)-1].Message)

	var scanned []int
	for _, e := range events {
		if e.Port != nil {
			scanned = append(scanned, *e.Port)
		}
	}
	assert.Equal(t, []int{0, 1, 2}, scanned)

	b, err := json.Marshal(events[1])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"port":0`)
}

func TestRunRejectsConcurrentScanAndCancels(t *testing.T) {
	fp := &fakeProber{delay: func(int) time.Duration { return time.Hour }}
	r := NewRunner(fp, nil)
	ch := r.HubSubscribe()
	defer r.HubUnsubscribe(ch)

	errCh := make(chan error, 1)
	r.RunAsync(context.Background(), rangePlan("127.0.0.1", 1, 3), func(_ *model.ScanReport, err error) {
		errCh <- err
	})

	require.Eventually(t, r.IsRunning, time.Second, 5*time.Millisecond)

	_, err := r.Run(context.Background(), rangePlan("127.0.0.1", 1, 3))
	assert.ErrorIs(t, err, ErrScanRunning)

	assert.True(t, r.CancelRunning())
	select {
	case err := <-errCh:
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled scan did not return")
	}
	assert.False(t, r.CancelRunning())
	assert.False(t, r.IsRunning())

	cancelled := 0
	for len(ch) > 0 {
		if p := <-ch; p.Message == "Scan cancelled" {
			cancelled++
		}
	}
	assert.Equal(t, 1, cancelled)
}

func TestRunInvalidInputs(t *testing.T) {
	r := NewRunner(&fakeProber{}, nil)

	_, err := r.Run(context.Background(), rangePlan("127.0.0.1", 10, 1))
	assert.ErrorIs(t, err, ports.ErrInvalidRange)

	_, err = r.Run(context.Background(), rangePlan("10.0.0.0/24", 1, 2))
	assert.ErrorIs(t, err, ErrInvalidTarget)
}
