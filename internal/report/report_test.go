package report

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/L1nMay/porty/internal/model"
)

var states = []model.State{model.StateOpen, model.StateClosed, model.StateFiltered, model.StateError}

func TestBuildCountsAddUp(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 0; n < 50; n++ {
		results := make([]model.ScanResult, rng.Intn(200))
		wantOpen := 0
		for i := range results {
			st := states[rng.Intn(len(states))]
			if st == model.StateOpen {
				wantOpen++
			}
			results[i] = model.ScanResult{Spec: model.PortSpec{Port: i}, Outcome: model.Outcome{State: st}}
		}

		rep := Build("h", nil, results, time.Time{}, time.Time{})
		assert.Equal(t, len(results), rep.OpenCount+rep.ClosedCount)
		assert.Equal(t, wantOpen, rep.OpenCount)
		assert.Len(t, rep.OpenPorts(), wantOpen)
	}
}

func TestBuildEmpty(t *testing.T) {
	rep := Build("127.0.0.1", nil, nil, time.Time{}, time.Time{})
	assert.Zero(t, rep.OpenCount)
	assert.Zero(t, rep.ClosedCount)
	assert.NotNil(t, rep.Results)
	assert.Nil(t, rep.ICMPReachable)
	assert.NotEmpty(t, rep.ID)
}

func TestBuildReachability(t *testing.T) {
	started := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	rep := Build("localhost", &model.Reachability{ResolvedIP: "127.0.0.1", Reachable: true}, nil, started, started.Add(time.Second))

	require.NotNil(t, rep.ICMPReachable)
	assert.True(t, *rep.ICMPReachable)
	assert.Equal(t, "127.0.0.1", rep.ResolvedIP)
	assert.Equal(t, time.Second, rep.Duration())
}

func TestBreakdown(t *testing.T) {
	got := Breakdown([]model.ScanResult{
		{Outcome: model.Outcome{State: model.StateOpen}},
		{Outcome: model.Outcome{State: model.StateFiltered}},
		{Outcome: model.Outcome{State: model.StateFiltered}},
	})
	assert.Equal(t, map[model.State]int{model.StateOpen: 1, model.StateFiltered: 2}, got)
}
