// Package report reduces probe results into a ScanReport.
package report

import (
	"time"

	"github.com/google/uuid"

	"github.com/L1nMay/porty/internal/model"
)

// Build counts open results; everything else is closed. The results slice
// is kept as given. An empty slice yields zero counts.
func Build(target string, reach *model.Reachability, results []model.ScanResult, started, finished time.Time) *model.ScanReport {
	open := 0
	for _, r := range results {
		if r.Outcome.Open() {
			open++
		}
	}
	if results == nil {
		results = []model.ScanResult{}
	}

	rep := &model.ScanReport{
		ID:          uuid.NewString(),
		Target:      target,
		StartedAt:   started,
		FinishedAt:  finished,
		Results:     results,
		OpenCount:   open,
		ClosedCount: len(results) - open,
	}
	if reach != nil {
		reachable := reach.Reachable
		rep.ResolvedIP = reach.ResolvedIP
		rep.ICMPReachable = &reachable
	}
	return rep
}

// Breakdown counts results per probe state, for callers that want finer
// reporting than open/closed.
func Breakdown(results []model.ScanResult) map[model.State]int {
	out := make(map[model.State]int, 4)
	for _, r := range results {
		out[r.Outcome.State]++
	}
	return out
}
