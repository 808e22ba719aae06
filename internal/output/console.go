// Package output renders scan reports for people and machines.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/L1nMay/porty/internal/model"
	"github.com/L1nMay/porty/internal/report"
)

const TimestampLayout = "Monday, Jan 2, 2006, 3:04:05 PM MST"

// Timestamp formats t in loc the way headers show it, including brackets.
func Timestamp(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return "[" + t.In(loc).Format(TimestampLayout) + "]"
}

type Console struct {
	w          io.Writer
	loc        *time.Location
	showClosed bool

	white, yellow, magenta, green, red *color.Color
}

func NewConsole(w io.Writer, loc *time.Location, showClosed, colored bool) *Console {
	c := &Console{
		w:          w,
		loc:        loc,
		showClosed: showClosed,
		white:      color.New(color.FgWhite),
		yellow:     color.New(color.FgYellow),
		magenta:    color.New(color.FgMagenta),
		green:      color.New(color.FgGreen),
		red:        color.New(color.FgRed),
	}
	for _, col := range []*color.Color{c.white, c.yellow, c.magenta, c.green, c.red} {
		if colored {
			col.EnableColor()
		} else {
			col.DisableColor()
		}
	}
	return c
}

// Header announces the scan before the first probe.
func (c *Console) Header(target, portsDesc string, at time.Time) {
	fmt.Fprintln(c.w, c.white.Sprintf("Starting TCP port scan against %s at %s....", target, c.magenta.Sprint(Timestamp(at, c.loc))))
	fmt.Fprintln(c.w, c.white.Sprintf("Scanning %s...", portsDesc))
}

func (c *Console) Report(rep *model.ScanReport) {
	banner := strings.Repeat("=", 21)
	fmt.Fprintf(c.w, "\n%s\n%s\n%s\n", banner, c.yellow.Sprint("Port scan results"), banner)

	if rep.ICMPReachable != nil {
		ip := rep.ResolvedIP
		if ip == "" {
			ip = "unresolved"
		}
		state := c.red.Sprint("no reply")
		if *rep.ICMPReachable {
			state = c.green.Sprint("reachable")
		}
		fmt.Fprintf(c.w, "Host %s (%s): %s\n", rep.Target, ip, state)
	}

	fmt.Fprintf(c.w, "Scanned %d ports. %d open, %d closed.\n", len(rep.Results), rep.OpenCount, rep.ClosedCount)
	if c.showClosed {
		b := report.Breakdown(rep.Results)
		fmt.Fprintf(c.w, "Not open: %d refused/unreachable, %d timed out, %d errors.\n",
			b[model.StateClosed], b[model.StateFiltered], b[model.StateError])
	}

	for _, res := range rep.Results {
		if !res.Outcome.Open() && !c.showClosed {
			continue
		}
		fmt.Fprintf(c.w, "Port %s%s: %s\n", c.yellow.Sprint(res.Spec.Port), label(res.Spec), c.state(res.Outcome))
	}
	fmt.Fprintf(c.w, "Finished at %s in %s\n", Timestamp(rep.FinishedAt, c.loc), rep.Duration().Round(time.Millisecond))
}

func (c *Console) state(o model.Outcome) string {
	if o.Open() {
		return c.green.Sprint("Open")
	}
	if o.Cause != "" {
		return c.red.Sprint("Closed") + " (" + o.Cause + ")"
	}
	return c.red.Sprint("Closed")
}

func label(spec model.PortSpec) string {
	if spec.Protocol == "" || spec.Protocol == model.UnknownProtocol {
		return ""
	}
	return " (" + spec.Protocol + ")"
}

// JSON writes rep as indented JSON.
func JSON(w io.Writer, rep *model.ScanReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
