package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/L1nMay/porty/internal/catalog"
	"github.com/L1nMay/porty/internal/config"
	"github.com/L1nMay/porty/internal/icmp"
	"github.com/L1nMay/porty/internal/output"
	"github.com/L1nMay/porty/internal/ports"
	"github.com/L1nMay/porty/internal/probe"
	"github.com/L1nMay/porty/internal/scan"
)

type scanOptions struct {
	timeout         time.Duration
	concurrency     int
	noICMP          bool
	privileged      bool
	groupByProtocol bool
	showClosed      bool
	jsonOut         bool
	noProgress      bool
}

// bindScan makes cmd run a scan and registers the scan flags on it.
func bindScan(cmd *cobra.Command, getCfg func() *config.Config) {
	var opts scanOptions

	cmd.Args = cobra.MaximumNArgs(3)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		cfg := getCfg()
		applyScanFlags(cmd, cfg, opts)
		if err := cfg.Validate(); err != nil {
			return err
		}
		return runScan(cmd.Context(), cfg, args, opts.jsonOut, cmd.OutOrStdout())
	}

	f := cmd.Flags()
	f.DurationVar(&opts.timeout, "timeout", probe.DefaultTimeout, "per-port connect timeout")
	f.IntVar(&opts.concurrency, "concurrency", 1, "probes in flight; 1 scans sequentially")
	f.BoolVar(&opts.noICMP, "no-icmp", false, "skip the ICMP echo check")
	f.BoolVar(&opts.privileged, "privileged", false, "use raw ICMP sockets (needs root)")
	f.BoolVar(&opts.groupByProtocol, "group-by-protocol", false, "probe ports grouped by protocol name")
	f.BoolVar(&opts.showClosed, "show-closed", false, "list closed ports in the report")
	f.BoolVar(&opts.jsonOut, "json", false, "print the report as JSON")
	f.BoolVar(&opts.noProgress, "no-progress", false, "hide the progress bar")
}

func applyScanFlags(cmd *cobra.Command, cfg *config.Config, opts scanOptions) {
	f := cmd.Flags()
	if f.Changed("timeout") {
		cfg.TimeoutMs = int(opts.timeout / time.Millisecond)
	}
	if f.Changed("concurrency") {
		cfg.Concurrency = opts.concurrency
	}
	if opts.noICMP {
		off := false
		cfg.ICMP = &off
	}
	if opts.noProgress {
		off := false
		cfg.Progress = &off
	}
	if f.Changed("privileged") {
		cfg.Privileged = opts.privileged
	}
	if f.Changed("group-by-protocol") {
		cfg.GroupByProtocol = opts.groupByProtocol
	}
	if f.Changed("show-closed") {
		cfg.ShowClosed = opts.showClosed
	}
}

func runScan(ctx context.Context, cfg *config.Config, args []string, jsonOut bool, out io.Writer) error {
	parsed, err := ports.ParseArgs(args)
	if err != nil {
		return err
	}

	var src catalog.Source
	if parsed.Range == nil {
		s, closeFn, err := openCatalog(cfg)
		if err != nil {
			return err
		}
		defer closeFn()
		src = s
	}

	plan := scan.NewPlan(cfg, parsed, src, len(args) > 0)
	runner := scan.NewRunner(probe.New(cfg.Timeout()), icmp.NewChecker(cfg.Privileged))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	tty := isTerminal(out)
	console := output.NewConsole(out, cfg.Location(), cfg.ShowClosed, tty)
	if !jsonOut {
		console.Header(plan.Target, describe(plan.Selection), time.Now())
	}

	stopProgress := func() {}
	if cfg.ProgressEnabled() && !jsonOut && tty {
		ch := runner.HubSubscribe()
		done := output.FollowProgress(ch, out)
		stopProgress = func() {
			runner.HubUnsubscribe(ch)
			<-done
		}
	}

	rep, err := runner.Run(ctx, plan)
	stopProgress()
	if err != nil {
		return err
	}

	if jsonOut {
		return output.JSON(out, rep)
	}
	console.Report(rep)
	return nil
}

func describe(sel ports.Selection) string {
	switch s := sel.(type) {
	case ports.ByRange:
		return fmt.Sprintf("TCP ports %d to %d", s.Start, s.End)
	case ports.ByCatalog:
		return "ports from the " + s.String()
	default:
		return sel.String()
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
