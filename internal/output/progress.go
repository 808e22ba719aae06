package output

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/L1nMay/porty/internal/scan"
)

// FollowProgress draws a progress bar from hub events until ch is closed.
// The returned channel closes once drawing has stopped.
func FollowProgress(ch <-chan scan.Progress, w io.Writer) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		var bar *progressbar.ProgressBar
		yellow := color.New(color.FgYellow)

		for p := range ch {
			if bar == nil {
				if p.Total <= 0 {
					continue
				}
				bar = newBar(p.Total, w)
			}
			if p.Port != nil {
				bar.Describe(fmt.Sprintf("scanning port: %s", yellow.Sprint(*p.Port)))
			}
			_ = bar.Set(p.Done)
			if p.Percent >= 100 {
				_ = bar.Finish()
			}
		}
	}()
	return done
}

func newBar(total int, w io.Writer) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}
