package cli

import (
	"io"
	"math"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/maauso/bootanimation-api/internal/progress"
)

// barSteps is the bar resolution; one step is a tenth of a percent.
const barSteps = 1000

var _ progress.Reporter = (*barReporter)(nil)

// barReporter renders pipeline progress as a terminal progress bar.
type barReporter struct {
	mu  sync.Mutex
	bar *progressbar.ProgressBar
}

func newBarReporter(w io.Writer) *barReporter {
	bar := progressbar.NewOptions(barSteps,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Starting..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "▐",
			BarEnd:        "▌",
		}),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionThrottle(50*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	return &barReporter{bar: bar}
}

// Report implements progress.Reporter.
func (b *barReporter) Report(percent float64, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bar.Describe(message)
	_ = b.bar.Set(int(math.Round(progress.Clamp(percent) * barSteps / 100)))
}

// Close finishes the bar and clears its line.
func (b *barReporter) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	_ = b.bar.Finish()
}
