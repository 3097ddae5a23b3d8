package convert

import (
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// spinner ticks once per chunk of exporter output. A nil bar makes every
// method a no-op.
type spinner struct {
	bar *progressbar.ProgressBar
}

func newSpinner(w io.Writer, description string) *spinner {
	if w == nil {
		return &spinner{}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionClearOnFinish(),
	)
	return &spinner{bar: bar}
}

func (s *spinner) Write(p []byte) (int, error) {
	if s.bar != nil {
		_ = s.bar.Add(1)
	}
	return len(p), nil
}

func (s *spinner) Finish() {
	if s.bar != nil {
		_ = s.bar.Finish()
	}
}
