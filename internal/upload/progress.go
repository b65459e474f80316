package upload

import (
	"context"
	"io"
	"math"
	"math/rand/v2"
	"time"

	"github.com/andresuchdata/tutorstore/internal/domain"
)

const (
	estimateCeiling = 90.0
	estimateMaxStep = 15.0
	measuredCeiling = 99.0
)

// estimate advances an estimated progress value on every tick until ctx is
// done. The value never passes estimateCeiling; only confirmation sets 100.
func estimate(ctx context.Context, interval time.Duration, step func() float64, apply func(float64)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	progress := 0.0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			progress = math.Min(estimateCeiling, progress+step())
			apply(progress)
			if progress >= estimateCeiling {
				return
			}
		}
	}
}

func randomStep() float64 {
	return rand.Float64() * estimateMaxStep
}

// countingReader reports the share of size read so far, in whole percent,
// capped below 100.
type countingReader struct {
	r      io.Reader
	size   int64
	read   int64
	last   float64
	report func(float64)
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	if n > 0 && c.size > 0 {
		c.read += int64(n)
		pct := math.Min(measuredCeiling, math.Floor(float64(c.read)*100/float64(c.size)))
		if pct != c.last {
			c.last = pct
			c.report(pct)
		}
	}
	return n, err
}

func setProgress(p float64) func(*domain.UploadTask) {
	return func(t *domain.UploadTask) {
		if p > t.Progress {
			t.Progress = p
		}
	}
}
