package enrich

import (
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Progress logs done/total for one binding at most once per interval, plus a
// final line when the last key completes. A nil Progress is a no-op.
type Progress struct {
	name  string
	total int
	every rate.Sometimes
	start time.Time
}

// NewProgress creates a Progress for total keys.
func NewProgress(name string, total int, interval time.Duration) *Progress {
	return &Progress{
		name:  name,
		total: total,
		every: rate.Sometimes{First: 1, Interval: interval},
		start: time.Now(),
	}
}

// Update records that done keys have been processed.
func (p *Progress) Update(done int) {
	if p == nil {
		return
	}
	if done >= p.total {
		zap.L().Info("enrich: lookups complete",
			zap.String("binding", p.name),
			zap.Int("total", p.total),
			zap.Duration("elapsed", time.Since(p.start)),
		)
		return
	}
	p.every.Do(func() {
		zap.L().Info("enrich: progress",
			zap.String("binding", p.name),
			zap.Int("done", done),
			zap.Int("total", p.total),
		)
	})
}
