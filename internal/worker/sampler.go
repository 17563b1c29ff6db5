package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Gauge is a single sampled value, such as queue depth.
type Gauge struct {
	Read func() float64
	Set  func(float64)
}

// Sampler copies point-in-time values into metric gauges every interval.
type Sampler struct {
	gauges   []Gauge
	interval time.Duration
	logger   *zap.Logger
}

func NewSampler(interval time.Duration, logger *zap.Logger, gauges ...Gauge) *Sampler {
	return &Sampler{gauges: gauges, interval: interval, logger: logger}
}

// Run samples once immediately, then every interval until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Debug("sampler started", zap.Duration("interval", s.interval))
	s.sample()
	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("sampler stopping")
			return
		case <-ticker.C:
			s.sample()
		}
	}
}

func (s *Sampler) sample() {
	for _, g := range s.gauges {
		g.Set(g.Read())
	}
}
