package phoneauth

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically purges expired handshake state.
type Sweeper struct {
	svc      Service
	interval time.Duration
}

func NewSweeper(svc Service, interval time.Duration) *Sweeper {
	return &Sweeper{svc: svc, interval: interval}
}

// Run sweeps every interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one sweep at the service's current time.
func (s *Sweeper) Tick(ctx context.Context) SweepResult {
	res := s.svc.Sweep(ctx, s.svc.Now())
	if res.OTPs > 0 || res.Tokens > 0 {
		slog.Debug("swept expired handshake state", "otps", res.OTPs, "tokens", res.Tokens)
	}
	return res
}
