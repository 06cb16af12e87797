// Package expiry periodically moves lapsed Verified identities to Expired.
package expiry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Expirer is the part of the KYC service the sweeper drives.
type Expirer interface {
	ExpireDue(ctx context.Context) (int, error)
}

type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	logger   *slog.Logger
}

type Option func(*Sweeper)

func WithInterval(d time.Duration) Option {
	return func(s *Sweeper) {
		if d > 0 {
			s.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) {
		s.logger = logger
	}
}

func New(expirer Expirer, opts ...Option) (*Sweeper, error) {
	if expirer == nil {
		return nil, errors.New("expirer is required")
	}
	s := &Sweeper{expirer: expirer, interval: time.Hour, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.expirer.ExpireDue(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "kyc expiry sweep failed", "expired", n, "error", err)
		return
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "kyc expiry sweep", "expired", n)
	}
}
