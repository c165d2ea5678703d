package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const sweepBatchSize = 100

// ReservationSweeper periodically expires reservations nobody has touched
// since their window passed. Reads expire stale reservations on their own,
// so the sweeper only bounds how long an abandoned vehicle stays reserved.
type ReservationSweeper struct {
	reservations *ReservationService
	interval     time.Duration
	log          zerolog.Logger
}

// NewReservationSweeper creates a sweeper that runs every interval.
func NewReservationSweeper(reservations *ReservationService, interval time.Duration, log zerolog.Logger) *ReservationSweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ReservationSweeper{reservations: reservations, interval: interval, log: log}
}

// Run sweeps until ctx is cancelled.
func (w *ReservationSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info().Dur("interval", w.interval).Msg("reservation sweeper started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("reservation sweeper stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep expires one batch of stale reservations and returns how many it expired.
// Errors are logged and the remaining rides are still attempted.
func (w *ReservationSweeper) Sweep(ctx context.Context) int {
	s := w.reservations
	cutoff := s.now().Add(-s.cfg.Timeout)

	rides, err := s.deps.Store.Rides().ListExpiredReservations(ctx, cutoff, sweepBatchSize)
	if err != nil {
		w.log.Error().Err(err).Msg("list expired reservations")
		return 0
	}

	expired := 0
	for _, ride := range rides {
		ok, err := s.Expire(ctx, ride.ID)
		if err != nil {
			w.log.Error().Err(err).Str("ride_id", ride.ID).Msg("expire reservation")
			continue
		}
		if ok {
			expired++
		}
	}

	if expired > 0 {
		w.log.Info().Int("count", expired).Msg("expired stale reservations")
	}
	return expired
}
