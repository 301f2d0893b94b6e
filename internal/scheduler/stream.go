package scheduler

import (
	"context"
	"errors"

	"RSISentinel/internal/collector"
)

// streamQueueSize bounds closed candles waiting for a scan.
const streamQueueSize = 64

// CandleStream delivers closed candles until ctx is cancelled.
type CandleStream interface {
	Run(ctx context.Context, handle func(collector.ClosedCandle)) error
}

// RunStream scans each symbol and timeframe as soon as its candle closes.
// Candles arriving while the queue is full are dropped with a warning; the
// next close of that pair scans it again.
func (s *Scheduler) RunStream(ctx context.Context, stream CandleStream) error {
	queue := make(chan collector.ClosedCandle, streamQueueSize)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for c := range queue {
			if _, err := s.ScanCandle(ctx, c); err != nil && !errors.Is(err, context.Canceled) {
				s.Logger.Error().Err(err).Str("symbol", c.Symbol).Str("timeframe", c.Timeframe).Msg("stream scan failed")
			}
		}
	}()

	err := stream.Run(ctx, func(c collector.ClosedCandle) {
		select {
		case queue <- c:
		default:
			s.Logger.Warn().Str("symbol", c.Symbol).Str("timeframe", c.Timeframe).Msg("stream queue full, candle dropped")
		}
	})
	close(queue)
	<-done
	return err
}
