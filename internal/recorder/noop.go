package recorder

import (
	"context"
	"time"

	"RSISentinel/internal/model"
)

// NoopRecorder is a no-op implementation used when no store is configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) IsDuplicate(context.Context, string, string, string, time.Duration) (bool, error) {
	return false, nil
}
func (n *NoopRecorder) Save(context.Context, *model.Signal) (int64, error) { return 0, nil }
func (n *NoopRecorder) MarkAlerted(context.Context, int64) error           { return nil }
func (n *NoopRecorder) RecentSignals(context.Context, time.Duration) ([]StoredSignal, error) {
	return nil, nil
}
func (n *NoopRecorder) Statistics(context.Context) (*Stats, error)               { return &Stats{}, nil }
func (n *NoopRecorder) CleanupOld(context.Context, time.Duration) (int64, error) { return 0, nil }
func (n *NoopRecorder) Close() error                                             { return nil }

