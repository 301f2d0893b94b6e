package recorder

import (
	"context"
	"time"

	"RSISentinel/internal/model"
)

// DefaultCooldown suppresses repeat alerts for the same symbol, timeframe and signal type.
const DefaultCooldown = 2 * time.Hour

// StoredSignal is one persisted detection.
type StoredSignal struct {
	ID         int64      `json:"id"`
	Symbol     string     `json:"symbol"`
	Timeframe  string     `json:"timeframe"`
	Type       string     `json:"type"` // Signal.DedupKey()
	Kind       string     `json:"kind"`
	Direction  string     `json:"direction"`
	Price      float64    `json:"price"`
	RSI        float64    `json:"rsi"`
	Strength   float64    `json:"strength"`
	Label      string     `json:"label"`
	Confirmed  bool       `json:"confirmed"`
	DetectedAt time.Time  `json:"detected_at"`
	Alerted    bool       `json:"alerted"`
	AlertedAt  *time.Time `json:"alerted_at,omitempty"`
}

// Stats summarises the store.
type Stats struct {
	Total       int64 `json:"total"`
	Bullish     int64 `json:"bullish"`
	Bearish     int64 `json:"bearish"`
	Divergences int64 `json:"divergences"`
	Reversals   int64 `json:"reversals"`
	Alerted     int64 `json:"alerted"`
	Last24h     int64 `json:"last_24h"`
}

// Recorder persists detected signals and answers alert-cooldown queries.
type Recorder interface {
	IsDuplicate(ctx context.Context, symbol, timeframe, signalType string, cooldown time.Duration) (bool, error)
	Save(ctx context.Context, sig *model.Signal) (int64, error)
	MarkAlerted(ctx context.Context, id int64) error
	RecentSignals(ctx context.Context, since time.Duration) ([]StoredSignal, error)
	Statistics(ctx context.Context) (*Stats, error)
	CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error)
	Close() error
}

// confirmedFlag is the stored confirmation bit: forward confirmation for
// divergences, the volume surge gate for reversals.
func confirmedFlag(sig *model.Signal) bool {
	switch {
	case sig.Divergence != nil:
		return sig.Divergence.Confirmed
	case sig.Reversal != nil:
		return true
	default:
		return false
	}
}
