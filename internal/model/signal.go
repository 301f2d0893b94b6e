package model

import "time"

// SignalKind identifies which detector produced a signal.
type SignalKind string

const (
	KindDivergence SignalKind = "DIVERGENCE"
	KindReversal   SignalKind = "RSI_REVERSAL"
)

// Direction is the expected price move after the signal.
type Direction string

const (
	Bullish Direction = "BULLISH"
	Bearish Direction = "BEARISH"
)

// DivergenceDetail holds the pivot pair behind a divergence.
type DivergenceDetail struct {
	Pivot1         Pivot
	Pivot2         Pivot
	Price1         float64
	Price2         float64
	RSI1           float64
	RSI2           float64
	PriceChangePct float64
	RSIChange      float64
	MinProminence  float64
	TimeDistance   int
	Confirmed      bool
}

// ReversalDetail holds the evidence behind an RSI support/resistance reversal.
type ReversalDetail struct {
	ZoneLow          float64
	ZoneHigh         float64
	ZoneExtreme      float64 // min RSI for support, max RSI for resistance
	Touches          int
	TouchStdDev      float64
	TrendPct         float64
	TrendConsistency float64
	Bounce           float64 // bounce for support, rejection for resistance
	VolumeRatio      float64
	Momentum         string
}

// Confirmation is the result of checking a signal against a higher timeframe.
type Confirmation struct {
	HigherTimeframe string
	Trend           string
	Confirmed       bool
	Confidence      string
	Recommendation  string
}

// Signal is a detected event. Exactly one of Divergence or Reversal is set, matching Kind.
type Signal struct {
	Kind         SignalKind
	Direction    Direction
	Symbol       string
	Timeframe    string
	Strength     float64 // quality for divergences, strength for reversals (0-100)
	Label        string
	Timestamp    time.Time
	CurrentPrice float64
	CurrentRSI   float64
	Explanation  string

	Divergence *DivergenceDetail
	Reversal   *ReversalDetail
	MTF        *Confirmation
}

// DedupKey is the signal type used for alert cooldowns.
func (s *Signal) DedupKey() string {
	return string(s.Kind) + "_" + string(s.Direction)
}

// Outcome is how a simulated trade closed.
type Outcome string

const (
	OutcomeWin     Outcome = "WIN"
	OutcomeLoss    Outcome = "LOSS"
	OutcomeTimeout Outcome = "TIMEOUT"
)

// TradeResult is a signal replayed against the candles that followed it.
type TradeResult struct {
	Symbol     string
	Timeframe  string
	Kind       SignalKind
	Direction  Direction
	EntryTime  time.Time
	EntryPrice float64
	ExitTime   time.Time
	ExitPrice  float64
	Outcome    Outcome
	ProfitPct  float64
	BarsHeld   int
	Strength   float64
}
