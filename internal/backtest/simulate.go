package backtest

import (
	"time"

	"RSISentinel/internal/model"
)

// Exit describes how a simulated position closed.
type Exit struct {
	Outcome   model.Outcome
	Price     float64
	Time      time.Time
	ProfitPct float64
	BarsHeld  int
}

// Simulate walks future bar by bar from an entry at price entry.
// Bullish signals are simulated as longs and bearish signals as shorts.
// When stop-loss and take-profit are both reachable within one bar the stop-loss wins.
// If neither is hit the trade times out at the last close; an empty future times out at entry.
func Simulate(dir model.Direction, entry float64, future []model.OHLCV, takeProfitPct, stopLossPct float64) Exit {
	long := dir == model.Bullish
	var tp, sl float64
	if long {
		tp = entry * (1 + takeProfitPct/100)
		sl = entry * (1 - stopLossPct/100)
	} else {
		tp = entry * (1 - takeProfitPct/100)
		sl = entry * (1 + stopLossPct/100)
	}

	for i, bar := range future {
		var hitSL, hitTP bool
		if long {
			hitSL, hitTP = bar.Low <= sl, bar.High >= tp
		} else {
			hitSL, hitTP = bar.High >= sl, bar.Low <= tp
		}
		switch {
		case hitSL:
			return Exit{Outcome: model.OutcomeLoss, Price: sl, Time: bar.Time, ProfitPct: -stopLossPct, BarsHeld: i + 1}
		case hitTP:
			return Exit{Outcome: model.OutcomeWin, Price: tp, Time: bar.Time, ProfitPct: takeProfitPct, BarsHeld: i + 1}
		}
	}

	if len(future) == 0 {
		return Exit{Outcome: model.OutcomeTimeout, Price: entry}
	}
	last := future[len(future)-1]
	pct := (last.Close - entry) / entry * 100
	if !long {
		pct = -pct
	}
	return Exit{Outcome: model.OutcomeTimeout, Price: last.Close, Time: last.Time, ProfitPct: pct, BarsHeld: len(future)}
}
