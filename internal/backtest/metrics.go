package backtest

import "RSISentinel/internal/model"

// Summarize rolls trades up into win rate, profit factor and averages.
func Summarize(trades []model.TradeResult) Metrics {
	var m Metrics
	var winSum, lossSum float64
	bars := 0
	for _, t := range trades {
		m.NumTrades++
		m.TotalProfitPct += t.ProfitPct
		bars += t.BarsHeld
		switch t.Outcome {
		case model.OutcomeWin:
			m.Wins++
			winSum += t.ProfitPct
		case model.OutcomeLoss:
			m.Losses++
			lossSum += t.ProfitPct
		default:
			m.Timeouts++
		}
	}
	if m.NumTrades == 0 {
		return m
	}
	if decided := m.Wins + m.Losses; decided > 0 {
		m.WinRate = float64(m.Wins) / float64(decided) * 100
	}
	if lossSum != 0 {
		m.ProfitFactor = winSum / -lossSum
	}
	if m.Wins > 0 {
		m.AvgWinPct = winSum / float64(m.Wins)
	}
	if m.Losses > 0 {
		m.AvgLossPct = lossSum / float64(m.Losses)
	}
	m.AvgProfitPct = m.TotalProfitPct / float64(m.NumTrades)
	m.AvgBarsHeld = float64(bars) / float64(m.NumTrades)
	return m
}

// fillMetrics recomputes overall and per-symbol metrics from res.Trades.
func fillMetrics(res *Result) {
	res.Metrics = Summarize(res.Trades)
	bySymbol := make(map[string][]model.TradeResult)
	for _, t := range res.Trades {
		bySymbol[t.Symbol] = append(bySymbol[t.Symbol], t)
	}
	res.PerSymbol = make(map[string]Metrics, len(bySymbol))
	for sym, trades := range bySymbol {
		res.PerSymbol[sym] = Summarize(trades)
	}
}
