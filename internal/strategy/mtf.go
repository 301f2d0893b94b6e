package strategy

import (
	"RSISentinel/internal/calculator"
	"RSISentinel/internal/model"
)

// Trend is a higher-timeframe trend classification.
type Trend string

const (
	TrendUp       Trend = "UPTREND"
	TrendDown     Trend = "DOWNTREND"
	TrendSideways Trend = "SIDEWAYS"
	TrendUnknown  Trend = "UNKNOWN"
)

// Confidence levels attached to a multi-timeframe confirmation.
const (
	ConfidenceHigh   = "HIGH"
	ConfidenceMedium = "MEDIUM"
	ConfidenceLow    = "LOW"
)

const (
	// DefaultTrendEMA is the EMA period used for higher-timeframe trends.
	DefaultTrendEMA = 50
	trendSlopeBars  = 10
	trendBand       = 0.02
)

var higherTimeframes = map[string]string{
	"5m":  "15m",
	"15m": "30m",
	"30m": "1h",
	"1h":  "4h",
	"4h":  "1d",
}

// HigherTimeframe returns the timeframe used to confirm signals on tf, or "" if none.
func HigherTimeframe(tf string) string {
	return higherTimeframes[tf]
}

// ClassifyTrend compares the last close with its EMA and the EMA slope over the last 10 bars.
// Series shorter than emaPeriod+10 are UNKNOWN.
func ClassifyTrend(bars []model.OHLCV, emaPeriod int) Trend {
	if emaPeriod <= 0 || len(bars) < emaPeriod+trendSlopeBars {
		return TrendUnknown
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	ema, err := calculator.EMASeries(closes, emaPeriod)
	if err != nil {
		return TrendUnknown
	}
	n := len(ema)
	current, past := ema[n-1], ema[n-trendSlopeBars]
	if past <= 0 {
		return TrendUnknown
	}
	slope := calculator.PctChange(past, current)
	price := closes[n-1]

	switch {
	case price > current*(1+trendBand) && slope > 0:
		return TrendUp
	case price < current*(1-trendBand) && slope < 0:
		return TrendDown
	default:
		return TrendSideways
	}
}

// Confirm decides whether a signal agrees with the higher-timeframe trend.
// Reversals are wanted where the larger trend is exhausted, so a bullish signal
// is confirmed against a downtrend and rejected in an uptrend.
func Confirm(dir model.Direction, higherTF string, trend Trend) model.Confirmation {
	c := model.Confirmation{HigherTimeframe: higherTF, Trend: string(trend)}
	against, with := TrendDown, TrendUp
	if dir == model.Bearish {
		against, with = TrendUp, TrendDown
	}
	switch trend {
	case against:
		c.Confirmed, c.Confidence, c.Recommendation = true, ConfidenceHigh, "TAKE SIGNAL - Reversal setup"
	case TrendSideways:
		c.Confirmed, c.Confidence, c.Recommendation = true, ConfidenceMedium, "TAKE SIGNAL - Range reversal"
	case with:
		c.Confidence = ConfidenceLow
		if dir == model.Bullish {
			c.Recommendation = "SKIP - Already in uptrend"
		} else {
			c.Recommendation = "SKIP - Already in downtrend"
		}
	default:
		c.Confidence, c.Recommendation = ConfidenceLow, "SKIP - Higher timeframe unclear"
	}
	return c
}
