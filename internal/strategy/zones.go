package strategy

import (
	"fmt"

	"RSISentinel/internal/calculator"
	"RSISentinel/internal/model"
)

// RSIZone names a band of the RSI range.
type RSIZone string

const (
	ZoneExtremeOversold   RSIZone = "EXTREME_OVERSOLD"
	ZoneOversold          RSIZone = "OVERSOLD"
	ZoneNeutralLow        RSIZone = "NEUTRAL_LOW"
	ZoneNeutral           RSIZone = "NEUTRAL"
	ZoneNeutralHigh       RSIZone = "NEUTRAL_HIGH"
	ZoneOverbought        RSIZone = "OVERBOUGHT"
	ZoneExtremeOverbought RSIZone = "EXTREME_OVERBOUGHT"
)

// ZoneOrder lists zones from most oversold to most overbought.
var ZoneOrder = []RSIZone{
	ZoneExtremeOversold, ZoneOversold, ZoneNeutralLow, ZoneNeutral,
	ZoneNeutralHigh, ZoneOverbought, ZoneExtremeOverbought,
}

// ZoneThresholds are the boundaries between RSI zones.
type ZoneThresholds struct {
	ExtremeOversold   float64 `yaml:"extreme_oversold"`
	Oversold          float64 `yaml:"oversold"`
	NeutralLow        float64 `yaml:"neutral_low"`
	NeutralHigh       float64 `yaml:"neutral_high"`
	Overbought        float64 `yaml:"overbought"`
	ExtremeOverbought float64 `yaml:"extreme_overbought"`
}

// DefaultZoneThresholds returns the standard zone boundaries.
func DefaultZoneThresholds() ZoneThresholds {
	return ZoneThresholds{
		ExtremeOversold:   25,
		Oversold:          30,
		NeutralLow:        40,
		NeutralHigh:       60,
		Overbought:        70,
		ExtremeOverbought: 75,
	}
}

// Validate requires strictly increasing boundaries within [0, 100].
func (th ZoneThresholds) Validate() error {
	bounds := []float64{th.ExtremeOversold, th.Oversold, th.NeutralLow, th.NeutralHigh, th.Overbought, th.ExtremeOverbought}
	for i, b := range bounds {
		if b < 0 || b > 100 || (i > 0 && b <= bounds[i-1]) {
			return fmt.Errorf("zone thresholds must increase within [0, 100], got %v", bounds)
		}
	}
	return nil
}

// ClassifyZone returns the zone rsi falls in.
func ClassifyZone(rsi float64, th ZoneThresholds) RSIZone {
	switch {
	case rsi <= th.ExtremeOversold:
		return ZoneExtremeOversold
	case rsi <= th.Oversold:
		return ZoneOversold
	case rsi <= th.NeutralLow:
		return ZoneNeutralLow
	case rsi < th.NeutralHigh:
		return ZoneNeutral
	case rsi < th.Overbought:
		return ZoneNeutralHigh
	case rsi < th.ExtremeOverbought:
		return ZoneOverbought
	default:
		return ZoneExtremeOverbought
	}
}

// RSI direction labels.
const (
	RSIRising  = "RISING"
	RSIFalling = "FALLING"
	RSIStable  = "STABLE"
)

// RSITrend compares the mean of the last 3 RSI values with the mean of the 2 before.
func RSITrend(rsi []float64) string {
	if len(rsi) < 5 {
		return RSIStable
	}
	n := len(rsi)
	diff := calculator.Mean(rsi[n-3:]) - calculator.Mean(rsi[n-5:n-3])
	switch {
	case diff > 2:
		return RSIRising
	case diff < -2:
		return RSIFalling
	default:
		return RSIStable
	}
}

// ZoneReading is where one symbol's latest RSI sits.
type ZoneReading struct {
	Symbol    string
	Timeframe string
	Price     float64
	RSI       float64
	Zone      RSIZone
	Trend     string
}

// ReadZone classifies the newest row of s. It reports false for an empty series.
func ReadZone(s *model.Series, th ZoneThresholds) (ZoneReading, bool) {
	last := s.Last()
	if last < 0 {
		return ZoneReading{}, false
	}
	rsi := s.RSI[last]
	return ZoneReading{
		Symbol:    s.Symbol,
		Timeframe: s.Timeframe,
		Price:     s.Bars[last].Close,
		RSI:       rsi,
		Zone:      ClassifyZone(rsi, th),
		Trend:     RSITrend(s.RSI),
	}, true
}
