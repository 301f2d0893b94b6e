package strategy

import (
	"errors"
	"fmt"
)

// DivergenceConfig controls pivot extraction and divergence validation.
type DivergenceConfig struct {
	PivotOrder          int     `yaml:"pivot_order"`
	MinPeakProminence   float64 `yaml:"min_peak_prominence"`
	MinRSIDivergence    float64 `yaml:"min_rsi_divergence"`
	MinPriceChangePct   float64 `yaml:"min_price_change_pct"`
	LookbackCandles     int     `yaml:"lookback_candles"`
	MinTimeBetweenPeaks int     `yaml:"min_time_between_peaks"`
	RequireConfirmation bool    `yaml:"require_confirmation"`
	MaxBullishRSI       float64 `yaml:"max_bullish_rsi"`
	MinBearishRSI       float64 `yaml:"min_bearish_rsi"`
	MinQuality          float64 `yaml:"min_quality"`
}

// DefaultDivergenceConfig returns the production divergence settings.
func DefaultDivergenceConfig() DivergenceConfig {
	return DivergenceConfig{
		PivotOrder:          3,
		MinPeakProminence:   2.0,
		MinRSIDivergence:    5.0,
		MinPriceChangePct:   0.5,
		LookbackCandles:     50,
		MinTimeBetweenPeaks: 5,
		RequireConfirmation: true,
		MaxBullishRSI:       100,
		MinBearishRSI:       0,
		MinQuality:          60,
	}
}

// Validate rejects settings that cannot produce meaningful detections.
func (c DivergenceConfig) Validate() error {
	if c.PivotOrder <= 0 {
		return fmt.Errorf("pivot_order must be positive, got %d", c.PivotOrder)
	}
	if c.LookbackCandles <= 0 {
		return fmt.Errorf("lookback_candles must be positive, got %d", c.LookbackCandles)
	}
	if c.MinTimeBetweenPeaks <= 0 {
		return fmt.Errorf("min_time_between_peaks must be positive, got %d", c.MinTimeBetweenPeaks)
	}
	if c.MinTimeBetweenPeaks > c.LookbackCandles {
		return fmt.Errorf("min_time_between_peaks (%d) exceeds lookback_candles (%d)", c.MinTimeBetweenPeaks, c.LookbackCandles)
	}
	if c.MinPeakProminence < 0 || c.MinRSIDivergence < 0 || c.MinPriceChangePct < 0 {
		return errors.New("divergence thresholds must not be negative")
	}
	if c.MaxBullishRSI < 0 || c.MaxBullishRSI > 100 || c.MinBearishRSI < 0 || c.MinBearishRSI > 100 {
		return errors.New("rsi gates must be within [0, 100]")
	}
	if c.MinQuality < 0 || c.MinQuality > 100 {
		return fmt.Errorf("min_quality must be within [0, 100], got %.1f", c.MinQuality)
	}
	return nil
}

// Zone is an inclusive RSI band.
type Zone struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// Contains reports whether v lies inside the band.
func (z Zone) Contains(v float64) bool { return v >= z.Low && v <= z.High }

// ReversalConfig controls the RSI support/resistance reversal detector.
type ReversalConfig struct {
	SupportZone        Zone    `yaml:"support_zone"`
	ResistanceZone     Zone    `yaml:"resistance_zone"`
	MinTouches         int     `yaml:"min_touches"`
	PriceTrendCandles  int     `yaml:"price_trend_candles"`
	MinPriceTrend      float64 `yaml:"min_price_trend"`
	RSIBounceThreshold float64 `yaml:"rsi_bounce_threshold"`
	VolumeMultiplier   float64 `yaml:"volume_multiplier"`
	MaxRSIVariance     float64 `yaml:"max_rsi_variance"`
	MinStrength        float64 `yaml:"min_strength"`
}

// DefaultReversalConfig returns the production reversal settings.
func DefaultReversalConfig() ReversalConfig {
	return ReversalConfig{
		SupportZone:        Zone{Low: 28, High: 38},
		ResistanceZone:     Zone{Low: 62, High: 72},
		MinTouches:         3,
		PriceTrendCandles:  7,
		MinPriceTrend:      2.0,
		RSIBounceThreshold: 8,
		VolumeMultiplier:   1.1,
		MaxRSIVariance:     5,
		MinStrength:        50,
	}
}

// Validate rejects inconsistent zones and non-positive windows.
func (c ReversalConfig) Validate() error {
	for name, z := range map[string]Zone{"support_zone": c.SupportZone, "resistance_zone": c.ResistanceZone} {
		if z.Low < 0 || z.High > 100 || z.Low >= z.High {
			return fmt.Errorf("%s must satisfy 0 <= low < high <= 100, got [%.1f, %.1f]", name, z.Low, z.High)
		}
	}
	if c.SupportZone.High >= c.ResistanceZone.Low {
		return errors.New("support_zone must sit below resistance_zone")
	}
	if c.MinTouches <= 0 {
		return fmt.Errorf("min_touches must be positive, got %d", c.MinTouches)
	}
	if c.PriceTrendCandles < 2 || c.PriceTrendCandles > minReversalRows {
		return fmt.Errorf("price_trend_candles must be within [2, %d], got %d", minReversalRows, c.PriceTrendCandles)
	}
	if c.MinPriceTrend < 0 || c.RSIBounceThreshold < 0 || c.MaxRSIVariance < 0 {
		return errors.New("reversal thresholds must not be negative")
	}
	if c.VolumeMultiplier <= 0 {
		return fmt.Errorf("volume_multiplier must be positive, got %.2f", c.VolumeMultiplier)
	}
	if c.MinStrength < 0 || c.MinStrength > 100 {
		return fmt.Errorf("min_strength must be within [0, 100], got %.1f", c.MinStrength)
	}
	return nil
}
