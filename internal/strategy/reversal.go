package strategy

import (
	"fmt"
	"math"

	"RSISentinel/internal/calculator"
	"RSISentinel/internal/model"
)

const (
	minReversalRows  = 40
	recentRSIWindow  = 15
	touchScanWindow  = 60
	touchMinSpacing  = 3
	touchClusterSize = 5
	volumeRecentBars = 3
	volumeBaseBars   = 17
	momentumBars     = 3
	strongMomentum   = 1.5
	volumeScore      = 20
)

// Momentum labels for the last few closes.
const (
	MomentumStronglyUp   = "strongly_up"
	MomentumUp           = "up"
	MomentumFlat         = "flat"
	MomentumDown         = "down"
	MomentumStronglyDown = "strongly_down"
)

// StrengthTiers maps a reversal strength to its label, highest first.
var StrengthTiers = []struct {
	MinScore float64
	Label    string
}{
	{85, "Extremely Strong"},
	{70, "Very Strong"},
	{55, "Strong"},
}

// DefaultStrengthLabel applies below the lowest tier.
const DefaultStrengthLabel = "Moderate"

// StrengthLabel maps a reversal strength to a label.
func StrengthLabel(strength float64) string {
	for _, t := range StrengthTiers {
		if strength >= t.MinScore {
			return t.Label
		}
	}
	return DefaultStrengthLabel
}

// ReversalDetector finds RSI bounces off a repeatedly tested support zone and
// rejections from a resistance zone.
type ReversalDetector struct {
	cfg ReversalConfig
}

// NewReversalDetector validates cfg and returns a detector.
func NewReversalDetector(cfg ReversalConfig) (*ReversalDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("reversal config: %w", err)
	}
	return &ReversalDetector{cfg: cfg}, nil
}

// Config returns the detector settings.
func (d *ReversalDetector) Config() ReversalConfig { return d.cfg }

// Detect returns support and resistance reversals present at the end of the series.
func (d *ReversalDetector) Detect(s *model.Series) ([]model.Signal, error) {
	if err := calculator.ValidateSeries(s); err != nil {
		return nil, err
	}
	if s.Len() < minReversalRows {
		return nil, nil
	}
	var out []model.Signal
	for _, dir := range []model.Direction{model.Bullish, model.Bearish} {
		if sig, ok := d.evaluate(s, dir); ok {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (d *ReversalDetector) evaluate(s *model.Series, dir model.Direction) (model.Signal, bool) {
	cfg := d.cfg
	bullish := dir == model.Bullish
	n := s.Len()
	current := s.RSI[n-1]

	zone := cfg.SupportZone
	if !bullish {
		zone = cfg.ResistanceZone
	}

	lo, hi := calculator.MinMax(s.RSI[n-recentRSIWindow:])
	var extreme, move float64
	if bullish {
		extreme, move = lo, current-lo
		if !zone.Contains(extreme) || current <= zone.Low {
			return model.Signal{}, false
		}
	} else {
		extreme, move = hi, hi-current
		if !zone.Contains(extreme) || current >= zone.High {
			return model.Signal{}, false
		}
	}
	if move < cfg.RSIBounceThreshold {
		return model.Signal{}, false
	}

	touches := zoneTouches(s.RSI, zone)
	if len(touches) < cfg.MinTouches {
		return model.Signal{}, false
	}
	cluster := touches
	if len(cluster) > touchClusterSize {
		cluster = cluster[len(cluster)-touchClusterSize:]
	}
	std := calculator.StdDev(cluster)
	if std > cfg.MaxRSIVariance {
		return model.Signal{}, false
	}

	closes := s.Closes()
	trendPct, consistency := priceTrend(closes[n-cfg.PriceTrendCandles:], bullish)
	if math.Abs(trendPct) < cfg.MinPriceTrend || consistency <= 0.5 {
		return model.Signal{}, false
	}
	if bullish && trendPct >= -cfg.MinPriceTrend || !bullish && trendPct <= cfg.MinPriceTrend {
		return model.Signal{}, false
	}

	volRatio, ok := volumeSurge(s.Volumes(), cfg.VolumeMultiplier)
	if !ok {
		return model.Signal{}, false
	}

	momentum := recentMomentum(closes)
	if bullish && momentum == MomentumStronglyDown || !bullish && momentum == MomentumStronglyUp {
		return model.Signal{}, false
	}

	strength := ReversalStrength(len(touches), std, trendPct, move, cfg.RSIBounceThreshold)
	if strength < cfg.MinStrength {
		return model.Signal{}, false
	}

	detail := &model.ReversalDetail{
		ZoneLow:          zone.Low,
		ZoneHigh:         zone.High,
		ZoneExtreme:      extreme,
		Touches:          len(touches),
		TouchStdDev:      std,
		TrendPct:         trendPct,
		TrendConsistency: consistency,
		Bounce:           move,
		VolumeRatio:      volRatio,
		Momentum:         momentum,
	}
	return model.Signal{
		Kind:         model.KindReversal,
		Direction:    dir,
		Symbol:       s.Symbol,
		Timeframe:    s.Timeframe,
		Strength:     strength,
		Label:        StrengthLabel(strength),
		Timestamp:    s.Bars[n-1].Time,
		CurrentPrice: closes[n-1],
		CurrentRSI:   current,
		Explanation:  explainReversal(dir, detail),
		Reversal:     detail,
	}, true
}

// ReversalStrength scores a reversal out of 100: touch quality 30, trend 25,
// bounce or rejection 25, volume 20.
func ReversalStrength(touches int, touchStd, trendPct, move, threshold float64) float64 {
	touchScore := float64(min(touches, touchClusterSize))*6 - math.Min(touchStd*2, 10)
	touchScore = math.Max(0, math.Min(touchScore, 30))
	trendScore := math.Min(math.Abs(trendPct)*5, 25)
	moveScore := math.Max(0, math.Min((move-threshold)*3, 25))
	return math.Min(calculator.Round1(touchScore+trendScore+moveScore+volumeScore), 100)
}

// zoneTouches returns the RSI value of each discrete touch of zone within the last
// touchScanWindow rows. A touch counts only if it is more than touchMinSpacing rows
// after the previous counted touch.
func zoneTouches(rsi []float64, zone Zone) []float64 {
	start := len(rsi) - touchScanWindow
	if start < 0 {
		start = 0
	}
	var values []float64
	lastIdx := -1
	for i := start; i < len(rsi); i++ {
		if !zone.Contains(rsi[i]) {
			continue
		}
		if lastIdx >= 0 && i-lastIdx <= touchMinSpacing {
			continue
		}
		values = append(values, rsi[i])
		lastIdx = i
	}
	return values
}

// priceTrend returns the percentage move across closes and the share of steps in
// the expected direction (down for bullish setups, up for bearish).
func priceTrend(closes []float64, bullish bool) (pct, consistency float64) {
	if len(closes) < 2 {
		return 0, 0
	}
	pct = calculator.PctChange(closes[0], closes[len(closes)-1])
	agree := 0
	for i := 1; i < len(closes); i++ {
		if bullish && closes[i] < closes[i-1] || !bullish && closes[i] > closes[i-1] {
			agree++
		}
	}
	return pct, float64(agree) / float64(len(closes)-1)
}

// volumeSurge compares the last volumeRecentBars with the volumeBaseBars before them.
func volumeSurge(volumes []float64, multiplier float64) (ratio float64, ok bool) {
	n := len(volumes)
	if n < volumeRecentBars+volumeBaseBars {
		return 0, false
	}
	recent, _ := calculator.CalculateSMA(volumes, volumeRecentBars)
	base := calculator.Mean(volumes[n-volumeRecentBars-volumeBaseBars : n-volumeRecentBars])
	if base <= 0 {
		return 0, false
	}
	ratio = recent / base
	return ratio, ratio > multiplier
}

func recentMomentum(closes []float64) string {
	if len(closes) < momentumBars {
		return MomentumFlat
	}
	w := closes[len(closes)-momentumBars:]
	pct := calculator.PctChange(w[0], w[len(w)-1])
	switch {
	case pct > strongMomentum:
		return MomentumStronglyUp
	case pct < -strongMomentum:
		return MomentumStronglyDown
	case pct > 0:
		return MomentumUp
	case pct < 0:
		return MomentumDown
	default:
		return MomentumFlat
	}
}

func explainReversal(dir model.Direction, d *model.ReversalDetail) string {
	if dir == model.Bullish {
		return fmt.Sprintf("RSI bounced %.1f points off support %.0f-%.0f after %d touches while price fell %.2f%%",
			d.Bounce, d.ZoneLow, d.ZoneHigh, d.Touches, d.TrendPct)
	}
	return fmt.Sprintf("RSI rejected %.1f points from resistance %.0f-%.0f after %d touches while price rose %+.2f%%",
		d.Bounce, d.ZoneLow, d.ZoneHigh, d.Touches, d.TrendPct)
}

