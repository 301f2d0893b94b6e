package strategy

import (
	"fmt"
	"math"

	"RSISentinel/internal/calculator"
	"RSISentinel/internal/model"
)

const (
	// minDivergenceRows is the shortest series the divergence detector looks at.
	minDivergenceRows = 30
	// confirmationCandles follow the second pivot; confirmationNeeded of them must agree.
	confirmationCandles = 3
	confirmationNeeded  = 2
)

// DivergenceDetector finds RSI/price divergences across the two most recent pivots.
type DivergenceDetector struct {
	cfg DivergenceConfig
}

// NewDivergenceDetector validates cfg and returns a detector.
func NewDivergenceDetector(cfg DivergenceConfig) (*DivergenceDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("divergence config: %w", err)
	}
	return &DivergenceDetector{cfg: cfg}, nil
}

// Config returns the detector settings.
func (d *DivergenceDetector) Config() DivergenceConfig { return d.cfg }

// Detect returns at most one bullish and one bearish divergence for the series.
// A short series yields no signals and no error.
func (d *DivergenceDetector) Detect(s *model.Series) ([]model.Signal, error) {
	if err := calculator.ValidateSeries(s); err != nil {
		return nil, err
	}
	if s.Len() < minDivergenceRows {
		return nil, nil
	}
	var out []model.Signal
	for _, dir := range []model.Direction{model.Bullish, model.Bearish} {
		if sig, ok := d.detect(s, dir); ok {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (d *DivergenceDetector) detect(s *model.Series, dir model.Direction) (model.Signal, bool) {
	var pivots []model.Pivot
	if dir == model.Bearish {
		pivots = FindPeaks(s.Highs(), d.cfg.PivotOrder, d.cfg.MinPeakProminence)
	} else {
		pivots = FindTroughs(s.Lows(), d.cfg.PivotOrder, d.cfg.MinPeakProminence)
	}
	if len(pivots) < 2 {
		return model.Signal{}, false
	}
	p1, p2 := pivots[len(pivots)-2], pivots[len(pivots)-1]

	detail, ok := d.validatePair(s, dir, p1, p2)
	if !ok {
		return model.Signal{}, false
	}
	detail.Confirmed = confirmed(s, dir, p2.Index)
	if d.cfg.RequireConfirmation && !detail.Confirmed {
		return model.Signal{}, false
	}

	score := QualityScore(QualityInputs{
		PriceChangePct: detail.PriceChangePct,
		RSIChange:      detail.RSIChange,
		MinProminence:  detail.MinProminence,
		Confirmed:      detail.Confirmed,
	})
	if score < d.cfg.MinQuality {
		return model.Signal{}, false
	}

	last := s.Last()
	return model.Signal{
		Kind:         model.KindDivergence,
		Direction:    dir,
		Symbol:       s.Symbol,
		Timeframe:    s.Timeframe,
		Strength:     score,
		Label:        QualityLabel(score),
		Timestamp:    s.Bars[last].Time,
		CurrentPrice: s.Bars[last].Close,
		CurrentRSI:   s.RSI[last],
		Explanation:  explainDivergence(dir, detail),
		Divergence:   detail,
	}, true
}

// validatePair applies the timing, magnitude and direction gates to a pivot pair.
func (d *DivergenceDetector) validatePair(s *model.Series, dir model.Direction, p1, p2 model.Pivot) (*model.DivergenceDetail, bool) {
	distance := p2.Index - p1.Index
	if distance < d.cfg.MinTimeBetweenPeaks || distance > d.cfg.LookbackCandles {
		return nil, false
	}

	price1, price2 := p1.Value, p2.Value
	rsi1, rsi2 := s.RSI[p1.Index], s.RSI[p2.Index]
	priceChange := calculator.PctChange(price1, price2)
	rsiChange := rsi2 - rsi1

	if math.Abs(priceChange) < d.cfg.MinPriceChangePct {
		return nil, false
	}
	if math.Abs(rsiChange) < d.cfg.MinRSIDivergence {
		return nil, false
	}

	switch dir {
	case model.Bearish:
		if !(price2 > price1 && rsi2 < rsi1) {
			return nil, false
		}
		if rsi2 < d.cfg.MinBearishRSI {
			return nil, false
		}
	case model.Bullish:
		if !(price2 < price1 && rsi2 > rsi1) {
			return nil, false
		}
		if rsi2 > d.cfg.MaxBullishRSI {
			return nil, false
		}
	default:
		return nil, false
	}

	return &model.DivergenceDetail{
		Pivot1:         p1,
		Pivot2:         p2,
		Price1:         price1,
		Price2:         price2,
		RSI1:           rsi1,
		RSI2:           rsi2,
		PriceChangePct: priceChange,
		RSIChange:      rsiChange,
		MinProminence:  math.Min(p1.Prominence, p2.Prominence),
		TimeDistance:   distance,
	}, true
}

// confirmed reports whether at least two of the three closes after idx moved in dir.
// Fewer than three future candles never confirm.
func confirmed(s *model.Series, dir model.Direction, idx int) bool {
	if idx+confirmationCandles >= s.Len() {
		return false
	}
	ref := s.Bars[idx].Close
	agree := 0
	for i := idx + 1; i <= idx+confirmationCandles; i++ {
		c := s.Bars[i].Close
		if (dir == model.Bearish && c < ref) || (dir == model.Bullish && c > ref) {
			agree++
		}
	}
	return agree >= confirmationNeeded
}

func explainDivergence(dir model.Direction, d *model.DivergenceDetail) string {
	if dir == model.Bearish {
		return fmt.Sprintf("Price made a higher high (%.4g -> %.4g, %+.2f%%) while RSI made a lower high (%.1f -> %.1f)",
			d.Price1, d.Price2, d.PriceChangePct, d.RSI1, d.RSI2)
	}
	return fmt.Sprintf("Price made a lower low (%.4g -> %.4g, %+.2f%%) while RSI made a higher low (%.1f -> %.1f)",
		d.Price1, d.Price2, d.PriceChangePct, d.RSI1, d.RSI2)
}
