package strategy

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"RSISentinel/internal/model"
)

func mustDivergence(t *testing.T, cfg DivergenceConfig) *DivergenceDetector {
	t.Helper()
	d, err := NewDivergenceDetector(cfg)
	if err != nil {
		t.Fatalf("new detector: %v", err)
	}
	return d
}

func TestDivergence_BearishRoundTrip(t *testing.T) {
	d := mustDivergence(t, DefaultDivergenceConfig())
	signals, err := d.Detect(buildSeries(bearishRows()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 1 {
		t.Fatalf("expected exactly one signal, got %d", len(signals))
	}
	sig := signals[0]
	if sig.Kind != model.KindDivergence || sig.Direction != model.Bearish {
		t.Fatalf("expected bearish divergence, got %s %s", sig.Kind, sig.Direction)
	}
	dv := sig.Divergence
	if dv == nil || sig.Reversal != nil {
		t.Fatal("expected divergence detail only")
	}
	if dv.Price1 != 100 || dv.Price2 != 110 || dv.RSI1 != 70 || dv.RSI2 != 55 {
		t.Errorf("unexpected pair: price %.1f->%.1f rsi %.1f->%.1f", dv.Price1, dv.Price2, dv.RSI1, dv.RSI2)
	}
	if dv.TimeDistance != 10 || !dv.Confirmed {
		t.Errorf("expected distance 10 and confirmed, got %d %v", dv.TimeDistance, dv.Confirmed)
	}
	if sig.Strength != 100 || sig.Label != "Excellent" {
		t.Errorf("expected quality 100 Excellent, got %.1f %s", sig.Strength, sig.Label)
	}
	if sig.CurrentPrice != 89.5 || sig.CurrentRSI != 50 {
		t.Errorf("expected current values from the last row, got %.2f %.2f", sig.CurrentPrice, sig.CurrentRSI)
	}
}

func TestDivergence_FlatSeries(t *testing.T) {
	d := mustDivergence(t, DefaultDivergenceConfig())
	signals, err := d.Detect(buildSeries(flatRows(80)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("expected no signals, got %d", len(signals))
	}
}

func TestDivergence_SinglePeak(t *testing.T) {
	rows := flatRows(50)
	rows[25] = row{high: 110, low: 109, close: 109.5, rsi: 60, volume: 1000}
	d := mustDivergence(t, DefaultDivergenceConfig())
	signals, err := d.Detect(buildSeries(rows))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 0 {
		t.Errorf("expected no divergence from a single pivot, got %d", len(signals))
	}
}

func TestDivergence_ShortSeriesIsSilent(t *testing.T) {
	d := mustDivergence(t, DefaultDivergenceConfig())
	signals, err := d.Detect(buildSeries(bearishRows()[:29]))
	if err != nil || len(signals) != 0 {
		t.Errorf("expected silence for a short series, got %d signals err=%v", len(signals), err)
	}
}

func TestDivergence_InvalidSeries(t *testing.T) {
	rows := bearishRows()
	rows[10].rsi = math.NaN()
	d := mustDivergence(t, DefaultDivergenceConfig())
	_, err := d.Detect(buildSeries(rows))
	if !errors.Is(err, model.ErrInvalidSeries) {
		t.Fatalf("expected ErrInvalidSeries, got %v", err)
	}
}

func TestDivergence_Gates(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(rows []row, cfg *DivergenceConfig)
	}{
		{"rsi agrees with price", func(r []row, _ *DivergenceConfig) { r[30].rsi = 75 }},
		{"rsi change too small", func(r []row, _ *DivergenceConfig) { r[30].rsi = 66 }},
		{"pivots too close", func(_ []row, c *DivergenceConfig) { c.MinTimeBetweenPeaks = 11 }},
		{"pivots too far", func(_ []row, c *DivergenceConfig) { c.LookbackCandles = 9; c.MinTimeBetweenPeaks = 5 }},
		{"price change too small", func(_ []row, c *DivergenceConfig) { c.MinPriceChangePct = 12 }},
		{"rsi below bearish gate", func(_ []row, c *DivergenceConfig) { c.MinBearishRSI = 60 }},
		{"not confirmed", func(r []row, _ *DivergenceConfig) {
			for i := 31; i <= 33; i++ {
				r[i].close = 109.6
				r[i].high = 90
			}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rows := bearishRows()
			cfg := DefaultDivergenceConfig()
			tc.mutate(rows, &cfg)
			d := mustDivergence(t, cfg)
			signals, err := d.Detect(buildSeries(rows))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(signals) != 0 {
				t.Errorf("expected rejection, got %+v", signals[0].Divergence)
			}
		})
	}
}

func TestConfirmed_NeedsThreeFutureCandles(t *testing.T) {
	if confirmed(buildSeries(bearishRows()[:33]), model.Bearish, 30) {
		t.Error("expected no confirmation with only two future candles")
	}
	s := buildSeries(bearishRows()[:34])
	if !confirmed(s, model.Bearish, 30) {
		t.Error("expected confirmation when three lower closes follow")
	}
	if confirmed(s, model.Bullish, 30) {
		t.Error("lower closes must not confirm a bullish pivot")
	}
}

func TestDivergence_QualityFloor(t *testing.T) {
	// Second peak is a wick so the following closes never confirm.
	build := func(price2 float64) *model.Series {
		rows := bearishRows()
		rows[30] = row{high: price2, low: 89, close: 89.5, rsi: 55, volume: 1000}
		return buildSeries(rows)
	}
	cfg := DefaultDivergenceConfig()
	cfg.RequireConfirmation = false
	d := mustDivergence(t, cfg)

	cases := []struct {
		price2    float64
		wantScore float64
		accepted  bool
	}{
		{101.65, 59.9, false},
		{101.67, 60.0, true},
	}
	for _, tc := range cases {
		signals, err := d.Detect(build(tc.price2))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !tc.accepted {
			if len(signals) != 0 {
				t.Errorf("price2=%.2f: expected rejection below the floor, got %.1f", tc.price2, signals[0].Strength)
			}
			continue
		}
		if len(signals) != 1 || signals[0].Strength != tc.wantScore {
			t.Fatalf("price2=%.2f: expected one signal scored %.1f, got %+v", tc.price2, tc.wantScore, signals)
		}
		if signals[0].Divergence.Confirmed {
			t.Error("expected unconfirmed divergence")
		}
	}
}

func TestDivergence_BullishMirror(t *testing.T) {
	rows := flatRows(50)
	for i := range rows {
		rows[i] = row{high: 111, low: 110, close: 110.5, rsi: 50, volume: 1000}
	}
	rows[20] = row{high: 101, low: 100, close: 100.5, rsi: 30, volume: 1000}
	rows[30] = row{high: 96, low: 95, close: 95.5, rsi: 40, volume: 1000}

	d := mustDivergence(t, DefaultDivergenceConfig())
	signals, err := d.Detect(buildSeries(rows))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(signals) != 1 || signals[0].Direction != model.Bullish {
		t.Fatalf("expected one bullish signal, got %+v", signals)
	}
	dv := signals[0].Divergence
	if dv.Price1 != 100 || dv.Price2 != 95 || dv.RSI1 != 30 || dv.RSI2 != 40 {
		t.Errorf("unexpected pair %+v", dv)
	}
}

func TestDivergence_DirectionalProperty(t *testing.T) {
	cfg := DefaultDivergenceConfig()
	cfg.RequireConfirmation = false
	cfg.MinQuality = 0
	d := mustDivergence(t, cfg)

	rng := rand.New(rand.NewSource(99))
	seen := 0
	for trial := 0; trial < 300; trial++ {
		rows := make([]row, 80)
		p := 100.0
		for i := range rows {
			p *= 1 + (rng.Float64()-0.5)*0.05
			rows[i] = row{high: p * 1.01, low: p * 0.99, close: p, rsi: rng.Float64() * 100, volume: 1000}
		}
		signals, err := d.Detect(buildSeries(rows))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, s := range signals {
			seen++
			dv := s.Divergence
			switch s.Direction {
			case model.Bearish:
				if !(dv.Price2 > dv.Price1 && dv.RSI2 < dv.RSI1) {
					t.Fatalf("bearish signal violates signs: %+v", dv)
				}
			case model.Bullish:
				if !(dv.Price2 < dv.Price1 && dv.RSI2 > dv.RSI1) {
					t.Fatalf("bullish signal violates signs: %+v", dv)
				}
			}
			if dv.TimeDistance < cfg.MinTimeBetweenPeaks || dv.TimeDistance > cfg.LookbackCandles {
				t.Fatalf("time distance %d outside bounds", dv.TimeDistance)
			}
		}
	}
	if seen == 0 {
		t.Log("no divergences produced by random walks")
	}
}

func TestNewDivergenceDetector_RejectsBadConfig(t *testing.T) {
	cases := []func(c *DivergenceConfig){
		func(c *DivergenceConfig) { c.PivotOrder = 0 },
		func(c *DivergenceConfig) { c.LookbackCandles = -1 },
		func(c *DivergenceConfig) { c.MinTimeBetweenPeaks = 60 },
		func(c *DivergenceConfig) { c.MinRSIDivergence = -1 },
		func(c *DivergenceConfig) { c.MinQuality = 101 },
		func(c *DivergenceConfig) { c.MaxBullishRSI = 120 },
	}
	for i, mutate := range cases {
		cfg := DefaultDivergenceConfig()
		mutate(&cfg)
		if _, err := NewDivergenceDetector(cfg); err == nil {
			t.Errorf("case %d: expected config error", i)
		}
	}
}
