package backtest

import (
	"context"
	"fmt"
	"sort"

	"RSISentinel/internal/model"
	"RSISentinel/internal/strategy"
)

// RSIThresholds pairs the bullish ceiling with the bearish floor for the second pivot's RSI.
type RSIThresholds struct {
	Bullish float64
	Bearish float64
}

// Grid lists the parameter values tried by Optimize.
type Grid struct {
	PivotOrders   []int
	RSIThresholds []RSIThresholds
	MinPriceMoves []float64
}

// DefaultGrid returns the standard 36-point search grid.
func DefaultGrid() Grid {
	return Grid{
		PivotOrders:   []int{2, 3, 4},
		RSIThresholds: []RSIThresholds{{35, 65}, {40, 60}, {30, 70}},
		MinPriceMoves: []float64{0.5, 1.0, 1.5, 2.0},
	}
}

// Size is the number of combinations in the grid.
func (g Grid) Size() int {
	return len(g.PivotOrders) * len(g.RSIThresholds) * len(g.MinPriceMoves)
}

// Params is one grid point.
type Params struct {
	PivotOrder      int
	BullishRSI      float64
	BearishRSI      float64
	MinPriceMovePct float64
}

// Apply overlays p onto a divergence configuration.
func (p Params) Apply(base strategy.DivergenceConfig) strategy.DivergenceConfig {
	base.PivotOrder = p.PivotOrder
	base.MaxBullishRSI = p.BullishRSI
	base.MinBearishRSI = p.BearishRSI
	base.MinPriceChangePct = p.MinPriceMovePct
	return base
}

func (p Params) String() string {
	return fmt.Sprintf("order=%d rsi=%.0f/%.0f move=%.1f%%", p.PivotOrder, p.BullishRSI, p.BearishRSI, p.MinPriceMovePct)
}

// Trial is the replay outcome of one grid point.
type Trial struct {
	Params  Params
	Metrics Metrics
	Score   float64
}

// OptimizeResult holds every trial that produced trades, best first.
// Best is the top trial with a positive score, or nil.
type OptimizeResult struct {
	Best   *Trial
	Trials []Trial
	Tested int
}

// Score ranks a trial: win rate plus 20 times profit factor.
func Score(m Metrics) float64 {
	return m.WinRate + 20*m.ProfitFactor
}

// Optimize replays every series for each grid point and keeps the highest-scoring
// configuration. Grid points without trades are skipped; ties keep the earlier point.
// Best stays nil when no trial scores above zero.
func Optimize(ctx context.Context, series []*model.Series, base strategy.DivergenceConfig, grid Grid, cfg Config) (*OptimizeResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backtest config: %w", err)
	}
	out := &OptimizeResult{}
	for _, order := range grid.PivotOrders {
		for _, th := range grid.RSIThresholds {
			for _, move := range grid.MinPriceMoves {
				if err := ctx.Err(); err != nil {
					out.rank()
					return out, err
				}
				p := Params{PivotOrder: order, BullishRSI: th.Bullish, BearishRSI: th.Bearish, MinPriceMovePct: move}
				out.Tested++

				det, err := strategy.NewDivergenceDetector(p.Apply(base))
				if err != nil {
					return out, fmt.Errorf("grid point %s: %w", p, err)
				}
				res := &Result{}
				for _, s := range series {
					if err := replay(ctx, res, s, det, cfg); err != nil {
						out.rank()
						return out, err
					}
				}
				m := Summarize(res.Trades)
				if m.NumTrades == 0 {
					continue
				}
				trial := Trial{Params: p, Metrics: m, Score: Score(m)}
				out.Trials = append(out.Trials, trial)
				if trial.Score > 0 && (out.Best == nil || trial.Score > out.Best.Score) {
					best := trial
					out.Best = &best
				}
			}
		}
	}
	out.rank()
	return out, nil
}

func (o *OptimizeResult) rank() {
	sort.SliceStable(o.Trials, func(i, j int) bool { return o.Trials[i].Score > o.Trials[j].Score })
}
