package strategy

import (
	"fmt"
	"sort"

	"RSISentinel/internal/model"
)

// Detector produces signals from an indicator series.
type Detector interface {
	Detect(s *model.Series) ([]model.Signal, error)
}

// Engine runs the divergence detector and, when enabled, the reversal detector.
type Engine struct {
	Divergence *DivergenceDetector
	Reversal   *ReversalDetector // nil disables reversal detection
}

// NewEngine builds an engine from detector settings. Invalid settings fail here.
func NewEngine(div DivergenceConfig, rev ReversalConfig, withReversal bool) (*Engine, error) {
	dd, err := NewDivergenceDetector(div)
	if err != nil {
		return nil, err
	}
	e := &Engine{Divergence: dd}
	if withReversal {
		rd, err := NewReversalDetector(rev)
		if err != nil {
			return nil, err
		}
		e.Reversal = rd
	}
	return e, nil
}

// Detect runs every enabled detector and returns signals strongest first.
func (e *Engine) Detect(s *model.Series) ([]model.Signal, error) {
	signals, err := e.Divergence.Detect(s)
	if err != nil {
		return nil, fmt.Errorf("divergence %s %s: %w", s.Symbol, s.Timeframe, err)
	}
	if e.Reversal != nil {
		rev, err := e.Reversal.Detect(s)
		if err != nil {
			return nil, fmt.Errorf("reversal %s %s: %w", s.Symbol, s.Timeframe, err)
		}
		signals = append(signals, rev...)
	}
	sort.SliceStable(signals, func(i, j int) bool { return signals[i].Strength > signals[j].Strength })
	return signals, nil
}
