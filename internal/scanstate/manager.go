package scanstate

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"RSISentinel/internal/model"
)

// maxRecentStrengths bounds the rolling strength history.
const maxRecentStrengths = 50

// Manager owns the persisted scan counters. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	state    *model.ScanState
	filePath string
	logger   zerolog.Logger
	now      func() time.Time
}

// NewManager creates a Manager, loading counters from disk. An empty filePath
// keeps the state in memory only.
func NewManager(filePath string, logger zerolog.Logger) (*Manager, error) {
	state := &model.ScanState{SignalsByKind: map[string]int{}}
	if filePath != "" {
		loaded, err := LoadState(filePath)
		if err != nil {
			return nil, err
		}
		state = loaded
	}

	m := &Manager{
		state:    state,
		filePath: filePath,
		logger:   logger.With().Str("component", "scanstate").Logger(),
		now:      time.Now,
	}
	m.state.StartedAt = m.now()
	if err := m.save(); err != nil {
		return nil, err
	}
	return m, nil
}

// GetState returns a copy of the current scan state.
func (m *Manager) GetState() model.ScanState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := *m.state
	out.SignalsByKind = make(map[string]int, len(m.state.SignalsByKind))
	for k, v := range m.state.SignalsByKind {
		out.SignalsByKind[k] = v
	}
	out.RecentStrengths = append([]float64(nil), m.state.RecentStrengths...)
	return out
}

// RecordScan counts a finished scan run.
func (m *Manager) RecordScan(scanID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.ScanCount++
	m.state.LastScanID = scanID
	m.state.LastScanAt = m.now()
	m.saveLocked()
}

// RecordSignals counts detected signals by type and keeps their strengths.
func (m *Manager) RecordSignals(signals []model.Signal) {
	if len(signals) == 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range signals {
		m.state.TotalSignals++
		m.state.SignalsByKind[signals[i].DedupKey()]++
		m.state.RecentStrengths = append(m.state.RecentStrengths, signals[i].Strength)
	}
	if len(m.state.RecentStrengths) > maxRecentStrengths {
		m.state.RecentStrengths = m.state.RecentStrengths[len(m.state.RecentStrengths)-maxRecentStrengths:]
	}
	m.saveLocked()
}

// RecordAlert counts a delivered alert.
func (m *Manager) RecordAlert() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.AlertsSent++
	m.saveLocked()
}

// RecordFailedFetch counts a symbol/timeframe that could not be loaded.
func (m *Manager) RecordFailedFetch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.FailedFetches++
	m.saveLocked()
}

// RecordFailedDetection counts a loaded series the detectors rejected.
func (m *Manager) RecordFailedDetection() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.FailedDetects++
	m.saveLocked()
}

// AverageStrength is the mean of the recent strengths, false when there are none.
func AverageStrength(state model.ScanState) (float64, bool) {
	if len(state.RecentStrengths) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, s := range state.RecentStrengths {
		sum += s
	}
	return sum / float64(len(state.RecentStrengths)), true
}

func (m *Manager) saveLocked() {
	if err := m.save(); err != nil {
		m.logger.Error().Err(err).Msg("failed to save scan state")
	}
}

func (m *Manager) save() error {
	if m.filePath == "" {
		return nil
	}
	return SaveState(m.filePath, m.state, m.now())
}
