package scanstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"RSISentinel/internal/model"
)

// LoadState reads the scan state from a JSON file. Returns a zero state if the file doesn't exist.
func LoadState(filePath string) (*model.ScanState, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return &model.ScanState{SignalsByKind: map[string]int{}}, nil
		}
		return nil, err
	}
	var state model.ScanState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decode %s: %w", filePath, err)
	}
	if state.SignalsByKind == nil {
		state.SignalsByKind = map[string]int{}
	}
	return &state, nil
}

// SaveState writes the scan state to a JSON file. The file is replaced atomically.
func SaveState(filePath string, state *model.ScanState, now time.Time) error {
	state.UpdatedAt = now
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(filePath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, filePath)
}
