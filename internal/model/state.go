package model

import "time"

// ScanState tracks scanner counters across restarts.
type ScanState struct {
	ScanCount       int            `json:"scan_count"`
	TotalSignals    int            `json:"total_signals"`
	AlertsSent      int            `json:"alerts_sent"`
	FailedFetches   int            `json:"failed_fetches"`
	FailedDetects   int            `json:"failed_detections"`
	SignalsByKind   map[string]int `json:"signals_by_kind"`
	RecentStrengths []float64      `json:"recent_strengths"`
	LastScanAt      time.Time      `json:"last_scan_at"`
	LastScanID      string         `json:"last_scan_id"`
	StartedAt       time.Time      `json:"started_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}
