package model

import "time"

// RunCompletedEvent is published when a screener run finishes.
type RunCompletedEvent struct {
	RunID            string         `json:"run_id"`
	Universe         string         `json:"universe"`
	TotalInstruments int            `json:"total_instruments"`
	RetainedCount    int            `json:"retained_count"`
	RejectedCount    int            `json:"rejected_count"`
	RejectionReasons map[string]int `json:"rejection_reasons"`
	ElapsedMS        int64          `json:"elapsed_ms"`
	Timestamp        time.Time      `json:"timestamp"`
}

// RunFailedEvent is published when a screener run aborts before producing a
// snapshot.
type RunFailedEvent struct {
	RunID     string    `json:"run_id"`
	Universe  string    `json:"universe"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}
