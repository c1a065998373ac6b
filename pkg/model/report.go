package model

import "time"

// RejectedSummary is the compact per-instrument entry kept for rejected
// symbols in the snapshot.
type RejectedSummary struct {
	Symbol string `json:"symbol"`
	Venue  string `json:"venue"`
	Reason string `json:"reason"`
}

// Report is the end-of-run output of a screener run: metadata, the retained
// enriched instruments, and a rejected-instrument summary. It is the primary
// diagnostic surface of the service.
type Report struct {
	RunID            string               `json:"run_id"`
	Universe         string               `json:"universe"`
	StartedAt        time.Time            `json:"started_at"`
	FinishedAt       time.Time            `json:"finished_at"`
	ElapsedMS        int64                `json:"elapsed_ms"`
	TotalInstruments int                  `json:"total_instruments"`
	RetainedCount    int                  `json:"retained_count"`
	RejectedCount    int                  `json:"rejected_count"`
	RejectionReasons map[string]int       `json:"rejection_reasons"`
	DataQuality      map[string]float64   `json:"data_quality"`
	Retained         []ScreenedInstrument `json:"retained"`
	Rejected         []RejectedSummary    `json:"rejected"`
}
