package models

import "time"

// ModelVersion is one registered, immutable bundle artifact.
type ModelVersion struct {
	Name      string    `json:"name"`
	Version   int       `json:"version"`
	Location  string    `json:"location"`
	Checksum  string    `json:"checksum"`
	RunID     string    `json:"run_id,omitempty"`
	NumItems  int       `json:"num_items"`
	Aliases   []string  `json:"aliases,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Run status values.
const (
	RunRunning  = "RUNNING"
	RunFinished = "FINISHED"
	RunFailed   = "FAILED"
)

// Run is one training run with its parameters and metrics.
type Run struct {
	ID         string             `json:"run_id"`
	Experiment string             `json:"experiment"`
	Status     string             `json:"status"`
	Params     map[string]string  `json:"params,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Error      string             `json:"error,omitempty"`
	StartedAt  time.Time          `json:"started_at"`
	FinishedAt *time.Time         `json:"finished_at,omitempty"`
}
