package models

import "time"

type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusStopped   RunStatus = "stopped"
)

// Terminal reports whether no further transitions are possible.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusStopped
}

// RunError records a per-store failure inside a run.
type RunError struct {
	Store string    `json:"store,omitempty"`
	Term  string    `json:"term,omitempty"`
	Error string    `json:"error"`
	At    time.Time `json:"at"`
}

// ScrapeRun is one execution of the competitor scraping pipeline.
type ScrapeRun struct {
	ID              string     `json:"id"`
	Status          RunStatus  `json:"status"`
	TargetTerms     []string   `json:"target_terms"`
	Stores          []string   `json:"stores"`
	StoresTotal     int        `json:"stores_total"`
	StoresCompleted int        `json:"stores_completed"`
	ProductsFound   int        `json:"products_found"`
	Errors          []RunError `json:"errors"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at"`
}

// Progress is the caller-facing view of a run.
type Progress struct {
	Status          RunStatus `json:"status"`
	StoresTotal     int       `json:"stores_total"`
	StoresCompleted int       `json:"stores_completed"`
	ProductsFound   int       `json:"products_found"`
}

func (r *ScrapeRun) Progress() Progress {
	return Progress{
		Status:          r.Status,
		StoresTotal:     r.StoresTotal,
		StoresCompleted: r.StoresCompleted,
		ProductsFound:   r.ProductsFound,
	}
}

// Clone returns a copy that shares no slices with r.
func (r *ScrapeRun) Clone() *ScrapeRun {
	c := *r
	c.TargetTerms = append([]string(nil), r.TargetTerms...)
	c.Stores = append([]string(nil), r.Stores...)
	c.Errors = append([]RunError(nil), r.Errors...)
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// StopAck acknowledges a cooperative stop request.
type StopAck struct {
	RunID           string `json:"run_id"`
	StoresCompleted int    `json:"stores_completed"`
	Message         string `json:"message"`
}
