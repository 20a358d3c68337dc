package models

import "time"

// HealthResponse is returned by health check
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Photos    int       `json:"photos"`
	Clients   int       `json:"clients"`
	// Subscribers counts windows listening for library snapshots.
	Subscribers int    `json:"subscribers"`
	Version     string `json:"version"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// ImportSummary describes one import run
type ImportSummary struct {
	Imported []*Photo
	Skipped  []string
}
