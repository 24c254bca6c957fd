package domain

import "time"

// DiagnosticStatus is the outcome of one startup check.
type DiagnosticStatus string

const (
	DiagnosticStatusPass DiagnosticStatus = "pass"
	DiagnosticStatusFail DiagnosticStatus = "fail"
	// DiagnosticStatusSkip marks a check that depends on an earlier failed one.
	DiagnosticStatusSkip DiagnosticStatus = "skip"
)

// DiagnosticID names a check so callers can look results up.
type DiagnosticID string

const (
	DiagnosticServerHost      DiagnosticID = "server_host"
	DiagnosticServerReachable DiagnosticID = "server_reachable"
	DiagnosticOutputDir       DiagnosticID = "output_dir"
)

// DiagnosticItem is one check result. Hint suggests a fix when the check failed.
type DiagnosticItem struct {
	ID      DiagnosticID     `json:"id"`
	Name    string           `json:"name"`
	Status  DiagnosticStatus `json:"status"`
	Message string           `json:"message"`
	Hint    string           `json:"hint,omitempty"`
	Elapsed time.Duration    `json:"elapsedNs,omitempty"`
}

// DiagnosticReport aggregates the checks run against the current settings.
type DiagnosticReport struct {
	GeneratedAt time.Time        `json:"generatedAt"`
	HasFailures bool             `json:"hasFailures"`
	Items       []DiagnosticItem `json:"items"`
}

// NewDiagnosticReport stamps items and derives HasFailures.
func NewDiagnosticReport(items ...DiagnosticItem) DiagnosticReport {
	report := DiagnosticReport{GeneratedAt: time.Now().UTC(), Items: items}
	for _, item := range items {
		if item.Status == DiagnosticStatusFail {
			report.HasFailures = true
		}
	}
	return report
}

// Item returns the result for id.
func (r DiagnosticReport) Item(id DiagnosticID) (DiagnosticItem, bool) {
	for _, item := range r.Items {
		if item.ID == id {
			return item, true
		}
	}
	return DiagnosticItem{}, false
}
