package entities

import "time"

type ReconcileOutcome int

const (
	Skipped ReconcileOutcome = iota
	Created
	Updated
)

func (o ReconcileOutcome) String() string {
	return [...]string{"skipped", "created", "updated"}[o]
}

type SyncOutcome string

const (
	OutcomeClean   SyncOutcome = "clean"
	OutcomePartial SyncOutcome = "partial"
	OutcomeFailed  SyncOutcome = "failed"
)

type SyncResult struct {
	RunID         string      `json:"run_id"`
	Success       bool        `json:"success"`
	Outcome       SyncOutcome `json:"outcome"`
	RatesCreated  int         `json:"rates_created"`
	RatesUpdated  int         `json:"rates_updated"`
	Errors        []string    `json:"errors"`
	ProvidersUsed []string    `json:"providers_used"`
	StartedAt     time.Time   `json:"started_at"`
	FinishedAt    time.Time   `json:"finished_at"`
}

// Finish fills Success and Outcome from the counters and errors.
// A run with errors still counts as successful when it wrote anything;
// Outcome tells the two cases apart.
func (r *SyncResult) Finish(at time.Time) {
	r.FinishedAt = at

	progress := r.RatesCreated+r.RatesUpdated > 0

	switch {
	case len(r.Errors) == 0:
		r.Outcome = OutcomeClean
	case progress:
		r.Outcome = OutcomePartial
	default:
		r.Outcome = OutcomeFailed
	}

	r.Success = len(r.Errors) == 0 || progress
}

type ProviderStatus struct {
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
}
