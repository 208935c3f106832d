package fetcher

import (
	"context"
	"github.com/langowen/ratesync/internal/entities"
)

// TriggerSource delivers on-demand synchronization requests.
type TriggerSource interface {
	ListenSyncRequest(ctx context.Context) (string, error)
}

// Notifier is told about every finished run.
type Notifier interface {
	Notify(ctx context.Context, result entities.SyncResult) error
}

// Recorder receives run metrics.
type Recorder interface {
	ObserveFetch(provider string, seconds float64, err error)
	ObserveReconcile(provider string, outcome entities.ReconcileOutcome, err error)
	ObserveRun(result entities.SyncResult)
}

type noopRecorder struct{}

func (noopRecorder) ObserveFetch(string, float64, error)                       {}
func (noopRecorder) ObserveReconcile(string, entities.ReconcileOutcome, error) {}
func (noopRecorder) ObserveRun(entities.SyncResult)                            {}
