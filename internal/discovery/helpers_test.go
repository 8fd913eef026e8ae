package discovery_test

import (
	"context"
	"testing"
	"time"

	"vitrine/internal/config"
	"vitrine/internal/discovery"
	"vitrine/internal/records"
)

func newStartedRunner(t *testing.T, store *records.Store, source discovery.Source, cfg *config.Config) *discovery.Runner {
	t.Helper()
	runner := discovery.NewRunner(store, source, cfg, nil)
	if err := runner.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return runner
}

// waitForJob polls until the single enqueued job reaches a terminal state.
func waitForJob(t *testing.T, store *records.Store) *records.Job {
	t.Helper()
	return waitForJobID(t, store, 1)
}

func waitForJobID(t *testing.T, store *records.Store, id int64) *records.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob failed: %v", err)
		}
		if job != nil && (job.Status == records.JobCompleted || job.Status == records.JobError) {
			return job
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job did not finish in time")
	return nil
}
