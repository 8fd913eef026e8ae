package discovery_test

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"vitrine/internal/records"
	"vitrine/internal/services/kaspi"
	"vitrine/internal/testsupport"
)

// The runner's claim loop is exercised indirectly through the store; these
// tests drive one job end to end the way a worker would.

type fakeSource struct {
	results []kaspi.SearchResult
	err     error

	mu    sync.Mutex
	pages []int
}

func (f *fakeSource) Search(_ context.Context, _ string, page, _ int) ([]kaspi.SearchResult, error) {
	f.mu.Lock()
	f.pages = append(f.pages, page)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeSource) searchedPages() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	pages := append([]int(nil), f.pages...)
	sort.Ints(pages)
	return pages
}

func TestRunnerInsertsCandidatesFromSearch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Discovery.Enabled = true
	store := testsupport.MustOpenStore(t, cfg)

	source := &fakeSource{results: []kaspi.SearchResult{
		{ExternalID: "12345", Name: "Кружка белая", Price: 990},
		{ExternalID: "12346", Name: "Кружка черная", Price: 990},
		{ExternalID: "not-a-number", Name: "Битая карточка"},
	}}
	ctx := context.Background()
	if _, err := store.EnqueueJob(ctx, "search", "кружка", 0); err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}

	runner := newStartedRunner(t, store, source, cfg)
	defer runner.Stop()

	job := waitForJob(t, store)
	if job.Status != records.JobCompleted {
		t.Fatalf("expected completed job, got %s (%s)", job.Status, job.Message)
	}

	first, err := store.GetByExternalID(ctx, 12345)
	if err != nil {
		t.Fatalf("GetByExternalID failed: %v", err)
	}
	if first == nil || first.Name != "Кружка белая" {
		t.Fatalf("expected candidate 12345, got %#v", first)
	}
	second, err := store.GetByExternalID(ctx, 12346)
	if err != nil {
		t.Fatalf("GetByExternalID failed: %v", err)
	}
	if second == nil {
		t.Fatal("expected candidate 12346")
	}
}

func TestRunnerTranslatesJobPagesToZeroBase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Discovery.Enabled = true
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	first, err := store.EnqueueJob(ctx, "search", "кружка", 1)
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	second, err := store.EnqueueJob(ctx, "search", "кружка", 2)
	if err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}
	if first.Page != 1 || second.Page != 2 {
		t.Fatalf("expected distinct job pages 1 and 2, got %d and %d", first.Page, second.Page)
	}

	source := &fakeSource{}
	runner := newStartedRunner(t, store, source, cfg)
	defer runner.Stop()

	waitForJobID(t, store, first.ID)
	waitForJobID(t, store, second.ID)

	pages := source.searchedPages()
	if len(pages) != 2 || pages[0] != 0 || pages[1] != 1 {
		t.Fatalf("expected storefront pages [0 1], got %v", pages)
	}
}

func TestRunnerMarksJobFailedOnSearchError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Discovery.Enabled = true
	store := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	if _, err := store.EnqueueJob(ctx, "search", "кружка", 0); err != nil {
		t.Fatalf("EnqueueJob failed: %v", err)
	}

	runner := newStartedRunner(t, store, &fakeSource{err: errors.New("storefront down")}, cfg)
	defer runner.Stop()

	job := waitForJob(t, store)
	if job.Status != records.JobError {
		t.Fatalf("expected error job, got %s", job.Status)
	}
	if job.Message == "" {
		t.Fatal("expected failure message on job")
	}
}
