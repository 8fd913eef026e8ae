package conveyor_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"vitrine/internal/config"
	"vitrine/internal/conveyor"
	"vitrine/internal/feed"
	"vitrine/internal/records"
	"vitrine/internal/services"
	"vitrine/internal/stage"
	"vitrine/internal/testsupport"
)

type scriptedHandler struct {
	name     string
	applies  func(*records.Product) bool
	execute  func(*records.Product) error
	executed int
}

func (h *scriptedHandler) Name() string { return h.name }

func (h *scriptedHandler) Applies(product *records.Product) bool {
	return h.applies(product)
}

func (h *scriptedHandler) Execute(_ context.Context, product *records.Product) error {
	h.executed++
	return h.execute(product)
}

func (h *scriptedHandler) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(h.name)
}

func inventoryHandler(err error) *scriptedHandler {
	return &scriptedHandler{
		name:    "inventory",
		applies: func(p *records.Product) bool { return !p.MSCreated },
		execute: func(p *records.Product) error {
			if err != nil {
				return err
			}
			p.MSCreated = true
			return nil
		},
	}
}

func stocksHandler() *scriptedHandler {
	return &scriptedHandler{
		name:    "stocks",
		applies: func(p *records.Product) bool { return p.MSCreated && !p.StockAdded },
		execute: func(p *records.Product) error {
			p.StockAdded = true
			return nil
		},
	}
}

func publisherHandler(err error) *scriptedHandler {
	return &scriptedHandler{
		name:    "publisher",
		applies: func(p *records.Product) bool { return p.MSCreated && p.StockAdded && !p.KaspiCreated },
		execute: func(p *records.Product) error {
			if err != nil {
				return err
			}
			p.KaspiCreated = true
			return nil
		},
	}
}

func newManager(t *testing.T, cfg *config.Config, store *records.Store, handlers ...stage.Handler) *conveyor.Manager {
	t.Helper()
	return conveyor.NewManager(store, handlers, feed.NewWriter(cfg, nil), cfg, nil)
}

func TestRunOnceAdvancesOneStagePerCycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	product := testsupport.NewCandidate(t, store, 1001, "Кружка")

	manager := newManager(t, cfg, store, inventoryHandler(nil), stocksHandler(), publisherHandler(nil))

	ctx := context.Background()
	if err := manager.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	after, err := store.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !after.MSCreated || after.StockAdded {
		t.Fatalf("expected only the first stage done, got %#v", after)
	}
	if after.Status != records.StatusIdle {
		t.Fatalf("expected idle status with stages remaining, got %s", after.Status)
	}
}

func TestRunOnceMarksDoneAfterFinalStage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	product := testsupport.NewCandidate(t, store, 1101, "Кружка")

	ctx := context.Background()
	product.MSCreated = true
	product.StockAdded = true
	if err := store.Update(ctx, product); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	manager := newManager(t, cfg, store, inventoryHandler(nil), stocksHandler(), publisherHandler(nil))
	if err := manager.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	after, err := store.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.Status != records.StatusDone {
		t.Fatalf("expected done status, got %s", after.Status)
	}
}

func TestRunOnceNeverRevisitsPublishedRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	product := testsupport.NewCandidate(t, store, 1201, "Кружка")

	ctx := context.Background()
	product.MSCreated = true
	product.StockAdded = true
	product.KaspiCreated = true
	product.Status = records.StatusDone
	if err := store.Update(ctx, product); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	publish := publisherHandler(nil)
	manager := newManager(t, cfg, store, inventoryHandler(nil), stocksHandler(), publish)
	for i := 0; i < 3; i++ {
		if err := manager.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce failed: %v", err)
		}
	}
	if publish.executed != 0 {
		t.Fatalf("published record must never re-enter the publish stage, got %d executions", publish.executed)
	}
}

func TestStageFailureSchedulesBackoffRetry(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(3))
	store := testsupport.MustOpenStore(t, cfg)
	product := testsupport.NewCandidate(t, store, 1301, "Кружка")

	manager := newManager(t, cfg, store, inventoryHandler(errors.New("api down")))

	ctx := context.Background()
	if err := manager.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	after, err := store.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.Status != records.StatusError {
		t.Fatalf("expected error status, got %s", after.Status)
	}
	if after.Attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", after.Attempts)
	}
	if after.NextRetryAt == nil || !after.NextRetryAt.After(time.Now().UTC()) {
		t.Fatalf("expected future retry time, got %v", after.NextRetryAt)
	}
	if len(after.Specs.Log) == 0 {
		t.Fatal("expected failure to be logged on the record")
	}
}

func TestRepeatedFailureQuarantinesRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithMaxAttempts(2))
	store := testsupport.MustOpenStore(t, cfg)
	product := testsupport.NewCandidate(t, store, 1401, "Кружка")

	manager := newManager(t, cfg, store, inventoryHandler(errors.New("api down")))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		// Clear the retry delay so the next cycle picks the record up again.
		if err := manager.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce failed: %v", err)
		}
		current, err := store.GetByID(ctx, product.ID)
		if err != nil {
			t.Fatalf("GetByID failed: %v", err)
		}
		if current.NextRetryAt != nil {
			current.NextRetryAt = nil
			if err := store.Update(ctx, current); err != nil {
				t.Fatalf("Update failed: %v", err)
			}
		}
	}

	after, err := store.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if after.Status != records.StatusQuarantined {
		t.Fatalf("expected quarantined status, got %s", after.Status)
	}
	if after.Attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", after.Attempts)
	}

	// Quarantined records leave the batch entirely.
	batch, err := store.NextBatch(ctx, 10)
	if err != nil {
		t.Fatalf("NextBatch failed: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("expected empty batch, got %d", len(batch))
	}
}

func TestRestrictedCategoryClosesRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	product := testsupport.NewCandidate(t, store, 1501, "Запрещённый товар")

	ctx := context.Background()
	product.MSCreated = true
	product.StockAdded = true
	if err := store.Update(ctx, product); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	restricted := services.Wrap(services.ErrRestricted, "publish", "execute", "restricted category", nil)
	manager := newManager(t, cfg, store, publisherHandler(restricted))
	if err := manager.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	after, err := store.GetByID(ctx, product.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if !after.IsClosed {
		t.Fatal("expected record to be closed")
	}
	if after.NextRetryAt != nil {
		t.Fatal("closed records must not schedule retries")
	}

	batch, err := store.NextBatch(ctx, 10)
	if err != nil {
		t.Fatalf("NextBatch failed: %v", err)
	}
	if len(batch) != 0 {
		t.Fatalf("closed record must leave the batch, got %d", len(batch))
	}
}
