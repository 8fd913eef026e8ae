package stage

import (
	"context"

	"vitrine/internal/records"
)

// Handler describes the contract the conveyor needs from each stage.
type Handler interface {
	// Name identifies the stage in logs and record log entries.
	Name() string
	// Applies reports whether the stage still has work to do for the record.
	Applies(*records.Product) bool
	// Execute performs the stage's side effect and mutates the record's
	// flags and specs. The conveyor persists the record afterwards.
	Execute(context.Context, *records.Product) error
	// HealthCheck verifies the stage's external collaborator is reachable.
	HealthCheck(context.Context) Health
}
