// Package records persists product records and discovery jobs in SQLite and
// exposes the queries the conveyor, discovery workers, and CLI operate on.
package records
