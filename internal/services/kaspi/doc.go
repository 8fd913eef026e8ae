// Package kaspi implements the marketplace REST client: listing submission
// and import-result polling, direct offer publication, the category schema
// API consumed by attribute generation, and the product search endpoint the
// discovery workers use.
//
// All calls share one token-bucket rate limiter so the conveyor and the
// discovery workers cannot jointly exceed the merchant API quota.
package kaspi
