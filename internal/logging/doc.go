// Package logging provides slog construction, shared attribute helpers, and
// context-derived structured fields for the vitrine daemon and CLI.
package logging
