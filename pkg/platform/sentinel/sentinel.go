package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrConflict: an entity with the same id already exists
//   - ErrStale: a field-scoped write lost to a newer work timestamp
//   - ErrUnavailable: backend temporarily unavailable
//
// For validation errors use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrStale       = errors.New("stale write")
	ErrUnavailable = errors.New("unavailable")
)
