package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into coded domain errors through
// pkg/platform/storecall.
//
//   - ErrNotFound: entity does not exist in store
//   - ErrConflict: write collided with existing data (duplicate id)
//   - ErrUnavailable: backing store unreachable or refused the operation
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
