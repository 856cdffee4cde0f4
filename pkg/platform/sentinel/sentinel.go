package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Contact stores return these
// (optionally wrapped) so the reconciliation service can translate them into
// domain errors without knowing which backend produced them.
//
//   - ErrNotFound: contact does not exist in the owner's partition
//   - ErrConflict: a uniqueness or foreign key constraint rejected the write
//   - ErrUnavailable: backend temporarily unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
