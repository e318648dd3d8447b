package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and sinks return these
// (optionally wrapped) so services can translate them into coded errors.
//
// - ErrNotFound: record does not exist in the store
// - ErrConflict: a sequence number or key is already taken
// - ErrOutOfOrder: an append would leave a gap in the journal sequence
// - ErrUnavailable: backend temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrOutOfOrder  = errors.New("out of order")
	ErrUnavailable = errors.New("unavailable")
)
