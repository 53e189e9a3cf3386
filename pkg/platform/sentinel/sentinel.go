package sentinel

import "errors"

// Storage facts. Stores return these (optionally wrapped) and services
// translate them into coded domain errors:
//   - ErrNotFound: no row for the requested key
//   - ErrAlreadyUsed: a unique key (batch id, role membership) is taken
//   - ErrConflict: a write raced the dense sequence (id not next in line)
//   - ErrInvalidState: the row exists but cannot take the requested transition
var (
	ErrNotFound     = errors.New("not found")
	ErrAlreadyUsed  = errors.New("already used")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
)
