package domain

import "errors"

var (
	ErrNotFound                = errors.New("not found")
	ErrUnauthorized            = errors.New("unauthorized")
	ErrRateLimited             = errors.New("rate limited")
	ErrLockHeld                = errors.New("lock already held")
	ErrInvalidPatch            = errors.New("invalid automation config patch")
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	ErrOrderRejected           = errors.New("order rejected")
	ErrHedgeRejected           = errors.New("hedge rejected")
	ErrExecutionTimeout        = errors.New("execution timed out")
)
