package duel

import "github.com/park285/flagduel/pkg/dueldto"

var (
	ErrNotFound           = dueldto.DomainError{Code: "not_found", Message: "session not found"}
	ErrInvalidInput       = dueldto.DomainError{Code: "invalid_input", Message: "invalid input"}
	ErrInvalidAnswer      = dueldto.DomainError{Code: "invalid_answer", Message: "selection is not an option of the current round"}
	ErrAlreadyStarted     = dueldto.DomainError{Code: "already_started", Message: "session already started"}
	ErrIllegalTransition  = dueldto.DomainError{Code: "illegal_transition", Message: "session is not in a state that allows this operation"}
	ErrInsufficientPool   = dueldto.DomainError{Code: "insufficient_pool", Message: "reference pool too small for requested rounds"}
	ErrInvalidPool        = dueldto.DomainError{Code: "invalid_pool", Message: "reference pool has duplicate or empty entries"}
	ErrPlayerNotInSession = dueldto.DomainError{Code: "player_not_in_session", Message: "player is not part of this session"}
	ErrVersionConflict    = dueldto.DomainError{Code: "version_conflict", Message: "session was modified concurrently", Retryable: true}
)
