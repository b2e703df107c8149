package ecs

import "errors"

// Error kinds surfaced by the ECS core. Callers match them with errors.Is;
// operations wrap them with the offending handle or type for context.
var (
	ErrInvalidHandle     = errors.New("invalid entity handle")
	ErrUnknownType       = errors.New("unknown component type")
	ErrComponentMismatch = errors.New("component set mismatch")
	ErrInvalidPhase      = errors.New("operation not permitted in current phase")
	ErrInvalidArgument   = errors.New("invalid argument")
)
