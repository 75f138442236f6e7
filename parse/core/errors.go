package core

import "errors"

var (
	// ErrInvalidArgument indicates a required argument, such as a mutation callback, was omitted.
	ErrInvalidArgument = errors.New("core: invalid argument")
	// ErrObjectIDImmutable occurs when a builder already carrying an objectId is given a different one.
	ErrObjectIDImmutable = errors.New("core: objectId is already set")
	// ErrFrozen is the panic value raised when a frozen builder is mutated.
	ErrFrozen = errors.New("core: mutable state has been frozen")
)
