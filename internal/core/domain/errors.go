package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed requests or facet shapes. Surfaced to
	// the caller, never retried.
	ErrValidation = errors.New("validation failed")
	// ErrCapability marks a failed external capability call (embedding,
	// rerank, structural extraction).
	ErrCapability = errors.New("capability failure")
	// ErrEmptyResult marks a capability that returned zero usable items.
	ErrEmptyResult = errors.New("empty result")
	// ErrEmptyInput marks empty extracted text handed to the chunker.
	ErrEmptyInput = errors.New("empty input")

	ErrNotFound  = errors.New("not found")
	ErrState     = errors.New("invalid state transition")
	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
