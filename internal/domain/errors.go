package domain

import (
	"errors"
	"fmt"
)

// Validation errors are fatal to the whole run. Everything per-provider is
// contained inside the dispatcher and never propagates past it.
var (
	ErrEmptyPrompt       = errors.New("empty prompt")
	ErrNoProviders       = errors.New("no providers selected")
	ErrUnknownProvider   = errors.New("unknown provider")
	ErrMissingCredential = errors.New("missing credential")
	ErrTimeout           = errors.New("timeout")
)

// IsValidation reports whether err should fail the whole request rather
// than a single provider.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyPrompt) || errors.Is(err, ErrNoProviders)
}

// ShapeError marks a provider response whose expected extraction path was
// absent. It is a failure distinct from transport errors and must never be
// silently defaulted.
type ShapeError struct {
	Provider string
	Path     string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%s response missing %s", e.Provider, e.Path)
}
