package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can map it to a response without
// inspecting message strings.
type Kind int

const (
	// KindUnexpected covers anything not otherwise classified. It is logged
	// with full context server-side and surfaced generically to callers.
	KindUnexpected Kind = iota

	// KindConfiguration is a startup-fatal condition: missing credential,
	// missing or incompatible index artifact, dimension mismatch.
	KindConfiguration

	// KindValidation is a caller-fixable input problem: empty message,
	// temperature out of range, unknown model name.
	KindValidation

	// KindRetrievalUnavailable means embedding or nearest-neighbor lookup
	// failed. No answer is produced and memory is not mutated.
	KindRetrievalUnavailable

	// KindGenerationFailure means a condensation or answer-generation call
	// failed (timeout, rate limit, malformed response). Memory is not mutated.
	KindGenerationFailure
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindValidation:
		return "validation"
	case KindRetrievalUnavailable:
		return "retrieval_unavailable"
	case KindGenerationFailure:
		return "generation_failure"
	default:
		return "unexpected"
	}
}

// Error carries a classified failure. The wrapped cause is preserved for
// errors.Is/As chains.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with the given kind. Already-classified errors keep their
// original kind so the first classification wins.
func E(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: kind, Err: err}
}

// Ef builds a classified error from a format string.
func Ef(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf reports the classification of err, KindUnexpected when unclassified.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindUnexpected
}
