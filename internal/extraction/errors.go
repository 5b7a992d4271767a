package extraction

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds surfaced by the extraction pipeline.
var (
	// ErrBackendUnavailable is returned when a required capability (page
	// rasterizer, OCR engine, hosted-model credential) is missing.
	ErrBackendUnavailable = errors.New("extraction backend unavailable")

	// ErrBackendCallFailed is returned when a single backend invocation errors.
	ErrBackendCallFailed = errors.New("extraction backend call failed")

	// ErrTimeout is returned when a backend call exceeds its deadline.
	// It is handled exactly like ErrBackendCallFailed.
	ErrTimeout = errors.New("extraction backend call timed out")

	// ErrDocumentUnreadable is returned when the input document cannot be
	// opened or parsed at all.
	ErrDocumentUnreadable = errors.New("document cannot be read")

	// ErrPageCountMismatch is recorded when the text layer and the rendered
	// pages disagree on the number of pages.
	ErrPageCountMismatch = errors.New("page count mismatch between text layer and rendered pages")
)

// ExtractionError wraps errors with the backend and page they came from.
type ExtractionError struct {
	// Op is the operation that failed (e.g., "Extract", "Render").
	Op string

	// Backend names the backend involved, if any.
	Backend string

	// Page is the 1-based page number, or 0 for document-level errors.
	Page int

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	switch {
	case e.Backend != "" && e.Page > 0:
		return fmt.Sprintf("extraction: %s %s page %d: %v", e.Backend, e.Op, e.Page, e.Err)
	case e.Backend != "":
		return fmt.Sprintf("extraction: %s %s: %v", e.Backend, e.Op, e.Err)
	case e.Page > 0:
		return fmt.Sprintf("extraction: %s page %d: %v", e.Op, e.Page, e.Err)
	default:
		return fmt.Sprintf("extraction: %s: %v", e.Op, e.Err)
	}
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is implements error matching against the underlying error.
func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewBackendError builds an ExtractionError for a failed backend call. A
// deadline expiry is classified as ErrTimeout, anything else as
// ErrBackendCallFailed, with the original error kept in the chain.
func NewBackendError(backend string, page int, err error) *ExtractionError {
	kind := ErrBackendCallFailed
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	return &ExtractionError{
		Op:      "Extract",
		Backend: backend,
		Page:    page,
		Err:     fmt.Errorf("%w: %w", kind, err),
	}
}

// WrapExtractionError wraps an error as an ExtractionError if it isn't already one.
func WrapExtractionError(op string, err error) error {
	if err == nil {
		return nil
	}

	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		return err
	}

	return &ExtractionError{Op: op, Err: err}
}

// Unreadable marks err as a document-level failure.
func Unreadable(op string, err error) error {
	if errors.Is(err, ErrDocumentUnreadable) {
		return WrapExtractionError(op, err)
	}
	return &ExtractionError{Op: op, Err: fmt.Errorf("%w: %w", ErrDocumentUnreadable, err)}
}

// Unavailable marks err as a missing capability for the named backend.
func Unavailable(backend string, err error) error {
	if err == nil {
		return &ExtractionError{Op: "Init", Backend: backend, Err: ErrBackendUnavailable}
	}
	if errors.Is(err, ErrBackendUnavailable) {
		return err
	}
	return &ExtractionError{Op: "Init", Backend: backend, Err: fmt.Errorf("%w: %w", ErrBackendUnavailable, err)}
}
