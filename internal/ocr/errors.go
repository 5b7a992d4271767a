package ocr

import (
	"errors"
	"fmt"
)

// Common OCR processing errors
var (
	// ErrImageTooLarge is returned when the image exceeds the maximum size limit.
	// Google Cloud Vision API has a 20MB limit for inline content.
	ErrImageTooLarge = errors.New("image size exceeds the maximum limit (20MB)")

	// ErrEmptyImage is returned when no image bytes were supplied.
	ErrEmptyImage = errors.New("image is empty")

	// ErrOCRFailed is returned when the OCR engine fails to process the image.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrInvalidConfiguration is returned when a cloud processor is not fully configured.
	ErrInvalidConfiguration = errors.New("invalid OCR configuration")

	// ErrEngineNotInstalled is returned when the local tesseract engine cannot be found.
	ErrEngineNotInstalled = errors.New("tesseract is not installed")

	// ErrEmptyDocument is returned when the image contains no readable text.
	ErrEmptyDocument = errors.New("document contains no readable text")

	// ErrQuotaExceeded is returned when the cloud API quota is exhausted.
	ErrQuotaExceeded = errors.New("OCR API quota exceeded")

	// ErrInvalidCredentials is returned when the credentials lack permission.
	ErrInvalidCredentials = errors.New("insufficient permissions for OCR API")

	// ErrContextCanceled is returned when the context is canceled during processing.
	ErrContextCanceled = errors.New("OCR processing was canceled")
)

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "Recognize", "NewVisionRecognizer").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError with the specified operation and underlying error.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return NewOCRError(op, err, details)
}
