package domain

import "errors"

// Newsletter errors
var (
	ErrEmailRequired  = errors.New("email is required")
	ErrInvalidEmail   = errors.New("invalid email format")
	ErrDuplicateEmail = errors.New("email is already subscribed")
)

// Storage errors
var (
	ErrInvalidFileType    = errors.New("invalid file type")
	ErrFileTooLarge       = errors.New("file too large")
	ErrContentMismatch    = errors.New("file content does not match an allowed image type")
	ErrInvalidBucket      = errors.New("invalid bucket")
	ErrInvalidFilePath    = errors.New("invalid file path")
	ErrInvalidOwner       = errors.New("invalid owner identifier")
	ErrObjectExists       = errors.New("object already exists")
	ErrPrivilegedRequired = errors.New("privileged storage client is not configured")
	ErrUploadFailed       = errors.New("upload failed")
	ErrDeleteFailed       = errors.New("deletion failed")
	ErrListFailed         = errors.New("listing failed")
	ErrProvisionFailed    = errors.New("failed to create bucket")
)

// ValidationError is a client input error whose message is safe to show to the caller.
// It unwraps to one of the sentinel errors above so callers can match with errors.Is.
type ValidationError struct {
	Kind    error
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

// NewValidationError builds a ValidationError for kind with a user-facing message.
func NewValidationError(kind error, message string) *ValidationError {
	return &ValidationError{Kind: kind, Message: message}
}
