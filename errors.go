package invertify

import "errors"

// User facing messages shown when an operation fails.
const (
	MsgUnsupportedType = "Please select a JPG, PNG, or GIF image"
	MsgTooLarge        = "Image size must be less than 5MB"
	MsgDecode          = "Failed to load image. Please try a different file."
	MsgProcess         = "Error processing image. Please try again."
)

var (
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image too large")
)

// ValidationError is returned when a selected file is rejected before any
// processing is attempted. The user corrects the input and selects again.
type ValidationError struct {
	// Message is safe to show to the user.
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return "validation: " + e.Message
	}
	return "validation: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DecodeError is returned when image bytes are unreadable or of an unsupported format.
type DecodeError struct {
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return "decode: " + e.Message
	}
	return "decode: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError is returned when a processed grid cannot be encoded. It is
// fatal to the current operation only.
type EncodeError struct {
	Message string
	Err     error
}

func (e *EncodeError) Error() string {
	if e.Err == nil {
		return "encode: " + e.Message
	}
	return "encode: " + e.Err.Error()
}

func (e *EncodeError) Unwrap() error { return e.Err }

// UserMessage extracts the user facing message of err, falling back to a
// generic processing message for errors outside the taxonomy.
func UserMessage(err error) string {
	var (
		verr *ValidationError
		derr *DecodeError
		eerr *EncodeError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &verr):
		return verr.Message
	case errors.As(err, &derr):
		return derr.Message
	case errors.As(err, &eerr):
		return eerr.Message
	}
	return MsgProcess
}
