package projection

// Code classifies projection failures for the delivery layer.
type Code string

const (
	CodeNotFound       Code = "NOT_FOUND"
	CodePersistFailure Code = "PERSIST_FAILURE"
	CodeMalformedEvent Code = "MALFORMED_EVENT"
)

// Error is a coded projection error. Two errors match under errors.Is when
// their codes are equal.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

var (
	ErrNotFound       = &Error{Code: CodeNotFound, Message: "record not found"}
	ErrPersistFailure = &Error{Code: CodePersistFailure, Message: "persist failed"}
	ErrMalformedEvent = &Error{Code: CodeMalformedEvent, Message: "malformed event"}
)

func NotFound(auctionID string) *Error {
	return &Error{Code: CodeNotFound, Message: "record not found for auction " + auctionID}
}

func PersistFailure(cause error) *Error {
	return &Error{Code: CodePersistFailure, Message: "persist failed", Cause: cause}
}

func Malformed(message string) *Error {
	return &Error{Code: CodeMalformedEvent, Message: message}
}
