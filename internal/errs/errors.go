package errs

import (
	"errors"
	"fmt"
)

// AppError is the error type returned by the engines and codecs.
type AppError struct {
	Code    Code   `json:"code"`
	Reason  Reason `json:"reason,omitempty"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Newf(code Code, format string, args ...any) error {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func NotFound(what, key string) error {
	return &AppError{Code: CodeNotFound, Subject: key, Message: fmt.Sprintf("%s %q not found", what, key)}
}

func Expired(what, key string) error {
	return &AppError{Code: CodeExpired, Subject: key, Message: fmt.Sprintf("%s %q expired", what, key)}
}

func InvalidState(format string, args ...any) error {
	return Newf(CodeInvalidState, format, args...)
}

func InvalidArg(msg string) error {
	return New(CodeInvalidArgument, msg)
}

func Transport(op string, cause error) error {
	return Wrap(CodeTransport, op, cause)
}

// Validation builds a VALIDATION_FAILURE tagged with reason and subject.
func Validation(reason Reason, subject, format string, args ...any) error {
	return &AppError{
		Code:    CodeValidation,
		Reason:  reason,
		Subject: subject,
		Message: fmt.Sprintf(format, args...),
	}
}

// CodeOf returns the Code of the first AppError in err's chain.
func CodeOf(err error) Code {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}

// ReasonOf returns the Reason of the first AppError in err's chain.
func ReasonOf(err error) Reason {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	return ""
}

// Is reports whether err carries code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
