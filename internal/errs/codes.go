package errs

// Code classifies an AppError.
type Code string

const (
	CodeUnknown         Code = "UNKNOWN"
	CodeNotFound        Code = "NOT_FOUND"
	CodeExpired         Code = "EXPIRED"
	CodeInvalidState    Code = "INVALID_STATE"
	CodeValidation      Code = "VALIDATION_FAILURE"
	CodeTimeout         Code = "TIMEOUT"
	CodeTransport       Code = "TRANSPORT_FAILURE"
	CodeUnsupported     Code = "UNSUPPORTED"
	CodeAlreadyExists   Code = "ALREADY_EXISTS"
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeRejected        Code = "REJECTED"
	CodeDestroyed       Code = "DESTROYED"
)

// Reason narrows a validation failure to what was missing or malformed.
type Reason string

const (
	ReasonMissingNamespace Reason = "missing_namespace"
	ReasonMissingChain     Reason = "missing_chain"
	ReasonMissingMethod    Reason = "missing_method"
	ReasonMissingEvent     Reason = "missing_event"
	ReasonInvalidAccount   Reason = "invalid_account"
	ReasonInvalidMethod    Reason = "invalid_method"
	ReasonInvalidEvent     Reason = "invalid_event"
	ReasonInvalidChain     Reason = "invalid_chain"
)
