package errs

var (
	ErrDestroyed     = New(CodeDestroyed, "engine destroyed")
	ErrNotConnected  = New(CodeTransport, "relay not connected")
	ErrNoSymKey      = New(CodeNotFound, "no symmetric key for topic")
	ErrUnknownMethod = New(CodeUnsupported, "unknown protocol method")
)

// Rejected builds the error delivered to a waiter whose peer declined.
func Rejected(reason string) error {
	if reason == "" {
		reason = "rejected by peer"
	}
	return New(CodeRejected, reason)
}

// Timeout builds the error delivered to a waiter whose deadline elapsed.
func Timeout(what string) error {
	return Newf(CodeTimeout, "%s timed out", what)
}
