package wire

// Method names a protocol message on the wire.
type Method string

// Pairing topic vocabulary.
const (
	MethodPairingApprove Method = "wc_pairingApprove"
	MethodPairingReject  Method = "wc_pairingReject"
	MethodPairingUpdate  Method = "wc_pairingUpdate"
	MethodPairingDelete  Method = "wc_pairingDelete"
	MethodPairingPing    Method = "wc_pairingPing"
	MethodPairingPong    Method = "wc_pairingPong"
)

// Session handshake vocabulary, relayed over an active pairing topic.
const (
	MethodSessionPropose Method = "wc_sessionPropose"
	MethodSessionSettle  Method = "wc_sessionSettle"
	MethodSessionReject  Method = "wc_sessionReject"
)

// Session topic vocabulary.
const (
	MethodSessionUpdate   Method = "wc_sessionUpdate"
	MethodSessionExtend   Method = "wc_sessionExtend"
	MethodSessionDelete   Method = "wc_sessionDelete"
	MethodSessionPing     Method = "wc_sessionPing"
	MethodSessionPong     Method = "wc_sessionPong"
	MethodSessionRequest  Method = "wc_sessionRequest"
	MethodSessionResponse Method = "wc_sessionResponse"
	MethodSessionEvent    Method = "wc_sessionEvent"
)
