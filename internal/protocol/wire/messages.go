package wire

import (
	"encoding/json"
	"fmt"

	"pairlink/internal/domain"
)

// Message is a decoded protocol message.
type Message interface {
	Method() Method
	isMessage()
}

// PairingApprove is sent by the responder after activating a pairing URI.
type PairingApprove struct {
	Relay     domain.RelayProtocolOptions `json:"relay"`
	Responder domain.Participant          `json:"responder"`
	Expiry    int64                       `json:"expiry"`
}

type PairingReject struct {
	Reason string `json:"reason"`
}

type PairingUpdate struct {
	Metadata domain.Metadata `json:"metadata"`
}

type PairingDelete struct {
	Reason string `json:"reason"`
}

type PairingPing struct{}

type PairingPong struct{}

// SessionPropose carries a session proposal from proposer to responder.
type SessionPropose struct {
	ID                 string                        `json:"id"`
	Relays             []domain.RelayProtocolOptions `json:"relays"`
	Proposer           domain.Participant            `json:"proposer"`
	RequiredNamespaces domain.Namespaces             `json:"required_namespaces"`
	OptionalNamespaces domain.Namespaces             `json:"optional_namespaces,omitempty"`
	ExpiryTimestamp    int64                         `json:"expiry_timestamp"`
}

// SessionSettle answers a proposal with the granted namespaces and the
// controller's session key.
type SessionSettle struct {
	ProposalID string                      `json:"proposal_id"`
	Relay      domain.RelayProtocolOptions `json:"relay"`
	Controller domain.Participant          `json:"controller"`
	Namespaces domain.Namespaces           `json:"namespaces"`
	Expiry     int64                       `json:"expiry"`
}

type SessionReject struct {
	ProposalID string `json:"proposal_id"`
	Reason     string `json:"reason"`
}

type SessionUpdate struct {
	Namespaces domain.Namespaces `json:"namespaces"`
}

type SessionExtend struct {
	Expiry int64 `json:"expiry"`
}

type SessionDelete struct {
	Reason string `json:"reason"`
}

type SessionPing struct {
	ID int64 `json:"id"`
}

type SessionPong struct {
	ID int64 `json:"id"`
}

// RPCRequest is the application call carried by SessionRequest.
type RPCRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

type SessionRequest struct {
	ID      int64      `json:"id"`
	ChainID string     `json:"chain_id,omitempty"`
	Request RPCRequest `json:"request"`
}

// RPCError is an application-level error returned in a SessionResponse.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string { return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message) }

type SessionResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *RPCError       `json:"error,omitempty"`
}

// Event is an application event carried by SessionEvent.
type Event struct {
	Name string          `json:"name"`
	Data json.RawMessage `json:"data,omitempty"`
}

type SessionEvent struct {
	ChainID string `json:"chain_id,omitempty"`
	Event   Event  `json:"event"`
}

func (PairingApprove) Method() Method  { return MethodPairingApprove }
func (PairingReject) Method() Method   { return MethodPairingReject }
func (PairingUpdate) Method() Method   { return MethodPairingUpdate }
func (PairingDelete) Method() Method   { return MethodPairingDelete }
func (PairingPing) Method() Method     { return MethodPairingPing }
func (PairingPong) Method() Method     { return MethodPairingPong }
func (SessionPropose) Method() Method  { return MethodSessionPropose }
func (SessionSettle) Method() Method   { return MethodSessionSettle }
func (SessionReject) Method() Method   { return MethodSessionReject }
func (SessionUpdate) Method() Method   { return MethodSessionUpdate }
func (SessionExtend) Method() Method   { return MethodSessionExtend }
func (SessionDelete) Method() Method   { return MethodSessionDelete }
func (SessionPing) Method() Method     { return MethodSessionPing }
func (SessionPong) Method() Method     { return MethodSessionPong }
func (SessionRequest) Method() Method  { return MethodSessionRequest }
func (SessionResponse) Method() Method { return MethodSessionResponse }
func (SessionEvent) Method() Method    { return MethodSessionEvent }

func (PairingApprove) isMessage()  {}
func (PairingReject) isMessage()   {}
func (PairingUpdate) isMessage()   {}
func (PairingDelete) isMessage()   {}
func (PairingPing) isMessage()     {}
func (PairingPong) isMessage()     {}
func (SessionPropose) isMessage()  {}
func (SessionSettle) isMessage()   {}
func (SessionReject) isMessage()   {}
func (SessionUpdate) isMessage()   {}
func (SessionExtend) isMessage()   {}
func (SessionDelete) isMessage()   {}
func (SessionPing) isMessage()     {}
func (SessionPong) isMessage()     {}
func (SessionRequest) isMessage()  {}
func (SessionResponse) isMessage() {}
func (SessionEvent) isMessage()    {}

// IsSessionHandshake reports whether m belongs to the session vocabulary
// relayed over a pairing topic.
func IsSessionHandshake(m Message) bool {
	switch m.(type) {
	case SessionPropose, SessionSettle, SessionReject:
		return true
	}
	return false
}
