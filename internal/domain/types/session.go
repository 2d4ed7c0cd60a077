package types

// SessionStatus is the lifecycle state of a settled session.
type SessionStatus string

const (
	SessionSettled      SessionStatus = "settled"
	SessionDisconnected SessionStatus = "disconnected"
)

// Proposal is an in-flight session proposal. It is consumed on settle,
// reject or expiry.
type Proposal struct {
	ID                 string                 `json:"id"`
	PairingTopic       Topic                  `json:"pairing_topic"`
	Proposer           Participant            `json:"proposer"`
	RequiredNamespaces Namespaces             `json:"required_namespaces"`
	OptionalNamespaces Namespaces             `json:"optional_namespaces,omitempty"`
	Relays             []RelayProtocolOptions `json:"relays"`
	ExpiryTimestamp    int64                  `json:"expiry_timestamp"`
}

// Expired reports whether the proposal expiry is at or before now (unix seconds).
func (p Proposal) Expired(now int64) bool { return p.ExpiryTimestamp <= now }

// Session is a settled, capability-scoped channel between two peers.
type Session struct {
	Topic              Topic                `json:"topic"`
	PairingTopic       Topic                `json:"pairing_topic"`
	Relay              RelayProtocolOptions `json:"relay"`
	Expiry             int64                `json:"expiry"`
	Controller         string               `json:"controller"`
	Namespaces         Namespaces           `json:"namespaces"`
	RequiredNamespaces Namespaces           `json:"required_namespaces"`
	OptionalNamespaces Namespaces           `json:"optional_namespaces,omitempty"`
	Self               Participant          `json:"self"`
	Peer               Participant          `json:"peer"`
	Status             SessionStatus        `json:"status"`
	CreatedAt          int64                `json:"created_at"`
	UpdatedAt          int64                `json:"updated_at"`
	ProposalID         string               `json:"proposal_id"`
}

// Expired reports whether the session expiry is at or before now (unix seconds).
func (s Session) Expired(now int64) bool { return s.Expiry <= now }
