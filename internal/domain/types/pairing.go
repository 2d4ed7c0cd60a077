package types

// PairingStatus is the lifecycle state of a Pairing.
type PairingStatus string

const (
	PairingPending PairingStatus = "pending"
	PairingActive  PairingStatus = "active"
	PairingDeleted PairingStatus = "deleted"
)

// Pairing is the long-lived handshake channel between two peers.
//
// A pending pairing has no peer key yet. An active one has it, except on a
// responder that activated from a URI without a publicKey parameter.
type Pairing struct {
	Topic     Topic                `json:"topic"`
	Relay     RelayProtocolOptions `json:"relay"`
	Self      Participant          `json:"self"`
	Peer      Participant          `json:"peer"`
	Status    PairingStatus        `json:"status"`
	Expiry    int64                `json:"expiry"`
	CreatedAt int64                `json:"created_at"`
	UpdatedAt int64                `json:"updated_at"`
	Initiator bool                 `json:"initiator"`
}

// Expired reports whether the pairing expiry is at or before now (unix seconds).
func (p Pairing) Expired(now int64) bool { return p.Expiry <= now }
