package types

// Topic is an opaque relay address. It is always derived from a hash of key
// material and never chosen by a user.
type Topic = string

// Metadata describes an application taking part in a pairing or session.
type Metadata struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	URL         string   `json:"url"`
	Icons       []string `json:"icons"`
}

// Participant is one side of a pairing or session.
type Participant struct {
	PublicKey string   `json:"public_key"`
	Metadata  Metadata `json:"metadata"`
}

// RelayProtocolOptions describes the relay a pairing or session travels over.
type RelayProtocolOptions struct {
	Protocol string `json:"protocol"`
	Data     string `json:"data,omitempty"`
}
