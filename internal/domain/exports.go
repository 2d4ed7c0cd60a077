package domain

import (
	interfaces "pairlink/internal/domain/interfaces"
	types "pairlink/internal/domain/types"
)

// Type aliases expose domain types from the types subpackage for compact imports.
type (
	Topic                = types.Topic
	Metadata             = types.Metadata
	Participant          = types.Participant
	RelayProtocolOptions = types.RelayProtocolOptions
	KeyPair              = types.KeyPair
	Sealed               = types.Sealed
	Pairing              = types.Pairing
	PairingStatus        = types.PairingStatus
	Namespace            = types.Namespace
	Namespaces           = types.Namespaces
	Proposal             = types.Proposal
	Session              = types.Session
	SessionStatus        = types.SessionStatus
)

const (
	PairingPending = types.PairingPending
	PairingActive  = types.PairingActive
	PairingDeleted = types.PairingDeleted

	SessionSettled      = types.SessionSettled
	SessionDisconnected = types.SessionDisconnected
)

// Interface aliases expose domain interfaces from the interfaces subpackage.
type (
	Relay          = interfaces.Relay
	MessageHandler = interfaces.MessageHandler
	CryptoProvider = interfaces.CryptoProvider
	Keychain       = interfaces.Keychain
	PairingStore   = interfaces.Store[types.Pairing]
	ProposalStore  = interfaces.Store[types.Proposal]
	SessionStore   = interfaces.Store[types.Session]
)
