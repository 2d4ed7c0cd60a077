package wire

import (
	"encoding/json"
	"fmt"

	"pairlink/internal/domain"
	"pairlink/internal/errs"
)

// Envelope is the plaintext JSON shape of every protocol message.
type Envelope struct {
	Method Method          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// Encode renders m as a JSON envelope.
func Encode(m Message) ([]byte, error) {
	params, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Method: m.Method(), Params: params})
}

// Decode parses a JSON envelope into its concrete Message. Unknown methods
// yield an UNSUPPORTED error.
func Decode(b []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, errs.Wrap(errs.CodeInvalidArgument, "decode envelope", err)
	}
	switch env.Method {
	case MethodPairingApprove:
		return decodeParams[PairingApprove](env)
	case MethodPairingReject:
		return decodeParams[PairingReject](env)
	case MethodPairingUpdate:
		return decodeParams[PairingUpdate](env)
	case MethodPairingDelete:
		return decodeParams[PairingDelete](env)
	case MethodPairingPing:
		return decodeParams[PairingPing](env)
	case MethodPairingPong:
		return decodeParams[PairingPong](env)
	case MethodSessionPropose:
		return decodeParams[SessionPropose](env)
	case MethodSessionSettle:
		return decodeParams[SessionSettle](env)
	case MethodSessionReject:
		return decodeParams[SessionReject](env)
	case MethodSessionUpdate:
		return decodeParams[SessionUpdate](env)
	case MethodSessionExtend:
		return decodeParams[SessionExtend](env)
	case MethodSessionDelete:
		return decodeParams[SessionDelete](env)
	case MethodSessionPing:
		return decodeParams[SessionPing](env)
	case MethodSessionPong:
		return decodeParams[SessionPong](env)
	case MethodSessionRequest:
		return decodeParams[SessionRequest](env)
	case MethodSessionResponse:
		return decodeParams[SessionResponse](env)
	case MethodSessionEvent:
		return decodeParams[SessionEvent](env)
	default:
		return nil, &errs.AppError{
			Code:    errs.CodeUnsupported,
			Subject: string(env.Method),
			Message: fmt.Sprintf("method %q", env.Method),
			Cause:   errs.ErrUnknownMethod,
		}
	}
}

func decodeParams[T Message](env Envelope) (Message, error) {
	var m T
	if len(env.Params) == 0 || string(env.Params) == "null" {
		return m, nil
	}
	if err := json.Unmarshal(env.Params, &m); err != nil {
		return nil, errs.Wrap(errs.CodeInvalidArgument, fmt.Sprintf("decode %s params", env.Method), err)
	}
	return m, nil
}

// Seal encodes m and encrypts it under symKey into a relay payload.
func Seal(c domain.CryptoProvider, symKey string, m Message) ([]byte, error) {
	plain, err := Encode(m)
	if err != nil {
		return nil, err
	}
	sealed, err := c.Encrypt(plain, symKey)
	if err != nil {
		return nil, fmt.Errorf("seal %s: %w", m.Method(), err)
	}
	return json.Marshal(sealed)
}

// Open decrypts a relay payload under symKey and decodes the message inside.
func Open(c domain.CryptoProvider, symKey string, payload []byte) (Message, error) {
	var sealed domain.Sealed
	if err := json.Unmarshal(payload, &sealed); err != nil {
		return nil, errs.Wrap(errs.CodeInvalidArgument, "decode frame", err)
	}
	plain, err := c.Decrypt(sealed, symKey)
	if err != nil {
		return nil, errs.Wrap(errs.CodeInvalidArgument, "open frame", err)
	}
	return Decode(plain)
}
