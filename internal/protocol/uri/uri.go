// Package uri encodes and decodes the pairing URI exchanged out-of-band
// (QR code, clipboard) to bootstrap a pairing:
//
//	wc:{topic}@{version}?relay-protocol={protocol}&symKey={hex}[&relay-data={data}][&publicKey={hex}]
//
// Decode rejects any version other than Version and any URI missing the
// topic, version, relay-protocol or symKey.
package uri

import (
	"net/url"
	"strconv"
	"strings"

	"pairlink/internal/domain"
	"pairlink/internal/errs"
)

const (
	Scheme  = "wc"
	Version = 2

	paramRelayProtocol = "relay-protocol"
	paramRelayData     = "relay-data"
	paramSymKey        = "symKey"
	paramPublicKey     = "publicKey"
)

// Params is the content of a pairing URI.
type Params struct {
	Topic   domain.Topic
	Version int
	SymKey  string
	Relay   domain.RelayProtocolOptions
	// PublicKey is the proposer's pairing key. Optional on decode.
	PublicKey string
}

// Encode renders p as a pairing URI. p.Version is ignored; Version is always written.
func Encode(p Params) string {
	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteByte(':')
	b.WriteString(p.Topic)
	b.WriteByte('@')
	b.WriteString(strconv.Itoa(Version))
	b.WriteByte('?')
	b.WriteString(paramRelayProtocol + "=" + url.QueryEscape(p.Relay.Protocol))
	b.WriteString("&" + paramSymKey + "=" + url.QueryEscape(p.SymKey))
	if p.Relay.Data != "" {
		b.WriteString("&" + paramRelayData + "=" + url.QueryEscape(p.Relay.Data))
	}
	if p.PublicKey != "" {
		b.WriteString("&" + paramPublicKey + "=" + url.QueryEscape(p.PublicKey))
	}
	return b.String()
}

// Decode parses a pairing URI.
func Decode(s string) (Params, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), Scheme+":")
	if !ok {
		return Params{}, errs.Newf(errs.CodeUnsupported, "pairing uri: scheme must be %q", Scheme)
	}
	path, rawQuery, _ := strings.Cut(rest, "?")

	topic, rawVersion, ok := strings.Cut(path, "@")
	if topic == "" {
		return Params{}, errs.InvalidArg("pairing uri: missing topic")
	}
	if !ok || rawVersion == "" {
		return Params{}, errs.InvalidArg("pairing uri: missing version")
	}
	version, err := strconv.Atoi(rawVersion)
	if err != nil {
		return Params{}, errs.Wrap(errs.CodeInvalidArgument, "pairing uri: bad version", err)
	}
	if version != Version {
		return Params{}, errs.Newf(errs.CodeUnsupported, "pairing uri: unsupported version %d", version)
	}

	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return Params{}, errs.Wrap(errs.CodeInvalidArgument, "pairing uri: bad query", err)
	}
	p := Params{
		Topic:   topic,
		Version: version,
		SymKey:  q.Get(paramSymKey),
		Relay: domain.RelayProtocolOptions{
			Protocol: q.Get(paramRelayProtocol),
			Data:     q.Get(paramRelayData),
		},
		PublicKey: q.Get(paramPublicKey),
	}
	if p.Relay.Protocol == "" {
		return Params{}, errs.InvalidArg("pairing uri: missing " + paramRelayProtocol)
	}
	if p.SymKey == "" {
		return Params{}, errs.InvalidArg("pairing uri: missing " + paramSymKey)
	}
	return p, nil
}
