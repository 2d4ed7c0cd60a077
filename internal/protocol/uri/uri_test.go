package uri_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairlink/internal/domain"
	"pairlink/internal/errs"
	"pairlink/internal/protocol/uri"
)

func TestRoundTrip(t *testing.T) {
	in := uri.Params{
		Topic:     "7f6e5d",
		SymKey:    "587d5484ce2a2a6ee3ba1962fdd7e8588e06200c46823bd18fbd67def96ad303",
		Relay:     domain.RelayProtocolOptions{Protocol: "http", Data: "http://127.0.0.1:8080/x?y=1"},
		PublicKey: "abcd",
	}
	s := uri.Encode(in)
	assert.Contains(t, s, "wc:7f6e5d@2?relay-protocol=http&symKey=")

	out, err := uri.Decode(s)
	require.NoError(t, err)
	assert.Equal(t, in.Topic, out.Topic)
	assert.Equal(t, in.SymKey, out.SymKey)
	assert.Equal(t, in.Relay, out.Relay)
	assert.Equal(t, in.PublicKey, out.PublicKey)
	assert.Equal(t, uri.Version, out.Version)
}

func TestRoundTrip_MinimalURI(t *testing.T) {
	s := uri.Encode(uri.Params{Topic: "t", SymKey: "k", Relay: domain.RelayProtocolOptions{Protocol: "memory"}})
	assert.Equal(t, "wc:t@2?relay-protocol=memory&symKey=k", s)

	out, err := uri.Decode(s)
	require.NoError(t, err)
	assert.Empty(t, out.Relay.Data)
	assert.Empty(t, out.PublicKey)
}

func TestDecode_Rejects(t *testing.T) {
	cases := map[string]struct {
		in   string
		code errs.Code
	}{
		"wrong scheme":          {"xx:t@2?relay-protocol=http&symKey=k", errs.CodeUnsupported},
		"wrong version":         {"wc:t@1?relay-protocol=http&symKey=k", errs.CodeUnsupported},
		"missing topic":         {"wc:@2?relay-protocol=http&symKey=k", errs.CodeInvalidArgument},
		"missing version":       {"wc:t?relay-protocol=http&symKey=k", errs.CodeInvalidArgument},
		"empty version":         {"wc:t@?relay-protocol=http&symKey=k", errs.CodeInvalidArgument},
		"missing relayProtocol": {"wc:t@2?symKey=k", errs.CodeInvalidArgument},
		"missing symKey":        {"wc:t@2?relay-protocol=http", errs.CodeInvalidArgument},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := uri.Decode(tc.in)
			require.Error(t, err)
			assert.Equal(t, tc.code, errs.CodeOf(err))
		})
	}
}
