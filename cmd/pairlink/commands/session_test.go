package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairlink/internal/domain"
	"pairlink/internal/services/session"
)

func TestNamespacesFor(t *testing.T) {
	ns, err := namespacesFor([]string{"eip155:1", "eip155:10", "cosmos:hub"}, []string{"eth_sign"}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"eip155:1", "eip155:10"}, ns["eip155"].Chains)
	assert.Equal(t, []string{"cosmos:hub"}, ns["cosmos"].Chains)
	assert.Equal(t, []string{"eth_sign"}, ns["cosmos"].Methods)

	_, err = namespacesFor([]string{"eip155"}, nil, nil)
	assert.Error(t, err)
}

func TestGrant_CoversProposal(t *testing.T) {
	p := domain.Proposal{RequiredNamespaces: domain.Namespaces{"eip155": {
		Chains:  []string{"eip155:1"},
		Methods: []string{"eth_sign"},
		Events:  []string{"accountsChanged"},
	}}}
	ns := grant(p, []string{"eip155:1:0xabc", "eip155:5:0xdef"})
	assert.Equal(t, []string{"eip155:1:0xabc"}, ns["eip155"].Accounts)
	assert.NoError(t, session.ValidateApproval(p.RequiredNamespaces, ns))
}
