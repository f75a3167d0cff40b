package network

import (
	"context"
	"errors"
	"testing"

	"github.com/remotechain/votesync/config"
	"github.com/remotechain/votesync/errcode"
	"github.com/remotechain/votesync/testutil"
	"github.com/remotechain/votesync/wallet"
	"github.com/stretchr/testify/require"
)

func expected() config.NetworkConfig {
	return config.Parameters.Network
}

// go test -v -run=TestEnsureNetworkOnNetwork
func TestEnsureNetworkOnNetwork(t *testing.T) {
	w := testutil.NewWallet(testutil.ChainID, testutil.Alice)
	g := NewGuard(w, expected())

	result, err := g.EnsureNetwork(context.Background())
	require.NoError(t, err)
	require.Equal(t, OnNetwork, result)
	require.Equal(t, 0, w.Switches)
	require.Empty(t, w.Added)
}

// go test -v -run=TestEnsureNetworkSwitch
func TestEnsureNetworkSwitch(t *testing.T) {
	w := testutil.NewWallet(1, testutil.Alice)
	w.Know(testutil.ChainID)
	g := NewGuard(w, expected())

	result, err := g.EnsureNetwork(context.Background())
	require.NoError(t, err)
	require.Equal(t, OnNetwork, result)
	require.Equal(t, 1, w.Switches)
	require.Empty(t, w.Added)

	chainID, _ := w.ChainID(context.Background())
	require.Equal(t, testutil.ChainID, chainID)
}

// go test -v -run=TestEnsureNetworkAddChain
func TestEnsureNetworkAddChain(t *testing.T) {
	w := testutil.NewWallet(1, testutil.Alice)
	g := NewGuard(w, expected())

	result, err := g.EnsureNetwork(context.Background())
	require.NoError(t, err)
	require.Equal(t, OnNetwork, result)
	require.Equal(t, 2, w.Switches)
	require.Len(t, w.Added, 1)
	require.Equal(t, "0x1fb7", w.Added[0].ChainID)
	require.Equal(t, "SHM", w.Added[0].NativeCurrency.Symbol)
	require.Equal(t, uint8(18), w.Added[0].NativeCurrency.Decimals)
	require.Equal(t, expected().RPCURLs, w.Added[0].RPCURLs)
}

// go test -v -run=TestEnsureNetworkRejected
func TestEnsureNetworkRejected(t *testing.T) {
	w := testutil.NewWallet(1, testutil.Alice)
	w.Know(testutil.ChainID)
	w.SwitchErr = testutil.Declined()
	g := NewGuard(w, expected())

	result, err := g.EnsureNetwork(context.Background())
	require.NoError(t, err)
	require.Equal(t, NeedsManualSwitch, result)

	w = testutil.NewWallet(1, testutil.Alice)
	w.AddErr = testutil.Declined()
	g = NewGuard(w, expected())

	result, err = g.EnsureNetwork(context.Background())
	require.NoError(t, err)
	require.Equal(t, NeedsManualSwitch, result)
	require.Equal(t, 1, w.Switches)

	w = testutil.NewWallet(1, testutil.Alice)
	w.SwitchErr = &wallet.ProviderError{Code: wallet.CodeUnsupportedMethod, Message: "unsupported"}
	g = NewGuard(w, expected())

	result, err = g.EnsureNetwork(context.Background())
	require.NoError(t, err)
	require.Equal(t, NeedsManualSwitch, result)
	require.Empty(t, w.Added)
}

// go test -v -run=TestEnsureNetworkChainIDError
func TestEnsureNetworkChainIDError(t *testing.T) {
	w := testutil.NewWallet(testutil.ChainID, testutil.Alice)
	w.ChainErr = errors.New("bridge closed")
	g := NewGuard(w, expected())

	result, err := g.EnsureNetwork(context.Background())
	require.Equal(t, NeedsManualSwitch, result)
	require.Equal(t, errcode.ErrWrongNetwork, errcode.CodeOf(err))
	require.Equal(t, 0, w.Switches)
}
