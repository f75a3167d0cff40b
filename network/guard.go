package network

import (
	"context"

	"github.com/remotechain/votesync/config"
	"github.com/remotechain/votesync/errcode"
	"github.com/remotechain/votesync/util/log"
	"github.com/remotechain/votesync/wallet"
)

type Result int

const (
	OnNetwork Result = iota
	NeedsManualSwitch
)

func (r Result) String() string {
	switch r {
	case OnNetwork:
		return "OnNetwork"
	case NeedsManualSwitch:
		return "NeedsManualSwitch"
	}
	return "Unknown"
}

// Switcher is the wallet capability the guard needs.
type Switcher interface {
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, params wallet.ChainParams) error
}

// Guard keeps the wallet on the expected network.
type Guard struct {
	wallet   Switcher
	expected config.NetworkConfig
}

func NewGuard(w Switcher, expected config.NetworkConfig) *Guard {
	return &Guard{
		wallet:   w,
		expected: expected,
	}
}

func (g *Guard) Expected() uint64 {
	return g.expected.ChainID
}

// EnsureNetwork returns OnNetwork without side effects when the wallet is
// already on the expected chain. Otherwise it asks the wallet to switch,
// adding the chain first if the wallet does not know it, and returns
// NeedsManualSwitch if the wallet refuses. Refusal is not an error. Only a
// failure to read the current chain is.
func (g *Guard) EnsureNetwork(ctx context.Context) (Result, error) {
	current, err := g.wallet.ChainID(ctx)
	if err != nil {
		return NeedsManualSwitch, errcode.New(errcode.ErrWrongNetwork, err, "read wallet chain id")
	}
	if current == g.expected.ChainID {
		return OnNetwork, nil
	}

	log.Infof("Wallet on chain %d, requesting switch to %d", current, g.expected.ChainID)

	err = g.wallet.SwitchChain(ctx, g.expected.ChainID)
	if err == nil {
		return OnNetwork, nil
	}

	if code, ok := wallet.ErrorCode(err); !ok || code != wallet.CodeUnrecognizedChain {
		log.Warningf("Switch to chain %d rejected: %v", g.expected.ChainID, err)
		return NeedsManualSwitch, nil
	}

	log.Infof("Chain %d unknown to wallet, adding %s", g.expected.ChainID, g.expected.ChainName)
	if err = g.wallet.AddChain(ctx, wallet.NewChainParams(g.expected)); err != nil {
		log.Warningf("Add chain %d rejected: %v", g.expected.ChainID, err)
		return NeedsManualSwitch, nil
	}

	if err = g.wallet.SwitchChain(ctx, g.expected.ChainID); err != nil {
		log.Warningf("Switch to chain %d after add rejected: %v", g.expected.ChainID, err)
		return NeedsManualSwitch, nil
	}

	return OnNetwork, nil
}
