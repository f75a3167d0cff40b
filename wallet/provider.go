package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/remotechain/votesync/config"
)

// EIP-1193 provider error codes
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
)

const (
	EventAccountsChanged = "accountsChanged"
	EventChainChanged    = "chainChanged"
)

// Provider is the wallet capability the client needs. It signs and sends
// transactions on behalf of the user and owns the account and chain
// selection.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	Accounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (uint64, error)
	SwitchChain(ctx context.Context, chainID uint64) error
	AddChain(ctx context.Context, params ChainParams) error
	SendTransaction(ctx context.Context, tx TxRequest) (common.Hash, error)
	SubscribeNotifications(ch chan<- Notification) ethereum.Subscription
}

// Notification is an accountsChanged or chainChanged event pushed by the
// wallet. Only the field matching Event is set.
type Notification struct {
	Event    string
	Accounts []common.Address
	ChainID  uint64
}

// ProviderError is the error object of an EIP-1193 request.
type ProviderError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("wallet error %d: %s", e.Code, e.Message)
}

func (e *ProviderError) ErrorCode() int {
	return e.Code
}

// ErrorData returns the revert payload attached by the wallet, as a hex
// string, when there is one. Wallets put it either directly in data or in
// data.data.
func (e *ProviderError) ErrorData() interface{} {
	if len(e.Data) == 0 {
		return nil
	}
	var s string
	if err := json.Unmarshal(e.Data, &s); err == nil {
		return s
	}
	var nested struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(e.Data, &nested); err == nil && nested.Data != "" {
		return nested.Data
	}
	return nil
}

// ErrorCode returns the EIP-1193 code carried by err.
func ErrorCode(err error) (int, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	var coder interface{ ErrorCode() int }
	if errors.As(err, &coder) {
		return coder.ErrorCode(), true
	}
	return 0, false
}

type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// ChainParams is the wallet_addEthereumChain descriptor.
type ChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

func NewChainParams(network config.NetworkConfig) ChainParams {
	return ChainParams{
		ChainID:   hexutil.EncodeUint64(network.ChainID),
		ChainName: network.ChainName,
		NativeCurrency: NativeCurrency{
			Name:     network.NativeCurrency.Name,
			Symbol:   network.NativeCurrency.Symbol,
			Decimals: network.NativeCurrency.Decimals,
		},
		RPCURLs:           network.RPCURLs,
		BlockExplorerURLs: network.BlockExplorerURLs,
	}
}

// TxRequest is an eth_sendTransaction request. Gas and nonce are left to
// the wallet.
type TxRequest struct {
	From  common.Address
	To    common.Address
	Data  []byte
	Value *big.Int
}

func (tx TxRequest) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"from": tx.From,
		"to":   tx.To,
		"data": hexutil.Bytes(tx.Data),
	}
	if tx.Value != nil && tx.Value.Sign() > 0 {
		m["value"] = (*hexutil.Big)(tx.Value)
	}
	return json.Marshal(m)
}

// CallMsg is the eth_call form of tx, used to dry run it against the ledger.
func (tx TxRequest) CallMsg() ethereum.CallMsg {
	to := tx.To
	return ethereum.CallMsg{
		From:  tx.From,
		To:    &to,
		Data:  tx.Data,
		Value: tx.Value,
	}
}
