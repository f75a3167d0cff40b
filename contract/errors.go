package contract

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/remotechain/votesync/errcode"
	"github.com/remotechain/votesync/wallet"
)

// dataError is implemented by go-ethereum rpc errors and wallet provider
// errors that carry revert data.
type dataError interface {
	ErrorData() interface{}
}

// RevertData extracts the ABI encoded revert payload attached to err.
func RevertData(err error) []byte {
	var de dataError
	if !errors.As(err, &de) {
		return nil
	}
	switch data := de.ErrorData().(type) {
	case []byte:
		return data
	case hexutil.Bytes:
		return data
	case string:
		b, err := hexutil.Decode(data)
		if err != nil {
			return nil
		}
		return b
	}
	return nil
}

// IsRevert reports whether err is an execution revert rather than a
// transport or wallet failure.
func IsRevert(err error) bool {
	if len(RevertData(err)) > 0 {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "execution reverted")
}

// ClassifyError translates a wallet or ledger error from a vote submission.
// Structured signals win: a custom error matching the configured
// already-voted error, then an Error(string) revert whose reason matches.
// The raw message is inspected last, for wallets that only forward text.
func (b *Binding) ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if code := errcode.CodeOf(err); code != errcode.ErrUnknown && code != errcode.ErrLedgerUnavailable {
		return err
	}

	if code, ok := wallet.ErrorCode(err); ok && code == wallet.CodeUserRejected {
		return errcode.New(errcode.ErrUserDeclined, err, "")
	}

	if b.isAlreadyVotedRevert(RevertData(err)) {
		return errcode.New(errcode.ErrAlreadyVoted, err, "")
	}

	reason := strings.ToLower(b.Names.AlreadyVotedReason)
	if len(reason) > 0 && strings.Contains(strings.ToLower(err.Error()), reason) {
		return errcode.New(errcode.ErrAlreadyVoted, err, "")
	}

	return errcode.New(errcode.ErrTxRejectedOrReverted, err, "")
}

func (b *Binding) isAlreadyVotedRevert(data []byte) bool {
	if len(data) < 4 {
		return false
	}

	if custom, ok := b.ABI.Errors[b.Names.AlreadyVotedError]; ok && bytes.Equal(data[:4], custom.ID[:4]) {
		return true
	}

	reason, err := abi.UnpackRevert(data)
	if err != nil || len(b.Names.AlreadyVotedReason) == 0 {
		return false
	}
	return strings.Contains(strings.ToLower(reason), strings.ToLower(b.Names.AlreadyVotedReason))
}
