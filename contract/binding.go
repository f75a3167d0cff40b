package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/remotechain/votesync/config"
	"github.com/remotechain/votesync/errcode"
	"github.com/remotechain/votesync/ledger"
	"github.com/remotechain/votesync/tally"
	"github.com/remotechain/votesync/util/log"
	"github.com/remotechain/votesync/wallet"
)

// EpochSource reports the current session epoch.
type EpochSource interface {
	Current() uint64
}

// Signer sends transactions for the bound account.
type Signer interface {
	SendTransaction(ctx context.Context, tx wallet.TxRequest) (common.Hash, error)
}

// Names maps the ballot operations onto the contract interface.
type Names struct {
	ListCandidates     string
	VoterStatus        string
	CastVote           string
	VoteRecorded       string
	AlreadyVotedError  string
	AlreadyVotedReason string
}

func NamesFromConfig(c *config.Configuration) Names {
	return Names{
		ListCandidates:     c.ListCandidatesMethod,
		VoterStatus:        c.VoterStatusMethod,
		CastVote:           c.CastVoteMethod,
		VoteRecorded:       c.VoteRecordedEvent,
		AlreadyVotedError:  c.AlreadyVotedError,
		AlreadyVotedReason: c.AlreadyVotedReason,
	}
}

// Config is the deployment specific part of a binding.
type Config struct {
	Address     common.Address
	ABI         *abi.ABI
	Names       Names
	Preflight   bool
	ReceiptPoll time.Duration
}

// candidate mirrors the tuple returned by the list method. Fields are
// matched by position.
type candidate struct {
	Id        *big.Int `json:"id"`
	Name      string   `json:"name"`
	VoteCount *big.Int `json:"voteCount"`
}

// Binding is the read/write handle on the ballot for one account on one
// network. It is only valid for the epoch it was created under, writes
// issued after that are rejected with ErrStaleBinding.
type Binding struct {
	Config
	backend ledger.Backend
	signer  Signer
	account common.Address
	epochs  EpochSource
	epoch   uint64
}

func Bind(cfg Config, backend ledger.Backend, signer Signer, account common.Address, epochs EpochSource) (*Binding, error) {
	if cfg.ABI == nil {
		return nil, errors.New("nil contract abi")
	}
	for _, name := range []string{cfg.Names.ListCandidates, cfg.Names.VoterStatus, cfg.Names.CastVote} {
		if _, ok := cfg.ABI.Methods[name]; !ok {
			return nil, fmt.Errorf("contract abi has no method %s", name)
		}
	}
	if _, ok := cfg.ABI.Events[cfg.Names.VoteRecorded]; !ok {
		return nil, fmt.Errorf("contract abi has no event %s", cfg.Names.VoteRecorded)
	}
	if cfg.ReceiptPoll <= 0 {
		cfg.ReceiptPoll = time.Second
	}

	return &Binding{
		Config:  cfg,
		backend: backend,
		signer:  signer,
		account: account,
		epochs:  epochs,
		epoch:   epochs.Current(),
	}, nil
}

func (b *Binding) Epoch() uint64 {
	return b.epoch
}

func (b *Binding) Account() common.Address {
	return b.account
}

// Stale reports whether the session this binding was created for is gone.
func (b *Binding) Stale() bool {
	return b.epochs.Current() != b.epoch
}

func (b *Binding) errStale() error {
	return errcode.Newf(errcode.ErrStaleBinding, "binding of epoch %d used in epoch %d", b.epoch, b.epochs.Current())
}

func (b *Binding) callRaw(ctx context.Context, method string, args ...interface{}) ([]byte, error) {
	data, err := b.ABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	out, err := b.backend.CallContract(ctx, ethereum.CallMsg{From: b.account, To: &b.Address, Data: data}, nil)
	if err != nil {
		return nil, errcode.New(errcode.ErrLedgerUnavailable, err, "call "+method)
	}
	if len(out) == 0 {
		return nil, errcode.Newf(errcode.ErrLedgerUnavailable, "empty result of %s, no contract at %s?", method, b.Address.Hex())
	}
	return out, nil
}

func (b *Binding) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	out, err := b.callRaw(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	return b.ABI.Unpack(method, out)
}

// ReadAllCandidates fetches the whole ballot with a single call.
func (b *Binding) ReadAllCandidates(ctx context.Context) ([]tally.Candidate, error) {
	out, err := b.callRaw(ctx, b.Names.ListCandidates)
	if err != nil {
		return nil, err
	}

	var records []candidate
	if err = b.ABI.UnpackIntoInterface(&records, b.Names.ListCandidates, out); err != nil {
		return nil, errcode.New(errcode.ErrLedgerUnavailable, err, "decode candidates")
	}

	candidates := make([]tally.Candidate, 0, len(records))
	for _, r := range records {
		if r.Id == nil || !r.Id.IsUint64() || r.VoteCount == nil || !r.VoteCount.IsUint64() {
			return nil, errcode.Newf(errcode.ErrLedgerUnavailable, "candidate %q out of range", r.Name)
		}
		candidates = append(candidates, tally.Candidate{
			ID:        r.Id.Uint64(),
			Name:      r.Name,
			VoteCount: r.VoteCount.Uint64(),
		})
	}
	return candidates, nil
}

// HasVoted reads the voter status of the bound account.
func (b *Binding) HasVoted(ctx context.Context) (bool, error) {
	return b.ReadVoterStatus(ctx, b.account)
}

func (b *Binding) ReadVoterStatus(ctx context.Context, account common.Address) (bool, error) {
	out, err := b.call(ctx, b.Names.VoterStatus, account)
	if err != nil {
		return false, err
	}
	if len(out) == 0 {
		return false, errcode.Newf(errcode.ErrLedgerUnavailable, "no output from %s", b.Names.VoterStatus)
	}
	voted, ok := out[0].(bool)
	if !ok {
		return false, errcode.Newf(errcode.ErrLedgerUnavailable, "%s returned %T, want bool", b.Names.VoterStatus, out[0])
	}
	return voted, nil
}

// SubmitVote asks the wallet to sign and send a vote for id. The returned
// error is always classified.
func (b *Binding) SubmitVote(ctx context.Context, id uint64) (common.Hash, error) {
	if b.Stale() {
		return common.Hash{}, b.errStale()
	}

	data, err := b.ABI.Pack(b.Names.CastVote, new(big.Int).SetUint64(id))
	if err != nil {
		return common.Hash{}, errcode.New(errcode.ErrTxRejectedOrReverted, err, "pack vote")
	}
	tx := wallet.TxRequest{From: b.account, To: b.Address, Data: data}

	if b.Preflight {
		if _, err = b.backend.CallContract(ctx, tx.CallMsg(), nil); err != nil {
			classified := b.ClassifyError(err)
			if IsRevert(err) || errcode.CodeOf(classified) == errcode.ErrAlreadyVoted {
				return common.Hash{}, classified
			}
			log.Warningf("Vote preflight failed, submitting anyway: %v", err)
		}
		if b.Stale() {
			return common.Hash{}, b.errStale()
		}
	}

	hash, err := b.signer.SendTransaction(ctx, tx)
	if b.Stale() {
		if err == nil {
			log.Warningf("Vote %s sent by a stale binding, result dropped", hash.Hex())
		}
		return common.Hash{}, b.errStale()
	}
	if err != nil {
		return common.Hash{}, b.ClassifyError(err)
	}
	return hash, nil
}

func (b *Binding) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	return ledger.WaitMined(ctx, b.backend, hash, b.ReceiptPoll)
}

// VoteRecordedQuery filters the ballot's vote recorded logs.
func (b *Binding) VoteRecordedQuery() ethereum.FilterQuery {
	return ethereum.FilterQuery{
		Addresses: []common.Address{b.Address},
		Topics:    [][]common.Hash{{b.ABI.Events[b.Names.VoteRecorded].ID}},
	}
}

func (b *Binding) SubscribeVoteRecorded(ctx context.Context, ch chan<- types.Log) (ethereum.Subscription, error) {
	sub, err := b.backend.SubscribeFilterLogs(ctx, b.VoteRecordedQuery(), ch)
	if err != nil {
		return nil, errcode.New(errcode.ErrLedgerUnavailable, err, "subscribe "+b.Names.VoteRecorded)
	}
	return sub, nil
}
