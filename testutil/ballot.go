// Package testutil provides an in-memory ballot ledger and wallet for tests.
package testutil

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const (
	ListCandidatesMethod = "getAllCandidates"
	VoterStatusMethod    = "voters"
	CastVoteMethod       = "vote"
	VoteRecordedEvent    = "VotedEvent"
	AlreadyVotedError    = "AlreadyVoted"
	AlreadyVotedReason   = "already voted"

	ChainID uint64 = 8119
)

// ContractAddress is where the fake ledger pretends the ballot lives.
var ContractAddress = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")

// BallotABI is the interface of the ballot contract.
const BallotABI = `[
	{"type":"function","name":"getAllCandidates","stateMutability":"view","inputs":[],
	 "outputs":[{"name":"","type":"tuple[]","components":[
		{"name":"id","type":"uint256"},
		{"name":"name","type":"string"},
		{"name":"voteCount","type":"uint256"}]}]},
	{"type":"function","name":"voters","stateMutability":"view",
	 "inputs":[{"name":"","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"vote","stateMutability":"nonpayable",
	 "inputs":[{"name":"_candidateId","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"VotedEvent","anonymous":false,
	 "inputs":[{"name":"_candidateId","type":"uint256","indexed":true}]},
	{"type":"error","name":"AlreadyVoted","inputs":[]}
]`

// BallotArtifact is BallotABI wrapped the way the deployment pipeline
// publishes it.
var BallotArtifact = `{"contractName":"RemoteVoting","abi":` + BallotABI + `}`

func ParseBallotABI() *abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(BallotABI))
	if err != nil {
		panic(err)
	}
	return &parsed
}

// RevertError is a ledger or wallet error carrying revert data, as returned
// by go-ethereum rpc clients.
type RevertError struct {
	Message string
	Data    string
}

func (e *RevertError) Error() string {
	return e.Message
}

func (e *RevertError) ErrorCode() int {
	return 3
}

func (e *RevertError) ErrorData() interface{} {
	return e.Data
}

// CustomErrorRevert is the revert of a custom error without arguments.
func CustomErrorRevert(parsed *abi.ABI, name string) *RevertError {
	id := parsed.Errors[name].ID
	return &RevertError{
		Message: "execution reverted",
		Data:    hexutil.Encode(id[:4]),
	}
}

// ReasonRevert is the revert of require(false, reason).
func ReasonRevert(reason string) *RevertError {
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	selector := []byte{0x08, 0xc3, 0x79, 0xa0}
	return &RevertError{
		Message: "execution reverted: " + reason,
		Data:    hexutil.Encode(append(selector, packed...)),
	}
}
