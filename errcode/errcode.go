package errcode

import (
	"errors"
	"fmt"
)

type ErrCode int32

const (
	ErrNoCode               ErrCode = -2
	ErrUnknown              ErrCode = -1
	ErrNoError              ErrCode = 0
	ErrNoWalletCapability   ErrCode = 46001
	ErrUserDeclined         ErrCode = 46002
	ErrWrongNetwork         ErrCode = 46003
	ErrAlreadyVoted         ErrCode = 46004
	ErrTxRejectedOrReverted ErrCode = 46005
	ErrStaleBinding         ErrCode = 46006
	ErrNotConnected         ErrCode = 46007
	ErrVoteInProgress       ErrCode = 46008
	ErrConnectInProgress    ErrCode = 46009
	ErrLedgerUnavailable    ErrCode = 46010
)

var ErrCode2Str = map[ErrCode]string{
	ErrNoCode:               "No error code",
	ErrUnknown:              "Unknown error",
	ErrNoError:              "Not an error",
	ErrNoWalletCapability:   "No wallet provider available, install a wallet to vote",
	ErrUserDeclined:         "Request declined in the wallet",
	ErrWrongNetwork:         "Wallet is on the wrong network",
	ErrAlreadyVoted:         "This account has already voted",
	ErrTxRejectedOrReverted: "Transaction failed, please try again",
	ErrStaleBinding:         "Session changed while the request was in flight",
	ErrNotConnected:         "Wallet is not connected",
	ErrVoteInProgress:       "A vote is already in progress",
	ErrConnectInProgress:    "Wallet connection already in progress",
	ErrLedgerUnavailable:    "Ledger request failed",
}

func (code ErrCode) Error() string {
	if s, ok := ErrCode2Str[code]; ok {
		return s
	}

	return fmt.Sprintf("Unknown error? Error code = %d", code)
}

// Recoverable reports whether the user can act on the error and retry.
// StaleBinding and AlreadyVoted are not user facing failures at all.
func (code ErrCode) Recoverable() bool {
	switch code {
	case ErrStaleBinding, ErrAlreadyVoted, ErrNoError:
		return false
	}
	return true
}

// Silent reports whether the error must never be surfaced to the view.
func (code ErrCode) Silent() bool {
	return code == ErrStaleBinding
}

type ErrCoder interface {
	GetErrCode() ErrCode
}

// Error is an ErrCode attached to the root cause that produced it.
type Error struct {
	code ErrCode
	msg  string
	root error
}

// New wraps root with code. msg is prepended to the root message if not
// empty.
func New(code ErrCode, root error, msg string) *Error {
	e := &Error{code: code, msg: msg, root: root}
	return e
}

// Newf is New without a root cause.
func Newf(code ErrCode, format string, a ...interface{}) *Error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

func (e *Error) Error() string {
	switch {
	case e.msg != "" && e.root != nil:
		return e.msg + ": " + e.root.Error()
	case e.msg != "":
		return e.msg
	case e.root != nil:
		return e.root.Error()
	}
	return e.code.Error()
}

func (e *Error) GetErrCode() ErrCode {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.root
}

// Is matches both other *Error values and bare ErrCode targets, so
// errors.Is(err, errcode.ErrUserDeclined) works.
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case ErrCode:
		return e.code == t
	case *Error:
		return e.code == t.code
	}
	return false
}

// CodeOf returns the ErrCode carried by err, ErrNoError for nil and ErrUnknown
// for errors that were never classified.
func CodeOf(err error) ErrCode {
	if err == nil {
		return ErrNoError
	}
	var coder ErrCoder
	if errors.As(err, &coder) {
		return coder.GetErrCode()
	}
	var code ErrCode
	if errors.As(err, &code) {
		return code
	}
	return ErrUnknown
}

// Message is the user facing text for err, never the raw provider message.
func Message(err error) string {
	code := CodeOf(err)
	if code == ErrUnknown {
		return ErrCode2Str[ErrUnknown]
	}
	return code.Error()
}
