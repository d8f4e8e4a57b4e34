package stake

import "errors"

var (
	ErrNilState            = errors.New("stake: state not configured")
	ErrNilTokenLedger      = errors.New("stake: token ledger not configured")
	ErrNilDispatcher       = errors.New("stake: dispatcher not configured")
	ErrNoStake             = errors.New("stake: no stake record for account")
	ErrBelowMinimum        = errors.New("stake: amount below minimum stake")
	ErrInsufficientBalance = errors.New("stake: insufficient balance")
	ErrArithmeticOverflow  = errors.New("stake: arithmetic overflow")
	ErrWrongSigner         = errors.New("stake: completion signer mismatch")
	ErrUnknownWorkflow     = errors.New("stake: unknown workflow")
	ErrWorkflowKind        = errors.New("stake: completion does not match workflow kind")
	ErrUnauthorized        = errors.New("stake: unauthorized")
	ErrRateOutOfRange      = errors.New("stake: rate out of range")
)
