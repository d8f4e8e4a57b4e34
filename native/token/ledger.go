package token

import (
	"errors"
	"fmt"
	"math/big"

	"kumachain/core/types"
)

var (
	ErrNilState          = errors.New("token: state not configured")
	ErrNotRegistered     = errors.New("token: account not registered")
	ErrAlreadyRegistered = errors.New("token: account already registered")
	ErrInsufficientFunds = errors.New("token: insufficient balance")
	ErrSelfTransfer      = errors.New("token: sender and receiver must differ")
	ErrMaxSupplyExceeded = errors.New("token: max supply exceeded")
	ErrNegativeAmount    = errors.New("token: amount must not be negative")
)

// State is the persistence backend for the token ledger. A missing account is
// reported through the boolean, not an error.
type State interface {
	GetAccount(addr [20]byte) (*types.Account, bool)
	PutAccount(addr [20]byte, acc *types.Account) error
	TotalSupply() *big.Int
	SetTotalSupply(supply *big.Int) error
}

// Ledger owns the KUMA balances. Transfers, deposits and withdrawals are
// atomic: they either fully apply or fail without touching state. All amounts
// are non-negative; a zero amount is a no-op.
type Ledger struct {
	state     State
	maxSupply *big.Int
}

// NewLedger creates a token ledger over the supplied state. A nil maxSupply
// disables the supply cap.
func NewLedger(state State, maxSupply *big.Int) *Ledger {
	l := &Ledger{state: state}
	if maxSupply != nil {
		l.maxSupply = new(big.Int).Set(maxSupply)
	}
	return l
}

func (l *Ledger) account(addr [20]byte) (*types.Account, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	acc, ok := l.state.GetAccount(addr)
	if !ok {
		return nil, ErrNotRegistered
	}
	return acc.Normalize(), nil
}

func checkAmount(amount *big.Int) (*big.Int, error) {
	if amount == nil {
		return big.NewInt(0), nil
	}
	if amount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	return new(big.Int).Set(amount), nil
}

// Register creates a zero-balance account. Registering an existing account is
// an error so callers can distinguish first-time setup.
func (l *Ledger) Register(addr [20]byte) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if _, ok := l.state.GetAccount(addr); ok {
		return ErrAlreadyRegistered
	}
	return l.state.PutAccount(addr, &types.Account{Balance: big.NewInt(0)})
}

// Registered reports whether the account exists on the ledger.
func (l *Ledger) Registered(addr [20]byte) bool {
	if l == nil || l.state == nil {
		return false
	}
	_, ok := l.state.GetAccount(addr)
	return ok
}

// BalanceOf returns the current balance of a registered account.
func (l *Ledger) BalanceOf(addr [20]byte) (*big.Int, error) {
	acc, err := l.account(addr)
	if err != nil {
		return nil, err
	}
	return new(big.Int).Set(acc.Balance), nil
}

// TotalSupply returns the circulating supply.
func (l *Ledger) TotalSupply() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	supply := l.state.TotalSupply()
	if supply == nil {
		return big.NewInt(0), nil
	}
	return new(big.Int).Set(supply), nil
}

// Transfer moves amount between two distinct registered accounts. The two
// accounts are loaded as independent copies, so a self-transfer would let the
// second write clobber the debit; it is rejected outright.
func (l *Ledger) Transfer(from, to [20]byte, amount *big.Int) error {
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if amt.Sign() == 0 {
		return nil
	}
	if from == to {
		return ErrSelfTransfer
	}
	fromAcc, err := l.account(from)
	if err != nil {
		return fmt.Errorf("token: sender: %w", err)
	}
	toAcc, err := l.account(to)
	if err != nil {
		return fmt.Errorf("token: receiver: %w", err)
	}
	if fromAcc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientFunds
	}
	fromAcc.Balance = new(big.Int).Sub(fromAcc.Balance, amt)
	toAcc.Balance = new(big.Int).Add(toAcc.Balance, amt)
	if err := l.state.PutAccount(from, fromAcc); err != nil {
		return err
	}
	return l.state.PutAccount(to, toAcc)
}

// Deposit credits amount to a registered account and grows the supply. The
// supply cap is not consulted here; capped issuance goes through Mint.
func (l *Ledger) Deposit(addr [20]byte, amount *big.Int) error {
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if amt.Sign() == 0 {
		return nil
	}
	acc, err := l.account(addr)
	if err != nil {
		return err
	}
	acc.Balance = new(big.Int).Add(acc.Balance, amt)
	if err := l.state.PutAccount(addr, acc); err != nil {
		return err
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	return l.state.SetTotalSupply(supply.Add(supply, amt))
}

// Withdraw burns amount from a registered account and shrinks the supply.
func (l *Ledger) Withdraw(addr [20]byte, amount *big.Int) error {
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if amt.Sign() == 0 {
		return nil
	}
	acc, err := l.account(addr)
	if err != nil {
		return err
	}
	if acc.Balance.Cmp(amt) < 0 {
		return ErrInsufficientFunds
	}
	acc.Balance = new(big.Int).Sub(acc.Balance, amt)
	if err := l.state.PutAccount(addr, acc); err != nil {
		return err
	}
	supply, err := l.TotalSupply()
	if err != nil {
		return err
	}
	return l.state.SetTotalSupply(supply.Sub(supply, amt))
}

// Mint issues new tokens to an account, registering it first when needed. The
// issuance fails when it would push the circulating supply past the cap.
func (l *Ledger) Mint(addr [20]byte, amount *big.Int) error {
	amt, err := checkAmount(amount)
	if err != nil {
		return err
	}
	if l == nil || l.state == nil {
		return ErrNilState
	}
	if l.maxSupply != nil {
		supply, err := l.TotalSupply()
		if err != nil {
			return err
		}
		if supply.Add(supply, amt).Cmp(l.maxSupply) > 0 {
			return ErrMaxSupplyExceeded
		}
	}
	if !l.Registered(addr) {
		if err := l.Register(addr); err != nil {
			return err
		}
	}
	return l.Deposit(addr, amt)
}
