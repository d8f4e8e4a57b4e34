package types

import "math/big"

// Account is a single KUMA token holder tracked by the token ledger. Accounts
// must be registered before they can hold or receive a balance; a missing
// account means "not registered", not a zero balance.
type Account struct {
	Nonce   uint64   `json:"nonce"`
	Balance *big.Int `json:"balance"`
}

// Normalize replaces a nil balance with zero so callers can operate on the
// account without nil checks.
func (a *Account) Normalize() *Account {
	if a == nil {
		return &Account{Balance: big.NewInt(0)}
	}
	if a.Balance == nil {
		a.Balance = big.NewInt(0)
	}
	return a
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	clone := &Account{Nonce: a.Nonce, Balance: big.NewInt(0)}
	if a.Balance != nil {
		clone.Balance = new(big.Int).Set(a.Balance)
	}
	return clone
}
