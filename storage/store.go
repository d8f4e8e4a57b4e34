package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"math/big"
	"sync"

	"kumachain/core/types"
	"kumachain/native/stake"
)

var (
	stakePrefix   = []byte("stake/")
	accountPrefix = []byte("acct/")
	supplyKey     = []byte("supply")
)

// Store persists stake records, token accounts, and the circulating supply as
// JSON values in a Database. It backs both the stake engine and the token
// ledger; a missing key is reported as "not present", decode failures are
// logged and treated the same so a corrupt value cannot silently read as a
// zero balance without a trace.
type Store struct {
	mu sync.RWMutex
	db Database
}

// NewStore wraps the database.
func NewStore(db Database) *Store {
	return &Store{db: db}
}

func addrKey(prefix []byte, addr [20]byte) []byte {
	key := make([]byte, 0, len(prefix)+40)
	key = append(key, prefix...)
	return append(key, hex.EncodeToString(addr[:])...)
}

func (s *Store) getJSON(key []byte, out any) bool {
	raw, err := s.db.Get(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false
	}
	if err != nil {
		slog.Error("storage: read failed", "key", string(key), "error", err)
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		slog.Error("storage: corrupt value", "key", string(key), "error", err)
		return false
	}
	return true
}

func (s *Store) putJSON(key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.db.Put(key, raw)
}

// StakeGet loads the stake record for an address.
func (s *Store) StakeGet(addr [20]byte) (*stake.Stake, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record := new(stake.Stake)
	if !s.getJSON(addrKey(stakePrefix, addr), record) {
		return nil, false
	}
	return record, true
}

// StakePut persists the stake record for an address.
func (s *Store) StakePut(addr [20]byte, record *stake.Stake) error {
	if record == nil {
		return errors.New("storage: nil stake record")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putJSON(addrKey(stakePrefix, addr), record)
}

// GetAccount loads the token account for an address.
func (s *Store) GetAccount(addr [20]byte) (*types.Account, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc := new(types.Account)
	if !s.getJSON(addrKey(accountPrefix, addr), acc) {
		return nil, false
	}
	return acc.Normalize(), true
}

// PutAccount persists the token account for an address.
func (s *Store) PutAccount(addr [20]byte, acc *types.Account) error {
	if acc == nil {
		return errors.New("storage: nil account")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putJSON(addrKey(accountPrefix, addr), acc)
}

// TotalSupply returns the persisted circulating supply.
func (s *Store) TotalSupply() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var encoded string
	if !s.getJSON(supplyKey, &encoded) {
		return big.NewInt(0)
	}
	supply, ok := new(big.Int).SetString(encoded, 10)
	if !ok {
		slog.Error("storage: corrupt supply value", "value", encoded)
		return big.NewInt(0)
	}
	return supply
}

// SetTotalSupply persists the circulating supply.
func (s *Store) SetTotalSupply(supply *big.Int) error {
	if supply == nil || supply.Sign() < 0 {
		return errors.New("storage: invalid supply")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putJSON(supplyKey, supply.String())
}
