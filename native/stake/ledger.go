package stake

import (
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ledgerState is the persistence backend for stake records. A missing record
// is reported through the boolean, not an error.
type ledgerState interface {
	StakeGet(addr [20]byte) (*Stake, bool)
	StakePut(addr [20]byte, record *Stake) error
}

// Ledger exclusively owns the stake records. Every increase and decrease
// settles the pending reward up to now before touching the principal, so
// accrual windows never straddle a principal change.
type Ledger struct {
	state ledgerState
	nowFn func() uint64
}

// NewLedger constructs a stake ledger over the supplied state.
func NewLedger(state ledgerState, nowFn func() uint64) *Ledger {
	return &Ledger{state: state, nowFn: nowFn}
}

func (l *Ledger) now() uint64 {
	if l == nil || l.nowFn == nil {
		return 0
	}
	return l.nowFn()
}

// Get returns a copy of the account's stake record.
func (l *Ledger) Get(addr [20]byte) (*Stake, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	record, ok := l.state.StakeGet(addr)
	if !ok {
		return nil, ErrNoStake
	}
	return record.Clone().normalize(), nil
}

// Settle applies the reward accrued since the last settlement and returns the
// amount added. When no full minute has elapsed the record is left untouched,
// timestamp included, so repeated calls within a minute window are no-ops.
func (l *Ledger) Settle(addr [20]byte, rewardRate uint64) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, ErrNilState
	}
	record, ok := l.state.StakeGet(addr)
	if !ok {
		return nil, ErrNoStake
	}
	record = record.Clone().normalize()
	now := l.now()
	accrued, err := record.Accrued(rewardRate, now)
	if err != nil {
		return nil, err
	}
	slog.Debug("stake: reward settled", "account", common.Address(addr).Hex(), "reward", accrued.String())
	if accrued.Sign() == 0 {
		return accrued, nil
	}
	record.AccReward, err = add128(record.AccReward, accrued)
	if err != nil {
		return nil, err
	}
	record.LastUpdateTime = now
	if err := l.state.StakePut(addr, record); err != nil {
		return nil, err
	}
	return accrued, nil
}

// Increase settles pending reward and adds amount to the locked principal.
// The first increase for an account creates its record.
func (l *Ledger) Increase(addr [20]byte, amount *big.Int, rewardRate uint64) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	now := l.now()
	record, ok := l.state.StakeGet(addr)
	if !ok {
		created := (&Stake{LastUpdateTime: now}).normalize()
		var err error
		if created.TotalStake, err = add128(created.TotalStake, amount); err != nil {
			return err
		}
		return l.state.StakePut(addr, created)
	}
	record = record.Clone().normalize()
	accrued, err := record.Accrued(rewardRate, now)
	if err != nil {
		return err
	}
	slog.Debug("stake: reward settled", "account", common.Address(addr).Hex(), "reward", accrued.String())
	if record.AccReward, err = add128(record.AccReward, accrued); err != nil {
		return err
	}
	record.LastUpdateTime = now
	if record.TotalStake, err = add128(record.TotalStake, amount); err != nil {
		return err
	}
	return l.state.StakePut(addr, record)
}

// Decrease settles pending reward and subtracts amount from the locked
// principal. Callers clamp amount to the current principal; an unclamped
// underflow is a hard arithmetic failure. A missing record is tolerated as a
// logged no-op: the unstake completion path may observe an exchange for an
// account that never completed a stake.
func (l *Ledger) Decrease(addr [20]byte, amount *big.Int, rewardRate uint64) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	record, ok := l.state.StakeGet(addr)
	if !ok {
		slog.Warn("stake: decrease without record", "account", common.Address(addr).Hex(), "amount", amount.String())
		return nil
	}
	record = record.Clone().normalize()
	now := l.now()
	accrued, err := record.Accrued(rewardRate, now)
	if err != nil {
		return err
	}
	if record.AccReward, err = add128(record.AccReward, accrued); err != nil {
		return err
	}
	record.LastUpdateTime = now
	if record.TotalStake, err = sub128(record.TotalStake, amount); err != nil {
		return err
	}
	return l.state.StakePut(addr, record)
}

// Claim zeroes the unclaimed reward. It deliberately does not settle first:
// the claimable amount was computed and dispatched at request time, and any
// reward accrued since is discarded with it.
func (l *Ledger) Claim(addr [20]byte) error {
	if l == nil || l.state == nil {
		return ErrNilState
	}
	record, ok := l.state.StakeGet(addr)
	if !ok {
		return ErrNoStake
	}
	record = record.Clone().normalize()
	record.AccReward = big.NewInt(0)
	return l.state.StakePut(addr, record)
}
