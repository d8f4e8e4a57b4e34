package stake

import "math/big"

// Stake tracks one account's locked principal, unclaimed reward, and the
// timestamp (nanoseconds) of the last reward settlement. A record exists only
// after the account's first stake completion; absence means "no stake", not
// "zero stake". Records are never deleted: a drained position stays behind
// for reward bookkeeping.
type Stake struct {
	TotalStake     *big.Int `json:"totalStake"`
	AccReward      *big.Int `json:"accReward"`
	LastUpdateTime uint64   `json:"lastUpdateTime"`
}

// Clone returns a deep copy of the record.
func (s *Stake) Clone() *Stake {
	if s == nil {
		return nil
	}
	clone := &Stake{
		TotalStake:     big.NewInt(0),
		AccReward:      big.NewInt(0),
		LastUpdateTime: s.LastUpdateTime,
	}
	if s.TotalStake != nil {
		clone.TotalStake = new(big.Int).Set(s.TotalStake)
	}
	if s.AccReward != nil {
		clone.AccReward = new(big.Int).Set(s.AccReward)
	}
	return clone
}

func (s *Stake) normalize() *Stake {
	if s.TotalStake == nil {
		s.TotalStake = big.NewInt(0)
	}
	if s.AccReward == nil {
		s.AccReward = big.NewInt(0)
	}
	return s
}
