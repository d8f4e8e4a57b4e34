package stake

import "math/big"

// nanosPerMinute is the accrual granularity: partial minutes earn nothing
// until a full minute has elapsed since the last settlement.
const nanosPerMinute uint64 = 1_000_000_000 * 60

// Accrued computes the reward earned by the record between its last
// settlement and now, at rewardRate percentage points per minute of the
// locked principal:
//
//	floor(totalStake * rewardRate / 100) * elapsedMinutes
//
// The computation is pure; callers write back the updated record themselves.
// A now earlier than the last settlement, or any intermediate leaving the
// 128-bit domain, is a hard ErrArithmeticOverflow.
func (s *Stake) Accrued(rewardRate uint64, now uint64) (*big.Int, error) {
	if s == nil {
		return nil, ErrNoStake
	}
	if now < s.LastUpdateTime {
		return nil, ErrArithmeticOverflow
	}
	elapsedMinutes := (now - s.LastUpdateTime) / nanosPerMinute
	if elapsedMinutes == 0 {
		return big.NewInt(0), nil
	}
	rewardPerMinute, err := percentOf(s.TotalStake, rewardRate)
	if err != nil {
		return nil, err
	}
	return mul128(rewardPerMinute, new(big.Int).SetUint64(elapsedMinutes))
}
