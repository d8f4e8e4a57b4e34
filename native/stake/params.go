package stake

import "math/big"

const (
	// MinStakeAmount is the smallest gross amount accepted by a stake request.
	MinStakeAmount = 100
	// MaxRatePercent bounds both the fee percentage and the reward rate.
	MaxRatePercent = 100
)

// Params carries the owner-settable rates. Both are whole percentage points.
// The engine reads the value in effect at the start of each computation; a
// mid-flight change affects later requests, never an in-flight completion.
type Params struct {
	FeePercent uint64 `json:"feePercent"`
	RewardRate uint64 `json:"rewardRate"`
}

// DefaultParams mirrors the launch configuration: 5% intake fee, 5% reward
// rate per minute.
func DefaultParams() Params {
	return Params{FeePercent: 5, RewardRate: 5}
}

// Validate bounds both rates to 0-100.
func (p Params) Validate() error {
	if p.FeePercent > MaxRatePercent || p.RewardRate > MaxRatePercent {
		return ErrRateOutOfRange
	}
	return nil
}

// Fee computes floor(amount * FeePercent / 100).
func (p Params) Fee(amount *big.Int) (*big.Int, error) {
	return percentOf(amount, p.FeePercent)
}

func minStake() *big.Int { return big.NewInt(MinStakeAmount) }
