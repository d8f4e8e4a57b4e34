package events

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"kumachain/core/types"
)

const (
	// TypeStaked is emitted when a stake workflow completes and principal is
	// credited to the staker's record.
	TypeStaked = "stake.staked"
	// TypeUnstaked is emitted when an exchange workflow completes and
	// principal is released back to the staker.
	TypeUnstaked = "stake.unstaked"
	// TypeRewardClaimed is emitted when a reward claim workflow completes.
	TypeRewardClaimed = "stake.rewardClaimed"
	// TypeRewardSettled captures an explicit reward settlement.
	TypeRewardSettled = "stake.rewardSettled"
	// TypeWorkflowFailed signals that an external round-trip was rejected and
	// the workflow was abandoned without local mutation.
	TypeWorkflowFailed = "stake.workflowFailed"
)

// Staked captures the completion of a stake workflow.
type Staked struct {
	Account   [20]byte
	Gross     *big.Int
	Confirmed *big.Int
	Fee       *big.Int
}

// EventType satisfies the Event interface.
func (Staked) EventType() string { return TypeStaked }

// Event converts the structured payload into a broadcastable event.
func (e Staked) Event() *types.Event {
	return &types.Event{Type: TypeStaked, Attributes: map[string]string{
		"account":   common.Address(e.Account).Hex(),
		"gross":     formatAmount(e.Gross),
		"confirmed": formatAmount(e.Confirmed),
		"fee":       formatAmount(e.Fee),
	}}
}

// Unstaked captures the completion of an unstake workflow.
type Unstaked struct {
	Account  [20]byte
	Exchange *big.Int
	Minted   *big.Int
}

// EventType satisfies the Event interface.
func (Unstaked) EventType() string { return TypeUnstaked }

// Event converts the structured payload into a broadcastable event.
func (e Unstaked) Event() *types.Event {
	attrs := map[string]string{
		"account":  common.Address(e.Account).Hex(),
		"exchange": formatAmount(e.Exchange),
	}
	if e.Minted != nil && e.Minted.Sign() > 0 {
		attrs["minted"] = formatAmount(e.Minted)
	}
	return &types.Event{Type: TypeUnstaked, Attributes: attrs}
}

// RewardClaimed captures the completion of a reward claim workflow.
type RewardClaimed struct {
	Account [20]byte
	Paid    *big.Int
	Fee     *big.Int
}

// EventType satisfies the Event interface.
func (RewardClaimed) EventType() string { return TypeRewardClaimed }

// Event converts the structured payload into a broadcastable event.
func (e RewardClaimed) Event() *types.Event {
	return &types.Event{Type: TypeRewardClaimed, Attributes: map[string]string{
		"account": common.Address(e.Account).Hex(),
		"paid":    formatAmount(e.Paid),
		"fee":     formatAmount(e.Fee),
	}}
}

// RewardSettled captures an explicit settlement of accrued reward.
type RewardSettled struct {
	Account [20]byte
	Reward  *big.Int
	Accrued *big.Int
}

// EventType satisfies the Event interface.
func (RewardSettled) EventType() string { return TypeRewardSettled }

// Event converts the structured payload into a broadcastable event.
func (e RewardSettled) Event() *types.Event {
	return &types.Event{Type: TypeRewardSettled, Attributes: map[string]string{
		"account": common.Address(e.Account).Hex(),
		"reward":  formatAmount(e.Reward),
		"accrued": formatAmount(e.Accrued),
	}}
}

// WorkflowFailed captures an abandoned two-phase workflow.
type WorkflowFailed struct {
	Account  [20]byte
	Workflow string
	Reason   string
}

// EventType satisfies the Event interface.
func (WorkflowFailed) EventType() string { return TypeWorkflowFailed }

// Event converts the structured payload into a broadcastable event.
func (e WorkflowFailed) Event() *types.Event {
	return &types.Event{Type: TypeWorkflowFailed, Attributes: map[string]string{
		"account":  common.Address(e.Account).Hex(),
		"workflow": e.Workflow,
		"reason":   e.Reason,
	}}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
