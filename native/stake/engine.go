package stake

import (
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"kumachain/core/events"
	"kumachain/observability/metrics"
)

// TokenLedger is the narrow slice of the KUMA ledger the engine consumes.
// Operations are atomic and fail loudly; nothing here partially applies.
type TokenLedger interface {
	BalanceOf(addr [20]byte) (*big.Int, error)
	Transfer(from, to [20]byte, amount *big.Int) error
	Withdraw(addr [20]byte, amount *big.Int) error
	Deposit(addr [20]byte, amount *big.Int) error
	Register(addr [20]byte) error
	Registered(addr [20]byte) bool
}

// Dispatcher carries the asynchronous requests to the hive factory. Each call
// is fire-and-forget: the factory's response re-enters the engine through the
// matching Complete method, or through Fail when the round-trip is rejected.
// The engine makes no assumption about the transport behind this interface.
type Dispatcher interface {
	ReserveStake(id uuid.UUID, account [20]byte, amountAfterFee, fee *big.Int)
	TransferReward(id uuid.UUID, account [20]byte, amount *big.Int)
	Exchange(id uuid.UUID, amount *big.Int)
	RegisterAccount(id uuid.UUID, account [20]byte)
}

// WorkflowKind names the two-phase workflows.
type WorkflowKind string

const (
	WorkflowStake    WorkflowKind = "stake"
	WorkflowClaim    WorkflowKind = "claim"
	WorkflowUnstake  WorkflowKind = "unstake"
	WorkflowRegister WorkflowKind = "register"
)

// workflow is the in-flight marker parked between the request and completion
// steps. The table is in-memory on purpose: a round-trip that never resolves
// leaves the workflow parked forever with no reversal, matching the
// at-most-once, no-retry contract of the settlement transport.
type workflow struct {
	kind    WorkflowKind
	account [20]byte
	amount  *big.Int
	fee     *big.Int
}

// Engine coordinates the staking workflows. Every request and completion runs
// under one mutex, so completions apply in the order their responses arrive
// and no two steps ever observe a half-written ledger. Interleavings between
// one workflow's request and completion are still possible and tolerated; the
// engine guarantees structural consistency, not cross-workflow isolation.
type Engine struct {
	mu         sync.Mutex
	state      ledgerState
	ledger     *Ledger
	tokens     TokenLedger
	dispatcher Dispatcher
	emitter    events.Emitter
	params     Params
	owner      [20]byte
	module     [20]byte
	nowFn      func() uint64
	pending    map[uuid.UUID]*workflow
	telemetry  *metrics.StakeMetrics
}

// NewEngine creates a staking engine. The module address is the internal
// holding account for locked principal; the owner gates rate changes.
func NewEngine(owner, module [20]byte) *Engine {
	return &Engine{
		emitter:   events.NoopEmitter{},
		params:    DefaultParams(),
		owner:     owner,
		module:    module,
		nowFn:     func() uint64 { return uint64(time.Now().UnixNano()) },
		pending:   make(map[uuid.UUID]*workflow),
		telemetry: metrics.Stake(),
	}
}

// SetState configures the stake-record backend used by the engine.
func (e *Engine) SetState(state ledgerState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = state
	e.ledger = NewLedger(state, e.now)
}

// SetTokenLedger configures the KUMA ledger collaborator.
func (e *Engine) SetTokenLedger(tokens TokenLedger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tokens = tokens
}

// SetDispatcher configures the settlement transport.
func (e *Engine) SetDispatcher(d Dispatcher) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dispatcher = d
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source (nanoseconds). Primarily for tests.
func (e *Engine) SetNowFunc(now func() uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if now == nil {
		e.nowFn = func() uint64 { return uint64(time.Now().UnixNano()) }
		return
	}
	e.nowFn = now
}

// SetParams replaces both rates after validation. Intended for wiring; the
// owner-gated setters are the runtime path.
func (e *Engine) SetParams(params Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.params = params
	return nil
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().UnixNano())
	}
	return e.nowFn()
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}

func (e *Engine) ready() error {
	switch {
	case e.state == nil || e.ledger == nil:
		return ErrNilState
	case e.tokens == nil:
		return ErrNilTokenLedger
	case e.dispatcher == nil:
		return ErrNilDispatcher
	}
	return nil
}

// take pops the pending workflow for id, requiring the expected kind. A
// consumed workflow is gone for good: completion is at-most-once.
func (e *Engine) take(id uuid.UUID, kind WorkflowKind) (*workflow, error) {
	wf, ok := e.pending[id]
	if !ok {
		return nil, ErrUnknownWorkflow
	}
	if wf.kind != kind {
		return nil, ErrWorkflowKind
	}
	delete(e.pending, id)
	return wf, nil
}

// Params returns the rates in effect.
func (e *Engine) Params() Params {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// SetRewardRate updates the per-minute reward rate. Owner only.
func (e *Engine) SetRewardRate(caller [20]byte, rate uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrUnauthorized
	}
	if rate > MaxRatePercent {
		return ErrRateOutOfRange
	}
	e.params.RewardRate = rate
	return nil
}

// SetFeePercent updates the intake/claim fee percentage. Owner only.
func (e *Engine) SetFeePercent(caller [20]byte, rate uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if caller != e.owner {
		return ErrUnauthorized
	}
	if rate > MaxRatePercent {
		return ErrRateOutOfRange
	}
	e.params.FeePercent = rate
	return nil
}

// GetStake returns a copy of the account's stake record.
func (e *Engine) GetStake(addr [20]byte) (*Stake, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return nil, ErrNilState
	}
	return e.ledger.Get(addr)
}

// ModuleAddress returns the internal holding account.
func (e *Engine) ModuleAddress() [20]byte { return e.module }

// PendingCount reports the workflows awaiting their external round-trip.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// Settle applies the reward accrued for the account since its last
// settlement and returns the amount added.
func (e *Engine) Settle(account [20]byte) (*big.Int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ledger == nil {
		return nil, ErrNilState
	}
	reward, err := e.ledger.Settle(account, e.params.RewardRate)
	if err != nil {
		return nil, err
	}
	record, err := e.ledger.Get(account)
	if err != nil {
		return nil, err
	}
	e.emit(events.RewardSettled{Account: account, Reward: reward, Accrued: record.AccReward})
	return reward, nil
}

// Stake validates and dispatches a stake request. Nothing local changes until
// the factory confirms through CompleteStake; a rejected round-trip abandons
// the workflow with the account untouched.
func (e *Engine) Stake(caller [20]byte, amount *big.Int) (uuid.UUID, error) {
	e.mu.Lock()
	if err := e.ready(); err != nil {
		e.mu.Unlock()
		return uuid.Nil, err
	}
	if amount == nil || amount.Cmp(minStake()) < 0 {
		e.mu.Unlock()
		return uuid.Nil, ErrBelowMinimum
	}
	balance, err := e.tokens.BalanceOf(caller)
	if err != nil {
		e.mu.Unlock()
		return uuid.Nil, err
	}
	if balance.Cmp(amount) < 0 {
		e.mu.Unlock()
		return uuid.Nil, ErrInsufficientBalance
	}
	fee, err := e.params.Fee(amount)
	if err != nil {
		e.mu.Unlock()
		return uuid.Nil, err
	}
	afterFee := new(big.Int).Sub(amount, fee)
	id := uuid.New()
	e.pending[id] = &workflow{
		kind:    WorkflowStake,
		account: caller,
		amount:  new(big.Int).Set(amount),
		fee:     fee,
	}
	dispatcher := e.dispatcher
	e.telemetry.ObserveRequest(string(WorkflowStake))
	e.mu.Unlock()

	dispatcher.ReserveStake(id, caller, afterFee, fee)
	return id, nil
}

// CompleteStake applies a confirmed stake. The factory's confirmed post-fee
// amount is authoritative for the principal credited; the requested gross
// amount and fee are settled on the token ledger. The signer must be the
// account that originated the request.
func (e *Engine) CompleteStake(id uuid.UUID, signer [20]byte, confirmed *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	wf, err := e.take(id, WorkflowStake)
	if err != nil {
		return err
	}
	if signer != wf.account {
		e.telemetry.ObserveFailure(string(WorkflowStake))
		return ErrWrongSigner
	}
	if err := e.tokens.Transfer(wf.account, e.module, wf.amount); err != nil {
		e.telemetry.ObserveFailure(string(WorkflowStake))
		return err
	}
	// The fee moved in with the gross amount; burn it out of circulation. The
	// factory mints the matching reward-currency liability on its side.
	if err := e.tokens.Withdraw(e.module, wf.fee); err != nil {
		e.telemetry.ObserveFailure(string(WorkflowStake))
		return err
	}
	if err := e.ledger.Increase(wf.account, confirmed, e.params.RewardRate); err != nil {
		e.telemetry.ObserveFailure(string(WorkflowStake))
		return err
	}
	e.telemetry.ObserveCompletion(string(WorkflowStake))
	e.emit(events.Staked{Account: wf.account, Gross: wf.amount, Confirmed: confirmed, Fee: wf.fee})
	return nil
}

// ClaimReward snapshots the unclaimed reward, deducts the claim fee, and
// dispatches the payout. The snapshot taken here is what CompleteClaim
// settles against: reward accrued between the two phases is discarded.
func (e *Engine) ClaimReward(caller [20]byte) (uuid.UUID, error) {
	e.mu.Lock()
	if err := e.ready(); err != nil {
		e.mu.Unlock()
		return uuid.Nil, err
	}
	record, err := e.ledger.Get(caller)
	if err != nil {
		e.mu.Unlock()
		return uuid.Nil, err
	}
	fee, err := e.params.Fee(record.AccReward)
	if err != nil {
		e.mu.Unlock()
		return uuid.Nil, err
	}
	afterFee := new(big.Int).Sub(record.AccReward, fee)
	id := uuid.New()
	e.pending[id] = &workflow{
		kind:    WorkflowClaim,
		account: caller,
		amount:  afterFee,
		fee:     fee,
	}
	dispatcher := e.dispatcher
	e.telemetry.ObserveRequest(string(WorkflowClaim))
	e.mu.Unlock()

	dispatcher.TransferReward(id, caller, afterFee)
	return id, nil
}

// CompleteClaim zeroes the unclaimed reward after the factory accepted the
// payout transfer. The reset is unconditional against the current record.
func (e *Engine) CompleteClaim(id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	wf, err := e.take(id, WorkflowClaim)
	if err != nil {
		return err
	}
	if err := e.ledger.Claim(wf.account); err != nil {
		e.telemetry.ObserveFailure(string(WorkflowClaim))
		return err
	}
	e.telemetry.ObserveCompletion(string(WorkflowClaim))
	paid, _ := new(big.Float).SetInt(wf.amount).Float64()
	e.telemetry.ObserveRewardPaid(paid)
	e.emit(events.RewardClaimed{Account: wf.account, Paid: wf.amount, Fee: wf.fee})
	return nil
}

// Unstake dispatches an exchange of amount back out of the stake. Local
// sufficiency is deliberately not pre-checked; the factory validates the
// exchange on its side and rejects the round-trip when it cannot.
func (e *Engine) Unstake(caller [20]byte, amount *big.Int) (uuid.UUID, error) {
	e.mu.Lock()
	if err := e.ready(); err != nil {
		e.mu.Unlock()
		return uuid.Nil, err
	}
	if _, err := to128(amount); err != nil {
		e.mu.Unlock()
		return uuid.Nil, err
	}
	id := uuid.New()
	e.pending[id] = &workflow{
		kind:    WorkflowUnstake,
		account: caller,
		amount:  new(big.Int).Set(amount),
	}
	dispatcher := e.dispatcher
	e.telemetry.ObserveRequest(string(WorkflowUnstake))
	e.mu.Unlock()

	dispatcher.Exchange(id, amount)
	return id, nil
}

// CompleteUnstake pays out the confirmed exchange amount. When the module
// account cannot cover the payout the shortfall is minted rather than the
// payout failing: the module accepts the liability. The recorded principal
// decrease is clamped so it never underflows, even when the confirmed amount
// exceeds the recorded stake.
func (e *Engine) CompleteUnstake(id uuid.UUID, exchangeAmount *big.Int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	wf, err := e.take(id, WorkflowUnstake)
	if err != nil {
		return err
	}
	amount, err := to128(exchangeAmount)
	if err != nil {
		e.telemetry.ObserveFailure(string(WorkflowUnstake))
		return err
	}
	payout := amount.ToBig()
	balance, err := e.tokens.BalanceOf(e.module)
	if err != nil {
		e.telemetry.ObserveFailure(string(WorkflowUnstake))
		return err
	}
	minted := big.NewInt(0)
	if balance.Cmp(payout) < 0 {
		minted = new(big.Int).Sub(payout, balance)
		if err := e.tokens.Deposit(e.module, minted); err != nil {
			e.telemetry.ObserveFailure(string(WorkflowUnstake))
			return err
		}
	}
	if err := e.tokens.Transfer(e.module, wf.account, payout); err != nil {
		e.telemetry.ObserveFailure(string(WorkflowUnstake))
		return err
	}
	decrease := new(big.Int).Set(payout)
	if record, err := e.ledger.Get(wf.account); err == nil {
		decrease = minBig(payout, record.TotalStake)
	}
	if err := e.ledger.Decrease(wf.account, decrease, e.params.RewardRate); err != nil {
		e.telemetry.ObserveFailure(string(WorkflowUnstake))
		return err
	}
	e.telemetry.ObserveCompletion(string(WorkflowUnstake))
	e.emit(events.Unstaked{Account: wf.account, Exchange: payout, Minted: minted})
	return nil
}

// SetupAccount dispatches the factory-side registration round-trip for the
// caller. Local registration happens in CompleteRegister.
func (e *Engine) SetupAccount(caller [20]byte) (uuid.UUID, error) {
	e.mu.Lock()
	if err := e.ready(); err != nil {
		e.mu.Unlock()
		return uuid.Nil, err
	}
	id := uuid.New()
	e.pending[id] = &workflow{kind: WorkflowRegister, account: caller}
	dispatcher := e.dispatcher
	e.telemetry.ObserveRequest(string(WorkflowRegister))
	e.mu.Unlock()

	dispatcher.RegisterAccount(id, caller)
	return id, nil
}

// CompleteRegister registers the account on the local token ledger. An
// already-registered account is fine; registration is idempotent end to end.
func (e *Engine) CompleteRegister(id uuid.UUID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	wf, err := e.take(id, WorkflowRegister)
	if err != nil {
		return err
	}
	if !e.tokens.Registered(wf.account) {
		if err := e.tokens.Register(wf.account); err != nil {
			e.telemetry.ObserveFailure(string(WorkflowRegister))
			return err
		}
	}
	e.telemetry.ObserveCompletion(string(WorkflowRegister))
	return nil
}

// Fail abandons the workflow after a rejected round-trip. No local state
// changes; whatever the factory applied on its side is its own to unwind.
func (e *Engine) Fail(id uuid.UUID, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	wf, ok := e.pending[id]
	if !ok {
		return ErrUnknownWorkflow
	}
	delete(e.pending, id)
	slog.Warn("stake: workflow abandoned",
		"workflow", string(wf.kind),
		"account", common.Address(wf.account).Hex(),
		"reason", reason)
	e.telemetry.ObserveFailure(string(wf.kind))
	e.emit(events.WorkflowFailed{Account: wf.account, Workflow: string(wf.kind), Reason: reason})
	return nil
}
