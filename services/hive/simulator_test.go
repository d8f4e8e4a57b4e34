package hive

import (
	"math/big"
	"testing"
	"time"

	"kumachain/native/stake"
	"kumachain/native/token"
	"kumachain/storage"
)

type harness struct {
	engine    *stake.Engine
	tokens    *token.Ledger
	store     *storage.Store
	simulator *Simulator
	module    [20]byte
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := storage.NewStore(storage.NewMemDB())
	tokens := token.NewLedger(store, nil)

	var owner, module [20]byte
	owner[19] = 0xAA
	module[19] = 0x01
	engine := stake.NewEngine(owner, module)
	engine.SetState(store)
	engine.SetTokenLedger(tokens)

	if err := tokens.Register(module); err != nil {
		t.Fatalf("register module: %v", err)
	}

	simulator := NewSimulator(engine)
	engine.SetDispatcher(simulator)
	simulator.Start()
	t.Cleanup(simulator.Stop)

	return &harness{engine: engine, tokens: tokens, store: store, simulator: simulator, module: module}
}

func (h *harness) waitSettled(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if h.engine.PendingCount() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("workflows still pending: %d", h.engine.PendingCount())
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

func TestStakeRoundTrip(t *testing.T) {
	h := newHarness(t)
	staker := testAddr(0x01)
	if err := h.tokens.Mint(staker, big.NewInt(5000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	if _, err := h.engine.Stake(staker, big.NewInt(1000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	h.waitSettled(t)

	record, err := h.engine.GetStake(staker)
	if err != nil {
		t.Fatalf("get stake: %v", err)
	}
	if got := record.TotalStake.String(); got != "950" {
		t.Fatalf("unexpected principal: %s", got)
	}
	balance, err := h.tokens.BalanceOf(staker)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got := balance.String(); got != "4000" {
		t.Fatalf("unexpected balance: %s", got)
	}
}

func TestUnstakeRoundTrip(t *testing.T) {
	h := newHarness(t)
	staker := testAddr(0x02)
	if err := h.tokens.Mint(staker, big.NewInt(5000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if _, err := h.engine.Stake(staker, big.NewInt(1000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	h.waitSettled(t)

	if _, err := h.engine.Unstake(staker, big.NewInt(400)); err != nil {
		t.Fatalf("unstake: %v", err)
	}
	h.waitSettled(t)

	record, err := h.engine.GetStake(staker)
	if err != nil {
		t.Fatalf("get stake: %v", err)
	}
	if got := record.TotalStake.String(); got != "550" {
		t.Fatalf("unexpected principal: %s", got)
	}
	balance, err := h.tokens.BalanceOf(staker)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got := balance.String(); got != "4400" {
		t.Fatalf("unexpected balance: %s", got)
	}
}

func TestClaimRoundTrip(t *testing.T) {
	h := newHarness(t)
	staker := testAddr(0x06)
	record := &stake.Stake{
		TotalStake: big.NewInt(1000),
		AccReward:  big.NewInt(200),
	}
	if err := h.store.StakePut(staker, record); err != nil {
		t.Fatalf("seed stake: %v", err)
	}

	if _, err := h.engine.ClaimReward(staker); err != nil {
		t.Fatalf("claim: %v", err)
	}
	h.waitSettled(t)

	stored, err := h.engine.GetStake(staker)
	if err != nil {
		t.Fatalf("get stake: %v", err)
	}
	if stored.AccReward.Sign() != 0 {
		t.Fatalf("reward not reset: %s", stored.AccReward)
	}
}

func TestRegisterRoundTrip(t *testing.T) {
	h := newHarness(t)
	account := testAddr(0x03)

	if _, err := h.engine.SetupAccount(account); err != nil {
		t.Fatalf("setup: %v", err)
	}
	h.waitSettled(t)

	if !h.tokens.Registered(account) {
		t.Fatalf("account not registered")
	}
}

func TestRejectionAbandonsWorkflow(t *testing.T) {
	h := newHarness(t)
	staker := testAddr(0x04)
	if err := h.tokens.Mint(staker, big.NewInt(5000)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	h.simulator.SetRejectFunc(func(kind stake.WorkflowKind, amount *big.Int) string {
		if kind == stake.WorkflowStake {
			return "factory out of capacity"
		}
		return ""
	})

	if _, err := h.engine.Stake(staker, big.NewInt(1000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	h.waitSettled(t)

	balance, err := h.tokens.BalanceOf(staker)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if got := balance.String(); got != "5000" {
		t.Fatalf("rejected stake moved funds: %s", got)
	}
	if _, err := h.engine.GetStake(staker); err == nil {
		t.Fatalf("rejected stake created a record")
	}
}

func TestStopLeavesWorkflowsPending(t *testing.T) {
	h := newHarness(t)
	staker := testAddr(0x05)
	if err := h.tokens.Mint(staker, big.NewInt(5000)); err != nil {
		t.Fatalf("mint: %v", err)
	}

	h.simulator.Stop()
	if _, err := h.engine.Stake(staker, big.NewInt(1000)); err != nil {
		t.Fatalf("stake: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if h.engine.PendingCount() != 1 {
		t.Fatalf("expected a parked workflow, got %d", h.engine.PendingCount())
	}
}
