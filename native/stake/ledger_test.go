package stake

import (
	"errors"
	"math/big"
	"testing"
)

type mockState struct {
	stakes map[[20]byte]*Stake
	puts   int
}

func newMockState() *mockState {
	return &mockState{stakes: make(map[[20]byte]*Stake)}
}

func (m *mockState) StakeGet(addr [20]byte) (*Stake, bool) {
	record, ok := m.stakes[addr]
	if !ok {
		return nil, false
	}
	return record.Clone(), true
}

func (m *mockState) StakePut(addr [20]byte, record *Stake) error {
	m.stakes[addr] = record.Clone()
	m.puts++
	return nil
}

func testAddr(fill byte) [20]byte {
	var addr [20]byte
	for i := range addr {
		addr[i] = fill
	}
	return addr
}

type clock struct{ now uint64 }

func (c *clock) fn() func() uint64 { return func() uint64 { return c.now } }

func TestSettleMissingRecordFails(t *testing.T) {
	state := newMockState()
	ledger := NewLedger(state, (&clock{}).fn())
	if _, err := ledger.Settle(testAddr(0x01), 5); !errors.Is(err, ErrNoStake) {
		t.Fatalf("expected ErrNoStake, got %v", err)
	}
	if state.puts != 0 {
		t.Fatalf("expected no writes, got %d", state.puts)
	}
}

func TestSettleAppliesReward(t *testing.T) {
	state := newMockState()
	clk := &clock{}
	ledger := NewLedger(state, clk.fn())
	addr := testAddr(0x02)
	state.stakes[addr] = newRecord(1000, 0)

	clk.now = minuteNs
	reward, err := ledger.Settle(addr, 5)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if got := reward.String(); got != "50" {
		t.Fatalf("unexpected reward: %s", got)
	}
	stored := state.stakes[addr]
	if got := stored.AccReward.String(); got != "50" {
		t.Fatalf("unexpected accReward: %s", got)
	}
	if stored.LastUpdateTime != minuteNs {
		t.Fatalf("timestamp not advanced: %d", stored.LastUpdateTime)
	}
}

func TestSettleIdempotentWithinMinute(t *testing.T) {
	state := newMockState()
	clk := &clock{}
	ledger := NewLedger(state, clk.fn())
	addr := testAddr(0x03)
	state.stakes[addr] = newRecord(1000, 0)

	clk.now = minuteNs
	if _, err := ledger.Settle(addr, 5); err != nil {
		t.Fatalf("settle #1: %v", err)
	}
	clk.now = minuteNs + minuteNs/2
	if _, err := ledger.Settle(addr, 5); err != nil {
		t.Fatalf("settle #2: %v", err)
	}
	if got := state.stakes[addr].AccReward.String(); got != "50" {
		t.Fatalf("double settle changed reward: %s", got)
	}
}

func TestSettleZeroRewardSkipsWriteBack(t *testing.T) {
	state := newMockState()
	clk := &clock{}
	ledger := NewLedger(state, clk.fn())
	addr := testAddr(0x04)
	state.stakes[addr] = newRecord(1000, 0)

	clk.now = minuteNs - 1
	reward, err := ledger.Settle(addr, 5)
	if err != nil {
		t.Fatalf("settle: %v", err)
	}
	if reward.Sign() != 0 {
		t.Fatalf("expected zero reward, got %s", reward)
	}
	// The standalone settle path leaves the timestamp alone on a zero reward.
	if state.puts != 0 {
		t.Fatalf("expected no write-back, got %d", state.puts)
	}
}

func TestIncreaseCreatesRecord(t *testing.T) {
	state := newMockState()
	clk := &clock{now: 7 * minuteNs}
	ledger := NewLedger(state, clk.fn())
	addr := testAddr(0x05)

	if err := ledger.Increase(addr, big.NewInt(95), 5); err != nil {
		t.Fatalf("increase: %v", err)
	}
	stored := state.stakes[addr]
	if got := stored.TotalStake.String(); got != "95" {
		t.Fatalf("unexpected principal: %s", got)
	}
	if stored.AccReward.Sign() != 0 {
		t.Fatalf("fresh record has reward: %s", stored.AccReward)
	}
	if stored.LastUpdateTime != 7*minuteNs {
		t.Fatalf("unexpected timestamp: %d", stored.LastUpdateTime)
	}
}

func TestIncreaseSettlesBeforeAdding(t *testing.T) {
	state := newMockState()
	clk := &clock{}
	ledger := NewLedger(state, clk.fn())
	addr := testAddr(0x06)
	state.stakes[addr] = newRecord(1000, 0)

	clk.now = 2 * minuteNs
	if err := ledger.Increase(addr, big.NewInt(500), 5); err != nil {
		t.Fatalf("increase: %v", err)
	}
	stored := state.stakes[addr]
	if got := stored.TotalStake.String(); got != "1500" {
		t.Fatalf("unexpected principal: %s", got)
	}
	if got := stored.AccReward.String(); got != "100" {
		t.Fatalf("reward not settled before increase: %s", got)
	}
}

func TestIncreaseRefreshesTimestampOnZeroReward(t *testing.T) {
	state := newMockState()
	clk := &clock{}
	ledger := NewLedger(state, clk.fn())
	addr := testAddr(0x07)
	state.stakes[addr] = newRecord(1000, 0)

	clk.now = minuteNs / 2
	if err := ledger.Increase(addr, big.NewInt(1), 5); err != nil {
		t.Fatalf("increase: %v", err)
	}
	// Unlike the standalone settle path, increase always refreshes the
	// timestamp, even when no full minute has elapsed.
	if got := state.stakes[addr].LastUpdateTime; got != minuteNs/2 {
		t.Fatalf("timestamp not refreshed: %d", got)
	}
}

func TestIncreaseDecreaseRoundTrip(t *testing.T) {
	state := newMockState()
	clk := &clock{}
	ledger := NewLedger(state, clk.fn())
	addr := testAddr(0x08)
	state.stakes[addr] = newRecord(300, 0)

	if err := ledger.Increase(addr, big.NewInt(200), 5); err != nil {
		t.Fatalf("increase: %v", err)
	}
	if err := ledger.Decrease(addr, big.NewInt(200), 5); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	stored := state.stakes[addr]
	if got := stored.TotalStake.String(); got != "300" {
		t.Fatalf("round trip changed principal: %s", got)
	}
	if stored.AccReward.Sign() != 0 {
		t.Fatalf("round trip accrued reward with no elapsed time: %s", stored.AccReward)
	}
}

func TestDecreaseUnderflowIsHardFailure(t *testing.T) {
	state := newMockState()
	ledger := NewLedger(state, (&clock{}).fn())
	addr := testAddr(0x09)
	state.stakes[addr] = newRecord(300, 0)

	if err := ledger.Decrease(addr, big.NewInt(500), 5); !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("expected overflow error, got %v", err)
	}
	if got := state.stakes[addr].TotalStake.String(); got != "300" {
		t.Fatalf("failed decrease mutated principal: %s", got)
	}
}

func TestDecreaseMissingRecordIsNoOp(t *testing.T) {
	state := newMockState()
	ledger := NewLedger(state, (&clock{}).fn())
	if err := ledger.Decrease(testAddr(0x0A), big.NewInt(100), 5); err != nil {
		t.Fatalf("decrease on missing record: %v", err)
	}
	if state.puts != 0 {
		t.Fatalf("no-op decrease wrote state: %d", state.puts)
	}
}

func TestClaimResetsRewardOnly(t *testing.T) {
	state := newMockState()
	ledger := NewLedger(state, (&clock{}).fn())
	addr := testAddr(0x0B)
	record := newRecord(1000, 0)
	record.AccReward = big.NewInt(200)
	state.stakes[addr] = record

	if err := ledger.Claim(addr); err != nil {
		t.Fatalf("claim: %v", err)
	}
	stored := state.stakes[addr]
	if stored.AccReward.Sign() != 0 {
		t.Fatalf("claim left reward: %s", stored.AccReward)
	}
	if got := stored.TotalStake.String(); got != "1000" {
		t.Fatalf("claim touched principal: %s", got)
	}
}

func TestClaimMissingRecordFails(t *testing.T) {
	ledger := NewLedger(newMockState(), (&clock{}).fn())
	if err := ledger.Claim(testAddr(0x0C)); !errors.Is(err, ErrNoStake) {
		t.Fatalf("expected ErrNoStake, got %v", err)
	}
}

func TestDrainedRecordStaysPresent(t *testing.T) {
	state := newMockState()
	ledger := NewLedger(state, (&clock{}).fn())
	addr := testAddr(0x0D)
	state.stakes[addr] = newRecord(300, 0)

	if err := ledger.Decrease(addr, big.NewInt(300), 5); err != nil {
		t.Fatalf("decrease: %v", err)
	}
	stored, ok := state.StakeGet(addr)
	if !ok {
		t.Fatalf("record removed after draining")
	}
	if stored.TotalStake.Sign() != 0 {
		t.Fatalf("unexpected principal: %s", stored.TotalStake)
	}
}
