// Package hive provides an in-process stand-in for the hive factory, the
// settlement service that bakes stake fees into the reward currency and
// exchanges stake back out. The real factory sits behind a network transport;
// the simulator answers the same asynchronous requests on a worker goroutine
// so development nodes and integration tests exercise the full two-phase
// request/completion path.
package hive

import (
	"log/slog"
	"math/big"
	"sync"

	"github.com/google/uuid"

	"kumachain/native/stake"
)

type request struct {
	kind    stake.WorkflowKind
	id      uuid.UUID
	account [20]byte
	amount  *big.Int
	fee     *big.Int
}

// Simulator implements stake.Dispatcher and feeds completions back into the
// engine in the order requests were received.
type Simulator struct {
	engine   *stake.Engine
	requests chan request
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	mu     sync.Mutex
	reject func(kind stake.WorkflowKind, amount *big.Int) string
}

// NewSimulator creates a simulator delivering completions to engine.
func NewSimulator(engine *stake.Engine) *Simulator {
	return &Simulator{
		engine:   engine,
		requests: make(chan request, 64),
		quit:     make(chan struct{}),
	}
}

// SetRejectFunc installs a predicate that makes the factory reject matching
// round-trips with the returned reason. An empty reason accepts the request.
// Intended for tests and failure drills.
func (s *Simulator) SetRejectFunc(reject func(kind stake.WorkflowKind, amount *big.Int) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = reject
}

// Start launches the response worker.
func (s *Simulator) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case req := <-s.requests:
				s.respond(req)
			case <-s.quit:
				return
			}
		}
	}()
}

// Stop shuts down the worker. Parked requests are dropped; their workflows
// stay pending forever, exactly like a round-trip that never resolves.
func (s *Simulator) Stop() {
	s.stopOnce.Do(func() { close(s.quit) })
	s.wg.Wait()
}

func (s *Simulator) rejectReason(kind stake.WorkflowKind, amount *big.Int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reject == nil {
		return ""
	}
	return s.reject(kind, amount)
}

func (s *Simulator) respond(req request) {
	if reason := s.rejectReason(req.kind, req.amount); reason != "" {
		if err := s.engine.Fail(req.id, reason); err != nil {
			slog.Error("hive: fail delivery", "workflow", string(req.kind), "error", err)
		}
		return
	}
	var err error
	switch req.kind {
	case stake.WorkflowStake:
		// The factory confirms the post-fee amount it actually baked.
		err = s.engine.CompleteStake(req.id, req.account, req.amount)
	case stake.WorkflowClaim:
		err = s.engine.CompleteClaim(req.id)
	case stake.WorkflowUnstake:
		// Exchange at par: the confirmed amount equals the requested amount.
		err = s.engine.CompleteUnstake(req.id, req.amount)
	case stake.WorkflowRegister:
		err = s.engine.CompleteRegister(req.id)
	}
	if err != nil {
		slog.Error("hive: completion rejected", "workflow", string(req.kind), "error", err)
	}
}

func (s *Simulator) enqueue(req request) {
	select {
	case s.requests <- req:
	case <-s.quit:
	}
}

// ReserveStake implements stake.Dispatcher.
func (s *Simulator) ReserveStake(id uuid.UUID, account [20]byte, amountAfterFee, fee *big.Int) {
	s.enqueue(request{kind: stake.WorkflowStake, id: id, account: account, amount: amountAfterFee, fee: fee})
}

// TransferReward implements stake.Dispatcher.
func (s *Simulator) TransferReward(id uuid.UUID, account [20]byte, amount *big.Int) {
	s.enqueue(request{kind: stake.WorkflowClaim, id: id, account: account, amount: amount})
}

// Exchange implements stake.Dispatcher.
func (s *Simulator) Exchange(id uuid.UUID, amount *big.Int) {
	s.enqueue(request{kind: stake.WorkflowUnstake, id: id, amount: amount})
}

// RegisterAccount implements stake.Dispatcher.
func (s *Simulator) RegisterAccount(id uuid.UUID, account [20]byte) {
	s.enqueue(request{kind: stake.WorkflowRegister, id: id, account: account})
}
