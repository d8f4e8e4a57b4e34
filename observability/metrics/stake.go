package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// StakeMetrics tracks the two-phase staking workflows: requests dispatched,
// completions applied, round-trips rejected, and the number of workflows
// parked between their request and completion steps.
type StakeMetrics struct {
	requests    *prometheus.CounterVec
	completions *prometheus.CounterVec
	failures    *prometheus.CounterVec
	inflight    prometheus.Gauge
	rewardPaid  prometheus.Counter
}

var (
	stakeOnce     sync.Once
	stakeRegistry *StakeMetrics
)

// Stake returns the lazily-initialised staking metrics registry.
func Stake() *StakeMetrics {
	stakeOnce.Do(func() {
		stakeRegistry = &StakeMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "stake_workflow_requests_total",
				Help: "Count of dispatched workflow requests by kind.",
			}, []string{"workflow"}),
			completions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "stake_workflow_completions_total",
				Help: "Count of applied workflow completions by kind.",
			}, []string{"workflow"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "stake_workflow_failures_total",
				Help: "Count of abandoned workflows by kind.",
			}, []string{"workflow"}),
			inflight: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "stake_workflows_inflight",
				Help: "Workflows awaiting their external round-trip.",
			}),
			rewardPaid: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "stake_reward_paid_total",
				Help: "Cumulative reward paid out through claim completions.",
			}),
		}
		prometheus.MustRegister(
			stakeRegistry.requests,
			stakeRegistry.completions,
			stakeRegistry.failures,
			stakeRegistry.inflight,
			stakeRegistry.rewardPaid,
		)
	})
	return stakeRegistry
}

// ObserveRequest records a dispatched workflow request.
func (m *StakeMetrics) ObserveRequest(workflow string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(workflow).Inc()
	m.inflight.Inc()
}

// ObserveCompletion records an applied workflow completion.
func (m *StakeMetrics) ObserveCompletion(workflow string) {
	if m == nil {
		return
	}
	m.completions.WithLabelValues(workflow).Inc()
	m.inflight.Dec()
}

// ObserveFailure records an abandoned workflow.
func (m *StakeMetrics) ObserveFailure(workflow string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(workflow).Inc()
	m.inflight.Dec()
}

// ObserveRewardPaid accumulates reward paid out on claim completions.
func (m *StakeMetrics) ObserveRewardPaid(amount float64) {
	if m == nil {
		return
	}
	if amount < 0 {
		return
	}
	m.rewardPaid.Add(amount)
}
