package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DispatchMetrics tracks transaction field validation outcomes.
type DispatchMetrics struct {
	validations *prometheus.CounterVec
	prechecks   *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	cacheResets prometheus.Counter
}

// BootstrapMetrics tracks the genesis bootstrap sequence.
type BootstrapMetrics struct {
	phases   *prometheus.CounterVec
	accounts *prometheus.CounterVec
	polls    prometheus.Counter
}

var (
	dispatchMetricsOnce sync.Once
	dispatchRegistry    *DispatchMetrics

	bootstrapMetricsOnce sync.Once
	bootstrapRegistry    *BootstrapMetrics
)

// Dispatch returns the lazily-initialised dispatcher metrics registry.
func Dispatch() *DispatchMetrics {
	dispatchMetricsOnce.Do(func() {
		dispatchRegistry = &DispatchMetrics{
			validations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shardeum",
				Subsystem: "dispatch",
				Name:      "validations_total",
				Help:      "Transaction field validations segmented by lane and outcome.",
			}, []string{"lane", "outcome"}),
			prechecks: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shardeum",
				Subsystem: "dispatch",
				Name:      "precheck_failures_total",
				Help:      "EVM pre-check and staking rule failures segmented by check.",
			}, []string{"check"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "shardeum",
				Subsystem: "dispatch",
				Name:      "validation_duration_seconds",
				Help:      "Latency distribution for transaction field validation.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"lane"}),
			cacheResets: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "shardeum",
				Subsystem: "dispatch",
				Name:      "appdata_cache_resets_total",
				Help:      "Number of times the app-data cache was cleared after reaching its bound.",
			}),
		}
		prometheus.MustRegister(
			dispatchRegistry.validations,
			dispatchRegistry.prechecks,
			dispatchRegistry.latency,
			dispatchRegistry.cacheResets,
		)
	})
	return dispatchRegistry
}

// ObserveValidation records one dispatcher verdict.
func (m *DispatchMetrics) ObserveValidation(lane string, success bool, duration time.Duration) {
	if m == nil {
		return
	}
	lane = normalizeLabel(lane)
	outcome := "accepted"
	if !success {
		outcome = "rejected"
	}
	m.validations.WithLabelValues(lane, outcome).Inc()
	m.latency.WithLabelValues(lane).Observe(duration.Seconds())
}

// RecordPrecheckFailure increments the failure counter for check. Checks are
// stable identifiers such as "nonce" or "stake_min".
func (m *DispatchMetrics) RecordPrecheckFailure(check string) {
	if m == nil {
		return
	}
	m.prechecks.WithLabelValues(normalizeLabel(check)).Inc()
}

// RecordCacheReset counts an app-data cache wipe.
func (m *DispatchMetrics) RecordCacheReset() {
	if m == nil {
		return
	}
	m.cacheResets.Inc()
}

// Bootstrap returns the lazily-initialised bootstrap metrics registry.
func Bootstrap() *BootstrapMetrics {
	bootstrapMetricsOnce.Do(func() {
		bootstrapRegistry = &BootstrapMetrics{
			phases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shardeum",
				Subsystem: "bootstrap",
				Name:      "phases_total",
				Help:      "Bootstrap phases reached segmented by phase name.",
			}, []string{"phase"}),
			accounts: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "shardeum",
				Subsystem: "bootstrap",
				Name:      "accounts_total",
				Help:      "Accounts synthesised or restored during bootstrap segmented by source.",
			}, []string{"source"}),
			polls: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "shardeum",
				Subsystem: "bootstrap",
				Name:      "network_account_polls_total",
				Help:      "Polls for the network account performed while waiting for bootstrap.",
			}),
		}
		prometheus.MustRegister(
			bootstrapRegistry.phases,
			bootstrapRegistry.accounts,
			bootstrapRegistry.polls,
		)
	})
	return bootstrapRegistry
}

// RecordPhase counts entry into a bootstrap phase.
func (m *BootstrapMetrics) RecordPhase(phase string) {
	if m == nil {
		return
	}
	m.phases.WithLabelValues(normalizeLabel(phase)).Inc()
}

// RecordAccounts adds n accounts produced by source ("genesis", "restore", "dev").
func (m *BootstrapMetrics) RecordAccounts(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.accounts.WithLabelValues(normalizeLabel(source)).Add(float64(n))
}

// RecordPoll counts one network-account poll.
func (m *BootstrapMetrics) RecordPoll() {
	if m == nil {
		return
	}
	m.polls.Inc()
}

func normalizeLabel(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "unknown"
	}
	return v
}
