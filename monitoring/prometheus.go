package monitoring

import (
	"net/http"

	"opay/logx"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type SyncFailureReason string

var (
	SyncOffline      SyncFailureReason = "offline"
	SyncTokenExpired SyncFailureReason = "token_expired"
	SyncTransport    SyncFailureReason = "transport_error"
	SyncRejected     SyncFailureReason = "rejected"
)

type agentPromMetrics struct {
	agentUpUnixSeconds prometheus.Gauge
	pendingQueueSize   prometheus.Gauge
	createdTxCount     prometheus.Counter
	syncAttemptCount   prometheus.Counter
	syncFailureCount   *prometheus.CounterVec
	confirmedTxCount   prometheus.Counter
	cacheServedCount   *prometheus.CounterVec
	panicCount         prometheus.Counter
}

func newAgentPromMetrics() *agentPromMetrics {
	return &agentPromMetrics{
		agentUpUnixSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "opay_agent_up_timestamp_unix_seconds",
				Help: "Unix timestamp of the agent start",
			},
		),
		pendingQueueSize: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "opay_agent_pending_queue_size",
				Help: "The total signed transactions waiting for verifier confirmation",
			},
		),
		createdTxCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "opay_agent_created_tx_count",
				Help: "The total number of offline transactions created and signed on this device",
			},
		),
		syncAttemptCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "opay_agent_sync_attempt_count",
				Help: "The total number of batch sync attempts against the verifier",
			},
		),
		syncFailureCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opay_agent_sync_failure_count",
				Help: "The total number of failed sync attempts",
			},
			[]string{"reason"},
		),
		confirmedTxCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "opay_agent_confirmed_tx_count",
				Help: "The total number of transactions confirmed and removed from the queue",
			},
		),
		cacheServedCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "opay_agent_cache_served_count",
				Help: "Shell requests served, labeled by origin (network or cache)",
			},
			[]string{"origin"},
		),
		panicCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "opay_agent_panic_count",
				Help: "The total number of recovered panics in background goroutines",
			},
		),
	}
}

var agentMetrics *agentPromMetrics

// InitMetrics initializes metrics for the agent but does not expose them yet
func InitMetrics() {
	agentMetrics = newAgentPromMetrics()
	agentMetrics.agentUpUnixSeconds.SetToCurrentTime()
}

func RegisterMetrics(mux *http.ServeMux) {
	logx.Info("METRICS", "Registering prometheus metrics")
	mux.Handle("/metrics", promhttp.Handler())
}

func SetPendingQueueSize(size int) {
	if agentMetrics == nil {
		return
	}
	agentMetrics.pendingQueueSize.Set(float64(size))
}

func IncreaseCreatedTxCount() {
	if agentMetrics == nil {
		return
	}
	agentMetrics.createdTxCount.Inc()
}

func IncreaseSyncAttemptCount() {
	if agentMetrics == nil {
		return
	}
	agentMetrics.syncAttemptCount.Inc()
}

func RecordSyncFailure(reason SyncFailureReason) {
	if agentMetrics == nil {
		return
	}
	agentMetrics.syncFailureCount.With(prometheus.Labels{
		"reason": string(reason),
	}).Inc()
}

func IncreaseConfirmedTxCount(n int) {
	if agentMetrics == nil {
		return
	}
	agentMetrics.confirmedTxCount.Add(float64(n))
}

func RecordCacheServed(origin string) {
	if agentMetrics == nil {
		return
	}
	agentMetrics.cacheServedCount.With(prometheus.Labels{
		"origin": origin,
	}).Inc()
}

func IncreasePanicCount() {
	if agentMetrics == nil {
		return
	}
	agentMetrics.panicCount.Inc()
}
