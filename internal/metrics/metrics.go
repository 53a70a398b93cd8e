package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// WalletQueueLength tracks the number of wallets awaiting reconciliation
	WalletQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chaincore_wallet_sync_queue_length",
		Help: "The number of founding wallets currently in the sync queue",
	})

	// WorkersActive tracks the number of active sync workers
	WorkersActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chaincore_workers_active",
		Help: "The number of workers currently active",
	})

	// RPCRequestsTotal tracks RPC requests by status
	RPCRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaincore_rpc_requests_total",
			Help: "The total number of RPC requests",
		},
		[]string{"status"},
	)

	// WalletSyncSeconds tracks time taken to reconcile a founding wallet
	WalletSyncSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "chaincore_wallet_sync_seconds",
		Help:    "Time taken to reconcile a founding wallet in seconds",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	})

	// TransactionsProcessed tracks scanned deposits by status
	TransactionsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaincore_transactions_processed_total",
			Help: "The total number of wallet transactions processed",
		},
		[]string{"status"}, // recorded, duplicate, skipped, failed
	)

	// ScoreComputations tracks trust score computations by outcome tier
	ScoreComputations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaincore_score_computations_total",
			Help: "The total number of trust score computations",
		},
		[]string{"tier"},
	)

	// CacheRequests tracks cache lookups by cache name and result
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaincore_cache_requests_total",
			Help: "The total number of cache lookups",
		},
		[]string{"cache", "result"}, // hit, miss, stale
	)

	// RPCEndpointHealth tracks RPC endpoint health
	RPCEndpointHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chaincore_rpc_endpoint_health",
			Help: "Health status of RPC endpoints (1 = healthy, 0 = unhealthy)",
		},
		[]string{"endpoint"},
	)

	// VoteSyncResults tracks chain-sync vote reconciliation outcomes
	VoteSyncResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chaincore_vote_sync_total",
			Help: "The total number of vote chain-sync attempts",
		},
		[]string{"status"}, // synced, failed
	)
)

// RecordRPCRequest records an RPC request with the given status
func RecordRPCRequest(status string) {
	RPCRequestsTotal.WithLabelValues(status).Inc()
}

// RecordWalletSync records the time taken to reconcile a founding wallet
func RecordWalletSync(duration float64) {
	WalletSyncSeconds.Observe(duration)
}

// RecordTransactionProcessed records a processed transaction
func RecordTransactionProcessed(status string) {
	TransactionsProcessed.WithLabelValues(status).Inc()
}

// RecordScoreComputation records a completed trust score computation
func RecordScoreComputation(tier string) {
	ScoreComputations.WithLabelValues(tier).Inc()
}

// RecordCacheRequest records a cache lookup result
func RecordCacheRequest(cache, result string) {
	CacheRequests.WithLabelValues(cache, result).Inc()
}

// SetRPCEndpointHealth sets the health status of an RPC endpoint
func SetRPCEndpointHealth(endpoint string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	RPCEndpointHealth.WithLabelValues(endpoint).Set(value)
}

// RecordVoteSync records a vote chain-sync attempt outcome
func RecordVoteSync(status string) {
	VoteSyncResults.WithLabelValues(status).Inc()
}
