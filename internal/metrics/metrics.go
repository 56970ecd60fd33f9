package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ============================================
	// Distribution cycle metrics
	// ============================================
	DistributionCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_distribution_cycles_total",
			Help: "Total number of autonomous distribution cycles",
		},
		[]string{"result"}, // processed, failed, skipped
	)

	DistributionCycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "airdrop_distribution_cycle_duration_seconds",
		Help:    "Autonomous distribution cycle duration in seconds",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	EligibleUsers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airdrop_eligible_users",
		Help: "Eligible users discovered in the most recent cycle",
	})

	// ============================================
	// Batch submission metrics
	// ============================================
	BatchesSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airdrop_batches_submitted_total",
		Help: "Total number of batch transactions confirmed on chain",
	})

	BatchesFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_batches_failed_total",
			Help: "Total number of batch submissions that exhausted their attempts",
		},
		[]string{"reason"}, // gas_price, transient, permanent
	)

	RecipientsPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airdrop_recipients_paid_total",
		Help: "Total number of recipients included in confirmed batches",
	})

	TokensDistributed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "airdrop_tokens_distributed_wei_total",
		Help: "Total token amount (wei) committed in confirmed batches",
	})

	GasPriceGwei = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "airdrop_gas_price_gwei",
			Help: "Last observed network gas price in gwei",
		},
		[]string{"chain"},
	)

	// ============================================
	// Dead-letter queue metrics
	// ============================================
	RetryQueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "airdrop_retry_queue_depth",
			Help: "Dead-letter queue entries by status",
		},
		[]string{"status"},
	)

	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "airdrop_retry_attempts_total",
			Help: "Total number of dead-letter retry attempts",
		},
		[]string{"result"}, // recovered, failed, abandoned
	)

	// ============================================
	// Infrastructure metrics
	// ============================================
	NATSConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airdrop_nats_connection_status",
		Help: "NATS connection status (1=connected, 0=disconnected)",
	})

	DBConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "airdrop_db_connection_status",
		Help: "Database connection status (1=healthy, 0=unhealthy)",
	})

	SignerBalance = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "airdrop_signer_balance_wei",
			Help: "Native balance of the signing address",
		},
		[]string{"chain", "address"},
	)
)
