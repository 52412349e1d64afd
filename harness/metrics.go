package harness

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "regtest"

// GeneratorMetrics tracks the progress of a BlockGenerator.
type GeneratorMetrics struct {
	BlocksMined        prometheus.Counter
	GenerationFailures prometheus.Counter
	ReceivedBTC        prometheus.Gauge
}

// NewGeneratorMetrics registers the generator metrics on reg. A nil reg
// yields working but unregistered metrics.
func NewGeneratorMetrics(reg prometheus.Registerer) *GeneratorMetrics {
	factory := promauto.With(reg)

	return &GeneratorMetrics{
		BlocksMined: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "blocks_mined_total",
			Help:      "Number of blocks mined to the generator address, seed blocks included.",
		}),
		GenerationFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "block_generation_failures_total",
			Help:      "Number of failed steady state block generation calls.",
		}),
		ReceivedBTC: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "mining_address_received_btc",
			Help:      "Total amount received by the mining address, in BTC.",
		}),
	}
}
