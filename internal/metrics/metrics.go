// Package metrics publishes conversation run counters for Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"selfplay/internal/dialogue"
)

// Collector aggregates finished runs. Metrics:
//   - selfplay_conversations_total: finished conversations by status
//   - selfplay_end_reasons_total: detected end signals by reason
//   - selfplay_tokens_total: token usage by kind (prompt, completion)
//   - selfplay_conversation_turns: turns per conversation
//   - selfplay_conversation_duration_seconds: wall time per conversation
type Collector struct {
	conversations *prometheus.CounterVec
	endReasons    *prometheus.CounterVec
	tokens        *prometheus.CounterVec
	turns         prometheus.Histogram
	duration      prometheus.Histogram
}

// NewCollector creates and registers the run metrics with the given
// registry.
func NewCollector(registry *prometheus.Registry) *Collector {
	c := &Collector{
		conversations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "selfplay",
				Name:      "conversations_total",
				Help:      "Finished conversations by final status",
			},
			[]string{"status"},
		),
		endReasons: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "selfplay",
				Name:      "end_reasons_total",
				Help:      "Detected end signals by analyzer reason",
			},
			[]string{"reason"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "selfplay",
				Name:      "tokens_total",
				Help:      "Token usage across conversations by kind",
			},
			[]string{"kind"},
		),
		turns: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "selfplay",
				Name:      "conversation_turns",
				Help:      "Turns per finished conversation",
				Buckets:   []float64{2, 4, 6, 8, 10, 15, 20, 30, 50},
			},
		),
		duration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "selfplay",
				Name:      "conversation_duration_seconds",
				Help:      "Wall time per finished conversation",
				Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
	}

	registry.MustRegister(
		c.conversations,
		c.endReasons,
		c.tokens,
		c.turns,
		c.duration,
	)
	return c
}

// ObserveResult records one finished conversation.
func (c *Collector) ObserveResult(result dialogue.Result) {
	c.conversations.WithLabelValues(result.Status).Inc()
	if result.EndSignal.Detected && result.EndSignal.Reason != "" {
		c.endReasons.WithLabelValues(result.EndSignal.Reason).Inc()
	}
	c.tokens.WithLabelValues("prompt").Add(float64(result.Metrics.PromptTokens))
	c.tokens.WithLabelValues("completion").Add(float64(result.Metrics.CompletionTokens))
	c.turns.Observe(float64(len(result.Turns)))
	c.duration.Observe(float64(result.Metrics.LatencyMS) / 1000)
}
