package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"selfplay/internal/dialogue"
)

func TestCollectorObserveResult(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(registry)

	collector.ObserveResult(dialogue.Result{
		Status: dialogue.StatusNaturalEnd,
		Turns:  make([]dialogue.Turn, 4),
		EndSignal: dialogue.EndSignal{
			Detected: true,
			Reason:   "Farewell detected",
		},
		Metrics: dialogue.Metrics{LatencyMS: 2500, PromptTokens: 100, CompletionTokens: 40},
	})
	collector.ObserveResult(dialogue.Result{
		Status:  dialogue.StatusMaxTurnsReached,
		Turns:   make([]dialogue.Turn, 10),
		Metrics: dialogue.Metrics{PromptTokens: 50, CompletionTokens: 20},
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.conversations.WithLabelValues(dialogue.StatusNaturalEnd)))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.conversations.WithLabelValues(dialogue.StatusMaxTurnsReached)))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.endReasons.WithLabelValues("Farewell detected")))
	assert.Equal(t, 150.0, testutil.ToFloat64(collector.tokens.WithLabelValues("prompt")))
	assert.Equal(t, 60.0, testutil.ToFloat64(collector.tokens.WithLabelValues("completion")))
}

func TestCollectorSkipsUndetectedEndSignal(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(registry)

	collector.ObserveResult(dialogue.Result{
		Status:    dialogue.StatusMaxTurnsReached,
		EndSignal: dialogue.EndSignal{Detected: false, Reason: "Too early in conversation"},
	})

	count, err := testutil.GatherAndCount(registry, "selfplay_end_reasons_total")
	assert.NoError(t, err)
	assert.Zero(t, count)
}
