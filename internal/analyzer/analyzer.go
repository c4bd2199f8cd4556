// Package analyzer decides whether an agent-to-agent conversation has
// reached a natural conclusion. It combines five independent lexical
// sub-detectors into a weighted score compared against a threshold.
package analyzer

import "regexp"

const (
	DefaultEndThreshold = 0.5

	// Minimum turns before any end signal is considered.
	minTurnsForDetection = 3

	recentWindow   = 3
	extendedWindow = 5
)

// Fixed aggregation weights. They sum to 1.0 so the combined score
// stays within [0,1] as long as each sub-score does.
const (
	weightFarewell   = 0.3
	weightRepetition = 0.2
	weightResolution = 0.2
	weightMeta       = 0.1
	weightWaiting    = 0.2
)

const (
	ReasonTooEarly        = "Too early in conversation"
	ReasonFarewell        = "Farewell detected"
	ReasonRepetition      = "Repetitive conversation"
	ReasonResolution      = "Topic resolved"
	ReasonMeta            = "Meta-conversation about ending"
	ReasonWaiting         = "Both participants waiting for input"
	ReasonMultipleFactors = "Multiple factors"
)

// A reason is only reported on its own when its sub-score clears this
// floor; otherwise no single signal dominates.
const reasonSignificance = 0.3

// Turn is one exchange step as seen by the analyzer. Speaker identifies
// the producing agent, Message is the prompt that elicited Response. In
// self-play the utterance lives in Response and Message carries context.
type Turn struct {
	Speaker  string `json:"speaker"`
	Message  string `json:"message"`
	Response string `json:"response"`
}

// Result is the per-call verdict. It is a value object; the caller
// decides whether to persist or log it.
type Result struct {
	ShouldEnd  bool    `json:"should_end"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type Config struct {
	// EndThreshold is the combined score at or above which the
	// conversation is considered over. Zero means DefaultEndThreshold.
	EndThreshold float64
}

// Analyzer is stateless between calls: every field is set at
// construction and read-only afterwards, so a single instance is safe
// for concurrent use across sessions.
type Analyzer struct {
	endThreshold float64

	farewellPhrases   []string
	resolutionPhrases []string
	metaKeywords      []string

	gratitudePattern    *regexp.Regexp
	closurePattern      *regexp.Regexp
	awaitInputPattern   *regexp.Regexp
	unusualStatePattern *regexp.Regexp
	summaryPattern      *regexp.Regexp
	conversationState   *regexp.Regexp
	bothAgentsPattern   *regexp.Regexp
	waitingForPattern   *regexp.Regexp
	needInputPattern    *regexp.Regexp
}

func New(cfg Config) *Analyzer {
	threshold := cfg.EndThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultEndThreshold
	}

	return &Analyzer{
		endThreshold: threshold,

		// Lexicons are matched against normalized text, so the phrases
		// themselves are normalized once here.
		farewellPhrases:   normalizeAll(farewellPhrases),
		resolutionPhrases: normalizeAll(resolutionPhrases),
		metaKeywords:      normalizeAll(metaKeywords),

		gratitudePattern:    regexp.MustCompile(`thank(s| you)?|appreciate|grateful`),
		closurePattern:      regexp.MustCompile(`thats (all|it)|no (more|other) questions|conclude|conclusion|end|finish`),
		awaitInputPattern:   regexp.MustCompile(`(wait|ready) for (your|the next|human|genuine)`),
		unusualStatePattern: regexp.MustCompile(`(unusual|strange|peculiar) (situation|exchange|interaction|circumstance)`),
		summaryPattern:      regexp.MustCompile(`in summary|to summarize|in conclusion|to recap`),
		conversationState:   regexp.MustCompile(`(this|the) conversation (has|is|seems|appears)`),
		bothAgentsPattern:   regexp.MustCompile(`(both|two|we are) (ai|assistant|bot|language model)`),
		waitingForPattern:   regexp.MustCompile(`(wait|ready|standing by) for (your|the next|human|genuine|new)`),
		needInputPattern:    regexp.MustCompile(`(need|require|wait for) (human|user|new|next) (input|query|question|instruction)`),
	}
}

// EndThreshold reports the configured decision threshold.
func (a *Analyzer) EndThreshold() float64 {
	return a.endThreshold
}

// DetectEndSignals scores the conversation so far and reports whether
// it should stop. currentTurn must equal len(history); callers pass the
// full history and the analyzer windows it internally. The history is
// never mutated.
func (a *Analyzer) DetectEndSignals(history []Turn, currentTurn int) Result {
	if currentTurn < minTurnsForDetection {
		return Result{ShouldEnd: false, Confidence: 0, Reason: ReasonTooEarly}
	}

	recent := lastTurns(history, recentWindow)

	farewell := a.scoreFarewells(recent)
	repetition := a.scoreRepetition(history)
	resolution := a.scoreResolution(recent)
	meta := a.scoreMetaConversation(recent)
	waiting := a.scoreWaitingPattern(recent)

	combined := weightFarewell*farewell +
		weightRepetition*repetition +
		weightResolution*resolution +
		weightMeta*meta +
		weightWaiting*waiting

	return Result{
		ShouldEnd:  combined >= a.endThreshold,
		Confidence: combined,
		Reason:     primaryReason(farewell, repetition, resolution, meta, waiting),
	}
}

// primaryReason picks the dominant sub-detector. Ties break toward the
// earlier entry in a fixed priority order so the choice is deterministic.
func primaryReason(farewell, repetition, resolution, meta, waiting float64) string {
	reasons := []struct {
		label string
		score float64
	}{
		{ReasonFarewell, farewell},
		{ReasonRepetition, repetition},
		{ReasonResolution, resolution},
		{ReasonMeta, meta},
		{ReasonWaiting, waiting},
	}

	best := reasons[0]
	for _, candidate := range reasons[1:] {
		if candidate.score > best.score {
			best = candidate
		}
	}
	if best.score <= reasonSignificance {
		return ReasonMultipleFactors
	}
	return best.label
}

func lastTurns(history []Turn, n int) []Turn {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
