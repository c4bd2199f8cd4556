package analyzer

import "strings"

const (
	farewellPhraseHit   = 0.5
	gratitudeBonus      = 0.4
	closureBonus        = 0.3
	awaitInputBonus     = 0.2
	unusualStateBonus   = 0.3
	resolutionThankBase = 0.2
	resolutionPhraseHit = 0.3
	summaryBonus        = 0.4
	shortReplyBonus     = 0.3
	metaKeywordBonus    = 0.3
	metaStateBonus      = 0.2
	metaBothAgentsBonus = 0.3

	minRepetitionTurns = 3
	repetitionFloor    = 0.7

	shortReplyWords  = 10
	metaKeywordFloor = 2

	waitingStrong = 0.9
	waitingWeak   = 0.4
)

// scoreFarewells accumulates lexicon hits and regex bonuses over the
// recent window. Accumulation is unbounded before the final clamp;
// saturation at 1.0 is the documented ceiling behavior.
func (a *Analyzer) scoreFarewells(recent []Turn) float64 {
	score := 0.0
	for _, turn := range recent {
		text := Normalize(turn.Response)

		for _, phrase := range a.farewellPhrases {
			if strings.Contains(text, phrase) {
				score += farewellPhraseHit
			}
		}

		if a.gratitudePattern.MatchString(text) {
			score += gratitudeBonus
		}
		if a.closurePattern.MatchString(text) {
			score += closureBonus
		}
		if a.awaitInputPattern.MatchString(text) {
			score += awaitInputBonus
		}
		if a.unusualStatePattern.MatchString(text) {
			score += unusualStateBonus
		}
	}
	return clamp01(score)
}

// scoreRepetition averages pairwise similarity over the last five turns.
// Only clearly elevated similarity counts: the (0.7, 1.0] band rescales
// to (0, 1], anything at or below 0.7 contributes nothing, so naturally
// topic-consistent dialogue does not trip the detector.
func (a *Analyzer) scoreRepetition(history []Turn) float64 {
	window := lastTurns(history, extendedWindow)
	if len(window) < minRepetitionTurns {
		return 0
	}

	normalized := make([]string, len(window))
	for i, turn := range window {
		normalized[i] = Normalize(turn.Response)
	}
	// Exact restatements need no separate check: identical normalized
	// strings already score 1.0 in the pairwise pass.

	sum := 0.0
	pairs := 0
	for i := 0; i < len(normalized)-1; i++ {
		for j := i + 1; j < len(normalized); j++ {
			sum += Similarity(normalized[i], normalized[j])
			pairs++
		}
	}

	avg := sum / float64(pairs)
	if avg <= repetitionFloor {
		return 0
	}
	return clamp01((avg - repetitionFloor) / (1 - repetitionFloor))
}

// scoreResolution inspects only the latest message.
func (a *Analyzer) scoreResolution(recent []Turn) float64 {
	if len(recent) == 0 {
		return 0
	}
	latest := recent[len(recent)-1].Response

	// An open question in the latest message means the topic is not
	// resolved, whatever else it says.
	if strings.Contains(latest, "?") {
		return 0
	}

	text := Normalize(latest)
	score := 0.0
	if strings.Contains(text, "thank") {
		score += resolutionThankBase
	}
	for _, phrase := range a.resolutionPhrases {
		if strings.Contains(text, phrase) {
			score += resolutionPhraseHit
		}
	}
	if a.summaryPattern.MatchString(text) {
		score += summaryBonus
	}
	// A short closing reply is itself weak evidence of resolution.
	if len(strings.Fields(text)) <= shortReplyWords {
		score += shortReplyBonus
	}
	return clamp01(score)
}

// scoreMetaConversation detects agents talking about the conversation
// rather than within it.
func (a *Analyzer) scoreMetaConversation(recent []Turn) float64 {
	score := 0.0
	for _, turn := range recent {
		text := Normalize(turn.Response)

		keywordCount := 0
		for _, keyword := range a.metaKeywords {
			keywordCount += strings.Count(text, keyword)
		}
		if keywordCount >= metaKeywordFloor {
			score += metaKeywordBonus
		}

		if a.conversationState.MatchString(text) {
			score += metaStateBonus
		}
		if a.bothAgentsPattern.MatchString(text) {
			score += metaBothAgentsBonus
		}
	}
	return clamp01(score)
}

// scoreWaitingPattern counts awaiting-input statements across the
// window. A single statement from one side is weak evidence; statements
// from both sides (or repeated) are qualitatively different, hence a
// step function rather than a linear scale.
func (a *Analyzer) scoreWaitingPattern(recent []Turn) float64 {
	indicators := 0
	for _, turn := range recent {
		text := Normalize(turn.Response)
		indicators += len(a.waitingForPattern.FindAllString(text, -1))
		indicators += len(a.needInputPattern.FindAllString(text, -1))
	}

	switch {
	case indicators >= 2:
		return waitingStrong
	case indicators == 1:
		return waitingWeak
	default:
		return 0
	}
}
