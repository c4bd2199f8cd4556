package dialogue

import (
	"errors"
	"fmt"
	"strings"

	"selfplay/internal/analyzer"
)

// ErrInvalidTurnFormat marks externally supplied turns that are not
// well-formed (speaker, message, response) records. The analyzer itself
// never fails; malformed histories are rejected at this boundary.
var ErrInvalidTurnFormat = errors.New("invalid turn format")

// ValidateTurns checks a history supplied from outside the runner, for
// example a restored session posted to the web API.
func ValidateTurns(turns []Turn) error {
	for i, turn := range turns {
		if strings.TrimSpace(turn.Speaker) == "" {
			return fmt.Errorf("turn %d: missing speaker: %w", i, ErrInvalidTurnFormat)
		}
		if strings.TrimSpace(turn.Response) == "" {
			return fmt.Errorf("turn %d: empty response: %w", i, ErrInvalidTurnFormat)
		}
	}
	return nil
}

// AnalyzeTurns runs the end-signal detector over an externally supplied
// history after validating its shape.
func AnalyzeTurns(detector *analyzer.Analyzer, turns []Turn) (analyzer.Result, error) {
	if err := ValidateTurns(turns); err != nil {
		return analyzer.Result{}, err
	}
	return detector.DetectEndSignals(analyzerTurns(turns), len(turns)), nil
}
