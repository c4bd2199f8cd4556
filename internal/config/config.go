// Package config reads runtime settings from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultProvider       = "openai"
	DefaultModel          = "gpt-5.2"
	DefaultOutputDir      = "./outputs"
	DefaultMaxTurns       = 10
	DefaultAutoEnd        = true
	DefaultEndThreshold   = 0.5
	DefaultTurnDelay      = 0 * time.Second
	DefaultMaxDuration    = 15 * time.Minute
	DefaultMaxTotalTokens = 120000
	DefaultRequestTimeout = 60 * time.Second
	DefaultAPIMaxRetries  = 2
)

type Settings struct {
	Provider       string
	APIKey         string
	BaseURL        string
	Model          string
	OutputDir      string
	TemplateFile   string
	PersonaDBPath  string
	MaxTurns       int
	AutoEnd        bool
	EndThreshold   float64
	TurnDelay      time.Duration
	MaxDuration    time.Duration
	MaxTotalTokens int
	RequestTimeout time.Duration
	APIMaxRetries  int
}

// FromEnv builds settings from SELFPLAY_* variables plus the provider
// credential variables. The API key requirement depends on the chosen
// provider; ollama runs without one.
func FromEnv() (Settings, error) {
	settings := Settings{
		Provider:       DefaultProvider,
		Model:          DefaultModel,
		OutputDir:      DefaultOutputDir,
		MaxTurns:       DefaultMaxTurns,
		AutoEnd:        DefaultAutoEnd,
		EndThreshold:   DefaultEndThreshold,
		TurnDelay:      DefaultTurnDelay,
		MaxDuration:    DefaultMaxDuration,
		MaxTotalTokens: DefaultMaxTotalTokens,
		RequestTimeout: DefaultRequestTimeout,
		APIMaxRetries:  DefaultAPIMaxRetries,
	}

	if v := strings.TrimSpace(os.Getenv("SELFPLAY_PROVIDER")); v != "" {
		settings.Provider = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("SELFPLAY_MODEL")); v != "" {
		settings.Model = v
	}
	settings.OutputDir = stringOr("SELFPLAY_OUTPUT_DIR", settings.OutputDir)
	settings.TemplateFile = strings.TrimSpace(os.Getenv("SELFPLAY_TEMPLATE_FILE"))
	settings.PersonaDBPath = strings.TrimSpace(os.Getenv("SELFPLAY_PERSONA_DB"))

	settings.APIKey, settings.BaseURL = providerCredentials(settings.Provider)
	if settings.APIKey == "" && settings.Provider != "ollama" {
		return Settings{}, fmt.Errorf("%s is required for provider %q", apiKeyEnv(settings.Provider), settings.Provider)
	}

	var err error
	settings.MaxTurns, err = parseOptionalInt("SELFPLAY_MAX_TURNS", settings.MaxTurns, func(v int) bool { return v > 0 })
	if err != nil {
		return Settings{}, err
	}
	settings.AutoEnd, err = parseOptionalBool("SELFPLAY_AUTO_END", settings.AutoEnd)
	if err != nil {
		return Settings{}, err
	}
	settings.EndThreshold, err = parseOptionalFloat64("SELFPLAY_END_THRESHOLD", settings.EndThreshold, func(v float64) bool { return v > 0 && v <= 1 })
	if err != nil {
		return Settings{}, err
	}
	settings.TurnDelay, err = parseOptionalDuration("SELFPLAY_TURN_DELAY", settings.TurnDelay, func(v time.Duration) bool { return v >= 0 })
	if err != nil {
		return Settings{}, err
	}
	settings.MaxDuration, err = parseOptionalDuration("SELFPLAY_MAX_DURATION", settings.MaxDuration, func(v time.Duration) bool { return v > 0 })
	if err != nil {
		return Settings{}, err
	}
	settings.MaxTotalTokens, err = parseOptionalInt("SELFPLAY_MAX_TOTAL_TOKENS", settings.MaxTotalTokens, func(v int) bool { return v > 0 })
	if err != nil {
		return Settings{}, err
	}
	settings.RequestTimeout, err = parseOptionalDuration("SELFPLAY_REQUEST_TIMEOUT", settings.RequestTimeout, func(v time.Duration) bool { return v > 0 })
	if err != nil {
		return Settings{}, err
	}
	settings.APIMaxRetries, err = parseOptionalInt("SELFPLAY_API_MAX_RETRIES", settings.APIMaxRetries, func(v int) bool { return v >= 0 })
	if err != nil {
		return Settings{}, err
	}

	return settings, nil
}

func providerCredentials(provider string) (apiKey, baseURL string) {
	switch provider {
	case "anthropic":
		return strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")), stringOr("ANTHROPIC_BASE_URL", "")
	case "ollama":
		return "", stringOr("OLLAMA_HOST", "")
	default:
		return strings.TrimSpace(os.Getenv("OPENAI_API_KEY")), stringOr("OPENAI_BASE_URL", "")
	}
}

func apiKeyEnv(provider string) string {
	if provider == "anthropic" {
		return "ANTHROPIC_API_KEY"
	}
	return "OPENAI_API_KEY"
}

func stringOr(env, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	return fallback
}

func parseOptionalInt(env string, fallback int, valid func(int) bool) (int, error) {
	raw := strings.TrimSpace(os.Getenv(env))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", env, err)
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("%s has invalid value: %d", env, v)
	}
	return v, nil
}

func parseOptionalBool(env string, fallback bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(env))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", env, err)
	}
	return v, nil
}

func parseOptionalFloat64(env string, fallback float64, valid func(float64) bool) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(env))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", env, err)
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("%s has invalid value: %v", env, v)
	}
	return v, nil
}

func parseOptionalDuration(env string, fallback time.Duration, valid func(time.Duration) bool) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(env))
	if raw == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a valid duration (e.g. 45s, 2m): %w", env, err)
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("%s has invalid value: %s", env, v)
	}
	return v, nil
}
