package model

import "time"

// ================ Config ================

// ProviderConfig is the outbound provider configuration read from the environment.
type ProviderConfig struct {
	APIKey  string `envconfig:"GOOGLE_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`
}

// SlotConfig controls the shared active-model slot.
type SlotConfig struct {
	TTL time.Duration `envconfig:"MODEL_SLOT_TTL" default:"1h"`
	Key string        `envconfig:"MODEL_SLOT_KEY" default:"mailsort:active_model"`
}

// Static invocation settings. These are deliberately not read from the environment.
const (
	APIVersionPrimary   = "v1beta"
	APIVersionSecondary = "v1"

	AttemptTimeout = 30 * time.Second

	GenerationTemperature float32 = 0.2
	GenerationMaxTokens           = 2048

	MaxEmailRunes = 30000
)

// APIVersions lists the endpoint variants in the order they are tried.
func APIVersions() []string {
	return []string{APIVersionPrimary, APIVersionSecondary}
}
