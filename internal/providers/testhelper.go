package providers

import (
	"os"
)

// TestConfig holds provider configurations loaded from environment variables.
// This allows tests to use the same configuration pattern as production.
type TestConfig struct {
	OpenAIAPIKey     string
	ElevenLabsAPIKey string
}

// LoadTestConfig loads provider API keys from environment variables.
// Returns a TestConfig with whatever keys are available.
func LoadTestConfig() TestConfig {
	return TestConfig{
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		ElevenLabsAPIKey: os.Getenv("ELEVENLABS_API_KEY"),
	}
}

// HasOpenAI returns true if OpenAI API key is configured.
func (c TestConfig) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

// HasElevenLabs returns true if ElevenLabs API key is configured.
func (c TestConfig) HasElevenLabs() bool {
	return c.ElevenLabsAPIKey != ""
}

// HasAnyTTS returns true if any TTS provider is configured.
func (c TestConfig) HasAnyTTS() bool {
	return c.HasOpenAI() || c.HasElevenLabs()
}

// ToRegistryConfig converts test config to a RegistryConfig for the provider registry.
// Only includes providers that have API keys configured.
func (c TestConfig) ToRegistryConfig() RegistryConfig {
	cfg := RegistryConfig{
		TTSProviders: make(map[string]TTSProviderConfig),
	}

	if c.HasOpenAI() {
		cfg.TTSProviders["openai"] = TTSProviderConfig{
			Type:      "openai",
			APIKey:    c.OpenAIAPIKey,
			RateLimit: 8,
			Enabled:   true,
		}
	}

	if c.HasElevenLabs() {
		cfg.TTSProviders["elevenlabs"] = TTSProviderConfig{
			Type:      "elevenlabs",
			APIKey:    c.ElevenLabsAPIKey,
			RateLimit: 10,
			Enabled:   true,
		}
	}

	return cfg
}
