package providers

import (
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Registry holds references to TTS providers.
// It supports config-driven instantiation, hot-reload, and provides thread-safe access.
type Registry struct {
	mu           sync.RWMutex
	ttsProviders map[string]TTSProvider
	logger       *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		ttsProviders: make(map[string]TTSProvider),
		logger:       slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// RegisterTTS registers a TTS provider by name.
func (r *Registry) RegisterTTS(name string, provider TTSProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ttsProviders[name] = provider
	if r.logger != nil {
		r.logger.Info("registered TTS provider", "name", name)
	}
}

// UnregisterTTS removes a TTS provider by name.
func (r *Registry) UnregisterTTS(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ttsProviders, name)
	if r.logger != nil {
		r.logger.Info("unregistered TTS provider", "name", name)
	}
}

// GetTTS returns a TTS provider by name.
func (r *Registry) GetTTS(name string) (TTSProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	provider, ok := r.ttsProviders[name]
	if !ok {
		return nil, fmt.Errorf("TTS provider not found: %s", name)
	}
	return provider, nil
}

// ListTTS returns all registered TTS provider names.
func (r *Registry) ListTTS() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ttsProviders))
	for name := range r.ttsProviders {
		names = append(names, name)
	}
	return names
}

// HasTTS checks if a TTS provider is registered.
func (r *Registry) HasTTS(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.ttsProviders[name]
	return ok
}

// TTSProviders returns a map of all registered TTS providers.
func (r *Registry) TTSProviders() map[string]TTSProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make(map[string]TTSProvider, len(r.ttsProviders))
	for name, provider := range r.ttsProviders {
		result[name] = provider
	}
	return result
}

// RegistryConfig defines the providers to instantiate from config.
// This mirrors the config.Config structure for provider setup.
type RegistryConfig struct {
	// TTSProviders maps provider names to their config
	TTSProviders map[string]TTSProviderConfig
}

// TTSProviderConfig matches config.TTSProviderCfg with resolved API key.
type TTSProviderConfig struct {
	Type           string  // "openai", "elevenlabs"
	Model          string  // Model name
	APIKey         string  // Resolved API key
	RateLimit      float64 // Requests per second
	MaxConcurrency int     // Max in-flight requests
	MaxRetries     int     // Retry attempts
	TimeoutSeconds int     // HTTP timeout
	Enabled        bool
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
// Only enabled providers with valid API keys will be registered.
func NewRegistryFromConfig(cfg RegistryConfig) *Registry {
	r := NewRegistry()
	r.applyConfig(cfg)
	return r
}

// Reload updates the registry based on new configuration.
// Providers that are no longer configured will be unregistered.
// Providers with changed settings will be re-registered.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Track which providers should exist
	wantTTS := make(map[string]bool)

	for name, provCfg := range cfg.TTSProviders {
		if !provCfg.Enabled || provCfg.APIKey == "" {
			continue
		}
		wantTTS[name] = true

		existing, hasExisting := r.ttsProviders[name]
		if !hasExisting || needsTTSUpdate(existing, provCfg) {
			provider := createTTSProvider(provCfg)
			if provider != nil {
				r.ttsProviders[name] = provider
				if r.logger != nil {
					if hasExisting {
						r.logger.Info("updated TTS provider", "name", name, "type", provCfg.Type)
					} else {
						r.logger.Info("registered TTS provider", "name", name, "type", provCfg.Type)
					}
				}
			}
		}
	}

	// Remove providers that are no longer configured
	for name := range r.ttsProviders {
		if !wantTTS[name] {
			delete(r.ttsProviders, name)
			if r.logger != nil {
				r.logger.Info("unregistered TTS provider", "name", name)
			}
		}
	}
}

// applyConfig applies configuration without locking (used during init).
func (r *Registry) applyConfig(cfg RegistryConfig) {
	for name, provCfg := range cfg.TTSProviders {
		if !provCfg.Enabled || provCfg.APIKey == "" {
			continue
		}
		provider := createTTSProvider(provCfg)
		if provider != nil {
			r.ttsProviders[name] = provider
		}
	}
}

// createTTSProvider creates a TTS provider based on provider type.
func createTTSProvider(cfg TTSProviderConfig) TTSProvider {
	switch cfg.Type {
	case "openai":
		return NewOpenAITTSClient(OpenAITTSConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			RateLimit:  cfg.RateLimit,
			MaxRetries: cfg.MaxRetries,
			Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		})
	case "elevenlabs":
		return NewElevenLabsTTSClient(ElevenLabsTTSConfig{
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			RateLimit:  cfg.RateLimit,
			MaxRetries: cfg.MaxRetries,
			Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		})
	default:
		return nil
	}
}

// needsTTSUpdate checks if a TTS provider needs to be recreated.
func needsTTSUpdate(provider TTSProvider, cfg TTSProviderConfig) bool {
	switch p := provider.(type) {
	case *OpenAITTSClient:
		return p.apiKey != cfg.APIKey ||
			(cfg.Model != "" && p.model != cfg.Model) ||
			(cfg.RateLimit > 0 && p.rateLimit != cfg.RateLimit)
	case *ElevenLabsTTSClient:
		return p.apiKey != cfg.APIKey ||
			(cfg.Model != "" && p.model != cfg.Model) ||
			(cfg.RateLimit > 0 && p.rateLimit != cfg.RateLimit)
	default:
		return true
	}
}
