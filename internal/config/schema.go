package config

// Config holds narrio configuration.
// Stored at: ~/.narrio/config.yaml
type Config struct {
	Server       ServerCfg                 `mapstructure:"server" yaml:"server"`
	TTSProviders map[string]TTSProviderCfg `mapstructure:"tts_providers" yaml:"tts_providers"`
	Limits       LimitsCfg                 `mapstructure:"limits" yaml:"limits"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	Auth         AuthCfg                   `mapstructure:"auth" yaml:"auth"`
	Cleanup      CleanupCfg                `mapstructure:"cleanup" yaml:"cleanup"`
}

// ServerCfg configures the HTTP listener.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// TTSProviderCfg configures a TTS provider.
type TTSProviderCfg struct {
	Type           string  `mapstructure:"type" yaml:"type"`                         // "openai", "elevenlabs"
	Model          string  `mapstructure:"model" yaml:"model"`                       // Model name
	APIKey         string  `mapstructure:"api_key" yaml:"api_key"`                   // API key (supports ${ENV_VAR} syntax)
	RateLimit      float64 `mapstructure:"rate_limit" yaml:"rate_limit"`             // Requests per second
	MaxConcurrency int     `mapstructure:"max_concurrency" yaml:"max_concurrency"`   // Max in-flight requests
	MaxRetries     int     `mapstructure:"max_retries" yaml:"max_retries"`           // Retry attempts per request
	TimeoutSeconds int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`   // HTTP timeout
	Enabled        bool    `mapstructure:"enabled" yaml:"enabled"`
}

// LimitsCfg bounds conversion work.
type LimitsCfg struct {
	FreePageLimit int `mapstructure:"free_page_limit" yaml:"free_page_limit"` // Max PDF pages for free tier
	MaxChapters   int `mapstructure:"max_chapters" yaml:"max_chapters"`       // Max chapters per book
	MaxTotalWords int `mapstructure:"max_total_words" yaml:"max_total_words"` // Max total words per book
	MaxConcurrent int `mapstructure:"max_concurrent" yaml:"max_concurrent"`   // Global concurrent conversion slots
}

// DefaultsCfg specifies default synthesis parameters.
type DefaultsCfg struct {
	TTSProvider string  `mapstructure:"tts_provider" yaml:"tts_provider"` // Default TTS provider name
	Voice       string  `mapstructure:"voice" yaml:"voice"`               // Default voice ID
	Speed       float64 `mapstructure:"speed" yaml:"speed"`               // Default speech speed
}

// AuthCfg configures JWT verification.
type AuthCfg struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	JWKSURL  string `mapstructure:"jwks_url" yaml:"jwks_url"`   // JWKS endpoint for RS256 keys
	Issuer   string `mapstructure:"issuer" yaml:"issuer"`       // Expected token issuer
	Audience string `mapstructure:"audience" yaml:"audience"`   // Expected audience (optional)
}

// CleanupCfg configures background file cleanup.
type CleanupCfg struct {
	MaxAgeMinutes   int `mapstructure:"max_age_minutes" yaml:"max_age_minutes"`     // Delete files older than this
	IntervalMinutes int `mapstructure:"interval_minutes" yaml:"interval_minutes"` // Sweep period
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "0.0.0.0",
			Port: 5005,
		},
		TTSProviders: map[string]TTSProviderCfg{
			"openai": {
				Type:           "openai",
				Model:          "tts-1",
				APIKey:         "${OPENAI_API_KEY}",
				RateLimit:      8.0,
				MaxConcurrency: 30,
				MaxRetries:     5,
				TimeoutSeconds: 120,
				Enabled:        true,
			},
			"elevenlabs": {
				Type:           "elevenlabs",
				Model:          "eleven_turbo_v2_5",
				APIKey:         "${ELEVENLABS_API_KEY}",
				RateLimit:      10.0,
				MaxConcurrency: 10,
				MaxRetries:     5,
				TimeoutSeconds: 120,
				Enabled:        false,
			},
		},
		Limits: LimitsCfg{
			FreePageLimit: 30,
			MaxChapters:   60,
			MaxTotalWords: 500000,
			MaxConcurrent: 3,
		},
		Defaults: DefaultsCfg{
			TTSProvider: "openai",
			Voice:       "onyx",
			Speed:       1.0,
		},
		Auth: AuthCfg{
			Enabled: false,
		},
		Cleanup: CleanupCfg{
			MaxAgeMinutes:   60,
			IntervalMinutes: 15,
		},
	}
}

// GetTTSProvider returns a TTS provider config by name.
func (c *Config) GetTTSProvider(name string) (TTSProviderCfg, bool) {
	cfg, ok := c.TTSProviders[name]
	return cfg, ok
}

// EnabledTTSProviders returns all enabled TTS providers.
func (c *Config) EnabledTTSProviders() map[string]TTSProviderCfg {
	result := make(map[string]TTSProviderCfg)
	for name, cfg := range c.TTSProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
