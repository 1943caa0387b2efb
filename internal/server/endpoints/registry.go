package endpoints

import (
	"github.com/jackzampolin/narrio/internal/api"
)

// Config holds dependencies needed by some endpoints.
type Config struct {
	SwaggerSpecPath string
}

// All returns all endpoint instances.
func All(cfg Config) []api.Endpoint {
	return []api.Endpoint{
		// Health and client configuration
		&HealthEndpoint{},
		&ConfigEndpoint{},

		// Voices
		&VoicesEndpoint{},
		&TestVoiceEndpoint{},

		// Whole-document conversion
		&EstimateEndpoint{},
		&ConvertEndpoint{},

		// Book analysis and per-chapter conversion
		&AnalyzeEndpoint{},
		&ConvertChapterEndpoint{},
		&ConvertAllEndpoint{},
		&BookEndpoint{},

		// Job lifecycle
		&ProgressEndpoint{},
		&CancelEndpoint{},
		&CancelBookEndpoint{},
		&DownloadEndpoint{},

		// Swagger/OpenAPI endpoints
		&SwaggerEndpoint{SpecPath: cfg.SwaggerSpecPath},
		&SwaggerUIEndpoint{},
	}
}
