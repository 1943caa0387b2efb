package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrio/internal/api"
	"github.com/jackzampolin/narrio/internal/svcctx"
)

// ConfigResponse tells clients what the server is willing to do for
// unauthenticated callers and which synthesis defaults apply.
type ConfigResponse struct {
	AuthConfigured bool `json:"authConfigured"`
	FreeTierLimit  int  `json:"freeTierLimit"`

	DefaultProvider string  `json:"default_provider"`
	DefaultVoice    string  `json:"default_voice"`
	DefaultSpeed    float64 `json:"default_speed"`
}

// ConfigEndpoint handles GET /api/config.
type ConfigEndpoint struct{}

var _ api.Endpoint = (*ConfigEndpoint)(nil)

func (e *ConfigEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/config", e.handler
}

func (e *ConfigEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Client configuration
//	@Description	Report auth availability, the free-tier page limit, and synthesis defaults
//	@Tags			config
//	@Produce		json
//	@Success		200	{object}	ConfigResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/config [get]
func (e *ConfigEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	mgr := svcctx.ConfigFrom(r.Context())
	if mgr == nil {
		writeError(w, http.StatusServiceUnavailable, "config not initialized")
		return
	}
	cfg := mgr.Get()

	writeJSON(w, http.StatusOK, ConfigResponse{
		AuthConfigured:  cfg.Auth.Enabled,
		FreeTierLimit:   cfg.Limits.FreePageLimit,
		DefaultProvider: cfg.Defaults.TTSProvider,
		DefaultVoice:    cfg.Defaults.Voice,
		DefaultSpeed:    cfg.Defaults.Speed,
	})
}

func (e *ConfigEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show server client configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ConfigResponse
			if err := client.Get(cmd.Context(), "/api/config", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
