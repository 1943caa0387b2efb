package endpoints

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrio/internal/api"
	"github.com/jackzampolin/narrio/internal/providers"
	"github.com/jackzampolin/narrio/internal/svcctx"
)

const voicesCacheTTL = 10 * time.Minute

// VoicesResponse lists voices for a provider.
type VoicesResponse struct {
	Provider string            `json:"provider"`
	Voices   []providers.Voice `json:"voices"`
}

// VoicesEndpoint handles GET /api/voices. Voice lists change rarely
// and may cost an upstream API call, so results are cached per
// provider for a few minutes.
type VoicesEndpoint struct {
	mu      sync.Mutex
	cache   map[string]VoicesResponse
	fetched map[string]time.Time
}

var _ api.Endpoint = (*VoicesEndpoint)(nil)

func (e *VoicesEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/voices", e.handler
}

func (e *VoicesEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List voices
//	@Description	List available voices for a TTS provider (default provider if unspecified)
//	@Tags			voices
//	@Produce		json
//	@Param			provider	query		string	false	"Provider name"
//	@Success		200	{object}	VoicesResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		502	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/voices [get]
func (e *VoicesEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	registry := svcctx.RegistryFrom(r.Context())
	mgr := svcctx.ConfigFrom(r.Context())
	if registry == nil || mgr == nil {
		writeError(w, http.StatusServiceUnavailable, "providers not initialized")
		return
	}

	name := r.URL.Query().Get("provider")
	if name == "" {
		name = mgr.Get().Defaults.TTSProvider
	}

	e.mu.Lock()
	if resp, ok := e.cache[name]; ok && time.Since(e.fetched[name]) < voicesCacheTTL {
		e.mu.Unlock()
		writeJSON(w, http.StatusOK, resp)
		return
	}
	e.mu.Unlock()

	provider, err := registry.GetTTS(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown provider %q", name))
		return
	}

	lister, ok := provider.(providers.VoicesLister)
	if !ok {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("provider %q does not list voices", name))
		return
	}

	voices, err := lister.ListVoices(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("failed to list voices: %v", err))
		return
	}

	resp := VoicesResponse{Provider: name, Voices: voices}

	e.mu.Lock()
	if e.cache == nil {
		e.cache = make(map[string]VoicesResponse)
		e.fetched = make(map[string]time.Time)
	}
	e.cache[name] = resp
	e.fetched[name] = time.Now()
	e.mu.Unlock()

	writeJSON(w, http.StatusOK, resp)
}

func (e *VoicesEndpoint) Command(getServerURL func() string) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "voices",
		Short: "List available TTS voices",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/api/voices"
			if provider != "" {
				path += "?provider=" + provider
			}
			var resp VoicesResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Printf("Provider: %s\n", resp.Provider)
			for _, v := range resp.Voices {
				fmt.Printf("  %s", v.VoiceID)
				if v.Name != "" && v.Name != v.VoiceID {
					fmt.Printf(" (%s)", v.Name)
				}
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "TTS provider name")
	return cmd
}
