package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrio/internal/api"
	"github.com/jackzampolin/narrio/internal/providers"
	"github.com/jackzampolin/narrio/internal/svcctx"
)

// TestVoiceRequest selects the voice to sample.
type TestVoiceRequest struct {
	Provider string  `json:"provider,omitempty"`
	Voice    string  `json:"voice,omitempty"`
	Speed    float64 `json:"speed,omitempty"`
}

// TestVoiceEndpoint handles POST /api/test-voice. It synthesizes a
// short greeting so users can audition a voice before committing to a
// full conversion.
type TestVoiceEndpoint struct{}

var _ api.Endpoint = (*TestVoiceEndpoint)(nil)

func (e *TestVoiceEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/test-voice", e.handler
}

func (e *TestVoiceEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Voice sample
//	@Description	Generate a short audio sample for a voice
//	@Tags			voices
//	@Accept			json
//	@Produce		audio/mpeg
//	@Param			request	body	TestVoiceRequest	true	"Voice selection"
//	@Success		200	{file}		binary
//	@Failure		400	{object}	ErrorResponse
//	@Failure		502	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/test-voice [post]
func (e *TestVoiceEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireIdentity(w, r); !ok {
		return
	}

	registry := svcctx.RegistryFrom(r.Context())
	mgr := svcctx.ConfigFrom(r.Context())
	if registry == nil || mgr == nil {
		writeError(w, http.StatusServiceUnavailable, "providers not initialized")
		return
	}
	defaults := mgr.Get().Defaults

	var req TestVoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Provider == "" {
		req.Provider = defaults.TTSProvider
	}
	if req.Voice == "" {
		req.Voice = defaults.Voice
	}
	if req.Speed == 0 {
		req.Speed = defaults.Speed
	}

	provider, err := registry.GetTTS(req.Provider)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown provider %q", req.Provider))
		return
	}

	sample := fmt.Sprintf(
		"Hi there, welcome to Narrio, your personal file narrator. I'm %s. This is my reading voice.",
		req.Voice)
	result, err := provider.Generate(r.Context(), &providers.TTSRequest{
		Text:   sample,
		Voice:  req.Voice,
		Format: "mp3",
		Speed:  req.Speed,
	})
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("voice sample failed: %v", err))
		return
	}
	if !result.Success {
		writeError(w, http.StatusBadGateway, result.ErrorMessage)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.WriteHeader(http.StatusOK)
	w.Write(result.Audio)
}

func (e *TestVoiceEndpoint) Command(getServerURL func() string) *cobra.Command {
	var provider, voice, output string
	cmd := &cobra.Command{
		Use:   "test-voice",
		Short: "Generate a short voice sample",
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				output = "sample.mp3"
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			defer f.Close()

			client := api.NewClient(getServerURL())
			body, _ := json.Marshal(TestVoiceRequest{Provider: provider, Voice: voice})
			if _, err := client.PostRaw(cmd.Context(), "/api/test-voice", body, f); err != nil {
				return err
			}
			fmt.Printf("Sample written to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "TTS provider name")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice ID")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default sample.mp3)")
	return cmd
}
