package endpoints

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrio/internal/api"
	"github.com/jackzampolin/narrio/internal/config"
	"github.com/jackzampolin/narrio/internal/jobs"
	"github.com/jackzampolin/narrio/internal/segment"
	"github.com/jackzampolin/narrio/internal/svcctx"
)

// ConvertResponse identifies the job created for an upload.
type ConvertResponse struct {
	JobID  string      `json:"job_id"`
	Status jobs.Status `json:"status"`
}

// ConvertEndpoint handles POST /api/convert: upload a document and
// start a whole-document conversion job.
type ConvertEndpoint struct{}

var _ api.Endpoint = (*ConvertEndpoint)(nil)

func (e *ConvertEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/convert", e.handler
}

func (e *ConvertEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Convert a document
//	@Description	Upload a PDF or EPUB and start an asynchronous conversion to narrated audio
//	@Tags			convert
//	@Accept			mpfd
//	@Produce		json
//	@Param			file		formData	file	true	"PDF or EPUB document"
//	@Param			provider	formData	string	false	"TTS provider"
//	@Param			voice		formData	string	false	"Voice ID"
//	@Param			speed		formData	number	false	"Speech speed"
//	@Success		200	{object}	ConvertResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		403	{object}	PremiumErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/convert [post]
func (e *ConvertEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ident, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	homeDir := svcctx.HomeFrom(r.Context())
	mgr := svcctx.ConfigFrom(r.Context())
	registry := svcctx.JobsFrom(r.Context())
	runner := svcctx.RunnerFrom(r.Context())
	if homeDir == nil || mgr == nil || registry == nil || runner == nil {
		writeError(w, http.StatusServiceUnavailable, "server not initialized")
		return
	}

	jobID := uuid.NewString()
	path, fileName, err := saveUpload(r, homeDir, jobID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	cfg := mgr.Get()
	if !ident.Premium && strings.EqualFold(filepath.Ext(path), ".pdf") {
		pages, err := segment.PageCount(path)
		if err != nil {
			os.Remove(path)
			writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read document: %v", err))
			return
		}
		if limit := cfg.Limits.FreePageLimit; limit > 0 && pages > limit {
			os.Remove(path)
			writePremiumRequired(w, fmt.Sprintf(
				"Free tier supports documents up to %d pages (this one has %d). Upgrade to premium for unlimited pages.",
				limit, pages))
			return
		}
	}

	provider, voice, speed := synthesisParams(r, cfg.Defaults)
	job := registry.Create(jobs.CreateParams{
		ID:         jobID,
		UserID:     ident.UserID,
		FileName:   fileName,
		Provider:   provider,
		Voice:      voice,
		Speed:      speed,
		InputPath:  path,
		OutputPath: homeDir.AudioPath(jobID),
	})
	runner.Launch(svcctx.BaseCtxFrom(r.Context()), job.ID)

	writeJSON(w, http.StatusOK, ConvertResponse{JobID: job.ID, Status: job.Status})
}

// synthesisParams reads provider/voice/speed form fields, falling back
// to server defaults. "rate" is accepted as an alias for speed.
func synthesisParams(r *http.Request, defaults config.DefaultsCfg) (string, string, float64) {
	provider := r.FormValue("provider")
	if provider == "" {
		provider = defaults.TTSProvider
	}
	voice := r.FormValue("voice")
	if voice == "" {
		voice = defaults.Voice
	}
	speedStr := r.FormValue("speed")
	if speedStr == "" {
		speedStr = r.FormValue("rate")
	}
	speed, err := strconv.ParseFloat(speedStr, 64)
	if err != nil || speed <= 0 {
		speed = defaults.Speed
	}
	return provider, voice, speed
}

func (e *ConvertEndpoint) Command(getServerURL func() string) *cobra.Command {
	var provider, voice string
	var speed float64
	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a document to narrated audio",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			fields := map[string]string{}
			if provider != "" {
				fields["provider"] = provider
			}
			if voice != "" {
				fields["voice"] = voice
			}
			if speed > 0 {
				fields["speed"] = strconv.FormatFloat(speed, 'f', -1, 64)
			}
			var resp ConvertResponse
			if err := client.PostFile(cmd.Context(), "/api/convert", args[0], fields, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Printf("Job ID: %s\n", resp.JobID)
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "TTS provider name")
	cmd.Flags().StringVar(&voice, "voice", "", "Voice ID")
	cmd.Flags().Float64Var(&speed, "speed", 0, "Speech speed")
	return cmd
}
