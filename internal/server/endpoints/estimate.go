package endpoints

import (
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrio/internal/api"
	"github.com/jackzampolin/narrio/internal/segment"
	"github.com/jackzampolin/narrio/internal/svcctx"
)

// EstimateResponse reports conversion size estimates for a document.
type EstimateResponse struct {
	segment.Estimate
	FileName string `json:"filename"`

	// ExceedsFreeTier is set for free callers whose document is over
	// the free page limit. The estimate is still returned so clients
	// can show what an upgrade would unlock.
	ExceedsFreeTier bool `json:"exceedsFreeTier,omitempty"`
}

// EstimateEndpoint handles POST /api/estimate.
type EstimateEndpoint struct{}

var _ api.Endpoint = (*EstimateEndpoint)(nil)

func (e *EstimateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/estimate", e.handler
}

func (e *EstimateEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Estimate conversion size
//	@Description	Report word/page counts and estimated audio and processing minutes for an uploaded document
//	@Tags			convert
//	@Accept			mpfd
//	@Produce		json
//	@Param			file	formData	file	true	"PDF or EPUB document"
//	@Success		200	{object}	EstimateResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/estimate [post]
func (e *EstimateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	homeDir := svcctx.HomeFrom(r.Context())
	mgr := svcctx.ConfigFrom(r.Context())
	if homeDir == nil || mgr == nil {
		writeError(w, http.StatusServiceUnavailable, "server not initialized")
		return
	}

	// The upload only lives long enough to count words and pages.
	path, fileName, err := saveUpload(r, homeDir, "estimate-"+uuid.NewString())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer os.Remove(path)

	est, err := segment.EstimateFile(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read document: %v", err))
		return
	}

	resp := EstimateResponse{Estimate: est, FileName: fileName}
	limit := mgr.Get().Limits.FreePageLimit
	if !id.Premium && limit > 0 && est.PageCount > limit {
		resp.ExceedsFreeTier = true
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *EstimateEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "estimate <file>",
		Short: "Estimate audio length for a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp EstimateResponse
			if err := client.PostFile(cmd.Context(), "/api/estimate", args[0], nil, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Printf("File:       %s\n", resp.FileName)
			fmt.Printf("Words:      %d\n", resp.WordCount)
			if resp.PageCount > 0 {
				fmt.Printf("Pages:      %d\n", resp.PageCount)
			}
			fmt.Printf("Audio:      ~%.1f min\n", resp.EstimatedAudioMinutes)
			fmt.Printf("Processing: ~%.1f min\n", resp.EstimatedProcessingMinutes)
			return nil
		},
	}
}
