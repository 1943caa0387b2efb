package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrio/internal/api"
	"github.com/jackzampolin/narrio/internal/books"
	"github.com/jackzampolin/narrio/internal/segment"
	"github.com/jackzampolin/narrio/internal/svcctx"
)

// AnalyzeResponse describes the detected chapter structure of a book.
type AnalyzeResponse struct {
	BookID          string            `json:"book_id"`
	FileName        string            `json:"filename"`
	Title           string            `json:"title"`
	ChapterCount    int               `json:"chapter_count"`
	DetectionMethod string            `json:"detection_method"`
	TotalWords      int               `json:"total_words"`
	Chapters        []books.ChapterRef `json:"chapters"`
}

// AnalyzeEndpoint handles POST /api/analyze: upload a document and
// split it into chapters for per-chapter conversion. Premium only.
type AnalyzeEndpoint struct{}

var _ api.Endpoint = (*AnalyzeEndpoint)(nil)

func (e *AnalyzeEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/analyze", e.handler
}

func (e *AnalyzeEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Analyze chapter structure
//	@Description	Upload a document and detect its chapters, optionally overriding detection with manual page ranges
//	@Tags			books
//	@Accept			mpfd
//	@Produce		json
//	@Param			file		formData	file	true	"PDF or EPUB document"
//	@Param			provider	formData	string	false	"TTS provider"
//	@Param			voice		formData	string	false	"Voice ID"
//	@Param			speed		formData	number	false	"Speech speed"
//	@Param			segments	formData	string	false	"Manual segmentation JSON"
//	@Success		200	{object}	AnalyzeResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		401	{object}	ErrorResponse
//	@Failure		403	{object}	PremiumErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/analyze [post]
func (e *AnalyzeEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	ident, ok := requirePremium(w, r)
	if !ok {
		return
	}

	homeDir := svcctx.HomeFrom(r.Context())
	mgr := svcctx.ConfigFrom(r.Context())
	service := svcctx.BooksFrom(r.Context())
	if homeDir == nil || mgr == nil || service == nil {
		writeError(w, http.StatusServiceUnavailable, "server not initialized")
		return
	}

	bookID := uuid.NewString()
	path, fileName, err := saveUpload(r, homeDir, bookID)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	params := books.AnalyzeParams{
		UserID:   ident.UserID,
		FilePath: path,
		FileName: fileName,
	}
	params.Provider, params.Voice, params.Speed = synthesisParams(r, mgr.Get().Defaults)

	if raw := r.FormValue("segments"); raw != "" {
		segs, err := segment.ParseManualSegments([]byte(raw))
		if err != nil {
			os.Remove(path)
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		params.ManualSegments = segs
	}

	book, err := service.Analyze(params)
	if err != nil {
		os.Remove(path)
		var invalid *segment.InvalidSegmentationError
		switch {
		case errors.As(err, &invalid):
			writeError(w, http.StatusBadRequest, invalid.Error())
		case errors.Is(err, segment.ErrNoText):
			writeError(w, http.StatusBadRequest, "no readable text found in document")
		default:
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("analysis failed: %v", err))
		}
		return
	}

	writeJSON(w, http.StatusOK, AnalyzeResponse{
		BookID:          book.ID,
		FileName:        book.FileName,
		Title:           book.Title,
		ChapterCount:    len(book.Chapters),
		DetectionMethod: book.DetectionMethod,
		TotalWords:      book.TotalWords,
		Chapters:        book.Chapters,
	})
}

func (e *AnalyzeEndpoint) Command(getServerURL func() string) *cobra.Command {
	var segmentsFile string
	cmd := &cobra.Command{
		Use:   "analyze <file>",
		Short: "Detect chapter structure in a document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			fields := map[string]string{}
			if segmentsFile != "" {
				data, err := os.ReadFile(segmentsFile)
				if err != nil {
					return err
				}
				fields["segments"] = string(data)
			}
			var resp AnalyzeResponse
			if err := client.PostFile(cmd.Context(), "/api/analyze", args[0], fields, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Printf("Book ID:  %s\n", resp.BookID)
			fmt.Printf("Title:    %s\n", resp.Title)
			fmt.Printf("Method:   %s\n", resp.DetectionMethod)
			fmt.Printf("Chapters: %d\n", resp.ChapterCount)
			for _, ch := range resp.Chapters {
				label := ch.Label
				if label == "" {
					label = ch.Title
				}
				fmt.Printf("  [%d] %s (%d words)\n", ch.Index, label, ch.WordCount)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&segmentsFile, "segments", "", "JSON file with manual page ranges")
	return cmd
}
