package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrio/internal/api"
	"github.com/jackzampolin/narrio/internal/books"
	"github.com/jackzampolin/narrio/internal/jobs"
	"github.com/jackzampolin/narrio/internal/svcctx"
)

// ConvertChapterRequest selects one chapter of an analyzed book.
type ConvertChapterRequest struct {
	BookID       string `json:"book_id"`
	ChapterIndex int    `json:"chapter_index"`
}

// ConvertChapterEndpoint handles POST /api/convert-chapter. Premium
// only. Starting an already-converting chapter returns the existing
// job; a completed chapter is converted again under a fresh job.
type ConvertChapterEndpoint struct{}

var _ api.Endpoint = (*ConvertChapterEndpoint)(nil)

func (e *ConvertChapterEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/convert-chapter", e.handler
}

func (e *ConvertChapterEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Convert one chapter
//	@Description	Start a conversion job for a single chapter of an analyzed book
//	@Tags			books
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ConvertChapterRequest	true	"Book and chapter"
//	@Success		200	{object}	ConvertResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		403	{object}	PremiumErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/convert-chapter [post]
func (e *ConvertChapterEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ConvertChapterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BookID == "" {
		writeError(w, http.StatusBadRequest, "book_id is required")
		return
	}

	if _, _, ok := bookForUser(w, r, req.BookID); !ok {
		return
	}
	service := svcctx.BooksFrom(r.Context())

	job, err := service.StartChapter(svcctx.BaseCtxFrom(r.Context()), req.BookID, req.ChapterIndex)
	if err != nil {
		if errors.Is(err, books.ErrChapterNotFound) {
			writeError(w, http.StatusNotFound, "Chapter not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ConvertResponse{JobID: job.ID, Status: job.Status})
}

func (e *ConvertChapterEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "convert-chapter <book-id> <chapter-index>",
		Short: "Convert a single chapter of an analyzed book",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			idx, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid chapter index %q", args[1])
			}
			client := api.NewClient(getServerURL())
			var resp ConvertResponse
			req := ConvertChapterRequest{BookID: args[0], ChapterIndex: idx}
			if err := client.Post(cmd.Context(), "/api/convert-chapter", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// ConvertAllRequest selects a book for whole-book conversion.
type ConvertAllRequest struct {
	BookID string `json:"book_id"`
}

// ChapterJobRef pairs a chapter index with its conversion job, if any.
type ChapterJobRef struct {
	ChapterIndex int         `json:"chapter_index"`
	JobID        string      `json:"job_id,omitempty"`
	Status       jobs.Status `json:"status"`
}

// ConvertAllResponse reports the job started (or already running) for
// every chapter of the book.
type ConvertAllResponse struct {
	BookID   string          `json:"book_id"`
	Chapters []ChapterJobRef `json:"chapters"`
}

// ConvertAllEndpoint handles POST /api/convert-all. Premium only.
type ConvertAllEndpoint struct{}

var _ api.Endpoint = (*ConvertAllEndpoint)(nil)

func (e *ConvertAllEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/convert-all", e.handler
}

func (e *ConvertAllEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Convert all chapters
//	@Description	Start conversion jobs for every chapter of an analyzed book; chapters with live or completed jobs are left alone
//	@Tags			books
//	@Accept			json
//	@Produce		json
//	@Param			request	body		ConvertAllRequest	true	"Book"
//	@Success		200	{object}	ConvertAllResponse
//	@Failure		400	{object}	ErrorResponse
//	@Failure		403	{object}	PremiumErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/convert-all [post]
func (e *ConvertAllEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req ConvertAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.BookID == "" {
		writeError(w, http.StatusBadRequest, "book_id is required")
		return
	}

	if _, _, ok := bookForUser(w, r, req.BookID); !ok {
		return
	}
	service := svcctx.BooksFrom(r.Context())

	if _, err := service.StartAll(svcctx.BaseCtxFrom(r.Context()), req.BookID); err != nil {
		if errors.Is(err, books.ErrWordLimit) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	// Report the full per-chapter picture, including chapters that
	// already had jobs before this call.
	status, err := service.Status(req.BookID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := ConvertAllResponse{BookID: req.BookID}
	for _, ch := range status.Chapters {
		resp.Chapters = append(resp.Chapters, ChapterJobRef{
			ChapterIndex: ch.Index,
			JobID:        ch.JobID,
			Status:       ch.Status,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ConvertAllEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "convert-all <book-id>",
		Short: "Convert every chapter of an analyzed book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ConvertAllResponse
			req := ConvertAllRequest{BookID: args[0]}
			if err := client.Post(cmd.Context(), "/api/convert-all", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
