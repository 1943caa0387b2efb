package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrio/internal/api"
	"github.com/jackzampolin/narrio/internal/jobs"
	"github.com/jackzampolin/narrio/internal/svcctx"
)

// CancelResponse reports the outcome of a cancel request.
type CancelResponse struct {
	JobID     string      `json:"job_id"`
	Status    jobs.Status `json:"status"`
	Cancelled bool        `json:"cancelled"`
	Message   string      `json:"message,omitempty"`
}

// CancelEndpoint handles POST /api/cancel/{job_id}. Cancellation is a
// request: the job stays processing until the worker observes the flag
// and winds down. Repeat calls are harmless.
type CancelEndpoint struct{}

var _ api.Endpoint = (*CancelEndpoint)(nil)

func (e *CancelEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/cancel/{job_id}", e.handler
}

func (e *CancelEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Cancel a job
//	@Description	Request cancellation of a queued or processing job; cancelling a finished job is a no-op
//	@Tags			convert
//	@Produce		json
//	@Param			job_id	path		string	true	"Job ID"
//	@Success		200	{object}	CancelResponse
//	@Failure		403	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/cancel/{job_id} [post]
func (e *CancelEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	jobID := r.PathValue("job_id")
	if _, ok := jobForUser(w, r, jobID); !ok {
		return
	}

	registry := svcctx.JobsFrom(r.Context())
	first, err := registry.RequestCancel(jobID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	job, _ := registry.Get(jobID)
	writeJSON(w, http.StatusOK, CancelResponse{
		JobID:     jobID,
		Status:    job.Status,
		Cancelled: first,
		Message:   job.Message,
	})
}

func (e *CancelEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Cancel a running conversion job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CancelResponse
			if err := client.Post(cmd.Context(), "/api/cancel/"+args[0], nil, &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			if resp.Cancelled {
				fmt.Println("Cancellation requested.")
			} else {
				fmt.Println("Cancellation already requested.")
			}
			return nil
		},
	}
}

// CancelBookResponse reports how many chapter jobs a book-wide cancel
// reached.
type CancelBookResponse struct {
	BookID    string `json:"book_id"`
	Cancelled int    `json:"cancelled"`
}

// CancelBookEndpoint handles POST /api/cancel-book/{book_id}. Premium
// only, like the rest of the book surface.
type CancelBookEndpoint struct{}

var _ api.Endpoint = (*CancelBookEndpoint)(nil)

func (e *CancelBookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/cancel-book/{book_id}", e.handler
}

func (e *CancelBookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Cancel all chapter jobs
//	@Description	Request cancellation of every live chapter job for a book
//	@Tags			books
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Success		200	{object}	CancelBookResponse
//	@Failure		403	{object}	PremiumErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/cancel-book/{book_id} [post]
func (e *CancelBookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("book_id")
	if _, _, ok := bookForUser(w, r, bookID); !ok {
		return
	}

	count, err := svcctx.BooksFrom(r.Context()).CancelAll(bookID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, CancelBookResponse{BookID: bookID, Cancelled: count})
}

func (e *CancelBookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-book <book-id>",
		Short: "Cancel all running chapter jobs for a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CancelBookResponse
			if err := client.Post(cmd.Context(), "/api/cancel-book/"+args[0], nil, &resp); err != nil {
				return err
			}
			fmt.Printf("Cancelled %d chapter job(s)\n", resp.Cancelled)
			return nil
		},
	}
}
