package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrio/internal/api"
	"github.com/jackzampolin/narrio/internal/books"
	"github.com/jackzampolin/narrio/internal/svcctx"
)

// BookEndpoint handles GET /api/book/{book_id}: per-chapter conversion
// status plus the book aggregate. Premium only.
type BookEndpoint struct{}

var _ api.Endpoint = (*BookEndpoint)(nil)

func (e *BookEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/book/{book_id}", e.handler
}

func (e *BookEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Book status
//	@Description	Report per-chapter conversion status for an analyzed book
//	@Tags			books
//	@Produce		json
//	@Param			book_id	path		string	true	"Book ID"
//	@Success		200	{object}	books.BookStatus
//	@Failure		403	{object}	PremiumErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/book/{book_id} [get]
func (e *BookEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	bookID := r.PathValue("book_id")
	if _, _, ok := bookForUser(w, r, bookID); !ok {
		return
	}

	status, err := svcctx.BooksFrom(r.Context()).Status(bookID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (e *BookEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "book <book-id>",
		Short: "Show conversion status for a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp books.BookStatus
			if err := client.Get(cmd.Context(), "/api/book/"+args[0], &resp); err != nil {
				return err
			}
			if api.IsStructuredOutput() {
				return api.Output(resp)
			}
			fmt.Printf("Book:   %s (%s)\n", resp.Title, resp.BookID)
			fmt.Printf("Status: %s (%d/%d chapters)\n", resp.Status, resp.CompletedCount, len(resp.Chapters))
			for _, ch := range resp.Chapters {
				label := ch.Label
				if label == "" {
					label = ch.Title
				}
				fmt.Printf("  [%d] %-40s %s", ch.Index, label, ch.Status)
				if ch.Status == "processing" {
					fmt.Printf(" (%d%%)", ch.Progress)
				}
				fmt.Println()
			}
			return nil
		},
	}
}
