package endpoints

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrio/internal/api"
	"github.com/jackzampolin/narrio/internal/books"
	"github.com/jackzampolin/narrio/internal/jobs"
	"github.com/jackzampolin/narrio/internal/svcctx"
)

// DownloadEndpoint handles GET /api/download/{job_id}: the finished
// MP3 as an attachment. Accepts ?token= auth for plain link downloads.
type DownloadEndpoint struct{}

var _ api.Endpoint = (*DownloadEndpoint)(nil)

func (e *DownloadEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/download/{job_id}", e.handler
}

func (e *DownloadEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Download audio
//	@Description	Download the generated MP3 for a completed job
//	@Tags			convert
//	@Produce		audio/mpeg
//	@Param			job_id	path	string	true	"Job ID"
//	@Param			token	query	string	false	"Bearer token"
//	@Success		200	{file}		binary
//	@Failure		400	{object}	ErrorResponse
//	@Failure		403	{object}	ErrorResponse
//	@Failure		404	{object}	ErrorResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/download/{job_id} [get]
func (e *DownloadEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	job, ok := jobForUser(w, r, r.PathValue("job_id"))
	if !ok {
		return
	}

	if job.Status != jobs.StatusCompleted {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Audio not ready (job is %s)", job.Status))
		return
	}

	f, err := os.Open(job.OutputPath)
	if err != nil {
		// Completed but swept by cleanup.
		writeError(w, http.StatusNotFound, "Audio file no longer available")
		return
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	name := books.DownloadName(job.FileName, e.chapterTitle(r, job))
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

// chapterTitle resolves the chapter label for book jobs so downloads
// are named "<document> - <chapter>.mp3".
func (e *DownloadEndpoint) chapterTitle(r *http.Request, job jobs.Job) string {
	if job.BookID == "" {
		return ""
	}
	service := svcctx.BooksFrom(r.Context())
	if service == nil {
		return ""
	}
	book, err := service.Get(job.BookID)
	if err != nil || job.ChapterIndex >= len(book.Chapters) {
		return ""
	}
	ch := book.Chapters[job.ChapterIndex]
	if ch.Label != "" {
		return ch.Label
	}
	return ch.Title
}

func (e *DownloadEndpoint) Command(getServerURL func() string) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Download generated audio for a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())

			tmp, err := os.CreateTemp("", "narrio-download-*.mp3")
			if err != nil {
				return err
			}
			defer tmp.Close()

			name, err := client.GetFile(cmd.Context(), "/api/download/"+args[0], tmp)
			if err != nil {
				os.Remove(tmp.Name())
				return err
			}
			if output == "" {
				if name == "" {
					name = args[0] + ".mp3"
				}
				output = name
			}
			if err := tmp.Close(); err != nil {
				return err
			}
			if err := os.Rename(tmp.Name(), output); err != nil {
				return err
			}
			fmt.Printf("Saved to %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path")
	return cmd
}
