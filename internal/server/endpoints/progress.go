package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/narrio/internal/api"
	"github.com/jackzampolin/narrio/internal/jobs"
	"github.com/jackzampolin/narrio/internal/svcctx"
)

// ProgressEvent is one SSE payload on the progress stream.
type ProgressEvent struct {
	JobID    string      `json:"job_id,omitempty"`
	Status   jobs.Status `json:"status,omitempty"`
	Progress int         `json:"progress"`
	Message  string      `json:"message,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// sseHeartbeat keeps proxies from timing out quiet streams.
const sseHeartbeat = 15 * time.Second

// ProgressEndpoint handles GET /api/progress/{job_id} as a
// server-sent-events stream. The stream ends after the terminal
// snapshot is delivered. Auth errors are reported in-stream since
// EventSource clients cannot read error response bodies.
type ProgressEndpoint struct{}

var _ api.Endpoint = (*ProgressEndpoint)(nil)

func (e *ProgressEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/progress/{job_id}", e.handler
}

func (e *ProgressEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Stream job progress
//	@Description	Server-sent events stream of job status, progress percent, and phase message; ends when the job reaches a terminal state
//	@Tags			convert
//	@Produce		text/event-stream
//	@Param			job_id	path	string	true	"Job ID"
//	@Param			token	query	string	false	"Bearer token (EventSource cannot set headers)"
//	@Success		200	{string}	string	"SSE stream"
//	@Router			/api/progress/{job_id} [get]
func (e *ProgressEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(ev ProgressEvent) {
		data, _ := json.Marshal(ev)
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	ident, err := identify(r)
	if err != nil {
		send(ProgressEvent{Error: "invalid or expired token"})
		return
	}

	registry := svcctx.JobsFrom(r.Context())
	if registry == nil {
		send(ProgressEvent{Error: "job registry not initialized"})
		return
	}

	jobID := r.PathValue("job_id")
	job, err := registry.Get(jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			send(ProgressEvent{Error: "Job not found"})
		} else {
			send(ProgressEvent{Error: err.Error()})
		}
		return
	}
	if job.UserID != "" && job.UserID != ident.UserID {
		send(ProgressEvent{Error: "access denied"})
		return
	}

	updates, cancel, err := registry.Subscribe(jobID)
	if err != nil {
		send(ProgressEvent{Error: err.Error()})
		return
	}
	defer cancel()

	snapshot := func() (jobs.Job, bool) {
		j, err := registry.Get(jobID)
		if err != nil {
			// Swept between subscribe and read; nothing more to say.
			return jobs.Job{}, false
		}
		send(ProgressEvent{
			JobID:    j.ID,
			Status:   j.Status,
			Progress: j.Progress,
			Message:  j.Message,
			Error:    j.Error,
		})
		return j, true
	}

	if j, ok := snapshot(); !ok || j.Status.Terminal() {
		return
	}

	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case <-updates:
			j, ok := snapshot()
			if !ok || j.Status.Terminal() {
				return
			}
		}
	}
}

func (e *ProgressEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <job-id>",
		Short: "Follow a job's progress until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			return client.Stream(cmd.Context(), "/api/progress/"+args[0], func(data []byte) error {
				var ev ProgressEvent
				if err := json.Unmarshal(data, &ev); err != nil {
					return nil
				}
				if ev.Error != "" {
					return fmt.Errorf("%s", ev.Error)
				}
				fmt.Printf("%3d%%  %-12s %s\n", ev.Progress, ev.Status, ev.Message)
				return nil
			})
		},
	}
}
