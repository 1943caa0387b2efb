package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackzampolin/narrio/internal/auth"
	"github.com/jackzampolin/narrio/internal/books"
	"github.com/jackzampolin/narrio/internal/home"
	"github.com/jackzampolin/narrio/internal/jobs"
	"github.com/jackzampolin/narrio/internal/svcctx"
)

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// PremiumErrorResponse is returned when an operation needs a premium
// account, so clients can show an upgrade prompt instead of a generic
// failure.
type PremiumErrorResponse struct {
	Error           string `json:"error"`
	RequiresPremium bool   `json:"requiresPremium"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writePremiumRequired writes the upgrade-required error response.
func writePremiumRequired(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusForbidden, PremiumErrorResponse{
		Error:           msg,
		RequiresPremium: true,
	})
}

// identify resolves the caller's identity from the request token.
// When auth is disabled every caller is the anonymous premium user.
// When auth is enabled, a missing token yields a free anonymous
// identity; only an invalid token is an error.
func identify(r *http.Request) (auth.Identity, error) {
	verifier := svcctx.AuthFrom(r.Context())
	if verifier == nil || !verifier.Enabled() {
		return auth.Anonymous, nil
	}

	token := auth.TokenFromRequest(r)
	if token == "" {
		return auth.Identity{}, nil
	}
	return verifier.Verify(r.Context(), token)
}

// requireIdentity resolves the caller's identity and writes a 401 on
// token verification failure. The bool reports whether the request may
// proceed.
func requireIdentity(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, err := identify(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
		return auth.Identity{}, false
	}
	return id, true
}

// requirePremium gates an endpoint to premium accounts.
func requirePremium(w http.ResponseWriter, r *http.Request) (auth.Identity, bool) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return auth.Identity{}, false
	}
	if !id.Premium {
		writePremiumRequired(w, "This feature requires a premium subscription.")
		return auth.Identity{}, false
	}
	return id, true
}

// bookForUser loads a book and checks ownership, mirroring jobForUser.
// Premium gating happens first since all book endpoints are premium.
func bookForUser(w http.ResponseWriter, r *http.Request, bookID string) (*books.Book, auth.Identity, bool) {
	ident, ok := requirePremium(w, r)
	if !ok {
		return nil, auth.Identity{}, false
	}

	service := svcctx.BooksFrom(r.Context())
	if service == nil {
		writeError(w, http.StatusServiceUnavailable, "book service not initialized")
		return nil, auth.Identity{}, false
	}

	book, err := service.Get(bookID)
	if err != nil {
		if errors.Is(err, books.ErrBookNotFound) {
			writeError(w, http.StatusNotFound, "Book not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return nil, auth.Identity{}, false
	}

	if book.UserID != "" && book.UserID != ident.UserID {
		writeError(w, http.StatusForbidden, "access denied")
		return nil, auth.Identity{}, false
	}
	return book, ident, true
}

// Multipart parse limit. Larger files spill to disk.
const maxUploadMemory = 64 << 20 // 64MB

// saveUpload parses the multipart form and writes the "file" field to
// the uploads directory keyed by id. Returns the saved path and the
// original filename.
func saveUpload(r *http.Request, dir *home.Dir, id string) (string, string, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return "", "", fmt.Errorf("failed to parse form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", "", errors.New("no file uploaded")
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".pdf" && ext != ".epub" {
		return "", "", fmt.Errorf("unsupported file type %q (expected .pdf or .epub)", ext)
	}

	path := dir.UploadPath(id, ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", "", fmt.Errorf("failed to save upload: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		os.Remove(path)
		return "", "", fmt.Errorf("failed to save upload: %w", err)
	}
	return path, header.Filename, nil
}

// jobForUser loads a job and checks ownership. Jobs created without a
// user ID are open to any caller; owned jobs are only visible to their
// creator.
func jobForUser(w http.ResponseWriter, r *http.Request, jobID string) (jobs.Job, bool) {
	id, ok := requireIdentity(w, r)
	if !ok {
		return jobs.Job{}, false
	}

	registry := svcctx.JobsFrom(r.Context())
	if registry == nil {
		writeError(w, http.StatusServiceUnavailable, "job registry not initialized")
		return jobs.Job{}, false
	}

	job, err := registry.Get(jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Job not found")
		} else {
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return jobs.Job{}, false
	}

	if job.UserID != "" && job.UserID != id.UserID {
		writeError(w, http.StatusForbidden, "access denied")
		return jobs.Job{}, false
	}
	return job, true
}
