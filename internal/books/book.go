// Package books coordinates multi-chapter conversions: analyzing a
// document into chapters, caching chapter text, and fanning chapter
// jobs out to the conversion runner.
package books

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackzampolin/narrio/internal/jobs"
)

// ChapterRef is chapter metadata kept with a book. The chapter text
// itself lives in the cache directory.
type ChapterRef struct {
	Index         int     `json:"index"`
	SectionType   string  `json:"section_type"`
	ChapterNumber int     `json:"chapter_number,omitempty"`
	Title         string  `json:"title"`
	Label         string  `json:"chapter_label"`
	WordCount     int     `json:"word_count"`
	PageStart     int     `json:"page_start,omitempty"`
	PageEnd       int     `json:"page_end,omitempty"`
	EstimatedMin  float64 `json:"estimated_minutes"`
}

// Book is an analyzed document with its chapter breakdown.
type Book struct {
	ID              string       `json:"book_id"`
	UserID          string       `json:"-"`
	FileName        string       `json:"filename"`
	Title           string       `json:"title"`
	Provider        string       `json:"provider"`
	Voice           string       `json:"voice"`
	Speed           float64      `json:"speed"`
	DetectionMethod string       `json:"detection_method"`
	Chapters        []ChapterRef `json:"chapters"`
	TotalWords      int          `json:"total_words"`
	CreatedAt       time.Time    `json:"created_at"`

	// jobIDs maps chapter index to the current conversion job.
	// Rebuilt at runtime, not persisted.
	jobIDs map[int]string
}

// ChapterStatus is the live state of one chapter.
type ChapterStatus struct {
	ChapterRef
	Status   jobs.Status `json:"status"`
	Progress int         `json:"progress"`
	JobID    string      `json:"job_id,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// StatusNotStarted marks a chapter with no conversion job yet.
const StatusNotStarted jobs.Status = "not_started"

// BookStatus aggregates chapter states for the status endpoint.
type BookStatus struct {
	BookID          string          `json:"book_id"`
	Title           string          `json:"title"`
	FileName        string          `json:"filename"`
	DetectionMethod string          `json:"detection_method"`
	Status          string          `json:"status"`
	Chapters        []ChapterStatus `json:"chapters"`
	CompletedCount  int             `json:"completed_count"`
	TotalWords      int             `json:"total_words"`
}

var unsafeTitleChars = regexp.MustCompile(`[^\w\s-]`)

// DownloadName builds the audio filename offered to the client:
// the uploaded base name plus a sanitized chapter title.
func DownloadName(fileName, chapterTitle string) string {
	base := fileName
	if idx := strings.LastIndex(base, "."); idx > 0 {
		base = base[:idx]
	}

	title := unsafeTitleChars.ReplaceAllString(chapterTitle, "")
	title = strings.TrimSpace(title)
	if len(title) > 50 {
		title = strings.TrimSpace(title[:50])
	}
	if title == "" {
		return base + ".mp3"
	}
	return fmt.Sprintf("%s - %s.mp3", base, title)
}
