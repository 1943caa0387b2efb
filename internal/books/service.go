package books

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/narrio/internal/config"
	"github.com/jackzampolin/narrio/internal/home"
	"github.com/jackzampolin/narrio/internal/jobs"
	"github.com/jackzampolin/narrio/internal/segment"
)

// ErrBookNotFound indicates an unknown book ID.
var ErrBookNotFound = errors.New("book not found")

// ErrChapterNotFound indicates a chapter index outside the book.
var ErrChapterNotFound = errors.New("chapter not found")

// ErrWordLimit indicates a book too large to convert in full.
var ErrWordLimit = errors.New("book exceeds the total word limit")

const bookMetaFile = "book.json"

// Service owns analyzed books: chapter metadata in memory (persisted
// to the cache directory) and chapter text on disk.
type Service struct {
	jobs   *jobs.Registry
	runner *jobs.Runner
	home   *home.Dir
	config *config.Manager
	logger *slog.Logger

	mu    sync.RWMutex
	books map[string]*Book
}

// NewService creates a book service.
func NewService(jobReg *jobs.Registry, runner *jobs.Runner, homeDir *home.Dir, cfg *config.Manager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		jobs:   jobReg,
		runner: runner,
		home:   homeDir,
		config: cfg,
		logger: logger,
		books:  make(map[string]*Book),
	}
}

// AnalyzeParams describes a document to analyze.
type AnalyzeParams struct {
	UserID   string
	FilePath string
	FileName string
	Provider string
	Voice    string
	Speed    float64

	// ManualSegments overrides automatic chapter detection.
	ManualSegments []segment.ManualSegment
}

// Analyze detects chapter structure, cleans and caches each chapter's
// text, and registers the book.
func (s *Service) Analyze(params AnalyzeParams) (*Book, error) {
	var chapters []segment.Chapter
	var method string
	var err error

	if len(params.ManualSegments) > 0 {
		chapters, err = segment.ManualChapters(params.FilePath, params.ManualSegments)
		method = segment.MethodManual
	} else {
		chapters, method, err = segment.ExtractChapters(params.FilePath)
	}
	if err != nil {
		return nil, err
	}

	if max := s.config.Get().Limits.MaxChapters; max > 0 && len(chapters) > max {
		s.logger.Warn("chapter count capped", "detected", len(chapters), "max", max)
		chapters = chapters[:max]
	}

	book := &Book{
		ID:              uuid.NewString(),
		UserID:          params.UserID,
		FileName:        params.FileName,
		Title:           bookTitle(params.FileName),
		Provider:        params.Provider,
		Voice:           params.Voice,
		Speed:           params.Speed,
		DetectionMethod: method,
		CreatedAt:       time.Now().UTC(),
		jobIDs:          make(map[int]string),
	}

	if err := s.home.EnsureBookCacheDir(book.ID); err != nil {
		return nil, fmt.Errorf("failed to create book cache: %w", err)
	}

	for i, ch := range chapters {
		text := segment.CleanForTTS(ch.Text)
		words := segment.WordCount(text)
		if err := os.WriteFile(s.home.ChapterTextPath(book.ID, i), []byte(text), 0o644); err != nil {
			return nil, fmt.Errorf("failed to cache chapter text: %w", err)
		}
		book.Chapters = append(book.Chapters, ChapterRef{
			Index:         i,
			SectionType:   ch.SectionType,
			ChapterNumber: ch.ChapterNumber,
			Title:         ch.Title,
			Label:         ch.Label,
			WordCount:     words,
			PageStart:     ch.PageStart,
			PageEnd:       ch.PageEnd,
			EstimatedMin:  estimateMinutes(words),
		})
		book.TotalWords += words
	}

	if err := s.saveMeta(book); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.books[book.ID] = book
	s.mu.Unlock()

	s.logger.Info("book analyzed", "id", book.ID, "file", book.FileName,
		"chapters", len(book.Chapters), "method", method, "words", book.TotalWords)
	return book, nil
}

// Get returns a book by ID, falling back to cached metadata when the
// book is not in memory (post-restart).
func (s *Service) Get(bookID string) (*Book, error) {
	s.mu.RLock()
	book, ok := s.books[bookID]
	s.mu.RUnlock()
	if ok {
		return book, nil
	}
	return s.loadMeta(bookID)
}

// StartChapter queues a conversion job for one chapter. A queued or
// processing chapter returns its existing job instead of starting a
// duplicate; completed, failed, and cancelled chapters get a fresh job
// that replaces the old mapping.
func (s *Service) StartChapter(ctx context.Context, bookID string, chapterIdx int) (jobs.Job, error) {
	book, err := s.Get(bookID)
	if err != nil {
		return jobs.Job{}, err
	}
	if chapterIdx < 0 || chapterIdx >= len(book.Chapters) {
		return jobs.Job{}, ErrChapterNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if jobID, ok := book.jobIDs[chapterIdx]; ok {
		job, err := s.jobs.Get(jobID)
		if err == nil && (job.Status == jobs.StatusQueued || job.Status == jobs.StatusProcessing) {
			return job, nil
		}
	}

	id := uuid.NewString()
	job := s.jobs.Create(jobs.CreateParams{
		ID:           id,
		UserID:       book.UserID,
		FileName:     book.FileName,
		BookID:       book.ID,
		ChapterIndex: chapterIdx,
		Provider:     book.Provider,
		Voice:        book.Voice,
		Speed:        book.Speed,
		TextPath:     s.home.ChapterTextPath(book.ID, chapterIdx),
		OutputPath:   s.home.AudioPath(id),
	})
	book.jobIDs[chapterIdx] = job.ID

	s.runner.Launch(ctx, job.ID)
	return job, nil
}

// StartAll queues every unconverted chapter of a book. Chapters with a
// live or completed job are skipped. Books past the total word limit
// are refused.
func (s *Service) StartAll(ctx context.Context, bookID string) ([]jobs.Job, error) {
	book, err := s.Get(bookID)
	if err != nil {
		return nil, err
	}

	if limit := s.config.Get().Limits.MaxTotalWords; limit > 0 && book.TotalWords > limit {
		return nil, fmt.Errorf("%w: %d words, limit %d", ErrWordLimit, book.TotalWords, limit)
	}

	var started []jobs.Job
	for idx := range book.Chapters {
		if s.chapterHasLiveJob(book, idx) {
			continue
		}
		job, err := s.StartChapter(ctx, bookID, idx)
		if err != nil {
			return started, err
		}
		started = append(started, job)
	}

	s.logger.Info("book conversion started", "id", book.ID, "chapters_queued", len(started))
	return started, nil
}

func (s *Service) chapterHasLiveJob(book *Book, idx int) bool {
	s.mu.RLock()
	jobID, ok := book.jobIDs[idx]
	s.mu.RUnlock()
	if !ok {
		return false
	}
	job, err := s.jobs.Get(jobID)
	return err == nil && job.Status != jobs.StatusError && job.Status != jobs.StatusCancelled
}

// CancelAll requests cancellation of every live job in a book and
// returns how many jobs were asked to stop.
func (s *Service) CancelAll(bookID string) (int, error) {
	if _, err := s.Get(bookID); err != nil {
		return 0, err
	}

	cancelled := 0
	for _, job := range s.jobs.ListByBook(bookID) {
		first, err := s.jobs.RequestCancel(job.ID)
		if err != nil {
			continue
		}
		if first {
			cancelled++
		}
	}
	s.logger.Info("book conversion cancelled", "id", bookID, "jobs", cancelled)
	return cancelled, nil
}

// Status aggregates live chapter states for a book.
func (s *Service) Status(bookID string) (*BookStatus, error) {
	book, err := s.Get(bookID)
	if err != nil {
		return nil, err
	}

	status := &BookStatus{
		BookID:          book.ID,
		Title:           book.Title,
		FileName:        book.FileName,
		DetectionMethod: book.DetectionMethod,
		TotalWords:      book.TotalWords,
	}

	anyLive := false
	for idx, ref := range book.Chapters {
		cs := ChapterStatus{ChapterRef: ref, Status: StatusNotStarted}

		s.mu.RLock()
		jobID, ok := book.jobIDs[idx]
		s.mu.RUnlock()
		if ok {
			if job, err := s.jobs.Get(jobID); err == nil {
				cs.Status = job.Status
				cs.Progress = job.Progress
				cs.JobID = job.ID
				cs.Error = job.Error
			}
		}

		if cs.Status == jobs.StatusCompleted {
			status.CompletedCount++
		}
		if cs.Status == jobs.StatusQueued || cs.Status == jobs.StatusProcessing {
			anyLive = true
		}
		status.Chapters = append(status.Chapters, cs)
	}

	switch {
	case anyLive:
		status.Status = string(jobs.StatusProcessing)
	case status.CompletedCount == len(book.Chapters) && len(book.Chapters) > 0:
		status.Status = string(jobs.StatusCompleted)
	default:
		status.Status = "idle"
	}
	return status, nil
}

// Remove drops a book and its cached text. Live jobs are not touched.
func (s *Service) Remove(bookID string) error {
	s.mu.Lock()
	delete(s.books, bookID)
	s.mu.Unlock()
	return os.RemoveAll(s.home.BookCacheDir(bookID))
}

// bookMeta is the persisted form of a Book. Ownership rides along
// even though API responses omit it.
type bookMeta struct {
	Book
	UserID string `json:"user_id,omitempty"`
}

func (s *Service) saveMeta(book *Book) error {
	data, err := json.MarshalIndent(bookMeta{Book: *book, UserID: book.UserID}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode book metadata: %w", err)
	}
	path := filepath.Join(s.home.BookCacheDir(book.ID), bookMetaFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write book metadata: %w", err)
	}
	return nil
}

func (s *Service) loadMeta(bookID string) (*Book, error) {
	path := filepath.Join(s.home.BookCacheDir(bookID), bookMetaFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("failed to read book metadata: %w", err)
	}

	var meta bookMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("failed to decode book metadata: %w", err)
	}
	book := meta.Book
	book.UserID = meta.UserID
	book.ID = bookID
	book.jobIDs = make(map[int]string)

	s.mu.Lock()
	s.books[bookID] = &book
	s.mu.Unlock()
	return &book, nil
}

// bookTitle derives a display title from the uploaded file name.
func bookTitle(fileName string) string {
	base := filepath.Base(fileName)
	if idx := len(base) - len(filepath.Ext(base)); idx > 0 {
		base = base[:idx]
	}
	return base
}

// estimateMinutes converts a word count to narration minutes.
func estimateMinutes(words int) float64 {
	return float64(int(float64(words)/150*10+0.5)) / 10
}
