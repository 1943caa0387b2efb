// Package segment extracts text and chapter structure from uploaded documents.
package segment

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// TTSPause is the marker injected between paragraphs. The conversion
// engine splits on it and writes silent MP3 frames to produce a real
// audible pause.
const TTSPause = "TTSPAUSEBREAK"

const (
	// MinWordsPerChapter filters out boundary noise during heading detection.
	MinWordsPerChapter = 100

	// PageChunkSize is the section size used by the last-resort splitter.
	PageChunkSize = 20
)

// Section types for detected chapters.
const (
	SectionChapter     = "chapter"
	SectionPart        = "part"
	SectionFrontMatter = "front_matter"
	SectionBackMatter  = "back_matter"
)

// Detection methods reported alongside extracted chapters.
const (
	MethodTOC          = "toc"
	MethodHeadings     = "headings"
	MethodAutoSections = "auto_sections"
	MethodEPUBSpine    = "epub_spine"
	MethodManual       = "manual"
)

// ErrNoText indicates a document with no extractable text.
var ErrNoText = errors.New("document contains no extractable text")

// ErrUnsupportedType indicates a file extension we cannot handle.
var ErrUnsupportedType = errors.New("unsupported file type")

// Chapter is one detected unit of a book.
type Chapter struct {
	Index         int    `json:"index"`
	SectionType   string `json:"section_type"`
	ChapterNumber int    `json:"chapter_number,omitempty"` // 0 = unnumbered
	Title         string `json:"title"`
	Label         string `json:"chapter_label"`
	Text          string `json:"-"`
	PageStart     int    `json:"page_start,omitempty"` // 1-indexed
	PageEnd       int    `json:"page_end,omitempty"`   // inclusive
	WordCount     int    `json:"word_count"`
}

// ExtractText extracts and cleans the full text of a document,
// dispatching on file extension.
func ExtractText(path string) (string, error) {
	var raw string
	var err error

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		raw, err = ExtractPDF(path)
	case ".epub":
		raw, err = ExtractEPUB(path)
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, filepath.Ext(path))
	}
	if err != nil {
		return "", err
	}
	return CleanForTTS(raw), nil
}

// ExtractChapters detects chapter structure in a document,
// dispatching on file extension. Returns the chapters and the
// detection method used.
func ExtractChapters(path string) ([]Chapter, string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractChaptersPDF(path)
	case ".epub":
		return extractChaptersEPUB(path)
	default:
		return nil, "", fmt.Errorf("%w: chapter detection only supports PDF and EPUB", ErrUnsupportedType)
	}
}

// assignLabels sets the display label for each chapter.
// Only numbered chapters get a label; front/back matter and unnumbered
// sections get an empty label.
func assignLabels(chapters []Chapter) {
	for i := range chapters {
		ch := &chapters[i]
		if ch.SectionType == SectionChapter && ch.ChapterNumber > 0 {
			ch.Label = fmt.Sprintf("Ch. %d", ch.ChapterNumber)
		} else {
			ch.Label = ""
		}
	}
}

// reindex renumbers chapters after filtering.
func reindex(chapters []Chapter) {
	for i := range chapters {
		chapters[i].Index = i
	}
}
