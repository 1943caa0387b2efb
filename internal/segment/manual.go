package segment

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ManualSegment is one user-defined page range.
type ManualSegment struct {
	Name      string `json:"name"`
	StartPage int    `json:"start_page"` // 1-indexed
	EndPage   int    `json:"end_page"`   // inclusive
}

// InvalidSegmentationError reports a user-defined segmentation that
// cannot be applied to the document.
type InvalidSegmentationError struct {
	Reason string
}

func (e *InvalidSegmentationError) Error() string {
	return "invalid segmentation: " + e.Reason
}

const manualSegmentsSchema = `{
	"type": "array",
	"minItems": 1,
	"items": {
		"type": "object",
		"required": ["name", "start_page", "end_page"],
		"properties": {
			"name": {"type": "string", "minLength": 1},
			"start_page": {"type": "integer", "minimum": 1},
			"end_page": {"type": "integer", "minimum": 1}
		}
	}
}`

var manualSchema = func() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("segments.json", strings.NewReader(manualSegmentsSchema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile("segments.json")
}()

// ParseManualSegments validates a JSON segments payload against the
// schema and decodes it.
func ParseManualSegments(data []byte) ([]ManualSegment, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &InvalidSegmentationError{Reason: "segments is not valid JSON"}
	}
	if err := manualSchema.Validate(doc); err != nil {
		return nil, &InvalidSegmentationError{Reason: err.Error()}
	}

	var segs []ManualSegment
	if err := json.Unmarshal(data, &segs); err != nil {
		return nil, &InvalidSegmentationError{Reason: err.Error()}
	}
	return segs, nil
}

// ValidateManualSegments checks user segments against the document:
// page ranges must be in bounds, ordered within each segment, and
// non-overlapping across segments.
func ValidateManualSegments(segs []ManualSegment, pageCount int) error {
	for i, s := range segs {
		if strings.TrimSpace(s.Name) == "" {
			return &InvalidSegmentationError{Reason: fmt.Sprintf("segment %d has no name", i+1)}
		}
		if s.StartPage < 1 || s.EndPage < 1 {
			return &InvalidSegmentationError{Reason: fmt.Sprintf("segment %q: pages are 1-indexed", s.Name)}
		}
		if s.StartPage > s.EndPage {
			return &InvalidSegmentationError{
				Reason: fmt.Sprintf("segment %q: start page %d is after end page %d", s.Name, s.StartPage, s.EndPage),
			}
		}
		if s.EndPage > pageCount {
			return &InvalidSegmentationError{
				Reason: fmt.Sprintf("segment %q: end page %d exceeds document page count %d", s.Name, s.EndPage, pageCount),
			}
		}
	}

	for i := 0; i < len(segs); i++ {
		for j := i + 1; j < len(segs); j++ {
			if segs[i].StartPage <= segs[j].EndPage && segs[j].StartPage <= segs[i].EndPage {
				return &InvalidSegmentationError{
					Reason: fmt.Sprintf("segments %q and %q overlap (pages %d-%d and %d-%d)",
						segs[i].Name, segs[j].Name,
						segs[i].StartPage, segs[i].EndPage,
						segs[j].StartPage, segs[j].EndPage),
				}
			}
		}
	}
	return nil
}

// ManualChapters builds chapters from user-defined page ranges of a
// PDF.
func ManualChapters(path string, segs []ManualSegment) ([]Chapter, error) {
	pages, err := loadPDF(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateManualSegments(segs, len(pages)); err != nil {
		return nil, err
	}

	chapters := make([]Chapter, 0, len(segs))
	for _, s := range segs {
		text := pageRangeText(pages, s.StartPage, s.EndPage)
		chapters = append(chapters, Chapter{
			SectionType: SectionChapter,
			Title:       s.Name,
			Text:        text,
			PageStart:   s.StartPage,
			PageEnd:     s.EndPage,
			WordCount:   WordCount(text),
		})
	}
	reindex(chapters)
	assignLabels(chapters)
	return chapters, nil
}
