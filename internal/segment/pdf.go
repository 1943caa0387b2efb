package segment

import (
	"fmt"
	"math"
	"os"
	"regexp"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PageCount returns the number of pages in a PDF file.
func PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	pageCount, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return pageCount, nil
}

// pdfLine is one visual row of text on a page.
type pdfLine struct {
	text     string
	fontSize float64
	y        float64
}

// pdfPage holds both the plain text of a page and its rows with font
// metrics, which heading detection needs.
type pdfPage struct {
	text  string
	lines []pdfLine
	maxY  float64
}

// loadPDF reads every page of a PDF into memory.
func loadPDF(path string) ([]pdfPage, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	n := r.NumPage()
	if n == 0 {
		return nil, ErrNoText
	}

	pages := make([]pdfPage, 0, n)
	for i := 1; i <= n; i++ {
		pages = append(pages, readPage(r, i))
	}
	return pages, nil
}

// readPage extracts one page. The content parser panics on some
// malformed streams, so a bad page degrades to empty rather than
// killing the whole extraction.
func readPage(r *pdf.Reader, num int) (pg pdfPage) {
	defer func() {
		if recover() != nil {
			pg = pdfPage{}
		}
	}()

	p := r.Page(num)
	if p.V.IsNull() {
		return pdfPage{}
	}

	pg.lines, pg.maxY = groupLines(p.Content().Text)

	if txt, err := p.GetPlainText(nil); err == nil && strings.TrimSpace(txt) != "" {
		pg.text = txt
	} else {
		parts := make([]string, 0, len(pg.lines))
		for _, ln := range pg.lines {
			parts = append(parts, ln.text)
		}
		pg.text = strings.Join(parts, "\n")
	}
	return pg
}

// groupLines buckets positioned text runs into visual rows by their
// vertical coordinate.
func groupLines(texts []pdf.Text) ([]pdfLine, float64) {
	const yTolerance = 2.0

	var lines []pdfLine
	var maxY float64
	var cur strings.Builder
	var curY, curSize float64

	flush := func() {
		s := strings.TrimSpace(cur.String())
		if s != "" {
			lines = append(lines, pdfLine{text: s, fontSize: curSize, y: curY})
		}
		cur.Reset()
		curSize = 0
	}

	for _, t := range texts {
		if t.Y > maxY {
			maxY = t.Y
		}
		if cur.Len() > 0 && math.Abs(t.Y-curY) > yTolerance {
			flush()
		}
		if cur.Len() == 0 {
			curY = t.Y
		}
		cur.WriteString(t.S)
		if t.FontSize > curSize {
			curSize = t.FontSize
		}
	}
	flush()
	return lines, maxY
}

// ExtractPDF extracts the raw text of an entire PDF, pages separated
// by blank lines.
func ExtractPDF(path string) (string, error) {
	pages, err := loadPDF(path)
	if err != nil {
		return "", err
	}

	parts := make([]string, 0, len(pages))
	for _, pg := range pages {
		if t := strings.TrimSpace(pg.text); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", ErrNoText
	}
	return strings.Join(parts, "\n\n"), nil
}

// extractChaptersPDF detects chapter structure in a PDF. It tries the
// embedded outline first, then font-size heading detection, then falls
// back to fixed-size page chunks.
func extractChaptersPDF(path string) ([]Chapter, string, error) {
	pages, err := loadPDF(path)
	if err != nil {
		return nil, "", err
	}

	if bounds := outlineBoundaries(path, len(pages)); len(bounds) >= 2 {
		chapters := buildPageChapters(pages, bounds)
		if len(chapters) >= 2 {
			assignLabels(chapters)
			return chapters, MethodTOC, nil
		}
	}

	if bounds := headingBoundaries(pages); len(bounds) >= 2 {
		chapters := buildPageChapters(pages, bounds)
		if len(chapters) >= 2 {
			assignLabels(chapters)
			return chapters, MethodHeadings, nil
		}
	}

	chapters := chunkPages(pages)
	if len(chapters) == 0 {
		return nil, "", ErrNoText
	}
	assignLabels(chapters)
	return chapters, MethodAutoSections, nil
}

// boundary marks the first page of a detected section.
type boundary struct {
	page        int // 1-indexed
	sectionType string
	number      int
	title       string
}

// outlineBoundaries reads the PDF's embedded outline (bookmarks) and
// converts the top level into section boundaries.
func outlineBoundaries(path string, pageCount int) []boundary {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	bms, err := api.Bookmarks(f, nil)
	if err != nil || len(bms) == 0 {
		return nil
	}

	var bounds []boundary
	for _, bm := range bms {
		title := strings.TrimSpace(bm.Title)
		if title == "" || bm.PageFrom < 1 || bm.PageFrom > pageCount {
			continue
		}
		st, num, cleanTitle := classifyHeading(title, true)
		bounds = append(bounds, boundary{
			page:        bm.PageFrom,
			sectionType: st,
			number:      num,
			title:       cleanTitle,
		})
	}

	sort.SliceStable(bounds, func(i, j int) bool { return bounds[i].page < bounds[j].page })
	return dedupeBoundaries(bounds)
}

var (
	chapterHeadingRe = regexp.MustCompile(`(?i)^chapter\s+([A-Za-z0-9-]+)\.?:?\s*(.*)$`)
	partHeadingRe    = regexp.MustCompile(`(?i)^part\s+([A-Za-z0-9-]+)\.?:?\s*(.*)$`)
	bareNumberRe     = regexp.MustCompile(`^([0-9]{1,3}|[IVXLCivxlc]+)\.?$`)
)

var frontMatterTitles = map[string]bool{
	"introduction": true, "preface": true, "foreword": true,
	"prologue": true, "dedication": true,
	"acknowledgments": true, "acknowledgements": true,
}

var backMatterTitles = map[string]bool{
	"epilogue": true, "afterword": true, "conclusion": true,
	"appendix": true, "notes": true, "bibliography": true,
	"references": true, "index": true, "glossary": true,
	"about the author": true,
}

// classifyHeading interprets a heading line as a section boundary.
// allowGeneric permits unnumbered headings to pass as untitled
// chapters; heading detection restricts that to oversized fonts while
// outline entries are always trusted.
func classifyHeading(line string, allowGeneric bool) (sectionType string, number int, title string) {
	line = strings.TrimSpace(line)
	lower := strings.ToLower(strings.Trim(line, ".:"))

	if frontMatterTitles[lower] {
		return SectionFrontMatter, 0, line
	}
	if backMatterTitles[lower] {
		return SectionBackMatter, 0, line
	}
	if m := partHeadingRe.FindStringSubmatch(line); m != nil {
		title := strings.TrimSpace(m[2])
		if title == "" {
			title = line
		}
		return SectionPart, parseNumber(m[1]), title
	}
	if m := chapterHeadingRe.FindStringSubmatch(line); m != nil {
		num := parseNumber(m[1])
		title := strings.TrimSpace(m[2])
		if title == "" {
			if num > 0 {
				title = fmt.Sprintf("Chapter %d", num)
			} else {
				title = line
			}
		}
		return SectionChapter, num, title
	}
	if m := bareNumberRe.FindStringSubmatch(line); m != nil {
		if num := parseNumber(m[1]); num > 0 {
			return SectionChapter, num, fmt.Sprintf("Chapter %d", num)
		}
	}
	if allowGeneric {
		return SectionChapter, 0, line
	}
	return "", 0, ""
}

// headingBoundaries detects section starts from oversized text near
// the top of a page. A heading is a short row whose font is at least
// 25% larger than the document median (40% for headings that carry no
// chapter keyword).
func headingBoundaries(pages []pdfPage) []boundary {
	median := medianFontSize(pages)
	if median <= 0 {
		return nil
	}
	threshold := median * 1.25
	genericThreshold := median * 1.4

	var bounds []boundary
	for i, pg := range pages {
		for _, ln := range pg.lines {
			if ln.fontSize < threshold {
				continue
			}
			if pg.maxY > 0 && ln.y < pg.maxY*0.5 {
				continue // headings live in the top half of the page
			}
			if len(strings.Fields(ln.text)) > 8 {
				continue
			}
			st, num, title := classifyHeading(ln.text, ln.fontSize >= genericThreshold)
			if st == "" {
				continue
			}
			bounds = append(bounds, boundary{page: i + 1, sectionType: st, number: num, title: title})
			break
		}
	}
	return dedupeBoundaries(bounds)
}

func medianFontSize(pages []pdfPage) float64 {
	var sizes []float64
	for _, pg := range pages {
		for _, ln := range pg.lines {
			if ln.fontSize > 0 {
				sizes = append(sizes, ln.fontSize)
			}
		}
	}
	if len(sizes) == 0 {
		return 0
	}
	sort.Float64s(sizes)
	return sizes[len(sizes)/2]
}

// dedupeBoundaries drops boundaries that land on the same page.
func dedupeBoundaries(bounds []boundary) []boundary {
	out := bounds[:0]
	lastPage := 0
	for _, b := range bounds {
		if b.page == lastPage {
			continue
		}
		out = append(out, b)
		lastPage = b.page
	}
	return out
}

// buildPageChapters turns boundaries into chapters with page-range
// text. Pages before the first boundary become front matter, and
// undersized sections are merged into their predecessor.
func buildPageChapters(pages []pdfPage, bounds []boundary) []Chapter {
	var chapters []Chapter

	if len(bounds) > 0 && bounds[0].page > 1 {
		text := pageRangeText(pages, 1, bounds[0].page-1)
		if wc := WordCount(text); wc >= MinWordsPerChapter {
			chapters = append(chapters, Chapter{
				SectionType: SectionFrontMatter,
				Title:       "Front Matter",
				Text:        text,
				PageStart:   1,
				PageEnd:     bounds[0].page - 1,
				WordCount:   wc,
			})
		}
	}

	for i, b := range bounds {
		end := len(pages)
		if i+1 < len(bounds) {
			end = bounds[i+1].page - 1
		}
		text := pageRangeText(pages, b.page, end)
		wc := WordCount(text)

		// Too small to stand alone: extend the previous chapter.
		if wc < MinWordsPerChapter && len(chapters) > 0 {
			prev := &chapters[len(chapters)-1]
			prev.Text = prev.Text + "\n\n" + text
			prev.PageEnd = end
			prev.WordCount = WordCount(prev.Text)
			continue
		}

		chapters = append(chapters, Chapter{
			SectionType:   b.sectionType,
			ChapterNumber: b.number,
			Title:         b.title,
			Text:          text,
			PageStart:     b.page,
			PageEnd:       end,
			WordCount:     wc,
		})
	}

	reindex(chapters)
	return chapters
}

// chunkPages is the last-resort splitter: fixed-size page sections.
func chunkPages(pages []pdfPage) []Chapter {
	var chapters []Chapter
	for start := 1; start <= len(pages); start += PageChunkSize {
		end := start + PageChunkSize - 1
		if end > len(pages) {
			end = len(pages)
		}
		text := pageRangeText(pages, start, end)
		wc := WordCount(text)
		if wc == 0 {
			continue
		}
		chapters = append(chapters, Chapter{
			SectionType: SectionChapter,
			Title:       fmt.Sprintf("Pages %d-%d", start, end),
			Text:        text,
			PageStart:   start,
			PageEnd:     end,
			WordCount:   wc,
		})
	}
	reindex(chapters)
	return chapters
}

// pageRangeText joins the text of pages start..end (1-indexed,
// inclusive).
func pageRangeText(pages []pdfPage, start, end int) string {
	var parts []string
	for i := start; i <= end && i <= len(pages); i++ {
		if t := strings.TrimSpace(pages[i-1].text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n\n")
}
