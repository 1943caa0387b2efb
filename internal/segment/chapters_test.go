package segment

import (
	"strings"
	"testing"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"7", 7},
		{"12.", 12},
		{"IV", 4},
		{"xiv", 14},
		{"Three", 3},
		{"twenty-one", 21},
		{"notanumber", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseNumber(tt.in); got != tt.want {
			t.Errorf("parseNumber(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestClassifyHeading(t *testing.T) {
	tests := []struct {
		line         string
		allowGeneric bool
		wantType     string
		wantNum      int
		wantTitle    string
	}{
		{"Chapter 3: The Long Road", false, SectionChapter, 3, "The Long Road"},
		{"CHAPTER TWELVE", false, SectionChapter, 12, "Chapter 12"},
		{"Chapter IV", false, SectionChapter, 4, "Chapter 4"},
		{"Part II", false, SectionPart, 2, "Part II"},
		{"Introduction", false, SectionFrontMatter, 0, "Introduction"},
		{"Epilogue", false, SectionBackMatter, 0, "Epilogue"},
		{"7", false, SectionChapter, 7, "Chapter 7"},
		{"Some Ordinary Sentence", false, "", 0, ""},
		{"A Dramatic Title", true, SectionChapter, 0, "A Dramatic Title"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			st, num, title := classifyHeading(tt.line, tt.allowGeneric)
			if st != tt.wantType || num != tt.wantNum || title != tt.wantTitle {
				t.Errorf("classifyHeading(%q, %v) = (%q, %d, %q), want (%q, %d, %q)",
					tt.line, tt.allowGeneric, st, num, title, tt.wantType, tt.wantNum, tt.wantTitle)
			}
		})
	}
}

// fakePage builds a synthetic page of body text with an optional
// oversized heading at the top.
func fakePage(heading string, headingSize float64, bodyWords int) pdfPage {
	body := strings.TrimSpace(strings.Repeat("word ", bodyWords))
	pg := pdfPage{maxY: 800}
	if heading != "" {
		pg.lines = append(pg.lines, pdfLine{text: heading, fontSize: headingSize, y: 760})
	}
	pg.lines = append(pg.lines, pdfLine{text: body, fontSize: 10, y: 400})
	if heading != "" {
		pg.text = heading + "\n" + body
	} else {
		pg.text = body
	}
	return pg
}

func TestHeadingBoundaries(t *testing.T) {
	pages := []pdfPage{
		fakePage("", 0, 150), // front matter
		fakePage("Chapter 1", 18, 150),
		fakePage("", 0, 150),
		fakePage("Chapter 2: The Return", 18, 150),
		fakePage("Epilogue", 18, 150),
	}

	bounds := headingBoundaries(pages)
	if len(bounds) != 3 {
		t.Fatalf("expected 3 boundaries, got %d: %+v", len(bounds), bounds)
	}
	if bounds[0].page != 2 || bounds[0].number != 1 {
		t.Errorf("unexpected first boundary: %+v", bounds[0])
	}
	if bounds[1].page != 4 || bounds[1].title != "The Return" {
		t.Errorf("unexpected second boundary: %+v", bounds[1])
	}
	if bounds[2].sectionType != SectionBackMatter {
		t.Errorf("expected back matter, got %+v", bounds[2])
	}
}

func TestHeadingBoundaries_IgnoresBodySizedText(t *testing.T) {
	pages := []pdfPage{
		fakePage("Chapter 1", 10, 150), // same size as body, not a heading
		fakePage("", 0, 150),
	}
	if bounds := headingBoundaries(pages); len(bounds) != 0 {
		t.Errorf("expected no boundaries, got %+v", bounds)
	}
}

func TestBuildPageChapters(t *testing.T) {
	pages := []pdfPage{
		fakePage("", 0, 200), // front matter
		fakePage("Chapter 1", 18, 200),
		fakePage("", 0, 200),
		fakePage("Chapter 2", 18, 200),
	}
	bounds := []boundary{
		{page: 2, sectionType: SectionChapter, number: 1, title: "Chapter 1"},
		{page: 4, sectionType: SectionChapter, number: 2, title: "Chapter 2"},
	}

	chapters := buildPageChapters(pages, bounds)
	if len(chapters) != 3 {
		t.Fatalf("expected 3 chapters, got %d", len(chapters))
	}

	if chapters[0].SectionType != SectionFrontMatter || chapters[0].PageEnd != 1 {
		t.Errorf("unexpected front matter: %+v", chapters[0])
	}
	if chapters[1].PageStart != 2 || chapters[1].PageEnd != 3 {
		t.Errorf("chapter 1 pages = %d-%d, want 2-3", chapters[1].PageStart, chapters[1].PageEnd)
	}
	if chapters[2].PageStart != 4 || chapters[2].PageEnd != 4 {
		t.Errorf("chapter 2 pages = %d-%d, want 4-4", chapters[2].PageStart, chapters[2].PageEnd)
	}
	for i, ch := range chapters {
		if ch.Index != i {
			t.Errorf("chapter %d has index %d", i, ch.Index)
		}
	}
}

func TestBuildPageChapters_MergesUndersized(t *testing.T) {
	pages := []pdfPage{
		fakePage("Chapter 1", 18, 200),
		fakePage("Chapter 2", 18, 10), // too short to stand alone
		fakePage("", 0, 5),
	}
	bounds := []boundary{
		{page: 1, sectionType: SectionChapter, number: 1, title: "Chapter 1"},
		{page: 2, sectionType: SectionChapter, number: 2, title: "Chapter 2"},
	}

	chapters := buildPageChapters(pages, bounds)
	if len(chapters) != 1 {
		t.Fatalf("expected merged single chapter, got %d", len(chapters))
	}
	if chapters[0].PageEnd != 3 {
		t.Errorf("merged chapter should span to page 3, got %d", chapters[0].PageEnd)
	}
}

func TestChunkPages(t *testing.T) {
	pages := make([]pdfPage, 45)
	for i := range pages {
		pages[i] = fakePage("", 0, 50)
	}

	chapters := chunkPages(pages)
	if len(chapters) != 3 {
		t.Fatalf("expected 3 chunks for 45 pages, got %d", len(chapters))
	}
	if chapters[0].PageStart != 1 || chapters[0].PageEnd != 20 {
		t.Errorf("first chunk pages = %d-%d", chapters[0].PageStart, chapters[0].PageEnd)
	}
	if chapters[2].PageStart != 41 || chapters[2].PageEnd != 45 {
		t.Errorf("last chunk pages = %d-%d", chapters[2].PageStart, chapters[2].PageEnd)
	}
	if chapters[1].Title != "Pages 21-40" {
		t.Errorf("unexpected chunk title %q", chapters[1].Title)
	}
}

func TestAssignLabels(t *testing.T) {
	chapters := []Chapter{
		{SectionType: SectionFrontMatter, Title: "Introduction"},
		{SectionType: SectionChapter, ChapterNumber: 1, Title: "Beginnings"},
		{SectionType: SectionChapter, Title: "Untitled"},
		{SectionType: SectionBackMatter, Title: "Epilogue"},
	}
	assignLabels(chapters)

	want := []string{"", "Ch. 1", "", ""}
	for i, ch := range chapters {
		if ch.Label != want[i] {
			t.Errorf("chapter %d label = %q, want %q", i, ch.Label, want[i])
		}
	}
}

func TestExtractText_UnsupportedType(t *testing.T) {
	if _, err := ExtractText("book.txt"); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}
