package segment

import (
	"strings"
	"testing"
)

func TestCleanForTTS_StripsFootnoteArtifacts(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "superscript digits",
			in:   "The war ended in 1945.¹² Peace followed.",
			want: "The war ended in 1945. Peace followed.",
		},
		{
			name: "bracketed references",
			in:   "As shown earlier [12] the result holds [1, 3-5].",
			want: "As shown earlier the result holds .",
		},
		{
			name: "glued footnote after punctuation",
			in:   "the city fell.12 The next morning",
			want: "the city fell. The next morning",
		},
		{
			name: "glued footnote after word",
			in:   "as the evidence3 shows",
			want: "as the evidence shows",
		},
		{
			name: "years survive",
			in:   "Born in 1867, died in 1934.",
			want: "Born in 1867, died in 1934.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanForTTS(tt.in); got != tt.want {
				t.Errorf("CleanForTTS(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCleanForTTS_ParagraphPauses(t *testing.T) {
	in := "First paragraph line one\nline two wrapped.\n\nSecond paragraph."
	got := CleanForTTS(in)

	want := "First paragraph line one line two wrapped. " + TTSPause + " Second paragraph."
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}

	segs := SplitSegments(got)
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d: %v", len(segs), segs)
	}
	if segs[0] != "First paragraph line one line two wrapped." {
		t.Errorf("unexpected first segment: %q", segs[0])
	}
}

func TestRejoinLines(t *testing.T) {
	paras := rejoinLines("a\nb\n\n\nc\n")
	if len(paras) != 2 {
		t.Fatalf("expected 2 paragraphs, got %d: %v", len(paras), paras)
	}
	if paras[0] != "a b" || paras[1] != "c" {
		t.Errorf("unexpected paragraphs: %v", paras)
	}
}

func TestStripPauses(t *testing.T) {
	in := "one " + TTSPause + " two  " + TTSPause + " three"
	if got := StripPauses(in); got != "one two three" {
		t.Errorf("StripPauses = %q", got)
	}
}

func TestWordCount_IgnoresPauseMarkers(t *testing.T) {
	text := "one two " + TTSPause + " three"
	if got := WordCount(text); got != 3 {
		t.Errorf("WordCount = %d, want 3", got)
	}
}

func TestSplitSegments_DropsEmpties(t *testing.T) {
	text := TTSPause + " only segment " + TTSPause
	segs := SplitSegments(text)
	if len(segs) != 1 || segs[0] != "only segment" {
		t.Errorf("unexpected segments: %v", segs)
	}
}

func TestCleanForTTS_CollapsesSpaces(t *testing.T) {
	got := CleanForTTS("double  space   here")
	if strings.Contains(got, "  ") {
		t.Errorf("result still contains double spaces: %q", got)
	}
}
