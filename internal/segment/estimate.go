package segment

import "math"

// Narration and synthesis throughput used for estimates.
const (
	wordsPerAudioMinute      = 150
	wordsPerProcessingMinute = 2000
)

// Estimate summarizes a document before conversion.
type Estimate struct {
	WordCount                  int     `json:"word_count"`
	PageCount                  int     `json:"page_count,omitempty"`
	EstimatedAudioMinutes      float64 `json:"estimated_audio_minutes"`
	EstimatedProcessingMinutes float64 `json:"estimated_processing_minutes"`
}

// EstimateText computes conversion estimates from cleaned text.
func EstimateText(text string) Estimate {
	words := WordCount(text)
	return Estimate{
		WordCount:                  words,
		EstimatedAudioMinutes:      round1(float64(words) / wordsPerAudioMinute),
		EstimatedProcessingMinutes: round1(float64(words) / wordsPerProcessingMinute),
	}
}

// EstimateFile extracts a document and computes conversion estimates.
// Page count is set for PDFs only.
func EstimateFile(path string) (Estimate, error) {
	text, err := ExtractText(path)
	if err != nil {
		return Estimate{}, err
	}
	est := EstimateText(text)
	if n, err := PageCount(path); err == nil {
		est.PageCount = n
	}
	return est, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
