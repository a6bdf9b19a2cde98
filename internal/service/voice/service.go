// Package voice prepares text crossing the speech boundary in both
// directions: recognized caller speech coming in, bot replies going out to
// the synthesis engine.
package voice

import (
	"regexp"
	"strings"
)

const DefaultConfidenceThreshold = 0.5

var (
	whitespaceRe   = regexp.MustCompile(`\s+`)
	fillerRe       = regexp.MustCompile(`\b(um|uh|ah|er|hmm)\b`)
	punctuationRe  = regexp.MustCompile(`[^\w\s']`)
	boldRe         = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicRe       = regexp.MustCompile(`\*(.*?)\*`)
	codeRe         = regexp.MustCompile("`(.*?)`")
	sentenceEndRe  = regexp.MustCompile(`([.!?])\s+`)
	abbreviationRe = regexp.MustCompile(`\b(etc|vs|i\.e|e\.g)\.`)
)

// Input is the processed form of one recognized utterance.
type Input struct {
	Original   string  `json:"original"`
	Cleaned    string  `json:"cleaned"`
	Confidence float64 `json:"confidence"`
	Valid      bool    `json:"valid"`
}

// Service applies a fixed confidence threshold to recognized speech.
type Service struct {
	threshold float64
}

// NewService creates a voice service. A non-positive threshold selects the
// default.
func NewService(confidenceThreshold float64) *Service {
	if confidenceThreshold <= 0 {
		confidenceThreshold = DefaultConfidenceThreshold
	}
	return &Service{threshold: confidenceThreshold}
}

// ProcessInput cleans a recognized utterance and judges whether it is usable.
func (s *Service) ProcessInput(text string, confidence float64) Input {
	cleaned := CleanSpeechText(text)
	return Input{
		Original:   text,
		Cleaned:    cleaned,
		Confidence: confidence,
		Valid:      cleaned != "" && confidence >= s.threshold,
	}
}

// FallbackLine picks a clarification prompt matched to how badly
// recognition went.
func (s *Service) FallbackLine(confidence float64) string {
	switch {
	case confidence < 0.3:
		return "I'm having trouble understanding. Could you please speak more clearly?"
	case confidence < 0.6:
		return "I didn't catch that completely. Could you please repeat?"
	default:
		return "I'm sorry, I didn't understand. Could you please rephrase that?"
	}
}

// CleanSpeechText normalizes raw recognizer output: lowercase, filler words
// and stray punctuation removed, whitespace collapsed.
func CleanSpeechText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)
	text = fillerRe.ReplaceAllString(text, "")
	text = punctuationRe.ReplaceAllString(text, "")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// FormatForSpeech rewrites a model reply for the synthesis engine: markdown
// stripped, sentence pauses inserted, abbreviation periods removed so they
// are not read as sentence ends.
func FormatForSpeech(text string) string {
	if text == "" {
		return ""
	}
	text = boldRe.ReplaceAllString(text, "$1")
	text = italicRe.ReplaceAllString(text, "$1")
	text = codeRe.ReplaceAllString(text, "$1")
	text = sentenceEndRe.ReplaceAllString(text, `$1 <break time="0.5s"/> `)
	text = abbreviationRe.ReplaceAllString(text, "$1")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
