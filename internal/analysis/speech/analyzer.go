// Package speech provides keyword heuristics over recognized caller speech.
// It backs the LLM insight classifier as an always-available fallback.
package speech

import "strings"

// Intent labels what the caller is trying to do.
type Intent string

const (
	IntentGreeting     Intent = "greeting"
	IntentGoodbye      Intent = "goodbye"
	IntentQuestion     Intent = "question"
	IntentComplaint    Intent = "complaint"
	IntentRequest      Intent = "request"
	IntentConfirmation Intent = "confirmation"
	IntentNegation     Intent = "negation"
	IntentThanks       Intent = "thanks"
	IntentOther        Intent = "other"
)

// Sentiment labels the overall tone of an utterance.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// Urgency grades how pressing the caller's matter sounds.
type Urgency string

const (
	UrgencyLow      Urgency = "low"
	UrgencyModerate Urgency = "moderate"
	UrgencyHigh     Urgency = "high"
)

// Decision is the heuristic read of one utterance.
type Decision struct {
	Intent    Intent
	Sentiment Sentiment
	Urgency   Urgency
	Patterns  []string
}

// patternBuckets map pattern names to trigger phrases, checked in order so
// the first matching bucket wins as the primary intent.
var patternBuckets = []struct {
	name    string
	intent  Intent
	phrases []string
}{
	{"goodbye", IntentGoodbye, []string{"goodbye", "bye", "see you", "talk to you later", "have a good day", "hang up"}},
	{"complaint", IntentComplaint, []string{"problem", "issue", "wrong", "broken", "not working", "complaint", "terrible", "awful"}},
	{"thanks", IntentThanks, []string{"thank you", "thanks", "appreciate it", "grateful"}},
	{"question", IntentQuestion, []string{"what", "when", "where", "who", "why", "how", "which", "can you", "could you", "would you"}},
	{"request", IntentRequest, []string{"help", "assist", "support", "need", "want", "please"}},
	{"greeting", IntentGreeting, []string{"hello", "hi ", "hey", "good morning", "good afternoon", "good evening"}},
	{"confirmation", IntentConfirmation, []string{"yes", "yeah", "sure", "okay", "correct", "right", "exactly"}},
	{"negation", IntentNegation, []string{"no ", "nope", "not ", "never", "incorrect"}},
	{"apology", IntentOther, []string{"sorry", "apologize", "excuse me", "pardon"}},
}

var positiveWords = []string{
	"great", "good", "awesome", "amazing", "perfect", "wonderful", "happy",
	"love", "excellent", "fantastic", "thank",
}

var negativeWords = []string{
	"bad", "terrible", "awful", "angry", "upset", "horrible", "hate",
	"frustrated", "annoyed", "broken", "wrong", "problem", "worst",
}

var urgentWords = []string{"urgent", "asap", "immediately", "right now", "emergency", "critical"}

var moderateWords = []string{"soon", "quickly", "fast", "hurry"}

// Analyze scores a cleaned utterance against the keyword buckets.
func Analyze(text string) Decision {
	normalized := strings.ToLower(strings.TrimSpace(text))
	if normalized == "" {
		return Decision{Intent: IntentOther, Sentiment: SentimentNeutral, Urgency: UrgencyLow}
	}
	// Pad so trailing-space phrases like "hi " match at the end of input.
	padded := " " + normalized + " "

	decision := Decision{Intent: IntentOther, Urgency: urgency(padded)}
	for _, bucket := range patternBuckets {
		if containsAny(padded, bucket.phrases) {
			decision.Patterns = append(decision.Patterns, bucket.name)
			if decision.Intent == IntentOther {
				decision.Intent = bucket.intent
			}
		}
	}
	if decision.Intent == IntentOther && strings.HasSuffix(normalized, "?") {
		decision.Intent = IntentQuestion
	}

	decision.Sentiment = sentiment(padded)
	return decision
}

func sentiment(text string) Sentiment {
	positive := countMatches(text, positiveWords)
	negative := countMatches(text, negativeWords)
	switch {
	case positive > negative:
		return SentimentPositive
	case negative > positive:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

func urgency(text string) Urgency {
	if containsAny(text, urgentWords) {
		return UrgencyHigh
	}
	if containsAny(text, moderateWords) {
		return UrgencyModerate
	}
	return UrgencyLow
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}

func countMatches(text string, words []string) int {
	count := 0
	for _, word := range words {
		if strings.Contains(text, word) {
			count++
		}
	}
	return count
}
