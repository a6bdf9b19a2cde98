// Package insight classifies caller utterances (sentiment, intent, urgency)
// for the dashboard. It prefers an LLM classifier and falls back to keyword
// heuristics whenever the model is unavailable or returns garbage.
package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	analysis "github.com/voxlab/callbot/internal/analysis/speech"
	"github.com/voxlab/callbot/internal/model/conversation"
	"github.com/voxlab/callbot/internal/model/persona"
)

// Config controls the classifier behavior.
type Config struct {
	Enabled      bool
	HistoryLimit int
}

// Insight is the classification of one caller utterance.
type Insight struct {
	Sentiment  analysis.Sentiment `json:"sentiment"`
	Intent     analysis.Intent    `json:"intent"`
	Urgency    analysis.Urgency   `json:"urgency"`
	Confidence float32            `json:"confidence"`
	Reason     string             `json:"reason,omitempty"`
}

// Service runs utterance classification with heuristic fallback.
type Service struct {
	enabled      bool
	classifier   compose.Runnable[map[string]any, *schema.Message]
	fallback     func(text string) analysis.Decision
	historyLimit int
}

// NewService creates the insight service. chatModel may be the same instance
// the reply generator uses; nil disables the LLM path.
func NewService(ctx context.Context, chatModel model.ChatModel, cfg Config) (*Service, error) {
	historyLimit := cfg.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = 6
	}

	svc := &Service{
		enabled:      cfg.Enabled && chatModel != nil,
		fallback:     analysis.Analyze,
		historyLimit: historyLimit,
	}

	if !svc.enabled {
		return svc, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage(classifierSystemPrompt),
		schema.UserMessage(classifierUserPrompt),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile insight classifier chain: %w", err)
	}

	svc.classifier = runnable
	return svc, nil
}

// Enabled returns whether the LLM classifier path is active.
func (s *Service) Enabled() bool {
	return s != nil && s.enabled && s.classifier != nil
}

// Analyze classifies the caller's latest utterance in conversation context.
func (s *Service) Analyze(ctx context.Context, p persona.Persona, transcript []conversation.Turn, userInput string) Insight {
	if !s.Enabled() {
		return s.fallbackInsight(userInput)
	}

	input := map[string]any{
		"persona":      fmt.Sprintf("%s (%s)", p.Name, p.Tone),
		"history":      formatHistory(transcript, s.historyLimit),
		"user_message": strings.TrimSpace(userInput),
	}

	msg, err := s.classifier.Invoke(ctx, input)
	if err != nil {
		log.Printf("[insight] classifier invoke failed, using fallback: %v", err)
		return s.fallbackInsight(userInput)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return s.fallbackInsight(userInput)
	}

	payload, err := parseClassifierOutput(msg.Content)
	if err != nil {
		log.Printf("[insight] classifier output parse failed, using fallback: %v", err)
		return s.fallbackInsight(userInput)
	}

	sentiment, ok := parseSentiment(payload.Sentiment)
	if !ok {
		return s.fallbackInsight(userInput)
	}
	intent, ok := parseIntent(payload.Intent)
	if !ok {
		return s.fallbackInsight(userInput)
	}

	confidence := payload.Confidence
	if confidence <= 0 {
		confidence = 0.6
	}
	if confidence > 1 {
		confidence = 1
	}

	return Insight{
		Sentiment:  sentiment,
		Intent:     intent,
		Urgency:    parseUrgency(payload.Urgency),
		Confidence: confidence,
		Reason:     strings.TrimSpace(payload.Reason),
	}
}

func (s *Service) fallbackInsight(userInput string) Insight {
	decision := s.fallback(userInput)
	confidence := float32(0.3)
	if decision.Intent != analysis.IntentOther {
		confidence = 0.55
	}
	return Insight{
		Sentiment:  decision.Sentiment,
		Intent:     decision.Intent,
		Urgency:    decision.Urgency,
		Confidence: confidence,
		Reason:     "fallback",
	}
}

// parseClassifierOutput extracts the JSON object from the model reply,
// tolerating surrounding prose or code fences.
func parseClassifierOutput(content string) (*classifierPayload, error) {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("missing json object")
	}

	payload := &classifierPayload{}
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func formatHistory(transcript []conversation.Turn, limit int) string {
	if len(transcript) == 0 {
		return "no prior conversation"
	}
	if limit < 1 {
		limit = 1
	}
	start := len(transcript) - limit
	if start < 0 {
		start = 0
	}

	var builder strings.Builder
	for i := start; i < len(transcript); i++ {
		turn := transcript[i]
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		role := "Caller"
		if turn.Role == conversation.RoleBot {
			role = "Assistant"
		}
		builder.WriteString(role)
		builder.WriteString(": ")
		builder.WriteString(content)
		if i < len(transcript)-1 {
			builder.WriteString("\n")
		}
	}
	if builder.Len() == 0 {
		return "no prior conversation"
	}
	return builder.String()
}

func parseSentiment(raw string) (analysis.Sentiment, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "positive":
		return analysis.SentimentPositive, true
	case "negative":
		return analysis.SentimentNegative, true
	case "neutral":
		return analysis.SentimentNeutral, true
	default:
		return "", false
	}
}

func parseIntent(raw string) (analysis.Intent, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "greeting":
		return analysis.IntentGreeting, true
	case "question":
		return analysis.IntentQuestion, true
	case "complaint":
		return analysis.IntentComplaint, true
	case "request":
		return analysis.IntentRequest, true
	case "goodbye":
		return analysis.IntentGoodbye, true
	case "thanks":
		return analysis.IntentThanks, true
	case "other":
		return analysis.IntentOther, true
	default:
		return "", false
	}
}

func parseUrgency(raw string) analysis.Urgency {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return analysis.UrgencyHigh
	case "moderate", "medium":
		return analysis.UrgencyModerate
	default:
		return analysis.UrgencyLow
	}
}

type classifierPayload struct {
	Sentiment  string  `json:"sentiment"`
	Intent     string  `json:"intent"`
	Urgency    string  `json:"urgency"`
	Confidence float32 `json:"confidence"`
	Reason     string  `json:"reason"`
}

const classifierSystemPrompt = "You analyze one utterance from a phone caller talking to an AI assistant. " +
	"Given the assistant persona, the recent conversation and the caller's latest utterance, classify the utterance. " +
	"Return exactly one JSON object with these fields: sentiment (positive/negative/neutral), " +
	"intent (greeting/question/complaint/request/goodbye/thanks/other), urgency (low/moderate/high), " +
	"confidence (number between 0 and 1), reason (one short sentence). Output nothing but the JSON object."

const classifierUserPrompt = "Assistant persona:\n{persona}\n\nRecent conversation:\n{history}\n\nCaller's latest utterance:\n{user_message}\n\nReturn the JSON object."
