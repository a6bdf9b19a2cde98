package insight

import (
	"context"
	"testing"

	analysis "github.com/voxlab/callbot/internal/analysis/speech"
	"github.com/voxlab/callbot/internal/model/conversation"
	"github.com/voxlab/callbot/internal/model/persona"
)

func TestAnalyzeFallsBackWithoutModel(t *testing.T) {
	svc, err := NewService(context.Background(), nil, Config{Enabled: true})
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	if svc.Enabled() {
		t.Fatal("service must not report enabled without a chat model")
	}

	got := svc.Analyze(context.Background(), persona.Default(), nil, "my order is broken and I am upset")
	if got.Intent != analysis.IntentComplaint {
		t.Fatalf("expected complaint intent, got %s", got.Intent)
	}
	if got.Sentiment != analysis.SentimentNegative {
		t.Fatalf("expected negative sentiment, got %s", got.Sentiment)
	}
	if got.Reason != "fallback" {
		t.Fatalf("expected fallback reason, got %q", got.Reason)
	}
}

func TestParseClassifierOutput(t *testing.T) {
	payload, err := parseClassifierOutput("Sure, here you go:\n```json\n{\"sentiment\":\"negative\",\"intent\":\"complaint\",\"urgency\":\"high\",\"confidence\":0.9,\"reason\":\"caller is upset\"}\n```")
	if err != nil {
		t.Fatalf("parseClassifierOutput err: %v", err)
	}
	if payload.Sentiment != "negative" || payload.Intent != "complaint" || payload.Urgency != "high" {
		t.Fatalf("unexpected payload: %+v", payload)
	}

	if _, err := parseClassifierOutput("no json here"); err == nil {
		t.Fatal("expected error for output without a JSON object")
	}
}

func TestParseLabels(t *testing.T) {
	if _, ok := parseSentiment("POSITIVE "); !ok {
		t.Fatal("expected case-insensitive sentiment parse")
	}
	if _, ok := parseSentiment("ecstatic"); ok {
		t.Fatal("unknown sentiment must not parse")
	}
	if _, ok := parseIntent("complaint"); !ok {
		t.Fatal("expected intent parse")
	}
	if got := parseUrgency("medium"); got != analysis.UrgencyModerate {
		t.Fatalf("expected moderate urgency, got %s", got)
	}
	if got := parseUrgency("whatever"); got != analysis.UrgencyLow {
		t.Fatalf("unknown urgency should default low, got %s", got)
	}
}

func TestFormatHistory(t *testing.T) {
	turns := []conversation.Turn{
		{Role: conversation.RoleCaller, Content: "hello"},
		{Role: conversation.RoleBot, Content: "hi, how can I help?"},
		{Role: conversation.RoleCaller, Content: "my package is late"},
	}

	got := formatHistory(turns, 2)
	want := "Assistant: hi, how can I help?\nCaller: my package is late"
	if got != want {
		t.Fatalf("formatHistory = %q, want %q", got, want)
	}

	if got := formatHistory(nil, 6); got != "no prior conversation" {
		t.Fatalf("unexpected empty-history format: %q", got)
	}
}
