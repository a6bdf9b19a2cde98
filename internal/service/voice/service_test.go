package voice

import (
	"strings"
	"testing"
)

func TestCleanSpeechText(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Um, I have a   problem!", "i have a problem"},
		{"  Hello THERE.  ", "hello there"},
		{"uh er hmm", ""},
		{"", ""},
	}

	for _, tc := range cases {
		if got := CleanSpeechText(tc.in); got != tc.want {
			t.Errorf("CleanSpeechText(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestProcessInput(t *testing.T) {
	svc := NewService(0.5)

	in := svc.ProcessInput("Um, hello there", 0.9)
	if !in.Valid {
		t.Fatalf("expected valid input, got %+v", in)
	}
	if in.Cleaned != "hello there" {
		t.Fatalf("unexpected cleaned text: %q", in.Cleaned)
	}

	if in := svc.ProcessInput("hello", 0.2); in.Valid {
		t.Fatal("low-confidence input must be invalid")
	}
	if in := svc.ProcessInput("um uh", 0.9); in.Valid {
		t.Fatal("input that cleans to empty must be invalid")
	}
}

func TestFallbackLineTiers(t *testing.T) {
	svc := NewService(0)

	low := svc.FallbackLine(0.1)
	mid := svc.FallbackLine(0.5)
	high := svc.FallbackLine(0.9)

	if low == mid || mid == high || low == high {
		t.Fatalf("expected distinct tiers, got %q / %q / %q", low, mid, high)
	}
}

func TestFormatForSpeech(t *testing.T) {
	got := FormatForSpeech("**Sure!** Here is *the* `plan`. Call us, etc.")
	if strings.ContainsAny(got, "*`") {
		t.Fatalf("markdown not stripped: %q", got)
	}
	if !strings.Contains(got, `<break time="0.5s"/>`) {
		t.Fatalf("expected sentence pause, got %q", got)
	}
	if strings.Contains(got, "etc.") {
		t.Fatalf("abbreviation period not removed: %q", got)
	}

	if FormatForSpeech("") != "" {
		t.Fatal("empty input should stay empty")
	}
}
