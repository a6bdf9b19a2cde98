package ai

import (
	"strings"
	"testing"

	"github.com/voxlab/callbot/internal/model/persona"
)

func TestBuildSystemPrompt(t *testing.T) {
	p := persona.Default()
	prompt := BuildSystemPrompt(p)

	for _, want := range []string{p.Name, p.Tone, "customer service", p.Language, "phone"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestBuildSystemPromptNoSpecialties(t *testing.T) {
	prompt := BuildSystemPrompt(persona.Persona{Name: "Kim", Tone: "calm", Language: "English"})
	if !strings.Contains(prompt, "general assistance") {
		t.Fatal("expected specialties fallback")
	}
}
