package persona

// Persona describes the assistant personality applied uniformly to a call.
type Persona struct {
	Name        string   `json:"name"`
	Tone        string   `json:"tone"`
	Specialties []string `json:"specialties,omitempty"`
	Language    string   `json:"language"`
	Greeting    string   `json:"greeting"`
	Goodbye     string   `json:"goodbye"`
	Fallback    string   `json:"fallback"`
	Voice       string   `json:"voice,omitempty"`
}

// Default returns the stock assistant personality used when a call carries
// no explicit persona configuration.
func Default() Persona {
	return Persona{
		Name:        "Alex",
		Tone:        "friendly and professional",
		Specialties: []string{"customer service", "general knowledge", "small talk", "problem solving"},
		Language:    "English",
		Greeting:    "Hello! I'm Alex, your AI assistant. How can I help you today?",
		Goodbye:     "Thank you for calling. Have a great day!",
		Fallback:    "I'm sorry, I didn't understand that. Could you please repeat?",
		Voice:       "en-US-Neural2-F",
	}
}
