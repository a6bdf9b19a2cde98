package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

// Config aggregates every setting the service reads from the environment.
type Config struct {
	Server       ServerConfig
	AI           AIConfig
	Twilio       TwilioConfig
	Voice        VoiceConfig
	Conversation ConversationConfig
}

// Load reads the full configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	voice, err := loadVoiceConfig()
	if err != nil {
		return nil, err
	}

	conv, err := loadConversationConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:       server,
		AI:           ai,
		Twilio:       loadTwilioConfig(),
		Voice:        voice,
		Conversation: conv,
	}, nil
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// Accept ":8080" or "127.0.0.1:8080" verbatim.
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig describes the completion-API settings.
type AIConfig struct {
	APIKey              string
	Model               string
	BaseURL             string
	Temperature         *float64
	TopP                *float64
	MaxTokens           *int
	Timeout             time.Duration
	InsightEnabled      bool
	InsightHistoryLimit int
}

// Enabled reports whether the required credentials are present.
func (c AIConfig) Enabled() bool {
	return c.APIKey != "" && c.Model != ""
}

// NewChatModel builds a chat model instance from the configuration.
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("OPENAI_API_KEY and OPENAI_MODEL are required for AI features")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &openai.ChatModelConfig{
		BaseURL:     c.BaseURL,
		APIKey:      c.APIKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
		Timeout:     c.Timeout,
	}

	return openai.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("OPENAI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		def := 0.7
		temperature = &def
	}

	topP, err := parseOptionalFloatEnv("OPENAI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("OPENAI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}
	if maxTokens == nil {
		// Voice replies are read aloud; keep them short by default.
		def := 150
		maxTokens = &def
	}

	timeoutSeconds := 30
	if timeout, err := parseOptionalIntEnv("OPENAI_TIMEOUT"); err != nil {
		return AIConfig{}, err
	} else if timeout != nil {
		timeoutSeconds = *timeout
	}

	insightEnabled, err := parseBoolEnv("AI_INSIGHT_ENABLED", true)
	if err != nil {
		return AIConfig{}, err
	}

	insightHistory := 6
	if historyOverride, err := parseOptionalIntEnv("AI_INSIGHT_HISTORY_LIMIT"); err != nil {
		return AIConfig{}, err
	} else if historyOverride != nil {
		if *historyOverride < 1 {
			insightHistory = 1
		} else {
			insightHistory = *historyOverride
		}
	}

	return AIConfig{
		APIKey:              strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		Model:               getEnvOrDefault("OPENAI_MODEL", "gpt-3.5-turbo"),
		BaseURL:             getEnvOrDefault("OPENAI_BASE_URL", ""),
		Temperature:         temperature,
		TopP:                topP,
		MaxTokens:           maxTokens,
		Timeout:             time.Duration(timeoutSeconds) * time.Second,
		InsightEnabled:      insightEnabled,
		InsightHistoryLimit: insightHistory,
	}, nil
}

// TwilioConfig describes the telephony provider credentials.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	BaseURL    string
}

// Enabled reports whether REST API access is configured. The webhook flow
// works without it; only the dashboard call log needs the REST API.
func (c TwilioConfig) Enabled() bool {
	return c.AccountSID != "" && c.AuthToken != ""
}

func loadTwilioConfig() TwilioConfig {
	return TwilioConfig{
		AccountSID: strings.TrimSpace(os.Getenv("TWILIO_ACCOUNT_SID")),
		AuthToken:  strings.TrimSpace(os.Getenv("TWILIO_AUTH_TOKEN")),
		BaseURL:    getEnvOrDefault("TWILIO_BASE_URL", "https://api.twilio.com/2010-04-01"),
	}
}

// VoiceConfig describes how TwiML speech is rendered and gathered.
type VoiceConfig struct {
	Voice               string
	Language            string
	GatherTimeout       int
	SpeechTimeout       string
	ConfidenceThreshold float64
}

func loadVoiceConfig() (VoiceConfig, error) {
	gatherTimeout := 10
	if timeout, err := parseOptionalIntEnv("VOICE_GATHER_TIMEOUT"); err != nil {
		return VoiceConfig{}, err
	} else if timeout != nil {
		gatherTimeout = *timeout
	}

	threshold := 0.5
	if override, err := parseOptionalFloatEnv("VOICE_CONFIDENCE_THRESHOLD"); err != nil {
		return VoiceConfig{}, err
	} else if override != nil {
		threshold = *override
	}

	return VoiceConfig{
		Voice:               getEnvOrDefault("VOICE_NAME", "en-US-Neural2-F"),
		Language:            getEnvOrDefault("VOICE_LANGUAGE", "en-US"),
		GatherTimeout:       gatherTimeout,
		SpeechTimeout:       getEnvOrDefault("VOICE_SPEECH_TIMEOUT", "auto"),
		ConfidenceThreshold: threshold,
	}, nil
}

// ConversationConfig bounds the in-memory session store.
type ConversationConfig struct {
	MaxSessions   int
	IdleTTL       time.Duration
	SweepInterval time.Duration
}

func loadConversationConfig() (ConversationConfig, error) {
	maxSessions := 1000
	if override, err := parseOptionalIntEnv("CONVERSATION_MAX_SESSIONS"); err != nil {
		return ConversationConfig{}, err
	} else if override != nil {
		maxSessions = *override
	}

	idleSeconds := 3600
	if override, err := parseOptionalIntEnv("CONVERSATION_IDLE_TTL"); err != nil {
		return ConversationConfig{}, err
	} else if override != nil {
		idleSeconds = *override
	}

	sweepSeconds := 300
	if override, err := parseOptionalIntEnv("CONVERSATION_SWEEP_INTERVAL"); err != nil {
		return ConversationConfig{}, err
	} else if override != nil {
		sweepSeconds = *override
	}

	return ConversationConfig{
		MaxSessions:   maxSessions,
		IdleTTL:       time.Duration(idleSeconds) * time.Second,
		SweepInterval: time.Duration(sweepSeconds) * time.Second,
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
