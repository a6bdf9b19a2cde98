package ai

import (
	"context"
	"fmt"
	"log"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/voxlab/callbot/internal/config"
	"github.com/voxlab/callbot/internal/model/conversation"
	"github.com/voxlab/callbot/internal/model/persona"
)

// historyLimit bounds how many prior turns are replayed to the model.
const historyLimit = 10

// Service generates assistant replies through the completion API.
type Service struct {
	chatModel model.ChatModel
	cfg       config.AIConfig
	chain     compose.Runnable[map[string]any, *schema.Message]
}

// NewService creates the AI service and compiles its prompt chain.
func NewService(ctx context.Context, cfg config.AIConfig) (*Service, error) {
	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.MessagesPlaceholder("history", true),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chatModel: chatModel,
		cfg:       cfg,
		chain:     runnable,
	}, nil
}

// GenerateReply produces the bot's next utterance for a call, given the
// transcript so far and the caller's latest (already appended) input.
func (s *Service) GenerateReply(ctx context.Context, callSID string, p persona.Persona, transcript []conversation.Turn, userInput string) (string, error) {
	input := map[string]any{
		"system":  BuildSystemPrompt(p),
		"history": buildHistoryMessages(transcript),
		"query":   userInput,
	}

	response, err := s.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to run completion chain: %w", err)
	}

	log.Printf("[ai] generated reply for call=%s, length=%d", callSID, len(response.Content))
	return response.Content, nil
}

// GetChatModel returns the underlying chat model, shared with the insight
// classifier so only one client is configured.
func (s *Service) GetChatModel() model.ChatModel {
	return s.chatModel
}

// buildHistoryMessages maps the most recent transcript turns onto completion
// roles. The caller's latest utterance arrives separately as the query, so
// it is excluded here when it closes the transcript.
func buildHistoryMessages(transcript []conversation.Turn) []*schema.Message {
	if len(transcript) > 0 && transcript[len(transcript)-1].Role == conversation.RoleCaller {
		transcript = transcript[:len(transcript)-1]
	}
	if len(transcript) == 0 {
		return nil
	}

	startIdx := 0
	if len(transcript) > historyLimit {
		startIdx = len(transcript) - historyLimit
	}

	history := make([]*schema.Message, 0, len(transcript)-startIdx)
	for _, turn := range transcript[startIdx:] {
		switch turn.Role {
		case conversation.RoleCaller:
			history = append(history, schema.UserMessage(turn.Content))
		case conversation.RoleBot:
			history = append(history, schema.AssistantMessage(turn.Content, nil))
		}
	}

	return history
}
