package chatbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"companion-backend/internal/models"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient completes conversations with the Gemini API. System
// messages are folded into the request's system instruction.
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

func NewGeminiClient(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiClient{client: client, model: model, logger: logger}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, messages []models.ChatMessage) (reply string, err error) {
	start := time.Now()
	defer func() { observe("gemini", start, err) }()

	system, contents := toGeminiContents(messages)
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, cfg)
	if err != nil {
		c.logger.Error("gemini generate content failed", zap.Error(err), zap.String("model", c.model))
		return "", fmt.Errorf("gemini generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyCompletion
	}
	return text, nil
}

// toGeminiContents splits system messages off and maps the assistant role to
// the model role.
func toGeminiContents(messages []models.ChatMessage) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			system = append(system, m.Content)
		case models.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return strings.Join(system, "\n\n"), contents
}
