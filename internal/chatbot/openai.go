package chatbot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"companion-backend/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

type openAIRequest struct {
	Model    string               `json:"model"`
	Messages []models.ChatMessage `json:"messages"`
}

type openAIResponse struct {
	Choices []struct {
		Message models.ChatMessage `json:"message"`
	} `json:"choices"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint
type OpenAIClient struct {
	httpClient *resty.Client
	model      string
	logger     *zap.Logger
}

func NewOpenAIClient(baseURL, apiKey, model string, logger *zap.Logger) *OpenAIClient {
	if logger == nil {
		logger = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		client.SetAuthToken(apiKey)
	}

	return &OpenAIClient{
		httpClient: client,
		model:      model,
		logger:     logger,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []models.ChatMessage) (reply string, err error) {
	start := time.Now()
	defer func() { observe("openai", start, err) }()

	var result openAIResponse
	var apiErr openAIError
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(openAIRequest{Model: c.model, Messages: messages}).
		SetResult(&result).
		SetError(&apiErr).
		Post("/chat/completions")
	if err != nil {
		c.logger.Error("chat completion call failed", zap.Error(err))
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if resp.IsError() {
		c.logger.Error("chat completion returned error",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("type", apiErr.Error.Type),
			zap.String("msg", apiErr.Error.Message),
		)
		return "", fmt.Errorf("chat completion: status %d: %s", resp.StatusCode(), apiErr.Error.Message)
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", ErrEmptyCompletion
	}

	return result.Choices[0].Message.Content, nil
}
