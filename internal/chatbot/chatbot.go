package chatbot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"companion-backend/internal/config"
	"companion-backend/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// ErrEmptyCompletion is returned when the provider answers without text
var ErrEmptyCompletion = errors.New("completion returned no content")

// Completer sends an ordered conversation to a language model and returns
// the assistant reply. Implementations make exactly one upstream call and
// never retry.
type Completer interface {
	Complete(ctx context.Context, messages []models.ChatMessage) (string, error)
}

var (
	completionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "companion_chatbot_completions_total",
		Help: "Chatbot completion calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	completionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "companion_chatbot_completion_duration_seconds",
		Help:    "Latency of chatbot completion calls.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
	}, []string{"provider"})
)

func observe(provider string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	completionsTotal.WithLabelValues(provider, outcome).Inc()
	completionDuration.WithLabelValues(provider).Observe(time.Since(start).Seconds())
}

// New builds the Completer selected by chatbot.provider
func New(ctx context.Context, cfg config.ChatbotConfig, logger *zap.Logger) (Completer, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIClient(cfg.BaseURL, cfg.APIKey, cfg.Model, logger), nil
	case "gemini":
		return NewGeminiClient(ctx, cfg.APIKey, cfg.Model, logger)
	}
	return nil, fmt.Errorf("unknown chatbot provider %q", cfg.Provider)
}
