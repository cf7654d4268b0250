package services

import (
	"context"
	"strings"
	"time"

	"companion-backend/internal/chatbot"
	"companion-backend/internal/models"
	"companion-backend/internal/repositories"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var quizzesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "companion_memory_quizzes_finished_total",
	Help: "Memory quizzes that reached the result round, by outcome.",
}, []string{"outcome"})

// QuizTurn is the outcome of one quiz round
type QuizTurn struct {
	Reply   string
	History []models.ChatMessage
	// Ended is set when the round produced and stored a score
	Ended   bool
	Correct int
	Total   int
}

// ConversationService brokers chat and memory-quiz rounds between the
// stored profile/logs and the language model. It keeps no session state.
type ConversationService struct {
	Store        repositories.Store
	Profiles     *ProfileService
	Completer    chatbot.Completer
	Logger       *zap.Logger
	HistoryLimit int
	Now          func() time.Time
}

func NewConversationService(store repositories.Store, profiles *ProfileService, completer chatbot.Completer, historyLimit int, logger *zap.Logger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if historyLimit <= 0 {
		historyLimit = 20
	}
	return &ConversationService{
		Store:        store,
		Profiles:     profiles,
		Completer:    completer,
		Logger:       logger,
		HistoryLimit: historyLimit,
		Now:          time.Now,
	}
}

func (s *ConversationService) complete(ctx context.Context, userID string, messages []models.ChatMessage) (string, error) {
	reply, err := s.Completer.Complete(ctx, messages)
	if err != nil {
		s.Logger.Error("chatbot completion failed", zap.String("user_id", userID), zap.Error(err))
		return "", upstreamError(err)
	}
	return reply, nil
}

// Chat answers one message. The user message and the reply are logged
// under the dependent's current chat group only after the model answered.
// newSession starts a new chat group first.
func (s *ConversationService) Chat(ctx context.Context, userID, msg string, newSession bool) (string, error) {
	if strings.TrimSpace(msg) == "" {
		return "", missingParameter("msg")
	}

	r := s.Store.Repos()
	d, err := loadDependent(ctx, r, s.Logger, "chatbot_chat", userID)
	if err != nil {
		return "", err
	}
	profile, err := s.Profiles.GetDependentProfile(ctx, userID)
	if err != nil {
		return "", err
	}

	group := d.LastChatGroup
	var history []*models.ChatLogEntry
	if newSession {
		group++
	} else {
		history, err = r.ChatLogs.Recent(ctx, d.ID, group, s.HistoryLimit)
		if err != nil {
			return "", readError(s.Logger, "chatbot_chat", userID, err)
		}
	}

	asked := s.Now().UTC()
	reply, err := s.complete(ctx, userID, chatbot.ChatMessages(profile, history, msg))
	if err != nil {
		return "", err
	}
	answered := s.Now().UTC()

	err = runTx(ctx, s.Store, s.Logger, "chatbot_chat", func(r repositories.Repos) error {
		if newSession {
			current, err := loadDependent(ctx, r, s.Logger, "chatbot_chat", userID)
			if err != nil {
				return err
			}
			current.LastChatGroup = group
			if err := r.Dependents.Update(ctx, current); err != nil {
				return err
			}
		}
		if err := r.ChatLogs.Append(ctx, &models.ChatLogEntry{
			DependentID: d.ID,
			Receiver:    models.RoleUser,
			ChatGroupID: group,
			Text:        []byte(msg),
			Time:        asked,
		}); err != nil {
			return err
		}
		return r.ChatLogs.Append(ctx, &models.ChatLogEntry{
			DependentID: d.ID,
			Receiver:    models.RoleAssistant,
			ChatGroupID: group,
			Text:        []byte(reply),
			Time:        answered,
		})
	})
	if err != nil {
		return "", err
	}

	return reply, nil
}

// Quiz runs one memory-quiz round over the caller's history. When the
// model closes the quiz, one more round with the result sentinel asks for
// the score, which is parsed and stored.
func (s *ConversationService) Quiz(ctx context.Context, userID, msg string, history []models.ChatMessage) (*QuizTurn, error) {
	r := s.Store.Repos()
	d, err := loadDependent(ctx, r, s.Logger, "chatbot_quiz", userID)
	if err != nil {
		return nil, err
	}
	profile, err := s.Profiles.GetDependentProfile(ctx, userID)
	if err != nil {
		return nil, err
	}

	recent, err := r.ChatLogs.List(ctx, d.ID, nil)
	if err != nil {
		return nil, readError(s.Logger, "chatbot_quiz", userID, err)
	}
	if len(recent) > s.HistoryLimit {
		recent = recent[len(recent)-s.HistoryLimit:]
	}

	turn := &QuizTurn{History: make([]models.ChatMessage, 0, len(history)+4)}
	turn.History = append(turn.History, history...)
	if msg != "" {
		turn.History = append(turn.History, models.ChatMessage{Role: models.RoleUser, Content: msg})
	}

	reply, err := s.complete(ctx, userID, chatbot.QuizMessages(profile, recent, turn.History))
	if err != nil {
		return nil, err
	}
	turn.Reply = reply
	turn.History = append(turn.History, models.ChatMessage{Role: models.RoleAssistant, Content: reply})

	if !chatbot.IsQuizEnd(reply) {
		return turn, nil
	}

	turn.History = append(turn.History, models.ChatMessage{Role: models.RoleUser, Content: chatbot.QuizResultSentinel})
	score, err := s.complete(ctx, userID, chatbot.QuizMessages(profile, recent, turn.History))
	if err != nil {
		return nil, err
	}
	turn.History = append(turn.History, models.ChatMessage{Role: models.RoleAssistant, Content: score})

	correct, total, err := chatbot.ParseScore(score)
	if err != nil {
		quizzesFinished.WithLabelValues("unparsable").Inc()
		s.Logger.Warn("quiz result not parsable", zap.String("user_id", userID), zap.String("reply", score))
		return nil, &Error{Kind: ErrParse, Msg: "could not parse quiz result", Cause: err}
	}

	err = runTx(ctx, s.Store, s.Logger, "chatbot_quiz", func(r repositories.Repos) error {
		return r.MemoryTests.Append(ctx, &models.MemoryTestResult{
			DependentID: d.ID,
			Date:        s.Now().UTC(),
			Correct:     correct,
			Total:       total,
		})
	})
	if err != nil {
		return nil, err
	}

	quizzesFinished.WithLabelValues("stored").Inc()
	turn.Ended = true
	turn.Correct = correct
	turn.Total = total
	return turn, nil
}
