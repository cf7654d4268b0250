package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"companion-backend/internal/chatbot"
	"companion-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChat_LogsBothTurns(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	f.bot.replies = []string{"안녕하세요, 어르신", "산책 좋지요"}
	reply, err := f.chat.Chat(ctx, "user1", "안녕", false)
	require.NoError(t, err)
	assert.Equal(t, "안녕하세요, 어르신", reply)

	_, err = f.chat.Chat(ctx, "user1", "산책했어요", false)
	require.NoError(t, err)

	view, err := f.activity.ChatLog(ctx, "user1", nil)
	require.NoError(t, err)
	assert.Equal(t, []map[string]string{
		{"user": "안녕"},
		{"assistant": "안녕하세요, 어르신"},
		{"user": "산책했어요"},
		{"assistant": "산책 좋지요"},
	}, view.Log)
	assert.Len(t, view.Date, 4)

	// second request carries system, profile, two logged turns, new message
	require.Len(t, f.bot.requests, 2)
	second := f.bot.requests[1]
	require.Len(t, second, 5)
	assert.Equal(t, models.RoleSystem, second[0].Role)
	assert.Contains(t, second[1].Content, "이어르신")
	assert.Equal(t, models.ChatMessage{Role: models.RoleAssistant, Content: "안녕하세요, 어르신"}, second[3])
	assert.Equal(t, "산책했어요", second[4].Content)
}

func TestChat_NewSessionStartsNextGroup(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	f.bot.replies = []string{"one", "two"}
	_, err := f.chat.Chat(ctx, "user1", "first", false)
	require.NoError(t, err)
	_, err = f.chat.Chat(ctx, "user1", "second", true)
	require.NoError(t, err)

	// the new session's request has no earlier turns
	assert.Len(t, f.bot.requests[1], 3)

	d, err := f.store.Repos().Dependents.GetByUserID(ctx, "user1")
	require.NoError(t, err)
	assert.Equal(t, 1, d.LastChatGroup)

	recent, err := f.store.Repos().ChatLogs.Recent(ctx, d.ID, 1, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", string(recent[0].Text))
}

func TestChat_UpstreamFailurePersistsNothing(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	f.bot.err = errors.New("503 from provider")
	_, err := f.chat.Chat(ctx, "user1", "안녕", false)
	require.ErrorIs(t, err, ErrUpstream)

	view, err := f.activity.ChatLog(ctx, "user1", nil)
	require.NoError(t, err)
	assert.Empty(t, view.Log)
}

func TestChat_Validation(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	_, err := f.chat.Chat(ctx, "ghost", "hi", false)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.chat.Chat(ctx, "user1", "  ", false)
	assert.ErrorIs(t, err, ErrMissingParameter)
	assert.Empty(t, f.bot.requests)
}

func TestQuiz_InProgress(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	f.bot.replies = []string{"첫 번째 문제입니다. 어제 무엇을 드셨나요?"}
	history := []models.ChatMessage{{Role: models.RoleAssistant, Content: "퀴즈를 시작할게요"}}

	turn, err := f.chat.Quiz(ctx, "user1", "좋아요", history)
	require.NoError(t, err)
	assert.False(t, turn.Ended)
	assert.Equal(t, []models.ChatMessage{
		{Role: models.RoleAssistant, Content: "퀴즈를 시작할게요"},
		{Role: models.RoleUser, Content: "좋아요"},
		{Role: models.RoleAssistant, Content: "첫 번째 문제입니다. 어제 무엇을 드셨나요?"},
	}, turn.History)

	// the caller's slice is not modified
	assert.Len(t, history, 1)

	view, err := f.activity.MemoryResults(ctx, "user1", nil)
	require.NoError(t, err)
	assert.Empty(t, view.Correct)
}

func TestQuiz_FinalizationStoresScore(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()
	f.chat.Now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	end := "잘 하셨어요! " + chatbot.QuizEndPhrase + "."
	f.bot.replies = []string{end, "4/5"}

	turn, err := f.chat.Quiz(ctx, "user1", "정답은 잡채", nil)
	require.NoError(t, err)
	assert.True(t, turn.Ended)
	assert.Equal(t, end, turn.Reply)
	assert.Equal(t, 4, turn.Correct)
	assert.Equal(t, 5, turn.Total)

	n := len(turn.History)
	require.GreaterOrEqual(t, n, 2)
	assert.Equal(t, models.ChatMessage{Role: models.RoleUser, Content: chatbot.QuizResultSentinel}, turn.History[n-2])
	assert.Equal(t, models.ChatMessage{Role: models.RoleAssistant, Content: "4/5"}, turn.History[n-1])

	// the finalization round threads the same history
	require.Len(t, f.bot.requests, 2)
	last := f.bot.requests[1]
	assert.Equal(t, chatbot.QuizResultSentinel, last[len(last)-1].Content)

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	view, err := f.activity.MemoryResults(ctx, "user1", &day)
	require.NoError(t, err)
	assert.Equal(t, []int{4}, view.Correct)
	assert.Equal(t, []int{5}, view.Total)
	assert.Equal(t, []string{"2024-05-01"}, view.Date)
}

func TestQuiz_UnparsableResult(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	f.bot.replies = []string{chatbot.QuizEndPhrase, "네 개 맞히셨어요"}
	_, err := f.chat.Quiz(ctx, "user1", "", nil)
	require.ErrorIs(t, err, ErrParse)

	view, err := f.activity.MemoryResults(ctx, "user1", nil)
	require.NoError(t, err)
	assert.Empty(t, view.Correct)
}

func TestQuiz_UsesRecentChatAsContext(t *testing.T) {
	f := newFixture(t)
	f.seed(t)
	ctx := context.Background()

	f.bot.replies = []string{"그렇군요", "문제입니다"}
	_, err := f.chat.Chat(ctx, "user1", "손녀가 놀러 왔어요", false)
	require.NoError(t, err)

	_, err = f.chat.Quiz(ctx, "user1", "시작", nil)
	require.NoError(t, err)

	quizReq := f.bot.requests[1]
	require.GreaterOrEqual(t, len(quizReq), 3)
	assert.Contains(t, quizReq[2].Content, "손녀가 놀러 왔어요")
}
