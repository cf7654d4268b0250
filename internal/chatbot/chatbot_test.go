package chatbot

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"companion-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

func TestOpenAIClient_Complete(t *testing.T) {
	var got openAIRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": "안녕하세요"}},
			},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL+"/", "sk-test", "test-model", zap.NewNop())
	reply, err := c.Complete(context.Background(), []models.ChatMessage{
		{Role: models.RoleSystem, Content: "sys"},
		{Role: models.RoleUser, Content: "hi"},
	})
	require.NoError(t, err)
	assert.Equal(t, "안녕하세요", reply)
	assert.Equal(t, "test-model", got.Model)
	assert.Len(t, got.Messages, 2)
}

func TestOpenAIClient_ErrorIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"message": "rate limited", "type": "requests"},
		})
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "", "m", nil)
	_, err := c.Complete(context.Background(), []models.ChatMessage{{Role: models.RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient(srv.URL, "", "m", nil)
	_, err := c.Complete(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestToGeminiContents(t *testing.T) {
	system, contents := toGeminiContents([]models.ChatMessage{
		{Role: models.RoleSystem, Content: "rules"},
		{Role: models.RoleUser, Content: "profile"},
		{Role: models.RoleAssistant, Content: "reply"},
		{Role: models.RoleUser, Content: "question"},
	})

	assert.Equal(t, "rules", system)
	require.Len(t, contents, 3)
	assert.Equal(t, string(genai.RoleUser), contents[0].Role)
	assert.Equal(t, string(genai.RoleModel), contents[1].Role)
	assert.Equal(t, "reply", contents[1].Parts[0].Text)
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), "", "", nil)
	assert.Error(t, err)
}

func TestProfileSummary(t *testing.T) {
	hometown := "부산"
	p := &models.DependentProfile{
		Name:           "이영희",
		Gender:         models.GenderFemale,
		Hometown:       &hometown,
		FavoriteFood:   []string{"김치찌개", "잡채"},
		FavoriteSeason: []string{models.SeasonSpring, models.SeasonAutumn},
	}

	s := ProfileSummary(p)
	assert.Contains(t, s, "- 이름: 이영희")
	assert.Contains(t, s, "- 성별: 여성")
	assert.Contains(t, s, "- 고향: 부산")
	assert.Contains(t, s, "- 좋아하는 음식: 김치찌개, 잡채")
	assert.Contains(t, s, "- 좋아하는 계절: 봄, 가을")
	assert.NotContains(t, s, "반려동물")
	assert.NotContains(t, s, "지병")
}

func TestChatMessages_Order(t *testing.T) {
	history := []*models.ChatLogEntry{
		{Receiver: models.RoleUser, Text: []byte("어제 산책했어요")},
		{Receiver: models.RoleAssistant, Text: []byte("좋으셨겠어요")},
	}

	msgs := ChatMessages(&models.DependentProfile{Name: "김"}, history, "오늘은 비가 와요")
	require.Len(t, msgs, 5)
	assert.Equal(t, models.RoleSystem, msgs[0].Role)
	assert.Equal(t, models.RoleUser, msgs[1].Role)
	assert.Equal(t, models.ChatMessage{Role: models.RoleAssistant, Content: "좋으셨겠어요"}, msgs[3])
	assert.Equal(t, models.ChatMessage{Role: models.RoleUser, Content: "오늘은 비가 와요"}, msgs[4])
}

func TestQuizMessages_IncludesRecentLog(t *testing.T) {
	recent := []*models.ChatLogEntry{
		{Receiver: models.RoleUser, Text: []byte("손주가 왔어요"), Time: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
	}
	history := []models.ChatMessage{{Role: models.RoleUser, Content: "시작"}}

	msgs := QuizMessages(&models.DependentProfile{}, recent, history)
	require.Len(t, msgs, 4)
	assert.Contains(t, msgs[0].Content, QuizEndPhrase)
	assert.Contains(t, msgs[2].Content, "2024-05-01 어르신: 손주가 왔어요")
	assert.Equal(t, history[0], msgs[3])
}

func TestParseScore(t *testing.T) {
	correct, total, err := ParseScore("3/5")
	require.NoError(t, err)
	assert.Equal(t, 3, correct)
	assert.Equal(t, 5, total)

	correct, total, err = ParseScore("결과는 4 / 5 입니다")
	require.NoError(t, err)
	assert.Equal(t, 4, correct)
	assert.Equal(t, 5, total)

	for _, bad := range []string{"", "three of five", "5/0", "6/5", "3-5", "3/2147483648", "99999999999/99999999999"} {
		_, _, err := ParseScore(bad)
		assert.ErrorIs(t, err, ErrScoreFormat, bad)
	}
}

func TestIsQuizEnd(t *testing.T) {
	assert.True(t, IsQuizEnd("수고하셨어요. "+QuizEndPhrase+"."))
	assert.False(t, IsQuizEnd("다음 문제입니다"))
}
