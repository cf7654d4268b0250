package chatbot

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"companion-backend/internal/models"
)

const (
	// QuizEndPhrase marks the assistant turn that closes a memory quiz
	QuizEndPhrase = "기억력 퀴즈는 여기까지 하도록 하겠습니다"
	// QuizResultSentinel is sent after QuizEndPhrase to ask for the score
	QuizResultSentinel = "result"
)

const chatSystemPrompt = `당신은 어르신의 말벗이 되어 주는 다정한 대화 상대입니다.
항상 존댓말을 사용하고, 짧고 쉬운 문장으로 대답하세요.
어르신의 정보와 이전 대화를 참고해 자연스럽게 대화를 이어가고, 한 번에 질문은 하나만 하세요.
건강 상태에 대한 의학적 판단은 하지 말고, 필요하면 보호자나 의료진과 상의하도록 권하세요.`

const quizSystemPrompt = `당신은 어르신의 기억력을 확인하는 퀴즈 진행자입니다.
어르신의 정보와 최근 대화 기록을 바탕으로 한 번에 한 문제씩, 총 5문제를 출제하세요.
어르신이 답하면 정답 여부를 부드럽게 알려 주고 다음 문제로 넘어가세요.
5문제가 끝나면 반드시 "` + QuizEndPhrase + `"라고 말하세요.
그 다음 사용자가 "` + QuizResultSentinel + `"라고 보내면 다른 말 없이 "맞힌 개수/전체 문제 수" 형식으로만 답하세요. 예: 3/5`

// ErrScoreFormat is returned when the finalization reply has no N/M score
var ErrScoreFormat = errors.New("quiz result is not in correct/total form")

var scorePattern = regexp.MustCompile(`(\d+)\s*/\s*(\d+)`)

var seasonNames = map[string]string{
	models.SeasonSpring: "봄",
	models.SeasonSummer: "여름",
	models.SeasonAutumn: "가을",
	models.SeasonWinter: "겨울",
}

var genderNames = map[models.Gender]string{
	models.GenderMale:   "남성",
	models.GenderFemale: "여성",
}

// ProfileSummary renders what the model should know about the dependent.
// Empty attributes are omitted.
func ProfileSummary(p *models.DependentProfile) string {
	var b strings.Builder
	b.WriteString("다음은 대화 상대인 어르신의 정보입니다.\n")

	line := func(label, value string) {
		if strings.TrimSpace(value) != "" {
			fmt.Fprintf(&b, "- %s: %s\n", label, value)
		}
	}
	list := func(label string, values []string) {
		if len(values) > 0 {
			line(label, strings.Join(values, ", "))
		}
	}
	deref := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}

	line("이름", p.Name)
	line("생년월일", p.Birthday)
	line("성별", genderNames[p.Gender])
	line("보호자와의 관계", p.Relation)
	line("거주지", p.Address)
	line("고향", deref(p.Hometown))
	line("지병", deref(p.ChronicIllness))
	list("좋아하는 음식", p.FavoriteFood)
	list("좋아하는 음악", p.FavoriteMusic)

	seasons := make([]string, 0, len(p.FavoriteSeason))
	for _, code := range p.FavoriteSeason {
		if name, ok := seasonNames[code]; ok {
			seasons = append(seasons, name)
		}
	}
	list("좋아하는 계절", seasons)
	list("과거 직업", p.PastJob)
	list("반려동물", p.Pet)
	line("기타 사항", deref(p.Details))

	return strings.TrimRight(b.String(), "\n")
}

// LogMessages turns stored chat turns back into conversation messages
func LogMessages(entries []*models.ChatLogEntry) []models.ChatMessage {
	messages := make([]models.ChatMessage, 0, len(entries))
	for _, e := range entries {
		role := models.RoleUser
		if e.Receiver == models.RoleAssistant {
			role = models.RoleAssistant
		}
		messages = append(messages, models.ChatMessage{Role: role, Content: string(e.Text)})
	}
	return messages
}

// ChatMessages assembles one chat-mode request: system prompt, profile,
// the stored history of the current chat group and the new message.
func ChatMessages(profile *models.DependentProfile, history []*models.ChatLogEntry, msg string) []models.ChatMessage {
	messages := []models.ChatMessage{
		{Role: models.RoleSystem, Content: chatSystemPrompt},
		{Role: models.RoleUser, Content: ProfileSummary(profile)},
	}
	messages = append(messages, LogMessages(history)...)
	return append(messages, models.ChatMessage{Role: models.RoleUser, Content: msg})
}

// QuizMessages assembles one quiz-mode request. history is the caller's
// round-tripped quiz conversation, already including the newest message.
func QuizMessages(profile *models.DependentProfile, recent []*models.ChatLogEntry, history []models.ChatMessage) []models.ChatMessage {
	messages := []models.ChatMessage{
		{Role: models.RoleSystem, Content: quizSystemPrompt},
		{Role: models.RoleUser, Content: ProfileSummary(profile)},
		{Role: models.RoleUser, Content: quizContext(recent)},
	}
	return append(messages, history...)
}

func quizContext(recent []*models.ChatLogEntry) string {
	if len(recent) == 0 {
		return "최근 대화 기록이 없습니다. 어르신의 정보만으로 문제를 내 주세요."
	}

	var b strings.Builder
	b.WriteString("다음은 어르신과의 최근 대화 기록입니다.\n")
	for _, e := range recent {
		speaker := "어르신"
		if e.Receiver == models.RoleAssistant {
			speaker = "챗봇"
		}
		fmt.Fprintf(&b, "%s %s: %s\n", e.Time.Format(models.DateLayout), speaker, e.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

// IsQuizEnd reports whether reply closes the quiz
func IsQuizEnd(reply string) bool {
	return strings.Contains(reply, QuizEndPhrase)
}

// ParseScore extracts the first correct/total pair from the final reply
func ParseScore(reply string) (correct, total int, err error) {
	m := scorePattern.FindStringSubmatch(reply)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrScoreFormat, reply)
	}

	c, err := strconv.ParseInt(m[1], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrScoreFormat, err)
	}
	t, err := strconv.ParseInt(m[2], 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %v", ErrScoreFormat, err)
	}
	correct, total = int(c), int(t)
	if total == 0 || correct > total {
		return 0, 0, fmt.Errorf("%w: %d/%d", ErrScoreFormat, correct, total)
	}
	return correct, total, nil
}
