package models

import "time"

// Chat sender roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatLogEntry is one append-only chat turn
type ChatLogEntry struct {
	ID          int       `json:"id"`
	DependentID int       `json:"-"`
	Receiver    string    `json:"receiver"` // user or assistant
	ChatGroupID int       `json:"chat_group_id"`
	Text        []byte    `json:"-"`
	Time        time.Time `json:"time"`
}

// ChatMessage is one role/content pair of a conversation history. The quiz
// history is round-tripped by the caller as a list of these.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// MemoryTestResult records the score of one memory quiz
type MemoryTestResult struct {
	ID          int       `json:"id"`
	DependentID int       `json:"-"`
	Date        time.Time `json:"date"`
	Correct     int       `json:"correct"`
	Total       int       `json:"total"`
}

// LevelTest holds the recommended exercise levels. At most one per dependent.
type LevelTest struct {
	ID          int `json:"-"`
	DependentID int `json:"-"`
	UpLevel     int `json:"up_level"`
	DownLevel   int `json:"down_level"`
}

// ExerciseLog records one finished exercise set
type ExerciseLog struct {
	ID          int       `json:"id"`
	DependentID int       `json:"-"`
	PoseName    string    `json:"pose_name"`
	Level       int       `json:"level"`
	Count       int       `json:"count"`
	Seconds     int       `json:"sec"`
	Time        time.Time `json:"time"`
}

// ChatLogView is the /get_user_chat_log payload: parallel log/date arrays
type ChatLogView struct {
	Log  []map[string]string `json:"log"`
	Date []string            `json:"date"`
}

// MemoryTestView is the /get_user_test_result payload
type MemoryTestView struct {
	Correct []int    `json:"correct"`
	Total   []int    `json:"total"`
	Date    []string `json:"date"`
}

// ExerciseLogView is the /get_exercise_log payload
type ExerciseLogView struct {
	PoseName []string `json:"pose_name"`
	Level    []int    `json:"level"`
	Count    []int    `json:"count"`
	Sec      []int    `json:"sec"`
	Date     []string `json:"date"`
}
