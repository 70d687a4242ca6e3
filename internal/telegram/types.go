package telegram

import (
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"risk-number-quiz/internal/flow"
	"risk-number-quiz/internal/quiz"
)

// Bot представляет Telegram бота
type Bot struct {
	token       string
	baseURL     string
	client      *http.Client
	logger      *zap.Logger
	pollTimeout time.Duration
}

// Update представляет обновление от Telegram
type Update struct {
	UpdateID int      `json:"update_id"`
	Message  *Message `json:"message,omitempty"`
}

// Message представляет сообщение в Telegram
type Message struct {
	MessageID int    `json:"message_id"`
	From      *User  `json:"from,omitempty"`
	Chat      *Chat  `json:"chat"`
	Text      string `json:"text,omitempty"`
}

// User представляет пользователя Telegram
type User struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
}

// Chat представляет чат в Telegram
type Chat struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Username  string `json:"username,omitempty"`
	Type      string `json:"type"`
}

// SendMessageRequest представляет запрос на отправку сообщения
type SendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type apiResult interface {
	status() (ok bool, code int, description string)
}

// apiStatus общие поля ответа Bot API
type apiStatus struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s apiStatus) status() (bool, int, string) {
	return s.OK, s.ErrorCode, s.Description
}

// GetUpdatesResponse представляет ответ от getUpdates
type GetUpdatesResponse struct {
	apiStatus
	Result []Update `json:"result"`
}

// SendMessageResponse представляет ответ от sendMessage
type SendMessageResponse struct {
	apiStatus
	Result *Message `json:"result,omitempty"`
}

// ChatSession прохождение анкеты одним пользователем и черновики форм
type ChatSession struct {
	mu           sync.Mutex
	UserID       int64
	Machine      *flow.Machine
	Form         FormState
	Field        int
	Profile      quiz.FinancialProfile
	Contact      quiz.ContactInfo
	LastActivity time.Time
}

// FormState какую форму сейчас заполняет пользователь
type FormState string

const (
	FormNone    FormState = "none"
	FormProfile FormState = "profile"
	FormContact FormState = "contact"
)

func (s *ChatSession) resetForms() {
	s.Form = FormNone
	s.Field = 0
	s.Profile = quiz.FinancialProfile{}
	s.Contact = quiz.ContactInfo{}
}
