package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"risk-number-quiz/internal/apperrors"
	"risk-number-quiz/internal/config"
	"risk-number-quiz/internal/flow"
	"risk-number-quiz/internal/metrics"
	"risk-number-quiz/internal/quiz"
	"risk-number-quiz/internal/render"
	"risk-number-quiz/internal/scoring"
	"risk-number-quiz/internal/storage"
)

const maxInputLength = 256

type RateLimiter struct {
	requests map[int64][]time.Time
	mutex    sync.Mutex
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[int64][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (rl *RateLimiter) IsAllowed(userID int64) bool {
	rl.mutex.Lock()
	defer rl.mutex.Unlock()

	now := rl.now()

	if requests, exists := rl.requests[userID]; exists {
		var valid []time.Time
		for _, t := range requests {
			if now.Sub(t) < rl.window {
				valid = append(valid, t)
			}
		}
		rl.requests[userID] = valid
	}

	if len(rl.requests[userID]) >= rl.limit {
		return false
	}

	rl.requests[userID] = append(rl.requests[userID], now)
	return true
}

// HandlerConfig зависимости обработчика
type HandlerConfig struct {
	Questionnaire *config.Questionnaire
	Submitter     flow.Submitter
	Store         storage.Store
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
	WriteTimeout  time.Duration
	RateLimit     int
	SessionTTL    time.Duration
}

type Handler struct {
	bot           *Bot
	questionnaire *config.Questionnaire
	submitter     flow.Submitter
	store         storage.Store
	scorer        *scoring.Scorer
	metrics       *metrics.Metrics
	printer       *render.Printer
	logger        *zap.Logger
	writeTimeout  time.Duration
	sessionTTL    time.Duration
	sessions      map[int64]*ChatSession
	sessionsMutex sync.RWMutex
	rateLimiter   *RateLimiter
	now           func() time.Time
}

func NewHandler(bot *Bot, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 15 * time.Second
	}
	return &Handler{
		bot:           bot,
		questionnaire: cfg.Questionnaire,
		submitter:     cfg.Submitter,
		store:         cfg.Store,
		scorer:        scoring.New(cfg.Questionnaire),
		metrics:       cfg.Metrics,
		printer:       render.Default(),
		logger:        logger,
		writeTimeout:  cfg.WriteTimeout,
		sessionTTL:    cfg.SessionTTL,
		sessions:      make(map[int64]*ChatSession),
		rateLimiter:   NewRateLimiter(cfg.RateLimit, time.Minute),
		now:           time.Now,
	}
}

// RunSessionCleanup удаляет неактивные сессии, пока не отменен ctx
func (h *Handler) RunSessionCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if removed := h.cleanupInactiveSessions(); removed > 0 {
				h.logger.Info("inactive sessions removed", zap.Int("count", removed))
			}
		}
	}
}

func (h *Handler) cleanupInactiveSessions() int {
	h.sessionsMutex.Lock()
	defer h.sessionsMutex.Unlock()

	cutoff := h.now().Add(-h.sessionTTL)
	removed := 0
	for uid, sess := range h.sessions {
		sess.mu.Lock()
		inactive := sess.LastActivity.Before(cutoff)
		sess.mu.Unlock()
		if inactive {
			delete(h.sessions, uid)
			removed++
		}
	}
	return removed
}

// HandleUpdate обрабатывает одно обновление. Сообщения одного пользователя
// обрабатываются последовательно.
func (h *Handler) HandleUpdate(ctx context.Context, update Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Chat == nil {
		return
	}
	userID := update.Message.From.ID
	chatID := update.Message.Chat.ID
	text := strings.TrimSpace(update.Message.Text)

	if !h.rateLimiter.IsAllowed(userID) {
		h.send(ctx, chatID, "⏳ "+apperrors.CategoryRateLimited.Message())
		return
	}

	session := h.getOrCreateSession(userID)
	session.mu.Lock()
	defer session.mu.Unlock()
	session.LastActivity = h.now()

	if strings.HasPrefix(text, "/") {
		h.handleCommand(ctx, chatID, text, session)
		return
	}
	h.handleUserInput(ctx, chatID, text, session)
}

// handleCommand обрабатывает команды бота
func (h *Handler) handleCommand(ctx context.Context, chatID int64, text string, session *ChatSession) {
	command, arg, _ := strings.Cut(text, " ")
	// команды в группах приходят как /start@botname
	command, _, _ = strings.Cut(command, "@")

	switch command {
	case "/start":
		h.handleStartCommand(ctx, chatID, session)
	case "/restart":
		h.handleRestartCommand(ctx, chatID, session)
	case "/status":
		h.handleStatusCommand(ctx, chatID, session)
	case "/lookup":
		h.handleLookupCommand(ctx, chatID, strings.TrimSpace(arg), session)
	case "/help":
		h.handleHelpCommand(ctx, chatID)
	default:
		h.send(ctx, chatID, "Unknown command. Use /help to see the list of commands.")
	}
}

func (h *Handler) handleStartCommand(ctx context.Context, chatID int64, session *ChatSession) {
	if session.Machine != nil {
		state := session.Machine.State()
		if state.Failed() {
			h.sendHalted(ctx, chatID, state.Err)
			return
		}
		if state.Step != flow.StepProfile || session.Form != FormNone {
			h.send(ctx, chatID, "You already have a quiz in progress. Use /status to check progress or /restart to start over.")
			return
		}
	}
	h.beginQuiz(ctx, chatID, session, "🎯 What is My Risk Number?\n\n"+
		fmt.Sprintf("First a few questions about your finances, then %d short questions about how you feel about risk.",
			h.questionnaire.GetTotalQuestions()))
}

func (h *Handler) handleRestartCommand(ctx context.Context, chatID int64, session *ChatSession) {
	h.beginQuiz(ctx, chatID, session, "🔄 Quiz restarted.")
}

func (h *Handler) beginQuiz(ctx context.Context, chatID int64, session *ChatSession, intro string) {
	if session.Machine == nil {
		session.Machine = flow.New(h.questionnaire, h.submitter)
	} else {
		session.Machine.Restart()
	}
	session.resetForms()
	session.Form = FormProfile
	h.metrics.IncrementQuizzesStarted()

	h.send(ctx, chatID, intro)
	h.send(ctx, chatID, quiz.ProfileFields()[0].Prompt)
}

func (h *Handler) handleStatusCommand(ctx context.Context, chatID int64, session *ChatSession) {
	var b strings.Builder
	if session.Machine == nil {
		b.WriteString("Quiz not started. Use /start to begin.")
	} else {
		state := session.Machine.State()
		fmt.Fprintf(&b, "📊 Step: %s\n", state.Step)
		if state.Step == flow.StepAssessment {
			fmt.Fprintf(&b, "Question: %d/%d\n", state.QuestionIndex+1, state.QuestionCount)
		}
		if state.ProfileID != "" {
			fmt.Fprintf(&b, "Profile ID: %s\n", state.ProfileID)
		}
		if state.Busy {
			b.WriteString("Saving...\n")
		}
		if state.Failed() {
			fmt.Fprintf(&b, "Stopped: %s\n", state.Err.Error())
		}
	}

	if h.metrics != nil {
		snap := h.metrics.GetSnapshot()
		fmt.Fprintf(&b, "\n\nQuizzes started: %d\nProfiles: %d\nAssessments: %d\nContacts: %d\nWrites: %d ok / %d failed",
			snap.QuizzesStarted, snap.ProfilesSubmitted, snap.AssessmentsCompleted, snap.ContactsCaptured,
			snap.WritesSuccessful, snap.WritesFailed())
	}
	h.send(ctx, chatID, strings.TrimSpace(b.String()))
}

func (h *Handler) handleLookupCommand(ctx context.Context, chatID int64, profileID string, session *ChatSession) {
	if profileID == "" && session.Machine != nil {
		profileID = session.Machine.State().ProfileID
	}
	if profileID == "" {
		h.send(ctx, chatID, "Usage: /lookup <profile-id>")
		return
	}
	if h.store == nil {
		h.send(ctx, chatID, apperrors.CategoryServiceUnavailable.Message())
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()

	record, err := storage.FindAssessment(lookupCtx, h.store, profileID)
	if err != nil {
		appErr := apperrors.Classify(err)
		h.logger.Error("assessment lookup failed",
			zap.String("profile_id", profileID),
			zap.String("category", string(appErr.Category)),
			zap.Error(err),
		)
		h.send(ctx, chatID, appErr.Error())
		return
	}
	if record == nil {
		h.send(ctx, chatID, "No completed assessment found for "+profileID)
		return
	}

	assessment, err := h.scorer.Calculate(record.Answers)
	if err != nil {
		h.send(ctx, chatID, fmt.Sprintf("Assessment for %s has %d answers recorded, but they do not match the current questionnaire.", profileID, len(record.Answers)))
		return
	}
	h.send(ctx, chatID, fmt.Sprintf("Profile %s\n\n%s", profileID, h.printer.Assessment(assessment)))
}

func (h *Handler) handleHelpCommand(ctx context.Context, chatID int64) {
	helpText := `🤖 What is My Risk Number?

Commands:
/start - Start the quiz
/restart - Start over
/status - Show your progress
/lookup <profile-id> - Show a saved assessment
/help - Show this message

How it works:
1. Tell us about your finances
2. Answer %d questions by sending the option number
3. Leave your contact details
4. Get your Risk Number from 1 to 99 and a suggested allocation`
	h.sendf(ctx, chatID, helpText, h.questionnaire.GetTotalQuestions())
}

// handleUserInput обрабатывает ответы пользователя
func (h *Handler) handleUserInput(ctx context.Context, chatID int64, text string, session *ChatSession) {
	if session.Machine == nil {
		h.send(ctx, chatID, "Use /start to begin the quiz or /help for help.")
		return
	}
	if len(text) > maxInputLength {
		h.send(ctx, chatID, fmt.Sprintf("❌ Message is too long (maximum %d characters).", maxInputLength))
		return
	}

	state := session.Machine.State()
	if state.Failed() {
		h.sendHalted(ctx, chatID, state.Err)
		return
	}

	switch state.Step {
	case flow.StepProfile:
		h.handleProfileInput(ctx, chatID, text, session)
	case flow.StepAssessment:
		h.handleAnswer(ctx, chatID, text, session)
	case flow.StepContact:
		h.handleContactInput(ctx, chatID, text, session)
	case flow.StepResults:
		h.send(ctx, chatID, "Your quiz is complete. Use /restart to take it again.")
	}
}

func (h *Handler) handleProfileInput(ctx context.Context, chatID int64, text string, session *ChatSession) {
	fields := quiz.ProfileFields()
	if session.Form != FormProfile {
		session.resetForms()
		session.Form = FormProfile
	}
	field := fields[session.Field]
	if err := field.Apply(&session.Profile, text); err != nil {
		h.send(ctx, chatID, "❌ "+inputMessage(err)+"\n\n"+field.Prompt)
		return
	}

	session.Field++
	if session.Field < len(fields) {
		h.send(ctx, chatID, fields[session.Field].Prompt)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	if err := session.Machine.SubmitProfile(writeCtx, session.Profile); err != nil {
		if errors.Is(err, quiz.ErrInvalidInput) {
			session.resetForms()
			session.Form = FormProfile
			h.send(ctx, chatID, "❌ "+inputMessage(err)+"\n\nLet's try again. "+fields[0].Prompt)
			return
		}
		h.handleFlowError(ctx, chatID, session, err)
		return
	}

	session.resetForms()
	if saved := session.Machine.State().Profile; saved != nil {
		h.send(ctx, chatID, "✅ Profile saved.\n\n"+h.printer.Profile(*saved))
	}
	h.sendCurrentQuestion(ctx, chatID, session)
}

func (h *Handler) handleAnswer(ctx context.Context, chatID int64, text string, session *ChatSession) {
	question, ok := session.Machine.CurrentQuestion()
	if !ok {
		return
	}
	number, err := strconv.Atoi(strings.TrimSpace(text))
	value, valid := render.OptionValue(question, number)
	if err != nil || !valid {
		h.send(ctx, chatID, fmt.Sprintf("❌ Please send a number from 1 to %d.", len(question.Options)))
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	if err := session.Machine.Answer(writeCtx, value); err != nil {
		h.handleFlowError(ctx, chatID, session, err)
		return
	}

	state := session.Machine.State()
	if state.Step == flow.StepAssessment {
		h.sendCurrentQuestion(ctx, chatID, session)
		return
	}

	session.resetForms()
	session.Form = FormContact
	h.send(ctx, chatID, "📝 Thanks, your answers are saved. Where should we send your results?\n\n"+quiz.ContactFields()[0].Prompt)
}

func (h *Handler) handleContactInput(ctx context.Context, chatID int64, text string, session *ChatSession) {
	fields := quiz.ContactFields()
	if session.Form != FormContact {
		session.resetForms()
		session.Form = FormContact
	}
	field := fields[session.Field]
	if err := field.Apply(&session.Contact, text); err != nil {
		h.send(ctx, chatID, "❌ "+inputMessage(err)+"\n\n"+field.Prompt)
		return
	}

	session.Field++
	if session.Field < len(fields) {
		h.send(ctx, chatID, fields[session.Field].Prompt)
		return
	}

	writeCtx, cancel := context.WithTimeout(ctx, h.writeTimeout)
	defer cancel()
	if err := session.Machine.SubmitContact(writeCtx, session.Contact); err != nil {
		if errors.Is(err, quiz.ErrInvalidInput) {
			session.resetForms()
			session.Form = FormContact
			h.send(ctx, chatID, "❌ "+inputMessage(err)+"\n\n"+fields[0].Prompt)
			return
		}
		h.handleFlowError(ctx, chatID, session, err)
		return
	}

	session.resetForms()
	state := session.Machine.State()
	if state.Assessment == nil {
		return
	}
	h.send(ctx, chatID, "🎉 "+h.printer.Assessment(*state.Assessment)+
		"\n\nProfile ID: "+state.ProfileID+"\nUse /restart to take the quiz again.")
}

func (h *Handler) sendCurrentQuestion(ctx context.Context, chatID int64, session *ChatSession) {
	question, ok := session.Machine.CurrentQuestion()
	if !ok {
		return
	}
	state := session.Machine.State()
	h.send(ctx, chatID, "❓ "+h.printer.Question(question, state.QuestionIndex, state.QuestionCount))
}

func (h *Handler) handleFlowError(ctx context.Context, chatID int64, session *ChatSession, err error) {
	switch {
	case errors.Is(err, flow.ErrRestarted):
		return
	case errors.Is(err, flow.ErrBusy):
		h.send(ctx, chatID, "⏳ Still saving, please wait a moment.")
	case errors.Is(err, flow.ErrWrongStep):
		h.send(ctx, chatID, "That is not expected right now. Use /status to see where you are.")
	case errors.Is(err, quiz.ErrInvalidInput):
		h.send(ctx, chatID, "❌ "+inputMessage(err))
	default:
		session.resetForms()
		if state := session.Machine.State(); state.Failed() {
			h.sendHalted(ctx, chatID, state.Err)
			return
		}
		h.sendHalted(ctx, chatID, apperrors.Classify(err))
	}
}

func (h *Handler) sendHalted(ctx context.Context, chatID int64, err error) {
	h.send(ctx, chatID, "⚠️ "+err.Error()+"\n\nUse /restart to start over.")
}

func (h *Handler) send(ctx context.Context, chatID int64, text string) {
	if err := h.bot.SendMessage(ctx, chatID, text); err != nil {
		h.logger.Warn("send message failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (h *Handler) sendf(ctx context.Context, chatID int64, format string, args ...any) {
	if err := h.bot.SendFormattedMessage(ctx, chatID, format, args...); err != nil {
		h.logger.Warn("send message failed", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

// Вспомогательные методы
func (h *Handler) getOrCreateSession(userID int64) *ChatSession {
	h.sessionsMutex.Lock()
	defer h.sessionsMutex.Unlock()

	if session, exists := h.sessions[userID]; exists {
		return session
	}

	session := &ChatSession{
		UserID:       userID,
		Form:         FormNone,
		LastActivity: h.now(),
	}
	h.sessions[userID] = session
	return session
}

// inputMessage убирает служебный префикс ошибки ввода
func inputMessage(err error) string {
	msg := err.Error()
	prefix := quiz.ErrInvalidInput.Error() + ": "
	msg = strings.TrimPrefix(msg, prefix)
	if msg == "" {
		return "Invalid input."
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
