// Package submit выполняет три зависимые записи анкеты: профиль, ответы и
// контакты. Ответы и контакты пишутся только после того, как хранилище выдало
// ProfileID, и всегда с этим же ProfileID.
package submit

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"risk-number-quiz/internal/apperrors"
	"risk-number-quiz/internal/metrics"
	"risk-number-quiz/internal/quiz"
	"risk-number-quiz/internal/storage"
	"risk-number-quiz/internal/telemetry"
)

// Sequencer пишет записи анкеты в хранилище
type Sequencer struct {
	store   storage.Store
	logger  *zap.Logger
	tracer  trace.Tracer
	metrics *metrics.Metrics
}

type Option func(*Sequencer)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Sequencer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Sequencer) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Sequencer) {
		s.metrics = m
	}
}

func New(store storage.Store, opts ...Option) *Sequencer {
	s := &Sequencer{
		store:  store,
		logger: zap.NewNop(),
		tracer: telemetry.Tracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitProfile сохраняет профиль и запоминает ProfileID в сессии.
// Повторный вызов в той же сессии ничего не пишет и возвращает FAILED_PRECONDITION.
func (s *Sequencer) SubmitProfile(ctx context.Context, sess *Session, profile quiz.FinancialProfile) (string, error) {
	record := storage.NewProfileRecord(profile)
	id, err := s.write(ctx, sess, opProfile, storage.CollectionProfiles, func(string) any { return record })
	if err != nil {
		return "", err
	}
	s.metrics.IncrementProfilesSubmitted()
	return id, nil
}

// SubmitAnswers сохраняет ответы под ProfileID сессии
func (s *Sequencer) SubmitAnswers(ctx context.Context, sess *Session, answers []quiz.Answer) (string, error) {
	answers = append([]quiz.Answer(nil), answers...)
	id, err := s.write(ctx, sess, opAnswers, storage.CollectionAssessments, func(profileID string) any {
		return storage.NewAssessmentRecord(profileID, answers)
	})
	if err != nil {
		return "", err
	}
	s.metrics.IncrementAssessmentsCompleted()
	return id, nil
}

// SubmitContact сохраняет контакты под ProfileID сессии
func (s *Sequencer) SubmitContact(ctx context.Context, sess *Session, contact quiz.ContactInfo) (string, error) {
	id, err := s.write(ctx, sess, opContact, storage.CollectionContacts, func(profileID string) any {
		return storage.NewContactRecord(profileID, contact)
	})
	if err != nil {
		return "", err
	}
	s.metrics.IncrementContactsCaptured()
	return id, nil
}

func (s *Sequencer) write(ctx context.Context, sess *Session, op operation, collection string, build func(profileID string) any) (string, error) {
	t, gateErr := sess.begin(op)
	if gateErr != nil {
		s.logger.Warn("submission refused",
			zap.String("operation", op.String()),
			zap.String("collection", collection),
			zap.String("category", string(gateErr.Category)),
			zap.Error(gateErr.Cause),
		)
		return "", gateErr
	}

	ctx, span := s.tracer.Start(ctx, "submit."+op.String(),
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("quiz.collection", collection),
			attribute.String("quiz.profile_id", t.profileID),
		),
	)
	defer span.End()

	id, err := s.store.Add(ctx, collection, build(t.profileID))
	var appErr *apperrors.Error
	if err != nil {
		appErr = apperrors.Classify(err)
	}
	current := sess.finish(t, op, id, appErr)

	profileID := t.profileID
	if op == opProfile {
		profileID = id
	}

	if appErr != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, string(appErr.Category))
		span.SetAttributes(attribute.String("quiz.error_category", string(appErr.Category)))
		s.metrics.RecordWrite(appErr.Category)
		s.logger.Error("store write failed",
			zap.String("operation", op.String()),
			zap.String("collection", collection),
			zap.String("profile_id", profileID),
			zap.String("category", string(appErr.Category)),
			zap.Error(err),
		)
		return "", appErr
	}

	span.SetAttributes(attribute.String("quiz.document_id", id))
	s.metrics.RecordWrite("")
	s.logger.Info("store write succeeded",
		zap.String("operation", op.String()),
		zap.String("collection", collection),
		zap.String("profile_id", profileID),
		zap.String("document_id", id),
		zap.Bool("session_current", current),
	)
	return id, nil
}
