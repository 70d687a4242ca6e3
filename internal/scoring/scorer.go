// Package scoring переводит ответы анкеты в оценку риска. Расчёт чистый:
// без ввода-вывода и побочных эффектов, только целочисленная арифметика.
package scoring

import (
	"errors"
	"fmt"

	"risk-number-quiz/internal/config"
	"risk-number-quiz/internal/quiz"
)

var (
	ErrIncompleteAnswers = errors.New("answers do not cover every question")
	ErrQuestionOrder     = errors.New("answer does not match question order")
	ErrValueOutOfRange   = errors.New("answer value outside question scale")
)

// Scorer считает оценку по анкете и таблице категорий
type Scorer struct {
	questions []config.Question
	tiers     []config.Tier
	maxScore  int
}

// New создает калькулятор для проверенной анкеты
func New(q *config.Questionnaire) *Scorer {
	s := &Scorer{
		questions: q.Questions,
		tiers:     q.Tiers,
	}
	for _, question := range q.Questions {
		min, max := question.Scale()
		s.maxScore += question.Weight * (max - min)
	}
	return s
}

// MaxScore максимально возможный сырой балл
func (s *Scorer) MaxScore() int {
	return s.maxScore
}

// Calculate считает оценку. Ответов должно быть ровно по одному на вопрос в порядке анкеты.
func (s *Scorer) Calculate(answers []quiz.Answer) (quiz.Assessment, error) {
	if len(answers) != len(s.questions) {
		return quiz.Assessment{}, fmt.Errorf("%w: got %d of %d", ErrIncompleteAnswers, len(answers), len(s.questions))
	}

	score := 0
	for i, question := range s.questions {
		answer := answers[i]
		if answer.QuestionID != question.ID {
			return quiz.Assessment{}, fmt.Errorf("%w: position %d expects %q, got %q", ErrQuestionOrder, i+1, question.ID, answer.QuestionID)
		}
		min, max := question.Scale()
		if answer.Value < min || answer.Value > max {
			return quiz.Assessment{}, fmt.Errorf("%w: %q accepts %d..%d, got %d", ErrValueOutOfRange, question.ID, min, max, answer.Value)
		}
		score += question.Weight * (answer.Value - min)
	}

	riskNumber := RiskNumber(score, s.maxScore)
	tier := s.tierFor(riskNumber)

	return quiz.Assessment{
		Score:            score,
		MaxScore:         s.maxScore,
		RiskNumber:       riskNumber,
		Category:         tier.ID,
		Label:            tier.Label,
		Description:      tier.Description,
		EquityAllocation: tier.EquityAllocation,
	}, nil
}

// RiskNumber переводит сырой балл на шкалу 1..99 с округлением половины вверх
func RiskNumber(score, maxScore int) int {
	if maxScore <= 0 || score <= 0 {
		return 1
	}
	if score >= maxScore {
		return config.MaxRiskNumber
	}
	span := config.MaxRiskNumber - 1
	return 1 + (2*span*score+maxScore)/(2*maxScore)
}

func (s *Scorer) tierFor(riskNumber int) config.Tier {
	tier := s.tiers[0]
	for _, t := range s.tiers[1:] {
		if riskNumber < t.MinRiskNumber {
			break
		}
		tier = t
	}
	return tier
}
