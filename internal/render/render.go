// Package render форматирует профиль, вопросы и результат в текст для
// Telegram, консоли и TUI.
package render

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"risk-number-quiz/internal/config"
	"risk-number-quiz/internal/quiz"
)

// Printer форматирует числа по правилам локали
type Printer struct {
	p *message.Printer
}

// New создает Printer для локали. Неизвестная локаль дает en-US.
func New(locale string) *Printer {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.AmericanEnglish
	}
	return &Printer{p: message.NewPrinter(tag)}
}

// Default Printer для en-US
func Default() *Printer {
	return New("en-US")
}

// Number целое с разделителями разрядов
func (r *Printer) Number(n int64) string {
	return r.p.Sprintf("%d", n)
}

// Money сумма в долларах
func (r *Printer) Money(amount int64) string {
	if amount < 0 {
		return "-$" + r.Number(-amount)
	}
	return "$" + r.Number(amount)
}

// Profile краткое описание финансового профиля
func (r *Printer) Profile(p quiz.FinancialProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Age: %d\n", p.Age)
	fmt.Fprintf(&b, "Annual income: %s\n", r.Money(p.AnnualIncome))
	fmt.Fprintf(&b, "Total savings: %s\n", r.Money(p.TotalSavings))
	fmt.Fprintf(&b, "Monthly expenses: %s\n", r.Money(p.MonthlyExpenses))
	fmt.Fprintf(&b, "Investment horizon: %d years", p.InvestmentHorizonYears)
	return b.String()
}

// Question текст вопроса с пронумерованными вариантами
func (r *Printer) Question(q config.Question, index, total int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Question %d of %d\n%s\n", index+1, total, q.Text)
	for i, opt := range q.Options {
		fmt.Fprintf(&b, "\n%d) %s", i+1, opt.Label)
	}
	return b.String()
}

// OptionValue значение варианта по его номеру, начиная с 1
func OptionValue(q config.Question, number int) (int, bool) {
	if number < 1 || number > len(q.Options) {
		return 0, false
	}
	return q.Options[number-1].Value, true
}

// Assessment итог анкеты
func (r *Printer) Assessment(a quiz.Assessment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your Risk Number: %d / %d\n", a.RiskNumber, config.MaxRiskNumber)
	fmt.Fprintf(&b, "Risk profile: %s\n", a.Label)
	fmt.Fprintf(&b, "Suggested allocation: %d%% stocks / %d%% bonds\n", a.EquityAllocation, a.BondAllocation())
	fmt.Fprintf(&b, "Score: %s of %s", r.Number(int64(a.Score)), r.Number(int64(a.MaxScore)))
	if a.Description != "" {
		fmt.Fprintf(&b, "\n\n%s", a.Description)
	}
	return b.String()
}

// Questionnaire анкета и таблица категорий целиком
func (r *Printer) Questionnaire(q *config.Questionnaire) string {
	var b strings.Builder
	b.WriteString(q.Title)
	b.WriteString("\n")
	for i, question := range q.Questions {
		min, max := question.Scale()
		fmt.Fprintf(&b, "\n%d. [%s] weight %d, scale %d..%d\n   %s\n", i+1, question.ID, question.Weight, min, max, question.Text)
		for _, opt := range question.Options {
			fmt.Fprintf(&b, "   %d = %s\n", opt.Value, opt.Label)
		}
	}
	b.WriteString("\nRisk tiers:\n")
	for i, tier := range q.Tiers {
		upper := config.MaxRiskNumber
		if i+1 < len(q.Tiers) {
			upper = q.Tiers[i+1].MinRiskNumber - 1
		}
		fmt.Fprintf(&b, "  %2d-%-2d %-24s %3d%% stocks\n", tier.MinRiskNumber, upper, tier.Label, tier.EquityAllocation)
	}
	return strings.TrimRight(b.String(), "\n")
}
