package quiz

import (
	"strconv"
	"strings"
)

// ProfileField поле формы профиля для пошагового ввода
type ProfileField struct {
	Name   string
	Prompt string
	apply  func(p *FinancialProfile, input string) error
}

// Apply разбирает ввод и записывает значение в черновик профиля
func (f ProfileField) Apply(p *FinancialProfile, input string) error {
	return f.apply(p, input)
}

// ContactField поле формы контактов
type ContactField struct {
	Name     string
	Prompt   string
	Optional bool
	apply    func(c *ContactInfo, input string) error
}

// Apply записывает значение в черновик контактов. Для необязательного поля
// "-" и "skip" оставляют его пустым.
func (f ContactField) Apply(c *ContactInfo, input string) error {
	input = strings.TrimSpace(input)
	if f.Optional && (input == "" || input == "-" || strings.EqualFold(input, "skip")) {
		input = ""
	}
	return f.apply(c, input)
}

var profileFields = []ProfileField{
	{
		Name:   "age",
		Prompt: "How old are you?",
		apply: func(p *FinancialProfile, input string) error {
			age, err := ParseWhole(input)
			if err != nil {
				return err
			}
			if age < minAge || age > maxAge {
				return invalid("age must be between %d and %d", minAge, maxAge)
			}
			p.Age = age
			return nil
		},
	},
	{
		Name:   "annual_income",
		Prompt: "What is your annual income (USD)?",
		apply: func(p *FinancialProfile, input string) (err error) {
			p.AnnualIncome, err = ParseAmount(input)
			return err
		},
	},
	{
		Name:   "total_savings",
		Prompt: "How much have you saved and invested in total (USD)?",
		apply: func(p *FinancialProfile, input string) (err error) {
			p.TotalSavings, err = ParseAmount(input)
			return err
		},
	},
	{
		Name:   "monthly_expenses",
		Prompt: "What are your monthly expenses (USD)?",
		apply: func(p *FinancialProfile, input string) (err error) {
			p.MonthlyExpenses, err = ParseAmount(input)
			return err
		},
	},
	{
		Name:   "investment_horizon",
		Prompt: "For how many years do you plan to keep this money invested?",
		apply: func(p *FinancialProfile, input string) error {
			years, err := ParseWhole(input)
			if err != nil {
				return err
			}
			if years > maxHorizon {
				return invalid("investment horizon must be between 0 and %d years", maxHorizon)
			}
			p.InvestmentHorizonYears = years
			return nil
		},
	},
}

var contactFields = []ContactField{
	{
		Name:   "name",
		Prompt: "What is your name?",
		apply: func(c *ContactInfo, input string) error {
			if input == "" {
				return invalid("name is required")
			}
			c.Name = strings.Join(strings.Fields(input), " ")
			return nil
		},
	},
	{
		Name:   "email",
		Prompt: "Where should we send your results? (email)",
		apply: func(c *ContactInfo, input string) error {
			check := ContactInfo{Name: "-", Email: input}
			if err := check.Validate(); err != nil {
				return err
			}
			c.Email = input
			return nil
		},
	},
	{
		Name:     "phone",
		Prompt:   "Phone number (optional, send - to skip)",
		Optional: true,
		apply: func(c *ContactInfo, input string) error {
			check := ContactInfo{Name: "-", Email: "x@example.com", Phone: input}
			if err := check.Validate(); err != nil {
				return err
			}
			c.Phone = input
			return nil
		},
	},
}

// ProfileFields поля профиля в порядке ввода
func ProfileFields() []ProfileField {
	return append([]ProfileField(nil), profileFields...)
}

// ContactFields поля контактов в порядке ввода
func ContactFields() []ContactField {
	return append([]ContactField(nil), contactFields...)
}

// ParseAmount разбирает сумму в целых долларах: "$85,000" и "85 000" допустимы
func ParseAmount(input string) (int64, error) {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "", "_", "").Replace(strings.TrimSpace(input))
	if cleaned == "" {
		return 0, invalid("enter an amount in whole dollars")
	}
	amount, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, invalid("%q is not a whole dollar amount", input)
	}
	if amount < 0 {
		return 0, invalid("amount must not be negative")
	}
	return amount, nil
}

// ParseWhole разбирает неотрицательное целое
func ParseWhole(input string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, invalid("%q is not a whole number", strings.TrimSpace(input))
	}
	if n < 0 {
		return 0, invalid("number must not be negative")
	}
	return n, nil
}
