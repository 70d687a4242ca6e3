package quiz

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
)

// ErrInvalidInput ошибка пользовательского ввода в форме
var ErrInvalidInput = errors.New("invalid input")

const (
	minAge     = 18
	maxAge     = 120
	maxHorizon = 60
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// Validate проверяет поля финансового профиля
func (p FinancialProfile) Validate() error {
	if p.Age < minAge || p.Age > maxAge {
		return invalid("age must be between %d and %d", minAge, maxAge)
	}
	if p.AnnualIncome < 0 {
		return invalid("annual income must not be negative")
	}
	if p.TotalSavings < 0 {
		return invalid("total savings must not be negative")
	}
	if p.MonthlyExpenses < 0 {
		return invalid("monthly expenses must not be negative")
	}
	if p.InvestmentHorizonYears < 0 || p.InvestmentHorizonYears > maxHorizon {
		return invalid("investment horizon must be between 0 and %d years", maxHorizon)
	}
	return nil
}

// Normalize убирает лишние пробелы в контактах
func (c ContactInfo) Normalize() ContactInfo {
	return ContactInfo{
		Name:  strings.Join(strings.Fields(c.Name), " "),
		Email: strings.TrimSpace(c.Email),
		Phone: strings.TrimSpace(c.Phone),
	}
}

// Validate проверяет контакты. Телефон необязателен.
func (c ContactInfo) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name is required")
	}
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return invalid("email %q is not a valid address", email)
	}
	if phone := strings.TrimSpace(c.Phone); phone != "" {
		digits := 0
		for _, r := range phone {
			switch {
			case r >= '0' && r <= '9':
				digits++
			case strings.ContainsRune(" +-().", r):
			default:
				return invalid("phone may contain only digits, spaces and + - ( )")
			}
		}
		if digits < 7 {
			return invalid("phone must contain at least 7 digits")
		}
	}
	return nil
}
