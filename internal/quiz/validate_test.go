package quiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFinancialProfileValidate(t *testing.T) {
	valid := FinancialProfile{Age: 45, AnnualIncome: 90000, TotalSavings: 120000, MonthlyExpenses: 4000, InvestmentHorizonYears: 20}
	assert.NoError(t, valid.Validate())

	cases := map[string]func(p *FinancialProfile){
		"too young":         func(p *FinancialProfile) { p.Age = 17 },
		"too old":           func(p *FinancialProfile) { p.Age = 121 },
		"negative income":   func(p *FinancialProfile) { p.AnnualIncome = -1 },
		"negative savings":  func(p *FinancialProfile) { p.TotalSavings = -1 },
		"negative expenses": func(p *FinancialProfile) { p.MonthlyExpenses = -1 },
		"horizon too long":  func(p *FinancialProfile) { p.InvestmentHorizonYears = 61 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := valid
			mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidInput)
		})
	}
}

func TestContactInfoValidate(t *testing.T) {
	assert.NoError(t, ContactInfo{Name: "Jane Doe", Email: "jane@example.com"}.Validate())
	assert.NoError(t, ContactInfo{Name: "Jane Doe", Email: "jane@example.com", Phone: "+1 (541) 555-0100"}.Validate())

	cases := map[string]ContactInfo{
		"missing name":     {Email: "jane@example.com"},
		"missing email":    {Name: "Jane"},
		"bad email":        {Name: "Jane", Email: "jane-at-example"},
		"display email":    {Name: "Jane", Email: "Jane <jane@example.com>"},
		"letters in phone": {Name: "Jane", Email: "jane@example.com", Phone: "call me"},
		"short phone":      {Name: "Jane", Email: "jane@example.com", Phone: "555"},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, c.Validate(), ErrInvalidInput)
		})
	}
}

func TestContactInfoNormalize(t *testing.T) {
	got := ContactInfo{Name: "  Jane   Doe ", Email: " jane@example.com ", Phone: " 555 0100 "}.Normalize()
	assert.Equal(t, ContactInfo{Name: "Jane Doe", Email: "jane@example.com", Phone: "555 0100"}, got)
}

func TestAssessmentBondAllocation(t *testing.T) {
	assert.Equal(t, 40, Assessment{EquityAllocation: 60}.BondAllocation())
}
