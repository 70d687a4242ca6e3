// Package quiz описывает сущности одного прохождения анкеты: финансовый профиль,
// ответы, итоговую оценку и контакты.
package quiz

// Answer представляет ответ на один вопрос анкеты
type Answer struct {
	QuestionID string `json:"questionId"`
	Value      int    `json:"value"`
}

// FinancialProfile представляет финансовый профиль пользователя. Суммы в целых долларах.
type FinancialProfile struct {
	Age                    int   `json:"age"`
	AnnualIncome           int64 `json:"annualIncome"`
	TotalSavings           int64 `json:"totalSavings"`
	MonthlyExpenses        int64 `json:"monthlyExpenses"`
	InvestmentHorizonYears int   `json:"investmentHorizonYears"`
}

// ContactInfo представляет контакты, которые пользователь оставляет перед результатами
type ContactInfo struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Assessment представляет итоговую оценку риска. После создания не изменяется.
type Assessment struct {
	Score            int    `json:"score"`
	MaxScore         int    `json:"maxScore"`
	RiskNumber       int    `json:"riskNumber"`
	Category         string `json:"category"`
	Label            string `json:"label"`
	Description      string `json:"description"`
	EquityAllocation int    `json:"equityAllocation"`
}

// BondAllocation доля консервативной части портфеля
func (a Assessment) BondAllocation() int {
	return 100 - a.EquityAllocation
}
