package config

// Questionnaire представляет анкету риск-профиля и таблицу оценки
type Questionnaire struct {
	Title     string     `yaml:"title"`
	Questions []Question `yaml:"questions"`
	Tiers     []Tier     `yaml:"tiers"`
}

// Question представляет один вопрос анкеты
type Question struct {
	ID      string   `yaml:"id"`
	Text    string   `yaml:"text"`
	Weight  int      `yaml:"weight"`
	Options []Option `yaml:"options"`
}

// Option представляет вариант ответа и его значение на шкале вопроса
type Option struct {
	Label string `yaml:"label"`
	Value int    `yaml:"value"`
}

// Tier представляет категорию риска. Категория действует начиная с MinRiskNumber
// и до MinRiskNumber следующей категории.
type Tier struct {
	ID               string `yaml:"id"`
	Label            string `yaml:"label"`
	MinRiskNumber    int    `yaml:"min_risk_number"`
	EquityAllocation int    `yaml:"equity_allocation"`
	Description      string `yaml:"description"`
}

// Scale возвращает минимальное и максимальное значение шкалы вопроса
func (q Question) Scale() (min, max int) {
	for i, opt := range q.Options {
		if i == 0 || opt.Value < min {
			min = opt.Value
		}
		if i == 0 || opt.Value > max {
			max = opt.Value
		}
	}
	return min, max
}

// InScale проверяет, что значение попадает в шкалу вопроса
func (q Question) InScale(value int) bool {
	min, max := q.Scale()
	return value >= min && value <= max
}

// Методы для удобного доступа к конфигурации
func (c *Questionnaire) GetTotalQuestions() int {
	return len(c.Questions)
}

func (c *Questionnaire) GetQuestion(index int) (Question, bool) {
	if index < 0 || index >= len(c.Questions) {
		return Question{}, false
	}
	return c.Questions[index], true
}
