package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxRiskNumber верхняя граница шкалы риска
const MaxRiskNumber = 99

//go:embed questionnaire.yaml
var defaultQuestionnaire []byte

// Default возвращает встроенную анкету
func Default() (*Questionnaire, error) {
	return Parse(defaultQuestionnaire)
}

// Load загружает анкету из YAML файла. Пустой путь означает встроенную анкету.
func Load(filename string) (*Questionnaire, error) {
	if strings.TrimSpace(filename) == "" {
		return Default()
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read questionnaire %s: %w", filename, err)
	}

	return Parse(data)
}

// Parse разбирает и валидирует анкету
func Parse(data []byte) (*Questionnaire, error) {
	var questionnaire Questionnaire
	if err := yaml.Unmarshal(data, &questionnaire); err != nil {
		return nil, fmt.Errorf("parse questionnaire yaml: %w", err)
	}

	if err := validateQuestionnaire(&questionnaire); err != nil {
		return nil, fmt.Errorf("validate questionnaire: %w", err)
	}

	return &questionnaire, nil
}

// validateQuestionnaire проверяет корректность анкеты и таблицы категорий
func validateQuestionnaire(q *Questionnaire) error {
	if len(q.Questions) == 0 {
		return fmt.Errorf("questions must not be empty")
	}

	seen := make(map[string]bool, len(q.Questions))
	for i, question := range q.Questions {
		if strings.TrimSpace(question.ID) == "" {
			return fmt.Errorf("question %d must have id", i+1)
		}
		if seen[question.ID] {
			return fmt.Errorf("duplicate question id %q", question.ID)
		}
		seen[question.ID] = true

		if strings.TrimSpace(question.Text) == "" {
			return fmt.Errorf("question %q must have text", question.ID)
		}
		if question.Weight <= 0 {
			return fmt.Errorf("question %q weight must be positive", question.ID)
		}
		if len(question.Options) < 2 {
			return fmt.Errorf("question %q must have at least 2 options", question.ID)
		}

		values := make(map[int]bool, len(question.Options))
		for _, opt := range question.Options {
			if strings.TrimSpace(opt.Label) == "" {
				return fmt.Errorf("question %q has option without label", question.ID)
			}
			if values[opt.Value] {
				return fmt.Errorf("question %q has duplicate option value %d", question.ID, opt.Value)
			}
			values[opt.Value] = true
		}
	}

	if len(q.Tiers) == 0 {
		return fmt.Errorf("tiers must not be empty")
	}
	if q.Tiers[0].MinRiskNumber != 1 {
		return fmt.Errorf("first tier must start at risk number 1, got %d", q.Tiers[0].MinRiskNumber)
	}

	for i, tier := range q.Tiers {
		if strings.TrimSpace(tier.ID) == "" || strings.TrimSpace(tier.Label) == "" {
			return fmt.Errorf("tier %d must have id and label", i+1)
		}
		if tier.MinRiskNumber > MaxRiskNumber {
			return fmt.Errorf("tier %q starts above %d", tier.ID, MaxRiskNumber)
		}
		if i > 0 && tier.MinRiskNumber <= q.Tiers[i-1].MinRiskNumber {
			return fmt.Errorf("tier %q must start after tier %q", tier.ID, q.Tiers[i-1].ID)
		}
		if tier.EquityAllocation < 0 || tier.EquityAllocation > 100 {
			return fmt.Errorf("tier %q equity allocation must be between 0 and 100", tier.ID)
		}
	}

	return nil
}
