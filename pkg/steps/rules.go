package steps

import (
	"context"
	"log/slog"
	"sort"

	"github.com/rectifyd/rectify/pkg/models"
)

// Rule type labels.
const (
	RuleImputeMean = "impute_mean"
	RuleImputeMode = "impute_mode"
	RuleClip       = "clip"
)

// GenerateRules derives cleaning rules from the current profile: imputation
// for columns with nulls and clipping for numeric columns with spread. It
// replaces any rules from a previous loop pass.
type GenerateRules struct {
	logger *slog.Logger
}

func NewGenerateRules(logger *slog.Logger) *GenerateRules {
	return &GenerateRules{logger: logger}
}

func (s *GenerateRules) Apply(_ context.Context, state models.DataState) (models.DataState, error) {
	nonNegative := nonNegativeColumns(state)

	columns := make([]string, 0, len(state.Profile))
	for column := range state.Profile {
		columns = append(columns, column)
	}

	sort.Strings(columns)

	var rules []models.Rule

	for _, column := range columns {
		meta := state.Profile[column]

		if meta.NullCount > 0 {
			ruleType := RuleImputeMode
			if isNumericDtype(meta.Dtype) {
				ruleType = RuleImputeMean
			}

			rules = append(rules, models.Rule{Column: column, RuleType: ruleType})
		}

		if meta.Std != nil && *meta.Std != 0 && meta.Min != nil && meta.Max != nil {
			lo := *meta.Min

			// A column declared non-negative never clips below zero, even
			// when the observed minimum is negative.
			if _, ok := nonNegative[column]; ok && lo < 0 {
				lo = 0
			}

			rules = append(rules, models.Rule{
				Column:   column,
				RuleType: RuleClip,
				Params:   map[string]any{"min": lo, "max": *meta.Max},
			})
		}
	}

	state.Rules = rules

	s.logger.Debug("Generated rules", "count", len(rules))

	return state, nil
}
