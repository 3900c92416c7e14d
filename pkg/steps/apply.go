package steps

import (
	"context"
	"log/slog"

	"github.com/rectifyd/rectify/pkg/models"
)

// ApplyRules executes the pending rules against a copy of the records and
// appends one applied action per executed rule. Rules for columns absent
// from every record are skipped.
type ApplyRules struct {
	logger *slog.Logger
}

func NewApplyRules(logger *slog.Logger) *ApplyRules {
	return &ApplyRules{logger: logger}
}

func (s *ApplyRules) Apply(_ context.Context, state models.DataState) (models.DataState, error) {
	records := cloneRecords(state.Records)

	actions := make([]models.AppliedAction, 0, len(state.Rules))

	for _, rule := range state.Rules {
		if !hasColumn(records, rule.Column) {
			continue
		}

		switch rule.RuleType {
		case RuleImputeMean:
			if action, ok := imputeMean(records, rule); ok {
				actions = append(actions, action)
			}
		case RuleImputeMode:
			if action, ok := imputeMode(records, rule); ok {
				actions = append(actions, action)
			}
		case RuleClip:
			actions = append(actions, clip(records, rule))
		default:
			s.logger.Warn("Skipping rule with unknown type", "rule_type", rule.RuleType, "column", rule.Column)
		}
	}

	state.Records = records

	applied := make([]models.AppliedAction, 0, len(state.AppliedActions)+len(actions))
	applied = append(applied, state.AppliedActions...)
	applied = append(applied, actions...)
	state.AppliedActions = applied

	s.logger.Debug("Applied rules", "rules", len(state.Rules), "actions", len(actions))

	return state, nil
}

func hasColumn(records []map[string]any, column string) bool {
	for _, record := range records {
		if _, ok := record[column]; ok {
			return true
		}
	}

	return false
}

func imputeMean(records []map[string]any, rule models.Rule) (models.AppliedAction, bool) {
	values := columnValues(records, rule.Column)

	floats, numeric := nonNullFloats(values)
	if !numeric || len(floats) == 0 {
		return models.AppliedAction{}, false
	}

	fill := mean(floats)
	filled := fillNulls(records, rule.Column, fill)

	return models.AppliedAction{Rule: rule, Filled: &filled}, true
}

func imputeMode(records []map[string]any, rule models.Rule) (models.AppliedAction, bool) {
	fill, ok := mode(columnValues(records, rule.Column))
	if !ok {
		return models.AppliedAction{}, false
	}

	filled := fillNulls(records, rule.Column, fill)

	return models.AppliedAction{Rule: rule, Filled: &filled}, true
}

func fillNulls(records []map[string]any, column string, fill any) int {
	filled := 0

	for _, record := range records {
		if isNull(record[column]) {
			record[column] = fill
			filled++
		}
	}

	return filled
}

func clip(records []map[string]any, rule models.Rule) models.AppliedAction {
	lo, hasLo := ruleParamFloat(rule, "min")
	hi, hasHi := ruleParamFloat(rule, "max")

	clipped := 0

	for _, record := range records {
		value := record[rule.Column]
		if isNull(value) {
			continue
		}

		f, ok := asFloat(value)
		if !ok {
			continue
		}

		if (hasLo && f < lo) || (hasHi && f > hi) {
			clipped++
		}

		if hasLo && f < lo {
			record[rule.Column] = lo
		} else if hasHi && f > hi {
			record[rule.Column] = hi
		}
	}

	return models.AppliedAction{Rule: rule, Clipped: &clipped}
}

func ruleParamFloat(rule models.Rule, key string) (float64, bool) {
	raw, ok := rule.Params[key]
	if !ok || raw == nil {
		return 0, false
	}

	return asFloat(raw)
}
