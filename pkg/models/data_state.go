// Package models defines the core domain models for data-quality pipeline execution.
package models

import "encoding/json"

// Anomaly describes a single data-quality finding in a record set.
type Anomaly struct {
	RowIndex int    `json:"row_index"`
	Column   string `json:"column"`
	Issue    string `json:"issue"`
	Value    any    `json:"value,omitempty"`
}

// Rule describes a cleaning action to apply to a column, e.g. "impute_mean",
// "impute_mode" or "clip".
type Rule struct {
	Column   string         `json:"column"   validate:"required"`
	RuleType string         `json:"rule_type" validate:"required"`
	Params   map[string]any `json:"params,omitempty"`
}

// AppliedAction records one executed rule and what it changed.
type AppliedAction struct {
	Rule    Rule `json:"rule"`
	Filled  *int `json:"filled,omitempty"`
	Clipped *int `json:"clipped,omitempty"`
}

// ColumnProfile holds computed statistics for a single column. The engine
// never interprets it; it is produced and consumed by steps.
type ColumnProfile struct {
	Dtype     string   `json:"dtype"`
	NullCount int      `json:"null_count"`
	Unique    int      `json:"unique"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
	Mean      *float64 `json:"mean,omitempty"`
	Std       *float64 `json:"std,omitempty"`
}

// DataState is the payload threaded through a pipeline run. It must stay
// JSON-serializable at all times; steps receive it by value and return the
// next state rather than patching the input.
type DataState struct {
	Records        []map[string]any         `json:"records"`
	Profile        map[string]ColumnProfile `json:"profile,omitempty"`
	Anomalies      []Anomaly                `json:"anomalies,omitempty"`
	Rules          []Rule                   `json:"rules,omitempty"`
	AppliedActions []AppliedAction          `json:"applied_actions,omitempty"`
	AnomalyCount   int                      `json:"anomaly_count"`
	Metadata       map[string]any           `json:"metadata,omitempty"`
	Iteration      int                      `json:"iteration"`
}

// Clone returns a deep copy of the state. DataState is JSON-serializable by
// contract, so a marshal round-trip is a faithful copy.
func (s DataState) Clone() DataState {
	raw, err := json.Marshal(s)
	if err != nil {
		// The serializability invariant is broken; propagating the zero
		// value here would silently lose data mid-run.
		panic("models: data state is not JSON-serializable: " + err.Error())
	}

	var out DataState

	if err := json.Unmarshal(raw, &out); err != nil {
		panic("models: data state round-trip failed: " + err.Error())
	}

	return out
}

// MetadataStringSlice reads a metadata key as a list of strings, tolerating
// the []any shape JSON decoding produces.
func (s DataState) MetadataStringSlice(key string) []string {
	raw, ok := s.Metadata[key]
	if !ok {
		return nil
	}

	switch v := raw.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))

		for _, item := range v {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}

		return out
	default:
		return nil
	}
}
