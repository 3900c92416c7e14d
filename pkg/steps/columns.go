package steps

import (
	"math"
	"sort"

	"github.com/rectifyd/rectify/pkg/models"
)

// columnNames returns the union of record keys in sorted order, so profiles
// and anomaly listings are deterministic regardless of record shape.
func columnNames(records []map[string]any) []string {
	seen := make(map[string]struct{})

	for _, record := range records {
		for key := range record {
			seen[key] = struct{}{}
		}
	}

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// columnValues returns one value per record for the column. A record without
// the key contributes nil, the same as an explicit null.
func columnValues(records []map[string]any, column string) []any {
	values := make([]any, len(records))
	for i, record := range records {
		values[i] = record[column]
	}

	return values
}

func isNull(value any) bool {
	if value == nil {
		return true
	}

	if f, ok := asFloat(value); ok {
		return math.IsNaN(f)
	}

	return false
}

// asFloat coerces the numeric shapes JSON decoding and in-process callers
// produce. It does not parse strings.
func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// nonNullFloats extracts the non-null values of a column as floats. The
// second result is false when any non-null value is not numeric, which
// disqualifies the column from numeric statistics.
func nonNullFloats(values []any) ([]float64, bool) {
	out := make([]float64, 0, len(values))

	for _, value := range values {
		if isNull(value) {
			continue
		}

		f, ok := asFloat(value)
		if !ok {
			return nil, false
		}

		out = append(out, f)
	}

	return out, true
}

func countNulls(values []any) int {
	count := 0

	for _, value := range values {
		if isNull(value) {
			count++
		}
	}

	return count
}

func countUnique(values []any) int {
	seen := make(map[any]struct{})

	for _, value := range values {
		if isNull(value) {
			continue
		}

		seen[comparableKey(value)] = struct{}{}
	}

	return len(seen)
}

// comparableKey folds equal numbers of different Go types onto one map key.
func comparableKey(value any) any {
	if f, ok := asFloat(value); ok {
		return f
	}

	return value
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}

	return sum / float64(len(values))
}

// stddev is the sample standard deviation (one delta degree of freedom). It
// needs at least two values.
func stddev(values []float64) float64 {
	m := mean(values)

	sum := 0.0
	for _, v := range values {
		d := v - m
		sum += d * d
	}

	return math.Sqrt(sum / float64(len(values)-1))
}

// mode returns the most frequent non-null value. Ties resolve to the value
// seen first. The second result is false when every value is null.
func mode(values []any) (any, bool) {
	counts := make(map[any]int)

	var order []any

	for _, value := range values {
		if isNull(value) {
			continue
		}

		key := comparableKey(value)
		if counts[key] == 0 {
			order = append(order, key)
		}

		counts[key]++
	}

	if len(order) == 0 {
		return nil, false
	}

	best := order[0]
	for _, key := range order[1:] {
		if counts[key] > counts[best] {
			best = key
		}
	}

	return best, true
}

// Column dtype labels follow the usual dataframe naming so profiles read
// familiarly: int64 for whole-number columns without nulls, float64 for any
// other numeric column and object for everything else.
func columnDtype(values []any) string {
	floats, numeric := nonNullFloats(values)
	if !numeric || len(floats) == 0 {
		return "object"
	}

	if countNulls(values) > 0 {
		return "float64"
	}

	for _, f := range floats {
		if f != math.Trunc(f) {
			return "float64"
		}
	}

	return "int64"
}

func isNumericDtype(dtype string) bool {
	return dtype == "int64" || dtype == "float64"
}

func cloneRecords(records []map[string]any) []map[string]any {
	out := make([]map[string]any, len(records))

	for i, record := range records {
		copied := make(map[string]any, len(record))
		for key, value := range record {
			copied[key] = value
		}

		out[i] = copied
	}

	return out
}

func nonNegativeColumns(state models.DataState) map[string]struct{} {
	columns := state.MetadataStringSlice(MetadataNonNegativeColumns)

	set := make(map[string]struct{}, len(columns))
	for _, column := range columns {
		set[column] = struct{}{}
	}

	return set
}

func floatPtr(f float64) *float64 {
	return &f
}
