package steps

import (
	"context"
	"log/slog"
	"math"

	"github.com/rectifyd/rectify/pkg/models"
)

// Anomaly issue labels.
const (
	IssueNull          = "null"
	IssueZOutlier      = "z_outlier"
	IssueNegativeValue = "negative_value"
)

// zScoreThreshold marks a numeric value anomalous when it sits more than
// this many sample deviations from the column mean.
const zScoreThreshold = 3.0

// IdentifyAnomalies scans the records for nulls, numeric outliers and
// negative values in columns declared non-negative, then rewrites the
// anomaly list and count.
type IdentifyAnomalies struct {
	logger *slog.Logger
}

func NewIdentifyAnomalies(logger *slog.Logger) *IdentifyAnomalies {
	return &IdentifyAnomalies{logger: logger}
}

func (s *IdentifyAnomalies) Apply(_ context.Context, state models.DataState) (models.DataState, error) {
	nonNegative := nonNegativeColumns(state)

	var anomalies []models.Anomaly

	for _, column := range columnNames(state.Records) {
		values := columnValues(state.Records, column)

		for i, value := range values {
			if isNull(value) {
				anomalies = append(anomalies, models.Anomaly{
					RowIndex: i,
					Column:   column,
					Issue:    IssueNull,
				})
			}
		}

		anomalies = append(anomalies, zOutliers(column, values)...)

		if _, ok := nonNegative[column]; ok {
			for i, value := range values {
				if f, numeric := asFloat(value); numeric && !isNull(value) && f < 0 {
					anomalies = append(anomalies, models.Anomaly{
						RowIndex: i,
						Column:   column,
						Issue:    IssueNegativeValue,
						Value:    value,
					})
				}
			}
		}
	}

	state.Anomalies = anomalies
	state.AnomalyCount = len(anomalies)

	s.logger.Debug("Identified anomalies", "count", state.AnomalyCount)

	return state, nil
}

// zOutliers flags values more than zScoreThreshold sample deviations from
// the mean. Columns with fewer than two numeric values or zero deviation
// have no outliers.
func zOutliers(column string, values []any) []models.Anomaly {
	floats, numeric := nonNullFloats(values)
	if !numeric || len(floats) < 2 {
		return nil
	}

	m := mean(floats)

	sd := stddev(floats)
	if sd <= 0 {
		return nil
	}

	var out []models.Anomaly

	for i, value := range values {
		if isNull(value) {
			continue
		}

		f, ok := asFloat(value)
		if !ok {
			continue
		}

		if math.Abs(f-m)/sd > zScoreThreshold {
			out = append(out, models.Anomaly{
				RowIndex: i,
				Column:   column,
				Issue:    IssueZOutlier,
				Value:    value,
			})
		}
	}

	return out
}
