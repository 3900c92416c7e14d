package steps

import (
	"context"
	"log/slog"

	"github.com/rectifyd/rectify/pkg/models"
)

// ProfileData computes per-column statistics over the current records and
// installs them as the state profile. Non-numeric columns get counts only.
type ProfileData struct {
	logger *slog.Logger
}

func NewProfileData(logger *slog.Logger) *ProfileData {
	return &ProfileData{logger: logger}
}

func (s *ProfileData) Apply(_ context.Context, state models.DataState) (models.DataState, error) {
	profile := make(map[string]models.ColumnProfile)

	for _, column := range columnNames(state.Records) {
		values := columnValues(state.Records, column)

		entry := models.ColumnProfile{
			Dtype:     columnDtype(values),
			NullCount: countNulls(values),
			Unique:    countUnique(values),
		}

		if isNumericDtype(entry.Dtype) {
			floats, _ := nonNullFloats(values)
			if len(floats) > 0 {
				lo, hi := floats[0], floats[0]
				for _, f := range floats[1:] {
					if f < lo {
						lo = f
					}

					if f > hi {
						hi = f
					}
				}

				entry.Min = floatPtr(lo)
				entry.Max = floatPtr(hi)
				entry.Mean = floatPtr(mean(floats))

				// The sample deviation is undefined for a single value.
				if len(floats) >= 2 {
					entry.Std = floatPtr(stddev(floats))
				}
			}
		}

		profile[column] = entry
	}

	state.Profile = profile

	s.logger.Debug("Profiled records", "columns", len(profile), "records", len(state.Records))

	return state, nil
}
