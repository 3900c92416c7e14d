package steps

import (
	"context"
	"log/slog"

	"github.com/rectifyd/rectify/pkg/models"
)

// ReEvaluate advances the loop counter, then re-profiles the cleaned records
// and re-detects anomalies so the graph's conditional edge sees the fresh
// anomaly count.
type ReEvaluate struct {
	logger  *slog.Logger
	profile *ProfileData
	detect  *IdentifyAnomalies
}

func NewReEvaluate(logger *slog.Logger) *ReEvaluate {
	return &ReEvaluate{
		logger:  logger,
		profile: NewProfileData(logger),
		detect:  NewIdentifyAnomalies(logger),
	}
}

func (s *ReEvaluate) Apply(ctx context.Context, state models.DataState) (models.DataState, error) {
	state.Iteration++

	state, err := s.profile.Apply(ctx, state)
	if err != nil {
		return state, err
	}

	state, err = s.detect.Apply(ctx, state)
	if err != nil {
		return state, err
	}

	s.logger.Debug("Re-evaluated records", "iteration", state.Iteration, "anomaly_count", state.AnomalyCount)

	return state, nil
}
