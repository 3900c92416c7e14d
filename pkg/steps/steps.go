// Package steps ships the built-in data-quality pipeline steps and the
// default graph that wires them into a repair loop.
package steps

import (
	"log/slog"

	"github.com/rectifyd/rectify/pkg/models"
	"github.com/rectifyd/rectify/pkg/registry"
)

// Node names of the built-in steps.
const (
	ProfileDataNode       = "profile_data"
	IdentifyAnomaliesNode = "identify_anomalies"
	GenerateRulesNode     = "generate_rules"
	ApplyRulesNode        = "apply_rules"
	ReEvaluateNode        = "re_evaluate"
)

// MetadataNonNegativeColumns lists columns whose values must not be negative.
const MetadataNonNegativeColumns = "non_negative_columns"

// RegisterAll binds every built-in step into the registry.
func RegisterAll(reg *registry.Registry, logger *slog.Logger) {
	log := logger.With("module", "steps")

	reg.Register(ProfileDataNode, NewProfileData(log))
	reg.Register(IdentifyAnomaliesNode, NewIdentifyAnomalies(log))
	reg.Register(GenerateRulesNode, NewGenerateRules(log))
	reg.Register(ApplyRulesNode, NewApplyRules(log))
	reg.Register(ReEvaluateNode, NewReEvaluate(log))
}

// DefaultQualityGraph builds the canonical profile/detect/repair loop: the
// run keeps generating and applying rules until a re-evaluation finds no
// anomalies.
func DefaultQualityGraph() *models.Graph {
	repair := GenerateRulesNode

	return &models.Graph{
		Name:        "data-quality",
		Description: "Profile records, detect anomalies and repair them until clean.",
		StartNode:   ProfileDataNode,
		Edges: map[string]models.EdgeTarget{
			ProfileDataNode:       models.DirectEdge(IdentifyAnomaliesNode),
			IdentifyAnomaliesNode: models.DirectEdge(GenerateRulesNode),
			GenerateRulesNode:     models.DirectEdge(ApplyRulesNode),
			ApplyRulesNode:        models.DirectEdge(ReEvaluateNode),
			ReEvaluateNode: models.ConditionalTarget(
				models.Condition{LHS: "anomaly_count", Op: models.OpGreater, RHS: float64(0)},
				&repair,
				nil,
			),
		},
	}
}
