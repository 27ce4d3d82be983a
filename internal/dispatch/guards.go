package dispatch

import (
	"context"
	"strings"

	"github.com/petrijr/packflow/internal/guard"
	"github.com/petrijr/packflow/pkg/api"
)

// ActionReport is the guard verdict for one action of a stage.
type ActionReport struct {
	Action api.ActionID    `json:"action"`
	State  api.ActionState `json:"state"`
}

// StageReport is the evaluated stage context plus a verdict for each of
// the stage's actions.
type StageReport struct {
	Stage   api.Stage      `json:"stage"`
	Role    api.Role       `json:"role"`
	Context any            `json:"context"`
	Actions []ActionReport `json:"actions"`
}

// ParseStage accepts "S1" through "S5" in any case.
func ParseStage(s string) (api.Stage, bool) {
	st := api.Stage(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case api.StageS1, api.StageS2, api.StageS3, api.StageS4, api.StageS5:
		return st, true
	}
	return "", false
}

// EvaluateStage builds the current context of stage from the engine and
// runs the stage guard for every action in it. focus is the receipt id
// used by S3 and is ignored elsewhere.
func EvaluateStage(ctx context.Context, eng api.Engine, stage api.Stage, role api.Role, focus string) (StageReport, error) {
	var (
		sctx  any
		judge func(api.ActionID) api.ActionState
	)
	switch stage {
	case api.StageS1:
		c, err := eng.Stage1Context(ctx)
		if err != nil {
			return StageReport{}, err
		}
		sctx = c
		judge = func(a api.ActionID) api.ActionState { return guard.S1ActionState(role, c, a) }
	case api.StageS2:
		c, err := eng.Stage2Context(ctx)
		if err != nil {
			return StageReport{}, err
		}
		sctx = c
		judge = func(a api.ActionID) api.ActionState { return guard.S2ActionState(role, c, a) }
	case api.StageS3:
		c, err := eng.Stage3Context(ctx, focus)
		if err != nil {
			return StageReport{}, err
		}
		sctx = c
		judge = func(a api.ActionID) api.ActionState { return guard.S3ActionState(role, c, a) }
	case api.StageS4:
		c, err := eng.Stage4Context(ctx)
		if err != nil {
			return StageReport{}, err
		}
		sctx = c
		judge = func(a api.ActionID) api.ActionState { return guard.S4ActionState(role, c, a) }
	case api.StageS5:
		c, err := eng.Stage5Context(ctx)
		if err != nil {
			return StageReport{}, err
		}
		sctx = c
		judge = func(a api.ActionID) api.ActionState { return guard.S5ActionState(role, c, a) }
	default:
		return StageReport{}, api.BadRequest("Unknown stage %q", stage)
	}

	report := StageReport{Stage: stage, Role: role, Context: sctx}
	for _, a := range guard.Actions(stage) {
		report.Actions = append(report.Actions, ActionReport{Action: a, State: judge(a)})
	}
	return report, nil
}
