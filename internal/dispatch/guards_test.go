package dispatch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/packflow/internal/engine"
	"github.com/petrijr/packflow/pkg/api"
)

func stateOf(t *testing.T, r StageReport, a api.ActionID) api.ActionState {
	t.Helper()
	for _, ar := range r.Actions {
		if ar.Action == a {
			return ar.State
		}
	}
	t.Fatalf("action %s not in report", a)
	return api.ActionState{}
}

func TestParseStage(t *testing.T) {
	st, ok := ParseStage(" s3 ")
	require.True(t, ok)
	assert.Equal(t, api.StageS3, st)

	_, ok = ParseStage("S6")
	assert.False(t, ok)
}

func TestEvaluateStage_BlueprintBlocksProcurement(t *testing.T) {
	ctx := context.Background()
	eng := engine.NewInMemoryEngine()
	buyer := api.RoleProcurement

	r, err := EvaluateStage(ctx, eng, api.StageS2, buyer, "")
	require.NoError(t, err)
	assert.Equal(t, api.StageS2, r.Stage)
	assert.Len(t, r.Actions, 7)
	assert.Equal(t, api.Deny("S1 Blueprint Not Ready"), stateOf(t, r, api.ActionCreatePO))

	admin, err := EvaluateStage(ctx, eng, api.StageS2, api.RoleSystemAdmin, "")
	require.NoError(t, err)
	assert.Equal(t, api.Allow(), stateOf(t, admin, api.ActionCreatePO))
}

func TestEvaluateStage_RoleReasons(t *testing.T) {
	ctx := context.Background()
	eng := engine.NewInMemoryEngine()

	r, err := EvaluateStage(ctx, eng, api.StageS1, api.RoleOperator, "")
	require.NoError(t, err)
	c, ok := r.Context.(api.S1Context)
	require.True(t, ok)
	assert.Equal(t, api.DependencyOK, c.SystemSetupDependency)
	assert.Equal(t, api.Deny("Requires Engineering Role"), stateOf(t, r, api.ActionCreateSku))
	assert.Equal(t, api.Deny("Requires Management Role"), stateOf(t, r, api.ActionApproveSku))
}

func TestEvaluateStage_UnknownStage(t *testing.T) {
	_, err := EvaluateStage(context.Background(), engine.NewInMemoryEngine(), api.Stage("S9"), api.RoleOperator, "")
	require.Error(t, err)
	assert.Equal(t, api.CodeBadRequest, api.CodeOf(err))
}
