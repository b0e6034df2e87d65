package flow

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/openloop-ai/openloop/tool"
)

func newTestStore(t *testing.T) *PlanStore {
	t.Helper()
	store, err := NewPlanStore(filepath.Join(t.TempDir(), "plans.db"), zap.NewNop())
	require.NoError(t, err)
	return store
}

func testPlan(id string) *tool.Plan {
	return &tool.Plan{
		ID:           id,
		Title:        "Test plan",
		Steps:        []string{"first", "second"},
		StepStatuses: []string{tool.StepCompleted, tool.StepNotStarted},
		StepNotes:    []string{"done quickly", ""},
	}
}

func TestPlanStore_SaveAndLoad(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testPlan("plan_a")))

	loaded, err := store.Load(ctx, "plan_a")
	require.NoError(t, err)
	assert.Equal(t, "Test plan", loaded.Title)
	assert.Equal(t, []string{"first", "second"}, loaded.Steps)
	assert.Equal(t, tool.StepCompleted, loaded.StepStatuses[0])
	assert.Equal(t, "done quickly", loaded.StepNotes[0])
}

func TestPlanStore_SaveUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	plan := testPlan("plan_b")
	require.NoError(t, store.Save(ctx, plan))

	plan.StepStatuses[1] = tool.StepCompleted
	require.NoError(t, store.Save(ctx, plan))

	loaded, err := store.Load(ctx, "plan_b")
	require.NoError(t, err)
	assert.Equal(t, tool.StepCompleted, loaded.StepStatuses[1])

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"plan_b"}, ids)
}

func TestPlanStore_LoadMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load(context.Background(), "nope")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPlanStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, testPlan("plan_c")))
	require.NoError(t, store.Delete(ctx, "plan_c"))

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
