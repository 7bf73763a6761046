package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getflowline/flowline/common/models"
	"github.com/getflowline/flowline/common/storage"
)

func newWorkflowRepo() *WorkflowRepository {
	return NewWorkflowRepository(storage.NewMemoryStore[*models.WorkflowDefinition](50))
}

func newRunRepo() *RunRepository {
	return NewRunRepository(storage.NewMemoryStore[*models.WorkflowRun](50))
}

func TestWorkflowRepositoryLifecycle(t *testing.T) {
	repo := newWorkflowRepo()
	ctx := context.Background()

	wf := &models.WorkflowDefinition{
		ID:   "wf-1",
		Name: "Onboarding",
		Steps: []models.Step{
			{Name: "wait", Type: models.ConnectorDelay, Delay: &models.DelayConfig{Duration: 1}},
		},
	}

	id, err := repo.Create(ctx, wf)
	require.NoError(t, err)
	assert.Equal(t, id, wf.UUID)

	fetched, found, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "Onboarding", fetched.Name)

	fetched.Description = "now documented"
	updated, err := repo.Update(ctx, fetched)
	require.NoError(t, err)
	assert.True(t, updated)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "now documented", all[0].Description)

	deleted, err := repo.Delete(ctx, id)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, found, err = repo.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestWorkflowRepositoryUpdateAbsent(t *testing.T) {
	repo := newWorkflowRepo()

	updated, err := repo.Update(context.Background(), &models.WorkflowDefinition{UUID: "ghost"})
	require.NoError(t, err)
	assert.False(t, updated)
}

func TestRunRepositorySave(t *testing.T) {
	repo := newRunRepo()
	ctx := context.Background()

	run := models.NewWorkflowRun("wf-1", nil)
	id, err := repo.Create(ctx, run)
	require.NoError(t, err)

	run.Status = models.RunRunning
	require.NoError(t, repo.Save(ctx, run))

	fetched, found, err := repo.Get(ctx, id)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, models.RunRunning, fetched.Status)
}

func TestRunRepositorySaveVanishedRun(t *testing.T) {
	repo := newRunRepo()

	run := models.NewWorkflowRun("wf-1", nil)
	run.UUID = "ghost"

	err := repo.Save(context.Background(), run)
	require.Error(t, err, "saving a run that no longer exists must not be silent")
	assert.Contains(t, err.Error(), "run ghost no longer exists")
}

func TestRunRepositoryListPage(t *testing.T) {
	repo := newRunRepo()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := repo.Create(ctx, models.NewWorkflowRun("wf-1", nil))
		require.NoError(t, err)
	}

	page, next, err := repo.ListPage(ctx, 3, "")
	require.NoError(t, err)
	assert.Len(t, page, 3)
	require.NotEmpty(t, next)

	rest, last, err := repo.ListPage(ctx, 3, next)
	require.NoError(t, err)
	assert.Len(t, rest, 2)
	assert.Empty(t, last)
}
