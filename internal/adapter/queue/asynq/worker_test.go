package asynqadp_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	asynqadp "github.com/syncrvault/syncr/internal/adapter/queue/asynq"
	"github.com/syncrvault/syncr/internal/domain"
)

type fakeRunner struct {
	syncType  domain.JobType
	syncP     domain.SyncTaskPayload
	mergeP    domain.MergeTaskPayload
	finalizeP domain.FinalizeTaskPayload
	cleanups  int
	err       error
}

func (f *fakeRunner) RunSync(_ domain.Context, jt domain.JobType, p domain.SyncTaskPayload) error {
	f.syncType, f.syncP = jt, p
	return f.err
}
func (f *fakeRunner) RunMerge(_ domain.Context, p domain.MergeTaskPayload) error {
	f.mergeP = p
	return f.err
}
func (f *fakeRunner) RunFinalize(_ domain.Context, p domain.FinalizeTaskPayload) error {
	f.finalizeP = p
	return f.err
}
func (f *fakeRunner) Cleanup(_ domain.Context) error {
	f.cleanups++
	return f.err
}

func mustTask(t *testing.T, name string, payload any) *asynq.Task {
	t.Helper()
	if payload == nil {
		return asynq.NewTask(name, nil)
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return asynq.NewTask(name, b)
}

func TestWorker_RoutesTasks(t *testing.T) {
	runner := &fakeRunner{}
	w, err := asynqadp.NewWorker("redis://127.0.0.1:6379", 5, runner)
	require.NoError(t, err)
	ctx := context.Background()

	p := domain.SyncTaskPayload{JobID: "job-1", PlaylistName: "Road Trip", UserID: "user-1"}
	require.NoError(t, w.ProcessTask(ctx, mustTask(t, domain.TaskSyncSpToYt, p)))
	assert.Equal(t, domain.JobTypeSyncSpToYt, runner.syncType)
	assert.Equal(t, p, runner.syncP)

	require.NoError(t, w.ProcessTask(ctx, mustTask(t, domain.TaskSyncYtToSp, p)))
	assert.Equal(t, domain.JobTypeSyncYtToSp, runner.syncType)

	mp := domain.MergeTaskPayload{JobID: "job-2", YTPlaylist: "A", SPPlaylist: "B", NewPlaylistName: "AB", UserID: "user-1"}
	require.NoError(t, w.ProcessTask(ctx, mustTask(t, domain.TaskMerge, mp)))
	assert.Equal(t, mp, runner.mergeP)

	require.NoError(t, w.ProcessTask(ctx, mustTask(t, domain.TaskFinalize, domain.FinalizeTaskPayload{JobID: "job-3"})))
	assert.Equal(t, "job-3", runner.finalizeP.JobID)

	require.NoError(t, w.ProcessTask(ctx, mustTask(t, domain.TaskCleanup, nil)))
	assert.Equal(t, 1, runner.cleanups)
}

func TestWorker_PropagatesRunnerError(t *testing.T) {
	runner := &fakeRunner{err: assert.AnError}
	w, err := asynqadp.NewWorker("redis://127.0.0.1:6379", 5, runner)
	require.NoError(t, err)

	err = w.ProcessTask(context.Background(), mustTask(t, domain.TaskFinalize, domain.FinalizeTaskPayload{JobID: "job-1"}))
	require.ErrorIs(t, err, assert.AnError)
}

func TestWorker_BadPayload(t *testing.T) {
	w, err := asynqadp.NewWorker("redis://127.0.0.1:6379", 5, &fakeRunner{})
	require.NoError(t, err)

	err = w.ProcessTask(context.Background(), asynq.NewTask(domain.TaskSyncSpToYt, []byte("{not json")))
	require.Error(t, err)
}
