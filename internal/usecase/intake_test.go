package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncrvault/syncr/internal/domain"
	"github.com/syncrvault/syncr/internal/usecase"
)

func newIntake(jobs *memJobs, ledger *memLedger, queue *memQueue, sp, yt *fakeProvider) usecase.IntakeService {
	return usecase.NewIntakeService(jobs, ledger, queue, &fakeFactory{sp: sp, yt: yt}, 10000, 500)
}

func sourceWithTracks(name string, n int) *fakeProvider {
	p := newFakeProvider()
	p.playlists[name] = domain.Playlist{ID: "src-1", Title: name, TrackCount: n}
	return p
}

func TestStartSync_HappyPath(t *testing.T) {
	jobs, ledger, queue := newMemJobs(), &memLedger{}, &memQueue{}
	s := newIntake(jobs, ledger, queue, sourceWithTracks("Road Trip", 2), newFakeProvider())

	id, err := s.StartSync(context.Background(), domain.JobTypeSyncSpToYt, "Road Trip", "user-1")
	require.NoError(t, err)

	job, err := jobs.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.JobPending, job.Status)
	assert.Empty(t, job.Notes)

	require.Len(t, queue.syncs, 1)
	assert.Equal(t, domain.JobTypeSyncSpToYt, queue.syncTypes[0])
	assert.Equal(t, id, queue.syncs[0].JobID)
	assert.Zero(t, queue.syncs[0].SongLimit)

	// Full reservation: 2 * 51.
	used, _ := ledger.Used(context.Background())
	assert.Equal(t, 102, used)
}

func TestStartSync_InvalidName(t *testing.T) {
	jobs, queue := newMemJobs(), &memQueue{}
	s := newIntake(jobs, &memLedger{}, queue, sourceWithTracks("x", 2), newFakeProvider())

	for _, name := range []string{"a/b", `a\b`, "a[b]", "a?b", "a#b", "a&b", `a"b`, ""} {
		_, err := s.StartSync(context.Background(), domain.JobTypeSyncSpToYt, name, "user-1")
		require.ErrorIs(t, err, domain.ErrInvalidArgument, "name %q", name)
	}
	// No job row and no task for any rejected name.
	assert.Empty(t, jobs.order)
	assert.Empty(t, queue.syncs)
}

func TestStartSync_MissingUser(t *testing.T) {
	s := newIntake(newMemJobs(), &memLedger{}, &memQueue{}, sourceWithTracks("x", 2), newFakeProvider())
	_, err := s.StartSync(context.Background(), domain.JobTypeSyncSpToYt, "x", "")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestStartSync_PlaylistNotFound(t *testing.T) {
	s := newIntake(newMemJobs(), &memLedger{}, &memQueue{}, newFakeProvider(), newFakeProvider())
	_, err := s.StartSync(context.Background(), domain.JobTypeSyncSpToYt, "Missing", "user-1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStartSync_AuthFailure(t *testing.T) {
	jobs, queue := newMemJobs(), &memQueue{}
	s := usecase.NewIntakeService(jobs, &memLedger{}, queue, &fakeFactory{err: domain.ErrUnauthorized}, 10000, 500)
	_, err := s.StartSync(context.Background(), domain.JobTypeSyncSpToYt, "Road Trip", "user-1")
	require.ErrorIs(t, err, domain.ErrUnauthorized)
	assert.Empty(t, jobs.order)
}

func TestStartSync_EmptyPlaylistCompletesImmediately(t *testing.T) {
	jobs, ledger, queue := newMemJobs(), &memLedger{}, &memQueue{}
	s := newIntake(jobs, ledger, queue, sourceWithTracks("Empty", 0), newFakeProvider())

	id, err := s.StartSync(context.Background(), domain.JobTypeSyncSpToYt, "Empty", "user-1")
	require.NoError(t, err)

	job, _ := jobs.Get(context.Background(), id)
	assert.Equal(t, domain.JobCompleted, job.Status)
	assert.Equal(t, "No songs to sync", job.Notes)
	require.NotNil(t, job.Result)
	assert.Empty(t, job.Result.Songs)

	// No task and no reservation for an empty playlist.
	assert.Empty(t, queue.syncs)
	used, _ := ledger.Used(context.Background())
	assert.Zero(t, used)
}

func TestStartSync_QuotaPartial(t *testing.T) {
	jobs, queue := newMemJobs(), &memQueue{}
	ledger := &memLedger{total: 9000}
	s := newIntake(jobs, ledger, queue, sourceWithTracks("Big", 20), newFakeProvider())

	id, err := s.StartSync(context.Background(), domain.JobTypeSyncSpToYt, "Big", "user-1")
	require.NoError(t, err)

	// Full reservation of 20*51=1020 cannot fit above 9000 under the
	// 9500 ceiling; floor(500/51)=9 songs can.
	job, _ := jobs.Get(context.Background(), id)
	assert.Equal(t, "Sync limited to 9 of 20 songs due to API quota.", job.Notes)
	require.Len(t, queue.syncs, 1)
	assert.Equal(t, 9, queue.syncs[0].SongLimit)
	used, _ := ledger.Used(context.Background())
	assert.Equal(t, 9000+9*51, used)
}

func TestStartSync_QuotaExhausted(t *testing.T) {
	jobs, queue := newMemJobs(), &memQueue{}
	ledger := &memLedger{total: 9950}
	s := newIntake(jobs, ledger, queue, sourceWithTracks("Big", 20), newFakeProvider())

	_, err := s.StartSync(context.Background(), domain.JobTypeSyncSpToYt, "Big", "user-1")
	require.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Empty(t, jobs.order)
	assert.Empty(t, queue.syncs)
}

func TestStartSync_YtToSpCostsOnePerTrack(t *testing.T) {
	jobs, queue := newMemJobs(), &memQueue{}
	ledger := &memLedger{}
	yt := sourceWithTracks("Watch Later", 300)
	s := newIntake(jobs, ledger, queue, newFakeProvider(), yt)

	_, err := s.StartSync(context.Background(), domain.JobTypeSyncYtToSp, "Watch Later", "user-1")
	require.NoError(t, err)
	used, _ := ledger.Used(context.Background())
	assert.Equal(t, 300, used)
}

func TestStartSync_EnqueueFailureMarksError(t *testing.T) {
	jobs := newMemJobs()
	queue := &memQueue{err: assert.AnError}
	s := newIntake(jobs, &memLedger{}, queue, sourceWithTracks("Road Trip", 2), newFakeProvider())

	_, err := s.StartSync(context.Background(), domain.JobTypeSyncSpToYt, "Road Trip", "user-1")
	require.Error(t, err)
	require.Len(t, jobs.order, 1)
	job, _ := jobs.Get(context.Background(), jobs.order[0])
	assert.Equal(t, domain.JobError, job.Status)
}

func TestStartMerge(t *testing.T) {
	jobs, queue := newMemJobs(), &memQueue{}
	s := newIntake(jobs, &memLedger{}, queue, newFakeProvider(), newFakeProvider())

	id, err := s.StartMerge(context.Background(), domain.MergeTaskPayload{
		YTPlaylist: "Mix A", SPPlaylist: "Mix B", NewPlaylistName: "Merged", UserID: "user-1",
	})
	require.NoError(t, err)

	job, _ := jobs.Get(context.Background(), id)
	assert.Equal(t, domain.JobTypeMerge, job.Type)
	assert.Equal(t, domain.JobPending, job.Status)
	assert.Equal(t, "Merged", job.PlaylistName)
	require.Len(t, queue.merges, 1)
	assert.Equal(t, id, queue.merges[0].JobID)

	_, err = s.StartMerge(context.Background(), domain.MergeTaskPayload{
		YTPlaylist: "", SPPlaylist: "Mix B", NewPlaylistName: "Merged", UserID: "user-1",
	})
	require.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestFinalize(t *testing.T) {
	jobs, queue := newMemJobs(), &memQueue{}
	s := newIntake(jobs, &memLedger{}, queue, newFakeProvider(), newFakeProvider())

	id, err := jobs.Create(context.Background(), domain.Job{
		UserID: "user-1", Type: domain.JobTypeSyncSpToYt, Status: domain.JobReadyToFinalize,
		Result: &domain.JobResult{Songs: []domain.TrackDecision{}},
	})
	require.NoError(t, err)

	require.NoError(t, s.Finalize(context.Background(), id))
	job, _ := jobs.Get(context.Background(), id)
	assert.Equal(t, domain.JobFinalizing, job.Status)
	require.Len(t, queue.finalizes, 1)
	assert.Equal(t, id, queue.finalizes[0].JobID)

	// Second trigger: the job is no longer ready_to_finalize.
	err = s.Finalize(context.Background(), id)
	require.ErrorIs(t, err, domain.ErrConflict)
	assert.Contains(t, err.Error(), "finalizing")
	assert.Len(t, queue.finalizes, 1)
}

func TestFinalize_UnknownJob(t *testing.T) {
	s := newIntake(newMemJobs(), &memLedger{}, &memQueue{}, newFakeProvider(), newFakeProvider())
	err := s.Finalize(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
