package usecase

import (
	"fmt"
	"regexp"
	"time"

	"github.com/syncrvault/syncr/internal/domain"
)

// Per-track unit costs for reservation. SP→YT pays for one list plus
// one insert per track on the YouTube side; YT→SP only pays the list.
const (
	CostPerSongSpToYt = 51
	CostPerSongYtToSp = 1
)

const noSongsNote = "No songs to sync"

// playlistNameRe rejects characters that break provider search and
// path semantics.
var playlistNameRe = regexp.MustCompile(`^[^\\/\[\]+?#&%*|<>"']+$`)

// IntakeService admits sync and merge requests: validates, reserves
// quota, creates the job row and enqueues the task.
type IntakeService struct {
	Jobs      domain.JobRepository
	Ledger    domain.QuotaLedger
	Queue     domain.Queue
	Providers domain.ProviderFactory

	QuotaLimit  int
	QuotaBuffer int
}

// NewIntakeService constructs an IntakeService.
func NewIntakeService(jobs domain.JobRepository, ledger domain.QuotaLedger, queue domain.Queue, providers domain.ProviderFactory, quotaLimit, quotaBuffer int) IntakeService {
	return IntakeService{Jobs: jobs, Ledger: ledger, Queue: queue, Providers: providers, QuotaLimit: quotaLimit, QuotaBuffer: quotaBuffer}
}

// ValidPlaylistName reports whether name passes intake validation.
func ValidPlaylistName(name string) bool {
	return name != "" && playlistNameRe.MatchString(name)
}

func (s IntakeService) ceiling() int { return s.QuotaLimit - s.QuotaBuffer }

// StartSync admits one sync request and returns the new job id.
func (s IntakeService) StartSync(ctx domain.Context, jobType domain.JobType, playlistName, userID string) (string, error) {
	if jobType != domain.JobTypeSyncSpToYt && jobType != domain.JobTypeSyncYtToSp {
		return "", fmt.Errorf("%w: job type %q", domain.ErrInvalidArgument, jobType)
	}
	if !ValidPlaylistName(playlistName) {
		return "", fmt.Errorf("%w: invalid playlist name", domain.ErrInvalidArgument)
	}
	if userID == "" {
		return "", fmt.Errorf("%w: user_id required", domain.ErrInvalidArgument)
	}

	source, err := s.sourceProvider(ctx, jobType, userID)
	if err != nil {
		return "", err
	}
	src, err := source.GetPlaylistByName(ctx, playlistName)
	if err != nil {
		return "", err
	}

	if src.TrackCount == 0 {
		// Nothing to match and nothing to finalize; the job is born
		// done and no task is enqueued.
		return s.Jobs.Create(ctx, domain.Job{
			UserID:       userID,
			Type:         jobType,
			Status:       domain.JobCompleted,
			PlaylistName: playlistName,
			Result:       &domain.JobResult{Songs: []domain.TrackDecision{}, Summary: noSongsNote},
			Notes:        noSongsNote,
			CreatedAt:    time.Now().UTC(),
			UpdatedAt:    time.Now().UTC(),
		})
	}

	costPerSong := CostPerSongSpToYt
	if jobType == domain.JobTypeSyncYtToSp {
		costPerSong = CostPerSongYtToSp
	}
	songLimit, notes, err := s.reserve(ctx, src.TrackCount, costPerSong)
	if err != nil {
		return "", err
	}

	jobID, err := s.Jobs.Create(ctx, domain.Job{
		UserID:       userID,
		Type:         jobType,
		Status:       domain.JobPending,
		PlaylistName: playlistName,
		Notes:        notes,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	err = s.Queue.EnqueueSync(ctx, jobType, domain.SyncTaskPayload{
		JobID:        jobID,
		PlaylistName: playlistName,
		UserID:       userID,
		SongLimit:    songLimit,
	})
	if err != nil {
		s.markEnqueueFailed(ctx, jobID)
		return "", err
	}
	return jobID, nil
}

// reserve books the estimated cost, falling back to a partial
// reservation when the full amount does not fit the day's budget.
func (s IntakeService) reserve(ctx domain.Context, trackCount, costPerSong int) (songLimit int, notes string, err error) {
	estimated := trackCount * costPerSong
	ok, err := s.Ledger.Reserve(ctx, estimated, s.ceiling())
	if err != nil {
		return 0, "", err
	}
	if ok {
		return 0, "", nil
	}

	used, err := s.Ledger.Used(ctx)
	if err != nil {
		return 0, "", err
	}
	songsToSync := (s.ceiling() - used) / costPerSong
	if songsToSync < 1 {
		return 0, "", fmt.Errorf("daily quota exhausted: %w", domain.ErrQuotaExceeded)
	}
	ok, err = s.Ledger.Reserve(ctx, songsToSync*costPerSong, s.ceiling())
	if err != nil {
		return 0, "", err
	}
	if !ok {
		return 0, "", fmt.Errorf("daily quota exhausted: %w", domain.ErrQuotaExceeded)
	}
	notes = fmt.Sprintf("Sync limited to %d of %d songs due to API quota.", songsToSync, trackCount)
	return songsToSync, notes, nil
}

// StartMerge admits one merge request. Merge does not pre-reserve
// quota; it is rare and bounded by the two source playlists.
func (s IntakeService) StartMerge(ctx domain.Context, p domain.MergeTaskPayload) (string, error) {
	if !ValidPlaylistName(p.NewPlaylistName) {
		return "", fmt.Errorf("%w: invalid playlist name", domain.ErrInvalidArgument)
	}
	if p.YTPlaylist == "" || p.SPPlaylist == "" {
		return "", fmt.Errorf("%w: both source playlists required", domain.ErrInvalidArgument)
	}
	if p.UserID == "" {
		return "", fmt.Errorf("%w: user_id required", domain.ErrInvalidArgument)
	}
	jobID, err := s.Jobs.Create(ctx, domain.Job{
		UserID:       p.UserID,
		Type:         domain.JobTypeMerge,
		Status:       domain.JobPending,
		PlaylistName: p.NewPlaylistName,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	p.JobID = jobID
	if err := s.Queue.EnqueueMerge(ctx, p); err != nil {
		s.markEnqueueFailed(ctx, jobID)
		return "", err
	}
	return jobID, nil
}

// Finalize moves a matched job into finalizing and enqueues the write
// phase. A CAS miss reports the job's actual state.
func (s IntakeService) Finalize(ctx domain.Context, jobID string) error {
	err := s.Jobs.Transition(ctx, jobID, domain.JobReadyToFinalize, domain.JobFinalizing, domain.JobPatch{})
	if err == nil {
		if qerr := s.Queue.EnqueueFinalize(ctx, domain.FinalizeTaskPayload{JobID: jobID}); qerr != nil {
			msg := "finalize enqueue failed"
			_ = s.Jobs.Transition(ctx, jobID, domain.JobFinalizing, domain.JobError, domain.JobPatch{Error: &msg})
			return qerr
		}
		return nil
	}
	job, gerr := s.Jobs.Get(ctx, jobID)
	if gerr != nil {
		return gerr
	}
	return fmt.Errorf("job is %s, not %s: %w", job.Status, domain.JobReadyToFinalize, domain.ErrConflict)
}

func (s IntakeService) sourceProvider(ctx domain.Context, jobType domain.JobType, userID string) (domain.Provider, error) {
	if jobType == domain.JobTypeSyncSpToYt {
		return s.Providers.Spotify(ctx, userID)
	}
	return s.Providers.YouTube(ctx, userID)
}

func (s IntakeService) markEnqueueFailed(ctx domain.Context, jobID string) {
	msg := "enqueue failed"
	_ = s.Jobs.Transition(ctx, jobID, domain.JobPending, domain.JobError, domain.JobPatch{Error: &msg})
}
