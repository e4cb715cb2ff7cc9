package usecase

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/syncrvault/syncr/internal/adapter/observability"
	"github.com/syncrvault/syncr/internal/domain"
)

// RunnerService executes queued jobs. Every handler is idempotent:
// a redelivered task whose job already left pending is a silent no-op.
type RunnerService struct {
	Jobs      domain.JobRepository
	Ledger    domain.QuotaLedger
	Providers domain.ProviderFactory
	Pipeline  *Pipeline

	// Reaper cutoffs, set from config.
	StaleAge          time.Duration
	TerminalRetention time.Duration

	// now is swappable in tests.
	now func() time.Time
}

// NewRunnerService constructs a RunnerService.
func NewRunnerService(jobs domain.JobRepository, ledger domain.QuotaLedger, providers domain.ProviderFactory, staleAge, retention time.Duration) *RunnerService {
	return &RunnerService{
		Jobs:              jobs,
		Ledger:            ledger,
		Providers:         providers,
		Pipeline:          NewPipeline(),
		StaleAge:          staleAge,
		TerminalRetention: retention,
		now:               time.Now,
	}
}

// RunSync executes one sync job end to end: run the matching pipeline
// and park the result in ready_to_finalize.
func (s *RunnerService) RunSync(ctx domain.Context, jobType domain.JobType, p domain.SyncTaskPayload) error {
	job, err := s.Jobs.Get(ctx, p.JobID)
	if err != nil {
		return fmt.Errorf("op=runner.sync load: %w", err)
	}
	if job.Status != domain.JobPending {
		slog.Info("sync task redelivered for settled job",
			slog.String("job_id", p.JobID), slog.String("status", string(job.Status)))
		return nil
	}
	if p.SongLimit < 0 {
		s.failJob(ctx, p.JobID, string(jobType), "negative song_limit")
		return nil
	}

	source, target, err := s.syncProviders(ctx, jobType, p.UserID)
	if err != nil {
		s.failJob(ctx, p.JobID, string(jobType), err.Error())
		return nil
	}

	decisions, err := s.Pipeline.Run(ctx, source, target, p.PlaylistName, p.SongLimit)
	if err != nil {
		s.failJob(ctx, p.JobID, string(jobType), err.Error())
		return nil
	}

	found := 0
	for _, d := range decisions {
		if d.Status == domain.DecisionFound {
			found++
		}
	}
	result := &domain.JobResult{
		Songs:   decisions,
		Summary: fmt.Sprintf("%d of %d songs matched", found, len(decisions)),
	}
	if err := s.Jobs.Transition(ctx, p.JobID, domain.JobPending, domain.JobReadyToFinalize, domain.JobPatch{Result: result}); err != nil {
		slog.Error("sync result transition failed", slog.String("job_id", p.JobID), slog.Any("error", err))
		return nil
	}
	// Completion is counted once, when finalize reaches completed.
	slog.Info("sync matching finished", slog.String("job_id", p.JobID),
		slog.Int("found", found), slog.Int("total", len(decisions)))
	return nil
}

func (s *RunnerService) syncProviders(ctx domain.Context, jobType domain.JobType, userID string) (source, target domain.Provider, err error) {
	sp, err := s.Providers.Spotify(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	yt, err := s.Providers.YouTube(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	sp = BillProvider(sp, s.Ledger)
	yt = BillProvider(yt, s.Ledger)
	switch jobType {
	case domain.JobTypeSyncSpToYt:
		return sp, yt, nil
	case domain.JobTypeSyncYtToSp:
		return yt, sp, nil
	default:
		return nil, nil, fmt.Errorf("job type %q is not a sync: %w", jobType, domain.ErrInvalidArgument)
	}
}

// RunMerge builds a new playlist on both providers out of one playlist
// from each side. Same-side items are copied by id; opposite-side
// items go through the matching pipeline's search. Unmatched tracks
// are reported, not fatal.
func (s *RunnerService) RunMerge(ctx domain.Context, p domain.MergeTaskPayload) error {
	job, err := s.Jobs.Get(ctx, p.JobID)
	if err != nil {
		return fmt.Errorf("op=runner.merge load: %w", err)
	}
	if job.Status != domain.JobPending {
		slog.Info("merge task redelivered for settled job",
			slog.String("job_id", p.JobID), slog.String("status", string(job.Status)))
		return nil
	}

	summary, err := s.merge(ctx, p)
	if err != nil {
		s.failJob(ctx, p.JobID, string(domain.JobTypeMerge), err.Error())
		return nil
	}
	result := &domain.JobResult{
		Merge: summary,
		Summary: fmt.Sprintf("%d tracks on Spotify, %d on YouTube, %d unmatched",
			summary.SpotifyAdded, summary.YouTubeAdded, len(summary.Unmatched)),
	}
	if err := s.Jobs.Transition(ctx, p.JobID, domain.JobPending, domain.JobReadyToFinalize, domain.JobPatch{Result: result}); err != nil {
		slog.Error("merge result transition failed", slog.String("job_id", p.JobID), slog.Any("error", err))
		return nil
	}
	observability.CompleteJob(string(domain.JobTypeMerge))
	return nil
}

func (s *RunnerService) merge(ctx domain.Context, p domain.MergeTaskPayload) (*domain.MergeSummary, error) {
	sp, err := s.Providers.Spotify(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	yt, err := s.Providers.YouTube(ctx, p.UserID)
	if err != nil {
		return nil, err
	}
	sp = BillProvider(sp, s.Ledger)
	yt = BillProvider(yt, s.Ledger)

	spSrc, err := sp.GetPlaylistByName(ctx, p.SPPlaylist)
	if err != nil {
		return nil, fmt.Errorf("spotify playlist %q: %w", p.SPPlaylist, err)
	}
	ytSrc, err := yt.GetPlaylistByName(ctx, p.YTPlaylist)
	if err != nil {
		return nil, fmt.Errorf("youtube playlist %q: %w", p.YTPlaylist, err)
	}
	spItems, err := sp.ListPlaylistItems(ctx, spSrc.ID)
	if err != nil {
		return nil, fmt.Errorf("spotify playlist items: %w", err)
	}
	ytItems, err := yt.ListPlaylistItems(ctx, ytSrc.ID)
	if err != nil {
		return nil, fmt.Errorf("youtube playlist items: %w", err)
	}

	newSpID, err := sp.CreatePlaylist(ctx, p.NewPlaylistName)
	if err != nil {
		return nil, fmt.Errorf("create spotify playlist: %w", err)
	}
	newYtID, err := yt.CreatePlaylist(ctx, p.NewPlaylistName)
	if err != nil {
		return nil, fmt.Errorf("create youtube playlist: %w", err)
	}

	summary := &domain.MergeSummary{}

	spIDs, ytMatched, unmatched := s.mergeSide(ctx, spItems, yt)
	ytIDs, spMatched, unmatched2 := s.mergeSide(ctx, ytItems, sp)
	summary.Unmatched = append(unmatched, unmatched2...)

	spAll := append(spIDs, spMatched...)
	if err := sp.AddToPlaylist(ctx, newSpID, spAll); err != nil {
		return nil, fmt.Errorf("fill spotify playlist: %w", err)
	}
	summary.SpotifyAdded = len(spAll)

	ytAll := append(ytIDs, ytMatched...)
	if err := yt.AddToPlaylist(ctx, newYtID, ytAll); err != nil {
		return nil, fmt.Errorf("fill youtube playlist: %w", err)
	}
	summary.YouTubeAdded = len(ytAll)
	return summary, nil
}

// mergeSide splits one side's items into their own ids (copied as-is)
// and the ids matched on the opposite provider.
func (s *RunnerService) mergeSide(ctx domain.Context, items []domain.PlaylistItem, opposite domain.Provider) (own, matched []string, unmatched []domain.TrackDecision) {
	for _, it := range items {
		if it.Unplayable {
			unmatched = append(unmatched, domain.TrackDecision{
				Name: it.Title, Artist: it.Artist,
				Status: domain.DecisionNotFound, RequiresManualSearch: true,
				Reason: unplayableReason,
			})
			continue
		}
		own = append(own, it.SourceID)
		hit, err := opposite.SearchAuto(ctx, it.Title, it.Artist)
		if err != nil || hit == nil {
			unmatched = append(unmatched, domain.TrackDecision{
				Name: it.Title, Artist: it.Artist,
				Status: domain.DecisionNotFound, RequiresManualSearch: true,
			})
			continue
		}
		matched = append(matched, hit.TargetID)
	}
	return own, matched, unmatched
}

// RunFinalize writes a sync job's found tracks into the target
// playlist. Merge jobs wrote their playlists during the run, so their
// finalize only completes the job.
func (s *RunnerService) RunFinalize(ctx domain.Context, p domain.FinalizeTaskPayload) error {
	job, err := s.Jobs.Get(ctx, p.JobID)
	if err != nil {
		return fmt.Errorf("op=runner.finalize load: %w", err)
	}
	if job.Status != domain.JobFinalizing {
		slog.Info("finalize task redelivered for settled job",
			slog.String("job_id", p.JobID), slog.String("status", string(job.Status)))
		return nil
	}

	if err := s.finalize(ctx, job); err != nil {
		msg := err.Error()
		if terr := s.Jobs.Transition(ctx, p.JobID, domain.JobFinalizing, domain.JobError, domain.JobPatch{Error: &msg}); terr != nil {
			slog.Error("finalize error transition failed", slog.String("job_id", p.JobID), slog.Any("error", terr))
		}
		observability.FailJob(string(job.Type))
		return nil
	}
	if err := s.Jobs.Transition(ctx, p.JobID, domain.JobFinalizing, domain.JobCompleted, domain.JobPatch{}); err != nil {
		slog.Error("finalize complete transition failed", slog.String("job_id", p.JobID), slog.Any("error", err))
		return nil
	}
	observability.CompleteJob(string(job.Type))
	slog.Info("job finalized", slog.String("job_id", p.JobID))
	return nil
}

func (s *RunnerService) finalize(ctx domain.Context, job domain.Job) error {
	if job.Type == domain.JobTypeMerge {
		return nil
	}
	ids := job.Result.FoundTargetIDs()
	if len(ids) == 0 {
		return nil
	}
	var target domain.Provider
	var err error
	switch job.Type {
	case domain.JobTypeSyncSpToYt:
		target, err = s.Providers.YouTube(ctx, job.UserID)
	case domain.JobTypeSyncYtToSp:
		target, err = s.Providers.Spotify(ctx, job.UserID)
	default:
		return fmt.Errorf("job type %q cannot finalize: %w", job.Type, domain.ErrInvalidArgument)
	}
	if err != nil {
		return err
	}
	target = BillProvider(target, s.Ledger)

	dst, err := s.Pipeline.resolveOrCreateTarget(ctx, target, job.PlaylistName)
	if err != nil {
		return err
	}
	return target.AddToPlaylist(ctx, dst.ID, ids)
}

// Cleanup is the reaper pass: error out stuck jobs, then drop old
// terminal rows. Both steps are idempotent.
func (s *RunnerService) Cleanup(ctx domain.Context) error {
	now := s.now().UTC()
	ids, err := s.Jobs.SweepStale(ctx, now.Add(-s.StaleAge))
	if err != nil {
		return fmt.Errorf("op=runner.cleanup sweep: %w", err)
	}
	if len(ids) > 0 {
		observability.JobsReapedTotal.Add(float64(len(ids)))
		slog.Info("reaped stale jobs", slog.Int("count", len(ids)), slog.Any("job_ids", ids))
	}
	n, err := s.Jobs.DeleteTerminalBefore(ctx, now.Add(-s.TerminalRetention))
	if err != nil {
		return fmt.Errorf("op=runner.cleanup delete: %w", err)
	}
	if n > 0 {
		slog.Info("deleted terminal jobs", slog.Int64("count", n))
	}
	return nil
}

func (s *RunnerService) failJob(ctx domain.Context, jobID, jobType, msg string) {
	if err := s.Jobs.Transition(ctx, jobID, domain.JobPending, domain.JobError, domain.JobPatch{Error: &msg}); err != nil {
		slog.Error("error transition failed", slog.String("job_id", jobID), slog.Any("error", err))
	}
	observability.FailJob(jobType)
	slog.Warn("job failed", slog.String("job_id", jobID), slog.String("error", msg))
}
