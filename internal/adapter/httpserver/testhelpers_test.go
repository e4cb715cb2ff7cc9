package httpserver_test

import (
	"fmt"
	"sort"
	"time"

	"github.com/syncrvault/syncr/internal/domain"
)

// stubJobs is a map-backed domain.JobRepository for handler tests.
type stubJobs struct {
	jobs        map[string]*domain.Job
	nextID      int
	transitions []string
}

func newStubJobs(seed ...domain.Job) *stubJobs {
	s := &stubJobs{jobs: map[string]*domain.Job{}}
	for i := range seed {
		j := seed[i]
		s.jobs[j.ID] = &j
	}
	return s
}

func (s *stubJobs) Create(_ domain.Context, j domain.Job) (string, error) {
	if j.ID == "" {
		s.nextID++
		j.ID = fmt.Sprintf("job-%d", s.nextID)
	}
	s.jobs[j.ID] = &j
	return j.ID, nil
}

func (s *stubJobs) Get(_ domain.Context, id string) (domain.Job, error) {
	j, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, fmt.Errorf("op=job.get: %w", domain.ErrNotFound)
	}
	return *j, nil
}

func (s *stubJobs) Latest(_ domain.Context, userID string) (domain.Job, error) {
	var all []*domain.Job
	for _, j := range s.jobs {
		if j.UserID == userID {
			all = append(all, j)
		}
	}
	if len(all) == 0 {
		return domain.Job{}, fmt.Errorf("op=job.latest: %w", domain.ErrNotFound)
	}
	sort.Slice(all, func(i, k int) bool { return all[i].CreatedAt.After(all[k].CreatedAt) })
	return *all[0], nil
}

func (s *stubJobs) Transition(_ domain.Context, id string, from, to domain.JobStatus, patch domain.JobPatch) error {
	j, ok := s.jobs[id]
	if !ok || j.Status != from {
		return fmt.Errorf("op=job.transition: %w", domain.ErrConflict)
	}
	j.Status = to
	if to == domain.JobError {
		j.Result = nil
	} else if patch.Result != nil {
		j.Result = patch.Result
	}
	if patch.Error != nil {
		j.Error = *patch.Error
	}
	j.UpdatedAt = time.Now().UTC()
	s.transitions = append(s.transitions, fmt.Sprintf("%s:%s->%s", id, from, to))
	return nil
}

func (s *stubJobs) SweepStale(domain.Context, time.Time) ([]string, error) { return nil, nil }

func (s *stubJobs) DeleteTerminalBefore(domain.Context, time.Time) (int64, error) { return 0, nil }

// stubLedger is a fixed-capacity domain.QuotaLedger.
type stubLedger struct {
	used    int
	ceiling int
	sets    []int
	usedErr error
}

func (l *stubLedger) Reserve(_ domain.Context, required, ceiling int) (bool, error) {
	if required < 0 {
		return false, fmt.Errorf("op=quota.reserve: %w", domain.ErrInvalidArgument)
	}
	if required == 0 {
		return true, nil
	}
	if l.used+required > ceiling {
		return false, nil
	}
	l.used += required
	return true, nil
}

func (l *stubLedger) Consume(_ domain.Context, units int) error {
	l.used += units
	return nil
}

func (l *stubLedger) Used(domain.Context) (int, error) {
	if l.usedErr != nil {
		return 0, l.usedErr
	}
	return l.used, nil
}

func (l *stubLedger) Set(_ domain.Context, value int) error {
	if value < 0 {
		return fmt.Errorf("op=quota.set: %w", domain.ErrInvalidArgument)
	}
	l.used = value
	l.sets = append(l.sets, value)
	return nil
}

// stubQueue records enqueued tasks.
type stubQueue struct {
	syncs     []domain.SyncTaskPayload
	merges    []domain.MergeTaskPayload
	finalizes []domain.FinalizeTaskPayload
	err       error
}

func (q *stubQueue) EnqueueSync(_ domain.Context, _ domain.JobType, p domain.SyncTaskPayload) error {
	if q.err != nil {
		return q.err
	}
	q.syncs = append(q.syncs, p)
	return nil
}

func (q *stubQueue) EnqueueMerge(_ domain.Context, p domain.MergeTaskPayload) error {
	if q.err != nil {
		return q.err
	}
	q.merges = append(q.merges, p)
	return nil
}

func (q *stubQueue) EnqueueFinalize(_ domain.Context, p domain.FinalizeTaskPayload) error {
	if q.err != nil {
		return q.err
	}
	q.finalizes = append(q.finalizes, p)
	return nil
}

// stubProvider serves playlists by name for intake's track-count probe.
type stubProvider struct {
	playlists map[string]domain.Playlist
	err       error
}

func (p *stubProvider) GetPlaylistByName(_ domain.Context, name string) (domain.Playlist, error) {
	if p.err != nil {
		return domain.Playlist{}, p.err
	}
	pl, ok := p.playlists[name]
	if !ok {
		return domain.Playlist{}, fmt.Errorf("playlist %q: %w", name, domain.ErrNotFound)
	}
	return pl, nil
}

func (p *stubProvider) ListPlaylistItems(domain.Context, string) ([]domain.PlaylistItem, error) {
	return nil, nil
}

func (p *stubProvider) CreatePlaylist(domain.Context, string) (string, error) { return "pl-new", nil }

func (p *stubProvider) AddToPlaylist(domain.Context, string, []string) error { return nil }

func (p *stubProvider) SearchAuto(domain.Context, string, string) (*domain.SearchHit, error) {
	return nil, nil
}

func (p *stubProvider) ReportQuotaCost(domain.ProviderOp) int { return 0 }

type stubFactory struct {
	sp, yt domain.Provider
	err    error
}

func (f stubFactory) Spotify(domain.Context, string) (domain.Provider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sp, nil
}

func (f stubFactory) YouTube(domain.Context, string) (domain.Provider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.yt, nil
}
