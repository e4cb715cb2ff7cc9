package usecase_test

import (
	"fmt"
	"sync"
	"time"

	"github.com/syncrvault/syncr/internal/domain"
)

// memJobs is an in-memory JobRepository with the same CAS semantics as
// the SQL adapter.
type memJobs struct {
	mu          sync.Mutex
	jobs        map[string]domain.Job
	order       []string
	transitions []string
	createErr   error
}

func newMemJobs() *memJobs { return &memJobs{jobs: map[string]domain.Job{}} }

func (m *memJobs) Create(_ domain.Context, j domain.Job) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return "", m.createErr
	}
	if j.ID == "" {
		j.ID = fmt.Sprintf("job-%d", len(m.order)+1)
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now().UTC()
	}
	j.UpdatedAt = j.CreatedAt
	m.jobs[j.ID] = j
	m.order = append(m.order, j.ID)
	return j.ID, nil
}

func (m *memJobs) Get(_ domain.Context, id string) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return domain.Job{}, domain.ErrNotFound
	}
	return j, nil
}

func (m *memJobs) Latest(_ domain.Context, userID string) (domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		if j := m.jobs[m.order[i]]; j.UserID == userID {
			return j, nil
		}
	}
	return domain.Job{}, domain.ErrNotFound
}

func (m *memJobs) Transition(_ domain.Context, id string, from, to domain.JobStatus, patch domain.JobPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !domain.ValidTransition(from, to) {
		return domain.ErrInvalidArgument
	}
	j, ok := m.jobs[id]
	if !ok || j.Status != from {
		return domain.ErrConflict
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
	if patch.Notes != nil {
		j.Notes = *patch.Notes
	}
	j.UpdatedAt = time.Now().UTC()
	m.jobs[id] = j
	m.transitions = append(m.transitions, fmt.Sprintf("%s:%s->%s", id, from, to))
	return nil
}

func (m *memJobs) SweepStale(_ domain.Context, cutoff time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, j := range m.jobs {
		if (j.Status == domain.JobPending || j.Status == domain.JobReadyToFinalize) && j.UpdatedAt.Before(cutoff) {
			j.Status = domain.JobError
			j.Error = "Job timed out"
			j.Result = nil
			j.UpdatedAt = time.Now().UTC()
			m.jobs[id] = j
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memJobs) DeleteTerminalBefore(_ domain.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, j := range m.jobs {
		if j.Status.Terminal() && j.UpdatedAt.Before(cutoff) {
			delete(m.jobs, id)
			n++
		}
	}
	return n, nil
}

// memLedger mirrors the conditional-upsert ledger.
type memLedger struct {
	mu    sync.Mutex
	total int
}

func (m *memLedger) Reserve(_ domain.Context, required, ceiling int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if required < 0 {
		return false, domain.ErrInvalidArgument
	}
	if required == 0 {
		return true, nil
	}
	if m.total+required > ceiling {
		return false, nil
	}
	m.total += required
	return true, nil
}

func (m *memLedger) Consume(_ domain.Context, units int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if units > 0 {
		m.total += units
	}
	return nil
}

func (m *memLedger) Used(_ domain.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total, nil
}

func (m *memLedger) Set(_ domain.Context, value int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value < 0 {
		return domain.ErrInvalidArgument
	}
	m.total = value
	return nil
}

// memQueue records enqueued payloads.
type memQueue struct {
	syncs     []domain.SyncTaskPayload
	syncTypes []domain.JobType
	merges    []domain.MergeTaskPayload
	finalizes []domain.FinalizeTaskPayload
	err       error
}

func (m *memQueue) EnqueueSync(_ domain.Context, jobType domain.JobType, p domain.SyncTaskPayload) error {
	if m.err != nil {
		return m.err
	}
	m.syncTypes = append(m.syncTypes, jobType)
	m.syncs = append(m.syncs, p)
	return nil
}

func (m *memQueue) EnqueueMerge(_ domain.Context, p domain.MergeTaskPayload) error {
	if m.err != nil {
		return m.err
	}
	m.merges = append(m.merges, p)
	return nil
}

func (m *memQueue) EnqueueFinalize(_ domain.Context, p domain.FinalizeTaskPayload) error {
	if m.err != nil {
		return m.err
	}
	m.finalizes = append(m.finalizes, p)
	return nil
}

// fakeProvider is a scriptable provider double.
type fakeProvider struct {
	playlists map[string]domain.Playlist
	items     map[string][]domain.PlaylistItem
	hits      map[string]*domain.SearchHit
	searchErr error

	costs map[domain.ProviderOp]int

	// createInvisible delays listing visibility for this many
	// GetPlaylistByName calls after a create.
	createInvisible int

	created  []string
	added    map[string][]string
	searches []string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		playlists: map[string]domain.Playlist{},
		items:     map[string][]domain.PlaylistItem{},
		hits:      map[string]*domain.SearchHit{},
		added:     map[string][]string{},
	}
}

func (f *fakeProvider) GetPlaylistByName(_ domain.Context, name string) (domain.Playlist, error) {
	if f.createInvisible > 0 {
		if _, pending := f.playlists[name]; pending {
			f.createInvisible--
			return domain.Playlist{}, domain.ErrNotFound
		}
	}
	pl, ok := f.playlists[name]
	if !ok {
		return domain.Playlist{}, domain.ErrNotFound
	}
	return pl, nil
}

func (f *fakeProvider) ListPlaylistItems(_ domain.Context, playlistID string) ([]domain.PlaylistItem, error) {
	return f.items[playlistID], nil
}

func (f *fakeProvider) CreatePlaylist(_ domain.Context, name string) (string, error) {
	id := "pl-" + name
	f.created = append(f.created, name)
	f.playlists[name] = domain.Playlist{ID: id, Title: name}
	return id, nil
}

func (f *fakeProvider) AddToPlaylist(_ domain.Context, playlistID string, targetIDs []string) error {
	f.added[playlistID] = append(f.added[playlistID], targetIDs...)
	return nil
}

func (f *fakeProvider) SearchAuto(_ domain.Context, trackName, _ string) (*domain.SearchHit, error) {
	f.searches = append(f.searches, trackName)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.hits[trackName], nil
}

func (f *fakeProvider) ReportQuotaCost(op domain.ProviderOp) int { return f.costs[op] }

// fakeFactory hands out the two fake providers.
type fakeFactory struct {
	sp, yt *fakeProvider
	err    error
}

func (f *fakeFactory) Spotify(domain.Context, string) (domain.Provider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.sp, nil
}

func (f *fakeFactory) YouTube(domain.Context, string) (domain.Provider, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.yt, nil
}
