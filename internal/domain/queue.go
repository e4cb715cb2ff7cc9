package domain

// Task names on the broker wire. Sync, merge and finalize tasks ride
// the jobs queue; the reaper rides cleanup so long sync runs cannot
// starve it.
const (
	TaskSyncSpToYt = "run_sync_sp_to_yt_job"
	TaskSyncYtToSp = "run_sync_yt_to_sp_job"
	TaskMerge      = "run_merge_playlists_job"
	TaskFinalize   = "run_finalize_job"
	TaskCleanup    = "cleanup_jobs"
)

// Queue names.
const (
	QueueJobs    = "jobs"
	QueueCleanup = "cleanup"
)

// SyncTaskPayload is the argument tuple of both sync task types.
// SongLimit of zero means no limit.
type SyncTaskPayload struct {
	JobID        string `json:"job_id"`
	PlaylistName string `json:"playlist_name"`
	UserID       string `json:"user_id"`
	SongLimit    int    `json:"song_limit,omitempty"`
}

// MergeTaskPayload is the argument tuple of the merge task.
type MergeTaskPayload struct {
	JobID           string `json:"job_id"`
	YTPlaylist      string `json:"yt_playlist"`
	SPPlaylist      string `json:"sp_playlist"`
	NewPlaylistName string `json:"new_playlist_name"`
	UserID          string `json:"user_id"`
}

// FinalizeTaskPayload is the argument tuple of the finalize task.
type FinalizeTaskPayload struct {
	JobID string `json:"job_id"`
}

// Queue is the broker port: enqueue named tasks onto named queues with
// at-least-once delivery. Handler idempotency is the runner's business.
type Queue interface {
	EnqueueSync(ctx Context, jobType JobType, p SyncTaskPayload) error
	EnqueueMerge(ctx Context, p MergeTaskPayload) error
	EnqueueFinalize(ctx Context, p FinalizeTaskPayload) error
}
