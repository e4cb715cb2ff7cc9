package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/syncrvault/syncr/internal/config"
	"github.com/syncrvault/syncr/internal/domain"
	"github.com/syncrvault/syncr/internal/usecase"
)

// Server aggregates handlers dependencies.
type Server struct {
	Cfg        config.Config
	Intake     usecase.IntakeService
	Status     usecase.StatusService
	Quota      usecase.QuotaService
	DBCheck    func(ctx context.Context) error
	RedisCheck func(ctx context.Context) error
}

// NewServer constructs an HTTP server with all handlers and checks wired.
func NewServer(cfg config.Config, intake usecase.IntakeService, status usecase.StatusService, quota usecase.QuotaService, dbCheck, redisCheck func(context.Context) error) *Server {
	return &Server{Cfg: cfg, Intake: intake, Status: status, Quota: quota, DBCheck: dbCheck, RedisCheck: redisCheck}
}

var (
	vldOnce sync.Once
	vld     *validator.Validate
)

func getValidator() *validator.Validate {
	vldOnce.Do(func() { vld = validator.New() })
	return vld
}

func acceptsJSON(w http.ResponseWriter, r *http.Request) bool {
	if a := r.Header.Get("Accept"); a != "" && a != "*/*" && !strings.Contains(a, "application/json") {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusNotAcceptable)
		_ = json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"code": "INVALID_ARGUMENT", "message": "not acceptable", "details": map[string]any{"accept": a}}})
		return false
	}
	return true
}

func decodeValidated(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, r, fmt.Errorf("%w: invalid json", domain.ErrInvalidArgument), nil)
		return false
	}
	if err := getValidator().Struct(dst); err != nil {
		verrs := map[string]string{}
		if ve, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range ve {
				verrs[strings.ToLower(fe.Field())] = fe.Tag()
			}
		}
		writeError(w, r, fmt.Errorf("%w: validation failed", domain.ErrInvalidArgument), verrs)
		return false
	}
	return true
}

// SyncHandler admits a sync job of the given type and returns its id.
func (s *Server) SyncHandler(jobType domain.JobType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		var req struct {
			PlaylistName string `json:"playlist_name" validate:"required,max=200"`
			UserID       string `json:"user_id" validate:"required,max=100"`
		}
		if !decodeValidated(w, r, &req) {
			return
		}
		jobID, err := s.Intake.StartSync(r.Context(), jobType, req.PlaylistName, req.UserID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
	}
}

// MergeHandler admits a merge job combining one playlist from each provider.
func (s *Server) MergeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		var req struct {
			YTPlaylist      string `json:"yt_playlist" validate:"required,max=200"`
			SPPlaylist      string `json:"sp_playlist" validate:"required,max=200"`
			NewPlaylistName string `json:"new_playlist_name" validate:"required,max=200"`
			UserID          string `json:"user_id" validate:"required,max=100"`
		}
		if !decodeValidated(w, r, &req) {
			return
		}
		jobID, err := s.Intake.StartMerge(r.Context(), domain.MergeTaskPayload{
			YTPlaylist:      req.YTPlaylist,
			SPPlaylist:      req.SPPlaylist,
			NewPlaylistName: req.NewPlaylistName,
			UserID:          req.UserID,
		})
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
	}
}

type jobView struct {
	JobID        string             `json:"job_id"`
	Type         domain.JobType     `json:"type"`
	Status       domain.JobStatus   `json:"status"`
	PlaylistName string             `json:"playlist_name"`
	Result       *domain.JobResult  `json:"result,omitempty"`
	Error        string             `json:"error,omitempty"`
	JobNotes     string             `json:"job_notes,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func viewOf(j domain.Job) jobView {
	return jobView{
		JobID:        j.ID,
		Type:         j.Type,
		Status:       j.Status,
		PlaylistName: j.PlaylistName,
		Result:       j.Result,
		Error:        j.Error,
		JobNotes:     j.Notes,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

// JobHandler returns the current state of one job.
func (s *Server) JobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "job_id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: job_id missing", domain.ErrInvalidArgument), nil)
			return
		}
		job, err := s.Status.Get(r.Context(), id)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(job))
	}
}

// LatestJobHandler returns the most recently created job for a user.
func (s *Server) LatestJobHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		userID := chi.URLParam(r, "user_id")
		if userID == "" {
			writeError(w, r, fmt.Errorf("%w: user_id missing", domain.ErrInvalidArgument), nil)
			return
		}
		job, err := s.Status.Latest(r.Context(), userID)
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, viewOf(job))
	}
}

// FinalizeHandler moves a matched job into finalizing and enqueues the
// write phase.
func (s *Server) FinalizeHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		id := chi.URLParam(r, "job_id")
		if id == "" {
			writeError(w, r, fmt.Errorf("%w: job_id missing", domain.ErrInvalidArgument), nil)
			return
		}
		if err := s.Intake.Finalize(r.Context(), id); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"job_id": id, "status": string(domain.JobFinalizing)})
	}
}

// QuotaUsageHandler reports today's consumed quota units and the daily limit.
func (s *Server) QuotaUsageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		total, limit, err := s.Quota.Usage(r.Context())
		if err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"total": total, "limit": limit})
	}
}

// SetQuotaHandler overwrites today's quota counter. Admin use only.
func (s *Server) SetQuotaHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !acceptsJSON(w, r) {
			return
		}
		var req struct {
			QuotaValue *int `json:"quota_value" validate:"required"`
		}
		if !decodeValidated(w, r, &req) {
			return
		}
		if err := s.Quota.Set(r.Context(), *req.QuotaValue); err != nil {
			writeError(w, r, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"total": *req.QuotaValue})
	}
}

// ReadyzHandler returns a readiness handler that probes Postgres and Redis.
func (s *Server) ReadyzHandler() http.HandlerFunc {
	type check struct {
		Name    string `json:"name"`
		OK      bool   `json:"ok"`
		Details string `json:"details,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		checks := make([]check, 0, 2)
		if s.DBCheck != nil {
			if err := s.DBCheck(ctx); err != nil {
				checks = append(checks, check{Name: "db", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "db", OK: true})
			}
		}
		if s.RedisCheck != nil {
			if err := s.RedisCheck(ctx); err != nil {
				checks = append(checks, check{Name: "redis", OK: false, Details: err.Error()})
			} else {
				checks = append(checks, check{Name: "redis", OK: true})
			}
		}
		ok := true
		for _, c := range checks {
			if !c.OK {
				ok = false
				break
			}
		}
		st := http.StatusOK
		if !ok {
			st = http.StatusServiceUnavailable
		}
		writeJSON(w, st, map[string]any{"checks": checks})
	}
}

// HealthzHandler reports process liveness.
func (s *Server) HealthzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
