package usecase

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/syncrvault/syncr/internal/domain"
	"github.com/syncrvault/syncr/pkg/songtext"
)

const (
	createPollAttempts = 5
	createPollInterval = 1500 * time.Millisecond
)

const unplayableReason = "Unplayable source item."

// Pipeline matches a source playlist's tracks against a target
// provider. It never mutates the target playlist; writes happen at
// finalization.
type Pipeline struct {
	// sleep is swappable in tests.
	sleep func(time.Duration)
}

// NewPipeline constructs a Pipeline.
func NewPipeline() *Pipeline { return &Pipeline{sleep: time.Sleep} }

// NewPipelineWithSleep constructs a Pipeline with a custom wait
// function, used by tests to skip the create-then-read poll delay.
func NewPipelineWithSleep(sleep func(time.Duration)) *Pipeline { return &Pipeline{sleep: sleep} }

// Run resolves the source playlist, resolves or creates the target
// playlist of the same name, and emits one decision per source track
// in source order. songLimit > 0 truncates the source listing.
func (pl *Pipeline) Run(ctx domain.Context, source, target domain.Provider, playlistName string, songLimit int) ([]domain.TrackDecision, error) {
	src, err := source.GetPlaylistByName(ctx, playlistName)
	if err != nil {
		return nil, fmt.Errorf("source playlist %q: %w", playlistName, err)
	}

	dst, err := pl.resolveOrCreateTarget(ctx, target, playlistName)
	if err != nil {
		return nil, err
	}

	existing, err := target.ListPlaylistItems(ctx, dst.ID)
	if err != nil {
		return nil, fmt.Errorf("target playlist items: %w", err)
	}
	dedup := make(map[string]struct{}, len(existing))
	for _, it := range existing {
		if it.Unplayable {
			continue
		}
		dedup[songtext.Normalize(it.Title)] = struct{}{}
	}

	items, err := source.ListPlaylistItems(ctx, src.ID)
	if err != nil {
		return nil, fmt.Errorf("source playlist items: %w", err)
	}
	if songLimit > 0 && len(items) > songLimit {
		items = items[:songLimit]
	}

	decisions := make([]domain.TrackDecision, 0, len(items))
	for _, it := range items {
		if it.Unplayable {
			decisions = append(decisions, domain.TrackDecision{
				Name:                 it.Title,
				Artist:               it.Artist,
				Status:               domain.DecisionNotFound,
				RequiresManualSearch: true,
				Reason:               unplayableReason,
			})
			continue
		}
		hit, err := target.SearchAuto(ctx, it.Title, it.Artist)
		if err != nil {
			return nil, fmt.Errorf("search %q: %w", it.Title, err)
		}
		if hit == nil {
			decisions = append(decisions, domain.TrackDecision{
				Name:                 it.Title,
				Artist:               it.Artist,
				Status:               domain.DecisionNotFound,
				RequiresManualSearch: true,
			})
			continue
		}
		if _, dup := dedup[songtext.Normalize(hit.MatchedTitle)]; dup {
			continue
		}
		decisions = append(decisions, domain.TrackDecision{
			Name:         it.Title,
			Artist:       it.Artist,
			Status:       domain.DecisionFound,
			TargetID:     hit.TargetID,
			TargetTitle:  hit.MatchedTitle,
			TargetArtist: hit.MatchedArtist,
		})
	}
	return decisions, nil
}

// resolveOrCreateTarget finds the target playlist by name, creating it
// when absent. Created playlists are polled until readable: the
// provider's create-then-read is not read-your-writes consistent.
func (pl *Pipeline) resolveOrCreateTarget(ctx domain.Context, target domain.Provider, name string) (domain.Playlist, error) {
	dst, err := target.GetPlaylistByName(ctx, name)
	if err == nil {
		return dst, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Playlist{}, fmt.Errorf("target playlist %q: %w", name, err)
	}

	id, err := target.CreatePlaylist(ctx, name)
	if err != nil {
		return domain.Playlist{}, fmt.Errorf("create target playlist %q: %w", name, err)
	}
	for attempt := 1; attempt <= createPollAttempts; attempt++ {
		dst, err = target.GetPlaylistByName(ctx, name)
		if err == nil {
			slog.Debug("target playlist visible after create",
				slog.String("playlist", name), slog.Int("attempt", attempt))
			return dst, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Playlist{}, fmt.Errorf("target playlist %q: %w", name, err)
		}
		if attempt < createPollAttempts {
			pl.sleep(createPollInterval)
		}
	}
	// Listing never caught up; trust the id the create returned.
	return domain.Playlist{ID: id, Title: name}, nil
}
