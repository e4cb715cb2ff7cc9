// Package spotify implements the provider port over the Spotify Web
// API. Spotify calls carry no quota cost.
package spotify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/syncrvault/syncr/internal/adapter/observability"
	"github.com/syncrvault/syncr/internal/domain"
	"github.com/syncrvault/syncr/pkg/songtext"
)

const defaultBaseURL = "https://api.spotify.com/v1"

const searchLimit = 6

// Client talks to the Spotify Web API on behalf of one user.
type Client struct {
	HC      *http.Client
	BaseURL string

	// cached current-user id, fetched on first CreatePlaylist
	userID string
}

// New wraps an OAuth-authenticated http.Client.
func New(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{HC: hc, BaseURL: defaultBaseURL}
}

type pagingPlaylists struct {
	Items []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Tracks struct {
			Total int `json:"total"`
		} `json:"tracks"`
	} `json:"items"`
	Next string `json:"next"`
}

// GetPlaylistByName lists the user's playlists and matches the name
// case-insensitively.
func (c *Client) GetPlaylistByName(ctx domain.Context, name string) (domain.Playlist, error) {
	observability.ProviderCall("spotify", string(domain.OpListPlaylists))
	next := c.BaseURL + "/me/playlists?limit=50"
	for next != "" {
		var page pagingPlaylists
		if err := c.get(ctx, next, &page); err != nil {
			return domain.Playlist{}, fmt.Errorf("op=spotify.get_playlist: %w", err)
		}
		for _, pl := range page.Items {
			if strings.EqualFold(pl.Name, name) {
				return domain.Playlist{ID: pl.ID, Title: pl.Name, TrackCount: pl.Tracks.Total}, nil
			}
		}
		next = page.Next
	}
	return domain.Playlist{}, fmt.Errorf("op=spotify.get_playlist %q: %w", name, domain.ErrNotFound)
}

type pagingTracks struct {
	Items []struct {
		Track *struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"track"`
	} `json:"items"`
	Next string `json:"next"`
}

// ListPlaylistItems enumerates all tracks in source order. Removed or
// region-locked entries come back with a nil track object; those are
// surfaced as unplayable tombstones.
func (c *Client) ListPlaylistItems(ctx domain.Context, playlistID string) ([]domain.PlaylistItem, error) {
	observability.ProviderCall("spotify", string(domain.OpListItems))
	var items []domain.PlaylistItem
	next := c.BaseURL + "/playlists/" + url.PathEscape(playlistID) + "/tracks?limit=100"
	for next != "" {
		var page pagingTracks
		if err := c.get(ctx, next, &page); err != nil {
			return nil, fmt.Errorf("op=spotify.list_items: %w", err)
		}
		for _, it := range page.Items {
			if it.Track == nil || it.Track.ID == "" {
				items = append(items, domain.PlaylistItem{Unplayable: true})
				continue
			}
			names := make([]string, 0, len(it.Track.Artists))
			for _, a := range it.Track.Artists {
				names = append(names, a.Name)
			}
			items = append(items, domain.PlaylistItem{
				SourceID: it.Track.ID,
				Title:    it.Track.Name,
				Artist:   strings.Join(names, ", "),
			})
		}
		next = page.Next
	}
	return items, nil
}

// CreatePlaylist makes a new public playlist and returns its id.
func (c *Client) CreatePlaylist(ctx domain.Context, name string) (string, error) {
	observability.ProviderCall("spotify", string(domain.OpCreatePlaylist))
	uid, err := c.currentUserID(ctx)
	if err != nil {
		return "", fmt.Errorf("op=spotify.create_playlist: %w", err)
	}
	body := map[string]any{"name": name, "public": true, "description": "made with Syncr"}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, c.BaseURL+"/users/"+url.PathEscape(uid)+"/playlists", body, &out); err != nil {
		return "", fmt.Errorf("op=spotify.create_playlist: %w", err)
	}
	return out.ID, nil
}

// AddToPlaylist appends tracks in batches of 100 (the API cap).
func (c *Client) AddToPlaylist(ctx domain.Context, playlistID string, targetIDs []string) error {
	observability.ProviderCall("spotify", string(domain.OpInsertItem))
	for start := 0; start < len(targetIDs); start += 100 {
		end := start + 100
		if end > len(targetIDs) {
			end = len(targetIDs)
		}
		uris := make([]string, 0, end-start)
		for _, id := range targetIDs[start:end] {
			uris = append(uris, "spotify:track:"+id)
		}
		if err := c.post(ctx, c.BaseURL+"/playlists/"+url.PathEscape(playlistID)+"/tracks", map[string]any{"uris": uris}, nil); err != nil {
			return fmt.Errorf("op=spotify.add_to_playlist: %w", err)
		}
	}
	return nil
}

type searchResponse struct {
	Tracks struct {
		Items []struct {
			ID      string `json:"id"`
			Name    string `json:"name"`
			Artists []struct {
				Name string `json:"name"`
			} `json:"artists"`
		} `json:"items"`
	} `json:"tracks"`
}

// SearchAuto looks for the closest Spotify track for a source title
// and artist. Returns nil when nothing clears the match thresholds.
func (c *Client) SearchAuto(ctx domain.Context, trackName, artist string) (*domain.SearchHit, error) {
	observability.ProviderCall("spotify", string(domain.OpSearch))
	q := url.Values{}
	q.Set("q", strings.TrimSpace(songtext.Normalize(trackName)+" "+artist))
	q.Set("type", "track")
	q.Set("limit", fmt.Sprint(searchLimit))
	var resp searchResponse
	if err := c.get(ctx, c.BaseURL+"/search?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("op=spotify.search: %w", err)
	}
	cands := make([]songtext.Candidate, 0, len(resp.Tracks.Items))
	for _, tr := range resp.Tracks.Items {
		names := make([]string, 0, len(tr.Artists))
		for _, a := range tr.Artists {
			names = append(names, a.Name)
		}
		cands = append(cands, songtext.Candidate{ID: tr.ID, Title: tr.Name, Artist: strings.Join(names, ", ")})
	}
	idx, scores := songtext.BestCandidate(trackName, artist, cands)
	if idx < 0 {
		return nil, nil
	}
	return &domain.SearchHit{
		TargetID:      cands[idx].ID,
		TitleScore:    scores.Title,
		ArtistScore:   scores.Artist,
		MatchedTitle:  cands[idx].Title,
		MatchedArtist: cands[idx].Artist,
	}, nil
}

// ReportQuotaCost is always zero: Spotify does not meter these calls.
func (c *Client) ReportQuotaCost(domain.ProviderOp) int { return 0 }

func (c *Client) currentUserID(ctx domain.Context) (string, error) {
	if c.userID != "" {
		return c.userID, nil
	}
	var me struct {
		ID string `json:"id"`
	}
	if err := c.get(ctx, c.BaseURL+"/me", &me); err != nil {
		return "", err
	}
	c.userID = me.ID
	return me.ID, nil
}

func (c *Client) get(ctx domain.Context, u string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx domain.Context, u string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.HC.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		switch resp.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("spotify %d: %s: %w", resp.StatusCode, snippet, domain.ErrUnauthorized)
		case http.StatusNotFound:
			return fmt.Errorf("spotify 404: %s: %w", snippet, domain.ErrNotFound)
		default:
			return fmt.Errorf("spotify %d: %s", resp.StatusCode, snippet)
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
