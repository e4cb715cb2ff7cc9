// Package youtube implements the provider port over the YouTube Data
// API v3. Every call here is metered against the daily unit budget.
package youtube

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/syncrvault/syncr/internal/adapter/observability"
	"github.com/syncrvault/syncr/internal/domain"
	"github.com/syncrvault/syncr/pkg/songtext"
)

const defaultBaseURL = "https://www.googleapis.com/youtube/v3"

const searchPageSize = 10

// opCosts is the Data API unit price per operation.
var opCosts = map[domain.ProviderOp]int{
	domain.OpSearch:         100,
	domain.OpListItems:      1,
	domain.OpInsertItem:     50,
	domain.OpCreatePlaylist: 50,
	domain.OpListPlaylists:  1,
}

// Client talks to the YouTube Data API on behalf of one user.
type Client struct {
	HC      *http.Client
	BaseURL string
}

// New wraps an OAuth-authenticated http.Client.
func New(hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{HC: hc, BaseURL: defaultBaseURL}
}

type playlistsResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
		ContentDetails struct {
			ItemCount int `json:"itemCount"`
		} `json:"contentDetails"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// GetPlaylistByName pages through the user's playlists and matches the
// title case-insensitively.
func (c *Client) GetPlaylistByName(ctx domain.Context, name string) (domain.Playlist, error) {
	observability.ProviderCall("youtube", string(domain.OpListPlaylists))
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("part", "snippet,contentDetails")
		q.Set("mine", "true")
		q.Set("maxResults", "50")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var page playlistsResponse
		if err := c.get(ctx, c.BaseURL+"/playlists?"+q.Encode(), &page); err != nil {
			return domain.Playlist{}, fmt.Errorf("op=youtube.get_playlist: %w", err)
		}
		for _, pl := range page.Items {
			if strings.EqualFold(pl.Snippet.Title, name) {
				return domain.Playlist{ID: pl.ID, Title: pl.Snippet.Title, TrackCount: pl.ContentDetails.ItemCount}, nil
			}
		}
		if page.NextPageToken == "" {
			return domain.Playlist{}, fmt.Errorf("op=youtube.get_playlist %q: %w", name, domain.ErrNotFound)
		}
		pageToken = page.NextPageToken
	}
}

type playlistItemsResponse struct {
	Items []struct {
		Snippet struct {
			Title                  string `json:"title"`
			VideoOwnerChannelTitle string `json:"videoOwnerChannelTitle"`
			ResourceID             struct {
				VideoID string `json:"videoId"`
			} `json:"resourceId"`
		} `json:"snippet"`
	} `json:"items"`
	NextPageToken string `json:"nextPageToken"`
}

// ListPlaylistItems enumerates all videos in playlist order. Deleted
// and private entries keep a placeholder title and no owner channel;
// those come back as unplayable tombstones.
func (c *Client) ListPlaylistItems(ctx domain.Context, playlistID string) ([]domain.PlaylistItem, error) {
	observability.ProviderCall("youtube", string(domain.OpListItems))
	var items []domain.PlaylistItem
	pageToken := ""
	for {
		q := url.Values{}
		q.Set("part", "snippet")
		q.Set("playlistId", playlistID)
		q.Set("maxResults", "50")
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		var page playlistItemsResponse
		if err := c.get(ctx, c.BaseURL+"/playlistItems?"+q.Encode(), &page); err != nil {
			return nil, fmt.Errorf("op=youtube.list_items: %w", err)
		}
		for _, it := range page.Items {
			title := it.Snippet.Title
			if title == "Deleted video" || title == "Private video" || it.Snippet.ResourceID.VideoID == "" {
				items = append(items, domain.PlaylistItem{Unplayable: true})
				continue
			}
			items = append(items, domain.PlaylistItem{
				SourceID: it.Snippet.ResourceID.VideoID,
				Title:    html.UnescapeString(title),
				Artist:   html.UnescapeString(it.Snippet.VideoOwnerChannelTitle),
			})
		}
		if page.NextPageToken == "" {
			return items, nil
		}
		pageToken = page.NextPageToken
	}
}

// CreatePlaylist makes a new public playlist and returns its id.
func (c *Client) CreatePlaylist(ctx domain.Context, name string) (string, error) {
	observability.ProviderCall("youtube", string(domain.OpCreatePlaylist))
	body := map[string]any{
		"snippet": map[string]any{"title": name, "description": "made with Syncr"},
		"status":  map[string]any{"privacyStatus": "public"},
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, c.BaseURL+"/playlists?part=snippet%2Cstatus", body, &out); err != nil {
		return "", fmt.Errorf("op=youtube.create_playlist: %w", err)
	}
	return out.ID, nil
}

// AddToPlaylist inserts videos one at a time; the API has no bulk
// insert. Order of targetIDs is preserved.
func (c *Client) AddToPlaylist(ctx domain.Context, playlistID string, targetIDs []string) error {
	for _, id := range targetIDs {
		observability.ProviderCall("youtube", string(domain.OpInsertItem))
		body := map[string]any{
			"snippet": map[string]any{
				"playlistId": playlistID,
				"resourceId": map[string]any{"kind": "youtube#video", "videoId": id},
			},
		}
		if err := c.post(ctx, c.BaseURL+"/playlistItems?part=snippet", body, nil); err != nil {
			return fmt.Errorf("op=youtube.add_to_playlist %s: %w", id, err)
		}
	}
	return nil
}

type searchResponse struct {
	Items []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

// SearchAuto runs a ladder of query shapes and scores every distinct
// video seen across them. Some uploads only surface under a reordered
// or stripped-down query, so a miss on the first shape is not final.
func (c *Client) SearchAuto(ctx domain.Context, trackName, artist string) (*domain.SearchHit, error) {
	queries := []string{
		trackName + " " + artist,
		songtext.Normalize(trackName, artist) + " " + artist,
		trackName,
		artist + " " + trackName,
	}
	var cands []songtext.Candidate
	seen := map[string]struct{}{}
	for _, query := range queries {
		observability.ProviderCall("youtube", string(domain.OpSearch))
		q := url.Values{}
		q.Set("part", "snippet")
		q.Set("type", "video")
		q.Set("maxResults", fmt.Sprint(searchPageSize))
		q.Set("q", strings.TrimSpace(query))
		var resp searchResponse
		if err := c.get(ctx, c.BaseURL+"/search?"+q.Encode(), &resp); err != nil {
			return nil, fmt.Errorf("op=youtube.search: %w", err)
		}
		for _, it := range resp.Items {
			id := it.ID.VideoID
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			cands = append(cands, songtext.Candidate{
				ID:     id,
				Title:  html.UnescapeString(it.Snippet.Title),
				Artist: html.UnescapeString(it.Snippet.ChannelTitle),
			})
		}
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

// ReportQuotaCost returns the Data API unit price for op.
func (c *Client) ReportQuotaCost(op domain.ProviderOp) int { return opCosts[op] }

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
		case http.StatusUnauthorized:
			return fmt.Errorf("youtube 401: %s: %w", snippet, domain.ErrUnauthorized)
		case http.StatusForbidden:
			// quotaExceeded and auth scope failures both come back 403.
			if bytes.Contains(snippet, []byte("quota")) {
				return fmt.Errorf("youtube 403: %s: %w", snippet, domain.ErrQuotaExceeded)
			}
			return fmt.Errorf("youtube 403: %s: %w", snippet, domain.ErrUnauthorized)
		case http.StatusNotFound:
			return fmt.Errorf("youtube 404: %s: %w", snippet, domain.ErrNotFound)
		default:
			return fmt.Errorf("youtube %d: %s", resp.StatusCode, snippet)
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
