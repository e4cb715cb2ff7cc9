// Package provider builds per-user Spotify and YouTube clients from
// stored OAuth tokens.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/syncrvault/syncr/internal/adapter/provider/spotify"
	"github.com/syncrvault/syncr/internal/adapter/provider/youtube"
	"github.com/syncrvault/syncr/internal/config"
	"github.com/syncrvault/syncr/internal/domain"
)

// Factory implements domain.ProviderFactory. Tokens are written by the
// external auth service; this side only reads and refreshes them.
type Factory struct {
	cfg    config.Config
	tokens domain.TokenStore
}

// NewFactory constructs a Factory over the token store.
func NewFactory(cfg config.Config, tokens domain.TokenStore) *Factory {
	return &Factory{cfg: cfg, tokens: tokens}
}

// Spotify returns a Spotify client bound to userID's token.
func (f *Factory) Spotify(ctx domain.Context, userID string) (domain.Provider, error) {
	oc := &oauth2.Config{
		ClientID:     f.cfg.SpotifyClientID,
		ClientSecret: f.cfg.SpotifyClientSecret,
		Endpoint:     endpoints.Spotify,
	}
	hc, err := f.httpClient(ctx, oc, domain.TokenProviderSpotify, userID)
	if err != nil {
		return nil, err
	}
	return spotify.New(hc), nil
}

// YouTube returns a YouTube client bound to userID's token.
func (f *Factory) YouTube(ctx domain.Context, userID string) (domain.Provider, error) {
	oc := &oauth2.Config{
		ClientID:     f.cfg.YouTubeClientID,
		ClientSecret: f.cfg.YouTubeClientSecret,
		Endpoint:     endpoints.Google,
	}
	hc, err := f.httpClient(ctx, oc, domain.TokenProviderYouTube, userID)
	if err != nil {
		return nil, err
	}
	return youtube.New(hc), nil
}

func (f *Factory) httpClient(ctx domain.Context, oc *oauth2.Config, provider, userID string) (*http.Client, error) {
	raw, err := f.tokens.Get(ctx, provider, userID)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("op=provider.token %s: %w: %v", provider, domain.ErrUnauthorized, err)
	}
	src := &persistingSource{
		src:      oc.TokenSource(ctx, &tok),
		tokens:   f.tokens,
		provider: provider,
		userID:   userID,
		last:     tok.AccessToken,
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: &oauth2.Transport{Source: src},
	}, nil
}

// persistingSource writes refreshed tokens back to the store so the
// next worker does not burn another refresh.
type persistingSource struct {
	src      oauth2.TokenSource
	tokens   domain.TokenStore
	provider string
	userID   string
	last     string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, fmt.Errorf("op=provider.refresh %s: %w: %v", p.provider, domain.ErrUnauthorized, err)
	}
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if b, err := json.Marshal(tok); err == nil {
			_ = p.tokens.Save(context.Background(), p.provider, p.userID, string(b))
		}
	}
	return tok, nil
}
