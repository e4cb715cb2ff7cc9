package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"

	"github.com/syncrvault/syncr/internal/domain"
)

// tokenTables maps provider names to their table. Table names are
// never interpolated from caller input directly.
var tokenTables = map[string]string{
	domain.TokenProviderSpotify: "spotify_token",
	domain.TokenProviderYouTube: "youtube_token",
}

// TokenRepo persists per-user OAuth tokens in PostgreSQL.
type TokenRepo struct{ Pool PgxPool }

// NewTokenRepo constructs a TokenRepo with the given pool.
func NewTokenRepo(p PgxPool) *TokenRepo { return &TokenRepo{Pool: p} }

// Get returns the stored token JSON for a provider and user.
func (r *TokenRepo) Get(ctx domain.Context, provider, userID string) (string, error) {
	tracer := otel.Tracer("repo.tokens")
	ctx, span := tracer.Start(ctx, "tokens.Get")
	defer span.End()
	table, ok := tokenTables[provider]
	if !ok {
		return "", fmt.Errorf("op=token.get: unknown provider %q: %w", provider, domain.ErrInvalidArgument)
	}
	q := `SELECT token FROM ` + table + ` WHERE user_id=$1`
	var token string
	if err := r.Pool.QueryRow(ctx, q, userID).Scan(&token); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("op=token.get: user %q: %w", userID, domain.ErrUnauthorized)
		}
		return "", fmt.Errorf("op=token.get: %w", err)
	}
	return token, nil
}

// Save upserts the token JSON for a provider and user.
func (r *TokenRepo) Save(ctx domain.Context, provider, userID, tokenJSON string) error {
	tracer := otel.Tracer("repo.tokens")
	ctx, span := tracer.Start(ctx, "tokens.Save")
	defer span.End()
	table, ok := tokenTables[provider]
	if !ok {
		return fmt.Errorf("op=token.save: unknown provider %q: %w", provider, domain.ErrInvalidArgument)
	}
	q := `INSERT INTO ` + table + ` (user_id, token, updated_at) VALUES ($1,$2,$3)
	      ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token, updated_at = EXCLUDED.updated_at`
	if _, err := r.Pool.Exec(ctx, q, userID, tokenJSON, time.Now().UTC()); err != nil {
		return fmt.Errorf("op=token.save: %w", err)
	}
	return nil
}
