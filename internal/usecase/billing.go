// Package usecase contains the application services: intake, the sync
// and merge pipelines, the job runner, finalization and the reaper.
package usecase

import (
	"github.com/syncrvault/syncr/internal/domain"
)

// billedProvider books every call's advisory quota cost against the
// ledger. Consumption is unconditional; reservation at intake is the
// throttle.
type billedProvider struct {
	domain.Provider
	ledger domain.QuotaLedger
}

// BillProvider wraps p so each call consumes ReportQuotaCost(op) units.
// Providers reporting zero cost (Spotify) are returned unwrapped.
func BillProvider(p domain.Provider, ledger domain.QuotaLedger) domain.Provider {
	if p.ReportQuotaCost(domain.OpSearch) == 0 && p.ReportQuotaCost(domain.OpInsertItem) == 0 {
		return p
	}
	return &billedProvider{Provider: p, ledger: ledger}
}

func (b *billedProvider) bill(ctx domain.Context, op domain.ProviderOp, n int) {
	_ = b.ledger.Consume(ctx, b.Provider.ReportQuotaCost(op)*n)
}

func (b *billedProvider) GetPlaylistByName(ctx domain.Context, name string) (domain.Playlist, error) {
	b.bill(ctx, domain.OpListPlaylists, 1)
	return b.Provider.GetPlaylistByName(ctx, name)
}

func (b *billedProvider) ListPlaylistItems(ctx domain.Context, playlistID string) ([]domain.PlaylistItem, error) {
	b.bill(ctx, domain.OpListItems, 1)
	return b.Provider.ListPlaylistItems(ctx, playlistID)
}

func (b *billedProvider) CreatePlaylist(ctx domain.Context, name string) (string, error) {
	b.bill(ctx, domain.OpCreatePlaylist, 1)
	return b.Provider.CreatePlaylist(ctx, name)
}

func (b *billedProvider) AddToPlaylist(ctx domain.Context, playlistID string, targetIDs []string) error {
	b.bill(ctx, domain.OpInsertItem, len(targetIDs))
	return b.Provider.AddToPlaylist(ctx, playlistID, targetIDs)
}

func (b *billedProvider) SearchAuto(ctx domain.Context, trackName, artist string) (*domain.SearchHit, error) {
	b.bill(ctx, domain.OpSearch, 1)
	return b.Provider.SearchAuto(ctx, trackName, artist)
}
