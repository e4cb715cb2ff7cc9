package domain

// ProviderOp names a provider operation for quota accounting.
type ProviderOp string

const (
	OpSearch         ProviderOp = "search.list"
	OpListItems      ProviderOp = "playlistItems.list"
	OpInsertItem     ProviderOp = "playlistItems.insert"
	OpCreatePlaylist ProviderOp = "playlists.insert"
	OpListPlaylists  ProviderOp = "playlists.list"
)

// Playlist is the provider-side view of a playlist.
type Playlist struct {
	ID         string
	Title      string
	TrackCount int
}

// PlaylistItem is one enumerated track. Tombstoned items (deleted or
// region-blocked on the source side) come back with Unplayable=true and
// an empty SourceID.
type PlaylistItem struct {
	SourceID   string
	Title      string
	Artist     string
	Unplayable bool
}

// SearchHit is the scored best match SearchAuto found for a track, or
// absent (nil) when nothing cleared the thresholds.
type SearchHit struct {
	TargetID      string
	TitleScore    int
	ArtistScore   int
	MatchedTitle  string
	MatchedArtist string
}

// Provider is the uniform capability set the pipeline needs from either
// music service. Implementations wrap the actual provider SDK/API and
// hold the per-user credentials.
type Provider interface {
	GetPlaylistByName(ctx Context, name string) (Playlist, error)
	ListPlaylistItems(ctx Context, playlistID string) ([]PlaylistItem, error)
	CreatePlaylist(ctx Context, name string) (string, error)
	AddToPlaylist(ctx Context, playlistID string, targetIDs []string) error
	SearchAuto(ctx Context, trackName, artist string) (*SearchHit, error)
	// ReportQuotaCost is advisory: the runner bills this many units per
	// call for quota-controlled providers. Zero for uncontrolled ones.
	ReportQuotaCost(op ProviderOp) int
}

// ProviderFactory builds per-user provider clients. Token lookup or
// refresh failures surface as ErrUnauthorized.
type ProviderFactory interface {
	Spotify(ctx Context, userID string) (Provider, error)
	YouTube(ctx Context, userID string) (Provider, error)
}

// Token provider names used by the token store.
const (
	TokenProviderSpotify = "spotify"
	TokenProviderYouTube = "youtube"
)

// TokenStore resolves per-user OAuth tokens. Token JSON is opaque to
// the core; an external auth service writes it, providers read and
// refresh it.
type TokenStore interface {
	Get(ctx Context, provider, userID string) (string, error)
	Save(ctx Context, provider, userID, tokenJSON string) error
}
