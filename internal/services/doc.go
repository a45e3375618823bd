// Package services defines [PlaylistSource], the collaborator that lists the videos of an external playlist.
//
// # YouTube Implementation
//
// [YouTubeSource] uses the YouTube Data API v3 client (google.golang.org/api/youtube/v3).
// It pages through playlistItems.list 50 at a time, then asks videos.list for durations in batches of the same size.
// Durations are reported as "m:ss" or "h:mm:ss"; thumbnails prefer the high, then medium, then default size.
// Videos come back ordered by their playlist position.
//
// Authentication is either an API key (public playlists) or an OAuth2 access token (private playlists).
// Obtaining that token is left to the identity provider.
//
// # Static Implementation
//
// [StaticSource] serves fixed playlists from memory, for tests and offline use.
package services
