// Package server exposes the learning-progress operations over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
// [BasicRouter] implements it on [http.ServeMux] with one method per path.
// Middleware added first runs outermost.
//
// # Middleware
//
// [New] installs chi's RequestID, RealIP and Recoverer, a request logger, a Prometheus
// request counter and [Identity]. Identity copies the principal that the upstream identity
// provider put in a header (X-User-ID by default) into the request context; handlers read it
// with [PrincipalFrom]. Session handling itself lives upstream.
//
// # Routes
//
//	POST /api/video/complete   {userId, videoId, completed}
//	POST /api/video/position   {videoId, currentTime}
//	POST /api/setup/playlist   {playlistId}
//	GET  /api/dashboard
//	GET  /api/ledger           [?userId=]
//	GET  /health
//	GET  /metrics
//
// Bodies are validated with go-playground/validator. Errors map to
// 401 (unauthorized), 400 (invalid input), 404 (not found), 502 (playlist source),
// 503 (datastore busy, safe to retry) and 500 for everything else.
package server
