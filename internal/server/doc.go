// Package server provides the demo media server used for local development of the dashboard.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # Endpoints
//
// [API] speaks the same contract as the real server:
//   - GET /api/downloads returns every entry
//   - PATCH /api/bulkEdit takes [{id, title?, mediaType?}] and returns an envelope
//   - POST /api/bulkDelete takes {ids} and returns an envelope
//   - GET /api/stream is a server-sent event stream of {type, data} messages
//   - GET /api/ws carries the same messages as WebSocket text frames
//
// [RequireAPIKey] guards every route. The key is read from the X-API-Key header or, for
// clients that cannot set headers, the api_key query parameter.
//
// # Events
//
// [Backend] holds the table in memory and broadcasts a CREATE, UPDATE or DELETE on the
// [Hub] for every change it applies. The hub follows the register/unregister/broadcast
// loop of a WebSocket hub; SSE and WebSocket clients are both plain subscribers.
// [Simulator] produces PROGRESS events and finishes or starts downloads on a timer.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
