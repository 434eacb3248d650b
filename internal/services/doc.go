// Package services talks to the media server.
//
// # REST
//
// [APIService] implements [DownloadsAPI] over the /api/downloads, /api/bulkEdit and
// /api/bulkDelete endpoints. Every request carries the key in the X-API-Key header.
// Bulk endpoints answer with a [models.Envelope] whose items succeed or fail on their own.
//
// # Event stream
//
// [Stream] holds one live connection through a [Dialer]. Two transports exist:
//   - [SSEDialer] reads server-sent events from /api/stream?api_key=...
//   - [WebSocketDialer] reads text frames from /api/ws and pings every 54s
//
// Lost connections are retried with exponential [Backoff] (1s doubling to 30s) behind a
// rate limiter. The first message after a reconnect is [StreamResync]; consumers should
// refetch the listing because events sent during the gap are gone.
//
// # Errors
//
//   - [shared.ErrTransport] : network failure or dropped connection
//   - [shared.ErrAPIRequest] : non-2xx status or rejected envelope
//   - [shared.ErrMalformedResponse] : body did not decode
//   - [shared.ErrStreamClosed] : the stream was stopped
package services
