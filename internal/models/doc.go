// Package models defines the download records tracked by the dashboard and the messages exchanged with the media server.
//
// The package contains three categories of types:
//
// 1. Records: the canonical state of a single download
//   - [Entry] : one download with canonical fields plus UI-only flags
//   - [MediaType] : closed set of media kinds with an Unknown fallback
//
// 2. Mutations: partial changes applied to a record
//   - [Patch] : explicit optional-field patch, distinguishing absent from null
//   - [Optional] : a value paired with a presence flag
//
// 3. Messages: what the server sends and returns
//   - [Event] : sum type over [Created], [Updated], [Deleted] and [Progressed]
//   - [Envelope] : bulk command response with overall and per-item status
//
// Records only carry display and sort projections; ordering, filtering and selection live in the store package.
package models
