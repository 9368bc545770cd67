// Package api serves docqa over HTTP with chi.
//
// Public routes answer chat messages and expose sessions, health and
// Prometheus metrics. Routes under /admin ingest documents and manage
// collections; they require "Authorization: Bearer <admin token>".
package api
