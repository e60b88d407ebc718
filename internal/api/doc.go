// Package api implements the JSON HTTP API for the elephant retrieval
// core: thread and message management, context assembly, and knowledge
// search.
//
// The package wires a plain http.ServeMux (Go 1.22 method patterns)
// behind a small middleware stack: panic recovery, request IDs, request
// logging, and per-IP rate limiting. Handlers depend on narrow interfaces
// so tests run against fakes without a database.
package api
