package main

import (
	"log/slog"
	"net/http"

	"github.com/brunobiangulo/legalrisk"
)

// newServer builds the API mux wrapped in the middleware chain.
func newServer(a analyzer, sc legalrisk.ServerConfig, log *slog.Logger) http.Handler {
	h := newHandler(a, sc, log)
	mux := http.NewServeMux()

	mux.HandleFunc("POST /analyze/file", h.handleAnalyzeFile)
	mux.HandleFunc("POST /analyze/filepath", h.handleAnalyzeFilepath)
	mux.HandleFunc("POST /analyze/combined", h.handleAnalyzeCombined)
	mux.HandleFunc("POST /ingest", h.handleIngest)
	mux.HandleFunc("GET /sources", h.handleListSources)
	mux.HandleFunc("DELETE /sources/{id}", h.handleDeleteSource)
	mux.HandleFunc("GET /analyses", h.handleRecentAnalyses)
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /{$}", h.handleRoot)

	// Middleware chain: recovery -> cors -> auth -> request id -> logging -> mux
	var handler http.Handler = mux
	handler = logMiddleware(log, handler)
	handler = requestIDMiddleware(handler)
	handler = authMiddleware(sc.APIKey, handler)
	handler = corsMiddleware(sc.CORSOrigins, handler)
	handler = recoveryMiddleware(log, handler)
	return handler
}
