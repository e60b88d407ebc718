package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ServerConfig contains the dependencies for the API server.
type ServerConfig struct {
	Logger     *slog.Logger
	Threads    ThreadStore      // Required
	Assembler  ContextAssembler // Required
	Knowledge  KnowledgeEngine  // Required
	Pool       *pgxpool.Pool    // Optional: nil disables the database check in /ready
	TrustProxy bool             // Trust X-Real-IP/X-Forwarded-For (behind reverse proxy)
	RateBurst  int              // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Threads == nil {
		return nil, errors.New("thread store is required")
	}
	if cfg.Assembler == nil {
		return nil, errors.New("context assembler is required")
	}
	if cfg.Knowledge == nil {
		return nil, errors.New("knowledge engine is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	th := &threadHandler{store: cfg.Threads, assembler: cfg.Assembler, logger: logger}
	kh := &knowledgeHandler{engine: cfg.Knowledge, logger: logger}

	mux := http.NewServeMux()

	// Threads and messages
	mux.HandleFunc("POST /api/v1/threads", th.createThread)
	mux.HandleFunc("GET /api/v1/threads", th.listThreads)
	mux.HandleFunc("GET /api/v1/threads/{id}", th.getThread)
	mux.HandleFunc("GET /api/v1/threads/{id}/messages", th.getMessages)
	mux.HandleFunc("POST /api/v1/threads/{id}/messages", th.appendMessage)
	mux.HandleFunc("GET /api/v1/threads/{id}/context", th.getContext)

	// Knowledge retrieval
	mux.HandleFunc("GET /api/v1/knowledge/search", kh.search)
	mux.HandleFunc("GET /api/v1/knowledge/{id}/related", kh.related)
	mux.HandleFunc("POST /api/v1/knowledge/suggest", kh.suggest)

	// Per-IP token bucket, 1 token/sec refill.
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Middleware stack, outermost first:
	//   Recovery → RequestID → Logging → RateLimit → Routes
	// RequestID must precede Logging so request_id appears in log attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack so rate limiting can never
	// fail a liveness check.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
