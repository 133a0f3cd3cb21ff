package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/claude/healthmerge/internal/importer"
	"github.com/claude/healthmerge/internal/stats"
	"github.com/claude/healthmerge/internal/storage"
)

// StatsDefaults are applied when a stats request leaves a parameter out.
type StatsDefaults struct {
	Mode     stats.CountingMode
	Weekend  stats.WeekdaySet
	Window   int
	SourceID string
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	repo     *storage.Repository
	importer *importer.Importer
	defaults StatsDefaults
	log      *slog.Logger
	apiKey   string
	router   chi.Router
	whois    WhoIser
}

// New creates a new Server with all routes configured.
func New(repo *storage.Repository, imp *importer.Importer, defaults StatsDefaults, apiKey string, log *slog.Logger) *Server {
	if defaults.Mode == "" {
		defaults.Mode = stats.DefaultCountingMode
	}
	if len(defaults.Weekend) == 0 {
		defaults.Weekend = stats.DefaultWeekend()
	}
	if defaults.Window < 1 {
		defaults.Window = 7
	}
	s := &Server{
		repo:     repo,
		importer: imp,
		defaults: defaults,
		log:      log,
		apiKey:   apiKey,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)
	s.router.Use(s.identity)

	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Writes (API key required)
		r.Group(func(r chi.Router) {
			r.Use(APIKeyAuth(s.apiKey))
			r.Post("/import", s.handleImport)
			r.Delete("/sources/{id}", s.handleDeleteSource)
			r.Put("/events", s.handlePutEvents)
		})

		// Reads (no auth, tsnet handles access)
		r.Get("/me", s.handleMe)
		r.Get("/data", s.handleData)
		r.Get("/sources", s.handleSources)
		r.Get("/events", s.handleEvents)
		r.Get("/imports", s.handleImports)
		r.Get("/stats/sleep", s.handleSleepStats)
		r.Get("/stats/daytype", s.handleDayTypeStats)
		r.Get("/stats/events", s.handleEventStats)
		r.Get("/stats/rolling", s.handleRolling)
	})
}

// SetMCP mounts an MCP transport under /mcp behind the API key.
func (s *Server) SetMCP(h http.Handler) {
	s.router.With(APIKeyAuth(s.apiKey)).Handle("/mcp", h)
	s.router.With(APIKeyAuth(s.apiKey)).Handle("/mcp/*", h)
}
