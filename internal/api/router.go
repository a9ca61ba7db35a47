package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/docsearchd/docsearchd/internal/ingest"
	"github.com/docsearchd/docsearchd/internal/mcp"
	"github.com/docsearchd/docsearchd/internal/registry"
)

// Dependencies holds everything the router needs to wire its routes.
type Dependencies struct {
	Registry     *registry.Registry
	Searcher     Searcher
	Orchestrator *ingest.Orchestrator
	MCPServer    *mcp.Server
	Metrics      *Metrics
	MetricsReg   *prometheus.Registry
}

// New builds the REST router: health and metrics, search and collection
// inspection, plus the write routes for creating/deleting collections,
// indexing a file, and deleting a document. docsearchd has no auth model
// of its own, so there are no route groups split by auth tier.
func New(deps Dependencies) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if deps.Metrics != nil {
		r.Use(Monitoring(deps.Metrics))
	}

	r.Get("/health", Health(deps.Registry))
	r.Get("/api/health", Health(deps.Registry))
	if deps.MetricsReg != nil {
		r.Handle("/metrics", MetricsHandler(deps.MetricsReg))
	}

	if deps.Registry != nil {
		r.Post("/collections", CreateCollection(deps.Registry))
		r.Delete("/collections/{name}", DeleteCollection(deps.Registry))
	}

	r.Route("/api", func(r chi.Router) {
		if deps.MCPServer != nil {
			r.Get("/info", ServiceInfo(deps.MCPServer))
		}
		if deps.Registry != nil {
			r.Get("/collections", ListCollections(deps.Registry))
			r.Get("/collections/{collection}", CollectionStatus(deps.Registry))
		}
		if deps.Searcher != nil {
			r.Post("/search", Search(deps.Searcher, deps.Metrics))
		}
		if deps.Orchestrator != nil {
			r.Post("/index", Index(deps.Orchestrator))
			r.Delete("/collections/{collection}/documents/{externalID}", DeleteDocument(deps.Orchestrator))
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "no such route")
	})

	return r
}
