package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/docsearchd/docsearchd/internal/ingest"
	"github.com/docsearchd/docsearchd/internal/mcp"
	"github.com/docsearchd/docsearchd/internal/registry"
	"github.com/docsearchd/docsearchd/internal/wire"
)

// Search handles POST /api/search. The body follows wire.SearchRequest;
// collections named in filters.collection_names (or the singular
// filters.collection_name) are fanned out across by the searcher,
// defaulting to every known collection when neither is set.
func Search(searcher Searcher, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req wire.SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Query) == "" {
			respondError(w, http.StatusBadRequest, "query must not be empty")
			return
		}

		start := time.Now()
		resp, err := searcher.SearchDetailed(r.Context(), req.Collections(), req.Query, req.ToSearchOptions())
		if metrics != nil {
			metrics.SearchLatency.Observe(time.Since(start).Seconds())
		}
		if err != nil {
			respondErr(w, err)
			return
		}

		collection := req.Filters.CollectionName
		respondOK(w, wire.ToSearchResponse(resp, collection, req.IncludeMetadata, req.IncludeEmbeddings))
	}
}

// indexRequest is the JSON body for POST /api/index.
type indexRequest struct {
	Collection   string `json:"collection"`
	AbsolutePath string `json:"absolute_path"`
	RelativePath string `json:"relative_path"`
}

// Index handles POST /api/index: (re)indexes a single file into a
// collection, creating the collection if it doesn't exist yet.
func Index(orch *ingest.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req indexRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Collection) == "" || strings.TrimSpace(req.AbsolutePath) == "" {
			respondError(w, http.StatusBadRequest, "collection and absolute_path are required")
			return
		}
		relPath := req.RelativePath
		if relPath == "" {
			relPath = req.AbsolutePath
		}

		chunksIndexed, err := orch.IndexFile(r.Context(), req.Collection, req.AbsolutePath, relPath)
		if err != nil {
			respondErr(w, err)
			return
		}
		respondOK(w, map[string]interface{}{
			"collection":     req.Collection,
			"absolute_path":  req.AbsolutePath,
			"chunks_indexed": chunksIndexed,
		})
	}
}

// DeleteDocument handles DELETE /api/collections/{collection}/documents/{externalID}.
func DeleteDocument(orch *ingest.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		collection := chi.URLParam(r, "collection")
		externalID := chi.URLParam(r, "externalID")

		if err := orch.DeleteDocument(r.Context(), collection, externalID); err != nil {
			respondErr(w, err)
			return
		}
		respondOK(w, map[string]interface{}{"deleted": externalID})
	}
}

// createCollectionRequest is the JSON body for POST /collections.
type createCollectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// CreateCollection handles POST /collections.
func CreateCollection(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createCollectionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Name) == "" {
			respondError(w, http.StatusBadRequest, "name must not be empty")
			return
		}

		coll, err := reg.CreateCollection(req.Name, req.Description)
		if err != nil {
			respondErr(w, err)
			return
		}
		respondJSON(w, http.StatusCreated, envelope{Success: true, Data: coll})
	}
}

// DeleteCollection handles DELETE /collections/{name}.
func DeleteCollection(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		if err := reg.DeleteCollection(name); err != nil {
			respondErr(w, err)
			return
		}
		respondOK(w, map[string]interface{}{"deleted": name})
	}
}

// ListCollections handles GET /api/collections.
func ListCollections(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondOK(w, reg.ListCollections())
	}
}

// CollectionStatus handles GET /api/collections/{collection}.
func CollectionStatus(reg *registry.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "collection")

		coll, err := reg.GetCollection(name)
		if err != nil {
			respondErr(w, err)
			return
		}
		stats, err := reg.Snapshot(name)
		if err != nil {
			respondErr(w, err)
			return
		}

		respondOK(w, map[string]interface{}{
			"collection": coll,
			"stats":      stats,
		})
	}
}

// ServiceInfo handles GET /api/info, mirroring the MCP server's Info()
// handshake for clients that talk REST instead of MCP.
func ServiceInfo(srv *mcp.Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, ver := srv.Info()
		hasTools, hasResources := srv.Capabilities()
		respondOK(w, map[string]interface{}{
			"name":      name,
			"version":   ver,
			"tools":     hasTools,
			"resources": hasResources,
		})
	}
}
