package rpc

import (
	"context"
	"encoding/json"
	"strings"

	amerrors "github.com/docsearchd/docsearchd/internal/errors"
	"github.com/docsearchd/docsearchd/internal/ingest"
	"github.com/docsearchd/docsearchd/internal/mcp"
	"github.com/docsearchd/docsearchd/internal/registry"
	"github.com/docsearchd/docsearchd/internal/search"
	"github.com/docsearchd/docsearchd/internal/wire"
)

// Searcher resolves a (possibly multi-collection) search the way
// internal/gateway.Gateway does, with query metadata attached.
type Searcher interface {
	SearchDetailed(ctx context.Context, collections []string, query string, opts search.SearchOptions) (*search.SearchResponse, error)
}

// Deps holds everything RegisterMethods needs to wire document.*,
// collection.*, health.check, and service.info.
type Deps struct {
	Registry     *registry.Registry
	Searcher     Searcher
	Orchestrator *ingest.Orchestrator
	MCP          *mcp.Server
}

// RegisterMethods binds the standard method set onto d.
func RegisterMethods(d *Dispatcher, deps Deps) {
	d.Register("document.search", documentSearch(deps))
	d.Register("document.index", documentIndex(deps))
	d.Register("document.get", documentGet(deps))
	d.Register("document.update", documentUpdate(deps))
	d.Register("document.delete", documentDelete(deps))
	d.Register("collection.list", collectionList(deps))
	d.Register("collection.status", collectionStatus(deps))
	d.Register("collection.create", collectionCreate(deps))
	d.Register("collection.delete", collectionDelete(deps))
	d.Register("health.check", healthCheck(deps))
	d.Register("service.info", serviceInfo(deps))
}

func documentSearch(deps Deps) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var p wire.SearchRequest
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, NewInvalidParamsError("malformed params: " + err.Error())
			}
		}
		if strings.TrimSpace(p.Query) == "" {
			return nil, NewInvalidParamsError("query must not be empty")
		}
		if deps.Searcher == nil {
			return nil, amerrors.InternalError("no searcher configured", nil)
		}

		resp, err := deps.Searcher.SearchDetailed(ctx, p.Collections(), p.Query, p.ToSearchOptions())
		if err != nil {
			return nil, err
		}
		return wire.ToSearchResponse(resp, p.Filters.CollectionName, p.IncludeMetadata, p.IncludeEmbeddings), nil
	}
}

type documentIndexParams struct {
	Collection   string `json:"collection"`
	AbsolutePath string `json:"absolute_path"`
	RelativePath string `json:"relative_path,omitempty"`
}

func documentIndex(deps Deps) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var p documentIndexParams
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, NewInvalidParamsError("malformed params: " + err.Error())
			}
		}
		if strings.TrimSpace(p.Collection) == "" || strings.TrimSpace(p.AbsolutePath) == "" {
			return nil, NewInvalidParamsError("collection and absolute_path are required")
		}
		if deps.Orchestrator == nil {
			return nil, amerrors.InternalError("no ingest orchestrator configured", nil)
		}

		relPath := p.RelativePath
		if relPath == "" {
			relPath = p.AbsolutePath
		}
		chunksIndexed, err := deps.Orchestrator.IndexFile(ctx, p.Collection, p.AbsolutePath, relPath)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"collection":     p.Collection,
			"absolute_path":  p.AbsolutePath,
			"chunks_indexed": chunksIndexed,
		}, nil
	}
}

type documentGetParams struct {
	Collection string `json:"collection"`
	ExternalID string `json:"external_id"`
}

func documentGet(deps Deps) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var p documentGetParams
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, NewInvalidParamsError("malformed params: " + err.Error())
			}
		}
		if strings.TrimSpace(p.Collection) == "" || strings.TrimSpace(p.ExternalID) == "" {
			return nil, NewInvalidParamsError("collection and external_id are required")
		}
		if deps.Registry == nil {
			return nil, amerrors.InternalError("no registry configured", nil)
		}

		doc, err := deps.Registry.GetDocument(p.Collection, p.ExternalID)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"document": doc}, nil
	}
}

// documentUpdate re-ingests a document at its current path, the same
// operation as document.index: registry revisions are content-addressed,
// so "update" and "(re)index" are the same call under the hood.
func documentUpdate(deps Deps) HandlerFunc {
	return documentIndex(deps)
}

type documentDeleteParams struct {
	Collection string `json:"collection"`
	ExternalID string `json:"external_id,omitempty"`
	AbsolutePath string `json:"absolute_path,omitempty"`
}

func documentDelete(deps Deps) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var p documentDeleteParams
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, NewInvalidParamsError("malformed params: " + err.Error())
			}
		}
		if strings.TrimSpace(p.Collection) == "" {
			return nil, NewInvalidParamsError("collection is required")
		}
		if strings.TrimSpace(p.ExternalID) == "" && strings.TrimSpace(p.AbsolutePath) == "" {
			return nil, NewInvalidParamsError("external_id or absolute_path is required")
		}
		if deps.Orchestrator == nil {
			return nil, amerrors.InternalError("no ingest orchestrator configured", nil)
		}

		var err error
		if p.ExternalID != "" {
			err = deps.Orchestrator.DeleteDocument(ctx, p.Collection, p.ExternalID)
		} else {
			err = deps.Orchestrator.DeleteByPath(ctx, p.Collection, p.AbsolutePath)
		}
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"deleted": true}, nil
	}
}

func collectionList(deps Deps) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		if deps.Registry == nil {
			return nil, amerrors.InternalError("no registry configured", nil)
		}
		return map[string]interface{}{"collections": deps.Registry.ListCollections()}, nil
	}
}

type collectionStatusParams struct {
	Collection string `json:"collection"`
}

func collectionStatus(deps Deps) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var p collectionStatusParams
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, NewInvalidParamsError("malformed params: " + err.Error())
			}
		}
		if strings.TrimSpace(p.Collection) == "" {
			return nil, NewInvalidParamsError("collection must not be empty")
		}
		if deps.Registry == nil {
			return nil, amerrors.InternalError("no registry configured", nil)
		}

		coll, err := deps.Registry.GetCollection(p.Collection)
		if err != nil {
			return nil, err
		}
		stats, err := deps.Registry.Snapshot(p.Collection)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"collection": coll, "stats": stats}, nil
	}
}

type collectionCreateParams struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func collectionCreate(deps Deps) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var p collectionCreateParams
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, NewInvalidParamsError("malformed params: " + err.Error())
			}
		}
		if strings.TrimSpace(p.Name) == "" {
			return nil, NewInvalidParamsError("name must not be empty")
		}
		if deps.Registry == nil {
			return nil, amerrors.InternalError("no registry configured", nil)
		}

		coll, err := deps.Registry.CreateCollection(p.Name, p.Description)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"collection": coll}, nil
	}
}

func collectionDelete(deps Deps) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		var p collectionStatusParams
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &p); err != nil {
				return nil, NewInvalidParamsError("malformed params: " + err.Error())
			}
		}
		if strings.TrimSpace(p.Collection) == "" {
			return nil, NewInvalidParamsError("collection must not be empty")
		}
		if deps.Registry == nil {
			return nil, amerrors.InternalError("no registry configured", nil)
		}

		if err := deps.Registry.DeleteCollection(p.Collection); err != nil {
			return nil, err
		}
		return map[string]interface{}{"deleted": p.Collection}, nil
	}
}

func healthCheck(deps Deps) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		status := "ok"
		if deps.Registry != nil {
			if err := deps.Registry.Ping(ctx); err != nil {
				status = "degraded"
			}
		}
		return map[string]interface{}{"status": status}, nil
	}
}

func serviceInfo(deps Deps) HandlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (interface{}, error) {
		if deps.MCP == nil {
			return map[string]interface{}{"name": "docsearchd"}, nil
		}
		name, ver := deps.MCP.Info()
		hasTools, hasResources := deps.MCP.Capabilities()
		return map[string]interface{}{
			"name":      name,
			"version":   ver,
			"tools":     hasTools,
			"resources": hasResources,
		}, nil
	}
}
