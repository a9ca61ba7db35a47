// Command docsearchd runs the document search daemon: it indexes a
// directory of documents into a collection, then serves hybrid search
// over MCP, REST, and JSON-RPC until terminated.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/docsearchd/docsearchd/internal/api"
	"github.com/docsearchd/docsearchd/internal/async"
	"github.com/docsearchd/docsearchd/internal/cache"
	"github.com/docsearchd/docsearchd/internal/concurrency"
	"github.com/docsearchd/docsearchd/internal/config"
	"github.com/docsearchd/docsearchd/internal/embed"
	"github.com/docsearchd/docsearchd/internal/gateway"
	"github.com/docsearchd/docsearchd/internal/ingest"
	"github.com/docsearchd/docsearchd/internal/logging"
	"github.com/docsearchd/docsearchd/internal/mcp"
	"github.com/docsearchd/docsearchd/internal/registry"
	"github.com/docsearchd/docsearchd/internal/rpc"
	"github.com/docsearchd/docsearchd/internal/scanner"
	"github.com/docsearchd/docsearchd/internal/search"
	"github.com/docsearchd/docsearchd/internal/store"
	"github.com/docsearchd/docsearchd/pkg/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "docsearchd:", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		rootDir    = flag.String("root", ".", "directory to index")
		collection = flag.String("collection", "default", "collection name")
		dataDir    = flag.String("data-dir", "", "on-disk storage directory (default: <root>/.docsearchd)")
		httpAddr   = flag.String("http-addr", "127.0.0.1:8085", "REST/JSON-RPC listen address")
		transport  = flag.String("transport", "stdio", "MCP transport (stdio)")
		debug      = flag.Bool("debug", false, "enable debug logging to ~/.docsearchd/logs/")
		watch      = flag.Bool("watch", true, "reindex files as they change after the initial scan")
		printVer   = flag.Bool("version", false, "print version and exit")
	)
	flag.Parse()

	if *printVer {
		fmt.Println(version.String())
		return nil
	}

	logCfg := logging.DefaultConfig()
	if *debug {
		logCfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("set up logging: %w", err)
	}
	defer cleanup()

	absRoot, err := filepath.Abs(*rootDir)
	if err != nil {
		return fmt.Errorf("resolve root dir: %w", err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		logger.Warn("no project config found, using defaults", "error", err)
		cfg = config.NewConfig()
	}

	storeDir := *dataDir
	if storeDir == "" {
		storeDir = filepath.Join(absRoot, ".docsearchd")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := wire(ctx, logger, cfg, absRoot, storeDir, *collection)
	if err != nil {
		return fmt.Errorf("wire daemon: %w", err)
	}
	defer app.Close()

	progress := async.NewIndexProgress()
	if _, err := app.ingestor.Ingest(ctx, *collection, absRoot, progress); err != nil {
		logger.Error("initial ingest failed", "error", err)
	}

	if *watch {
		go func() {
			if err := app.ingestor.Watch(ctx, *collection, absRoot); err != nil && err != context.Canceled {
				logger.Warn("file watch stopped", "error", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:    *httpAddr,
		Handler: buildHTTPHandler(app),
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("REST/JSON-RPC listening", "addr", *httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	go func() {
		logger.Info("MCP server starting", "transport", *transport)
		if err := app.mcpServer.Serve(ctx, *transport, *httpAddr); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		logger.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// application bundles the wired dependencies main needs to hold onto
// for the lifetime of the process.
type application struct {
	reg        *registry.Registry
	regStore   *registry.SQLiteStore
	stores     *store.Manager
	embedder   embed.Embedder
	engine     search.SearchEngine
	ingestor   *ingest.Orchestrator
	mcpServer  *mcp.Server
	metrics    *api.Metrics
	metricsReg *prometheus.Registry
	collection string
	gateway    *gateway.Gateway
}

func (a *application) Close() {
	if a.mcpServer != nil {
		_ = a.mcpServer.Close()
	}
	if a.engine != nil {
		_ = a.engine.Close()
	}
	if a.stores != nil {
		_ = a.stores.Close()
	}
	if a.regStore != nil {
		_ = a.regStore.Close()
	}
}

func wire(ctx context.Context, logger *slog.Logger, cfg *config.Config, rootDir, storeDir, collection string) (*application, error) {
	if err := os.MkdirAll(storeDir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	regStore, err := registry.OpenSQLiteStore(filepath.Join(storeDir, "registry.db"))
	if err != nil {
		return nil, fmt.Errorf("open registry store: %w", err)
	}

	reg, err := registry.New(regStore)
	if err != nil {
		return nil, fmt.Errorf("create registry: %w", err)
	}
	go regStore.FlushLoop(ctx.Done(), 5*time.Second)
	if _, err := reg.CreateCollection(collection, "root: "+rootDir); err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}

	sc, err := scanner.New()
	if err != nil {
		return nil, fmt.Errorf("create scanner: %w", err)
	}

	embedder, err := embed.NewEmbedder(ctx, embed.ParseProvider(cfg.Embeddings.Provider), cfg.Embeddings.Model)
	if err != nil {
		logger.Warn("embedding provider unavailable, falling back to static embeddings", "error", err)
		embedder = embed.NewStaticEmbedder()
	}

	bm25Cfg := store.DefaultBM25Config()
	stores := store.NewManager(storeDir, bm25Cfg, cfg.Search.BM25Backend)

	bm25, err := stores.BM25(collection)
	if err != nil {
		return nil, fmt.Errorf("open bm25 index: %w", err)
	}
	vector, err := stores.Vector(collection, embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("open vector store: %w", err)
	}

	engineCfg := search.DefaultConfig()
	if cfg.Search.BM25Weight > 0 || cfg.Search.SemanticWeight > 0 {
		engineCfg.DefaultWeights = search.Weights{
			BM25:     cfg.Search.BM25Weight,
			Semantic: cfg.Search.SemanticWeight,
		}
	}
	if cfg.Search.MaxResults > 0 {
		engineCfg.MaxLimit = cfg.Search.MaxResults
	}
	if cfg.Search.ZScoreScale > 0 {
		engineCfg.ZScoreScale = cfg.Search.ZScoreScale
	}
	engine, err := search.NewEngine(bm25, vector, embedder, reg, collection, engineCfg)
	if err != nil {
		return nil, fmt.Errorf("create search engine: %w", err)
	}

	orchestrator := ingest.New(ingest.Config{
		Scanner:       sc,
		Registry:      reg,
		Stores:        stores,
		Embedder:      embedder,
		MaxDocWorkers: cfg.Performance.IndexWorkers,
	})

	mcpServer, err := mcp.NewServer(engine, reg, collection, embedder, cfg, rootDir)
	if err != nil {
		return nil, fmt.Errorf("create mcp server: %w", err)
	}

	metricsReg := prometheus.NewRegistry()
	metrics := api.NewMetrics(metricsReg)

	resultCache, err := cache.NewResultCache(cfg.Cache.ResultsCapacity)
	if err != nil {
		return nil, fmt.Errorf("create result cache: %w", err)
	}
	limiter := concurrency.NewLimiter(cfg.Concurrency.ReadPermits, cfg.Concurrency.WritePermits)
	gw := gateway.New(reg, api.SingleEngine{Collection: collection, Search: engine}, resultCache, limiter)

	return &application{
		reg:        reg,
		regStore:   regStore,
		stores:     stores,
		embedder:   embedder,
		engine:     engine,
		ingestor:   orchestrator,
		mcpServer:  mcpServer,
		metrics:    metrics,
		metricsReg: metricsReg,
		collection: collection,
		gateway:    gw,
	}, nil
}

func buildHTTPHandler(app *application) http.Handler {
	restRouter := api.New(api.Dependencies{
		Registry:     app.reg,
		Searcher:     app.gateway,
		Orchestrator: app.ingestor,
		MCPServer:    app.mcpServer,
		Metrics:      app.metrics,
		MetricsReg:   app.metricsReg,
	})

	dispatcher := rpc.NewDispatcher()
	rpc.RegisterMethods(dispatcher, rpc.Deps{
		Registry:     app.reg,
		Searcher:     app.gateway,
		Orchestrator: app.ingestor,
		MCP:          app.mcpServer,
	})
	rpcHandler := func(w http.ResponseWriter, r *http.Request) {
		rpc.HTTPHandler(dispatcher)(w, r)
	}
	restRouter.Post("/rpc", rpcHandler)
	restRouter.Post("/jsonrpc", rpcHandler)
	restRouter.Post("/mcp", rpcHandler)

	return restRouter
}
