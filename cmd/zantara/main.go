// Package main is the ZANTARA retrieval CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/zantara/internal/cli"
	"github.com/hyperjump/zantara/internal/config"
	"github.com/hyperjump/zantara/internal/embedding"
	"github.com/hyperjump/zantara/internal/indexer"
	"github.com/hyperjump/zantara/internal/keyword"
	"github.com/hyperjump/zantara/internal/models"
	"github.com/hyperjump/zantara/internal/retrieval"
	"github.com/hyperjump/zantara/internal/routing"
	"github.com/hyperjump/zantara/internal/server"
	"github.com/hyperjump/zantara/internal/storage"
	"github.com/hyperjump/zantara/internal/vector"
	"github.com/hyperjump/zantara/internal/watcher"
	"github.com/hyperjump/zantara/pkg/utils"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/zantara/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, config.yaml in the
// current directory wins if it exists. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "route":
		runRoute()
	case "retrieve":
		runRetrieve(false)
	case "search":
		runRetrieve(true)
	case "ingest":
		runIngest()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("zantara version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// mustSetup loads config and creates the logger, exiting on failure.
func mustSetup(configPath string, debugFlag bool) (*config.Config, string, *zap.Logger) {
	cfg, resolved, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if debugFlag {
		cfg.Debug = true
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, resolved, logger
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (routing decisions, ingestion, requests)")
	noWatch := fs.Bool("no-watch", false, "do not watch ingest source directories")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, logger := mustSetup(*configPath, *debug)
	defer logger.Sync()
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", cfg.Debug))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close(logger)

	var watchSvc *watcher.Watcher
	if len(cfg.Ingest.Sources) > 0 && !*noWatch {
		roots, err := watchRoots(cfg.Ingest.Sources)
		if err != nil {
			logger.Fatal("Invalid ingest source", zap.Error(err))
		}
		watchSvc = watcher.NewWatcher(roots, cfg.Ingest.Extensions, cfg.Ingest.RecursiveOrDefault(), components.Indexer,
			watcher.WithLogger(logger), watcher.WithDebounce(cfg.Ingest.Debounce))
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		go watchSvc.SyncExistingFiles()
	}

	srv := server.NewServer(
		components.Orchestrator,
		components.Indexer,
		components.Storage,
		components.Vectors,
		cfg,
		logger,
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if watchSvc != nil {
		watchSvc.Stop()
	}
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// watchRoots converts ingest sources to watcher roots.
func watchRoots(sources []config.SourceConfig) ([]watcher.Root, error) {
	roots := make([]watcher.Root, 0, len(sources))
	for _, sc := range sources {
		src, err := indexer.SourceFromConfig(sc)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Directory, err)
		}
		roots = append(roots, watcher.Root{Dir: sc.Directory, Source: src})
	}
	return roots, nil
}

// buildQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. The flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runRoute() {
	fs := flag.NewFlagSet("route", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: zantara route [flags] <query>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		fs.Usage()
		os.Exit(1)
	}
	cfg, _, logger := mustSetup(*configPath, false)
	defer logger.Sync()

	table, err := buildRoutingTable(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid routing table: %v\n", err)
		os.Exit(1)
	}
	orch, err := retrieval.New(routing.NewRouter(table, routing.WithLogger(logger)), nil, nil, retrievalConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRouteReport(os.Stdout, orch.Route(query), cli.ParseOutputFormat(*outputFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// retrieveRequest is the body sent to /api/v1/retrieve and /api/v1/search.
type retrieveRequest struct {
	models.RetrievalRequest
	EnableFallbacks *bool `json:"enable_fallbacks,omitempty"`
}

// runRetrieve runs a single retrieval. conflict selects multi-collection search.
func runRetrieve(conflict bool) {
	name := "retrieve"
	if conflict {
		name = "search"
	}
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open storage directly)")
	level := fs.Int("level", 0, "requester access level (0-3)")
	queryType := fs.String("type", "", "query type: greeting, casual, business, emergency (empty = classify)")
	limit := fs.Int("limit", models.DefaultRetrievalLimit, "maximum documents")
	collection := fs.String("collection", "", "force a collection and bypass routing")
	fallbacks := fs.Bool("fallbacks", true, "walk fallback collections when nothing is found (search only)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: zantara %s [flags] <query>\n\n", name)
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	query := buildQuery(fs.Args())
	if query == "" {
		fs.Usage()
		os.Exit(1)
	}
	req := retrieveRequest{RetrievalRequest: models.RetrievalRequest{
		Query:      query,
		QueryType:  models.QueryType(*queryType),
		UserLevel:  *level,
		Limit:      *limit,
		Collection: *collection,
	}}
	if conflict {
		req.EnableFallbacks = fallbacks
	}

	var res *models.RetrievalResult
	if *serverURL != "" {
		path := "/api/v1/retrieve"
		if conflict {
			path = "/api/v1/search"
		}
		var out models.RetrievalResult
		if err := postJSON(*serverURL+path, req, &out); err != nil {
			fmt.Fprintf(os.Stderr, "Retrieval failed: %v\n", err)
			os.Exit(1)
		}
		res = &out
	} else {
		cfg, _, logger := mustSetup(*configPath, false)
		defer logger.Sync()
		ctx := context.Background()
		components, err := initializeComponents(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close(logger)
		if conflict {
			res = components.Orchestrator.SearchWithConflictResolution(ctx, &req.RetrievalRequest, *fallbacks)
		} else {
			res = components.Orchestrator.Retrieve(ctx, &req.RetrievalRequest)
		}
	}

	if err := cli.WriteRetrievalResult(os.Stdout, res, cli.ParseOutputFormat(*outputFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func postJSON(url string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func runIngest() {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	collection := fs.String("collection", "", "target collection (required)")
	tier := fs.String("tier", string(models.TierC), "access tier: S, A, B or C")
	minLevel := fs.Int("min-level", 0, "minimum access level (0-3)")
	language := fs.String("language", "", "document language")
	sync := fs.Bool("sources", false, "ingest every configured source instead of a path")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	if !*sync && (fs.NArg() < 1 || *collection == "") {
		fmt.Println("Usage: zantara ingest -collection <id> [flags] <file-or-directory>")
		fmt.Println("       zantara ingest -sources")
		os.Exit(1)
	}

	cfg, _, logger := mustSetup(*configPath, false)
	defer logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close(logger)

	if *sync {
		n := components.Indexer.SyncSources(ctx, cfg.Ingest.Sources)
		fmt.Printf("Ingested %d file(s) from %d source(s)\n", n, len(cfg.Ingest.Sources))
		return
	}

	src, err := indexer.SourceFromConfig(config.SourceConfig{
		Collection: *collection, Tier: *tier, MinLevel: *minLevel, Language: *language,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid source: %v\n", err)
		os.Exit(1)
	}
	path := fs.Arg(0)
	info, err := os.Stat(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stat path: %v\n", err)
		os.Exit(1)
	}
	if info.IsDir() {
		n, err := components.Indexer.IngestDirectory(ctx, src, path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ingesting directory failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Ingested %d file(s) from %s into %s\n", n, path, src.Collection)
		return
	}
	res, err := components.Indexer.IngestFile(ctx, src, path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ingestion failed: %v\n", err)
		os.Exit(1)
	}
	if res.Skipped {
		fmt.Printf("Unchanged: %s\n", res.Document.ID)
		return
	}
	fmt.Printf("Ingested %s (%d chunks) into %s\n", res.Document.ID, res.Document.ChunkCount, src.Collection)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = open storage directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	var status *server.Status
	if *serverURL != "" {
		resp, err := http.Get(*serverURL + "/api/v1/status")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: request failed: %v\n", err)
			os.Exit(1)
		}
		var st server.Status
		err = decodeResponse(resp, &st)
		resp.Body.Close()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
		status = &st
	} else {
		cfg, _, logger := mustSetup(*configPath, false)
		defer logger.Sync()
		ctx := context.Background()
		components, err := initializeComponents(ctx, cfg, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
			os.Exit(1)
		}
		defer components.Close(logger)
		srv := server.NewServer(components.Orchestrator, components.Indexer, components.Storage, components.Vectors, cfg, logger)
		if status, err = srv.Status(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
			os.Exit(1)
		}
	}

	if cli.ParseOutputFormat(*outputFormat) == cli.OutputJSON {
		if err := cli.WriteJSON(os.Stdout, status); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	writeStatusText(os.Stdout, status)
}

func writeStatusText(w io.Writer, status *server.Status) {
	fmt.Fprintf(w, "available:          %t\n", status.Available)
	fmt.Fprintf(w, "hybrid:             %t\n", status.Hybrid)
	fmt.Fprintf(w, "collections:        %d\n", status.Collections)
	fmt.Fprintf(w, "documents:          %d   # ingested documents\n", status.Documents)
	fmt.Fprintf(w, "chunks:             %d   # stored text chunks\n", status.Chunks)
	fmt.Fprintf(w, "vectors:            %d   # embedded chunks across collections\n", status.Vectors)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d\n", *status.DiskUsageBytes)
	}
	if len(status.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		keys := make([]string, 0, len(status.Config))
		for k := range status.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%-20s%v\n", k+":", status.Config[k])
		}
	}
}

// buildRoutingTable loads the routing table from cfg.Routing.TablePath or the
// built-in defaults, then applies the config overrides.
func buildRoutingTable(cfg *config.Config) (*routing.Table, error) {
	spec := routing.DefaultSpec()
	if cfg.Routing.TablePath != "" {
		var err error
		if spec, err = routing.LoadSpecFile(cfg.Routing.TablePath); err != nil {
			return nil, err
		}
	}
	if cfg.Routing.DefaultCollection != "" {
		spec.DefaultCollection = cfg.Routing.DefaultCollection
	}
	if w := cfg.Routing.Weights.Keyword; w > 0 {
		spec.Weights.Keyword = w
	}
	if w := cfg.Routing.Weights.HighSpecificity; w > 0 {
		spec.Weights.HighSpecificity = w
	}
	if w := cfg.Routing.Weights.Modifier; w > 0 {
		spec.Weights.Modifier = w
	}
	return routing.NewTable(spec)
}

func retrievalConfig(cfg *config.Config) retrieval.Config {
	return retrieval.Config{
		VectorSize:      cfg.Embedding.Dimensions,
		SnippetChars:    cfg.Retrieval.SnippetChars,
		EmbedTimeout:    cfg.Retrieval.EmbedTimeout,
		SearchTimeout:   cfg.Retrieval.SearchTimeout,
		AmbiguityMargin: cfg.Routing.AmbiguityMargin,
		MaxCollections:  cfg.Routing.MaxCollections,
		KeywordWeight:   cfg.Retrieval.KeywordWeight,
		SemanticWeight:  cfg.Retrieval.SemanticWeight,
		TopKCandidates:  cfg.Retrieval.TopKCandidates,
	}
}

// Components holds initialized services.
type Components struct {
	Storage      storage.Storage
	Embedder     embedding.Embedder
	Vectors      vector.Store
	KeywordIndex keyword.KeywordIndex
	Table        *routing.Table
	Orchestrator *retrieval.Orchestrator
	Indexer      *indexer.Indexer

	snapshotPath string
}

// Close saves the vector snapshot when the store supports one and releases every resource.
func (c *Components) Close(logger *zap.Logger) {
	if snap, ok := c.Vectors.(vector.Snapshotter); ok && c.snapshotPath != "" {
		if err := snap.Save(c.snapshotPath); err != nil {
			logger.Warn("vector snapshot save failed", zap.String("path", c.snapshotPath), zap.Error(err))
		}
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Vectors != nil {
		_ = c.Vectors.Close()
	}
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	table, err := buildRoutingTable(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build routing table: %w", err)
	}

	embedder, err := embedding.New(embedding.Config{
		Provider:   cfg.Embedding.Provider,
		Model:      cfg.Embedding.Model,
		ModelPath:  cfg.Embedding.ModelPath,
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		MaxTokens:  cfg.Embedding.MaxTokens,
		CacheSize:  cfg.Embedding.CacheSize,
		Timeout:    cfg.Embedding.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c := &Components{Embedder: embedder, Table: table, snapshotPath: cfg.Storage.VectorSnapshotPath}

	c.Vectors, err = vector.NewStore(ctx, vector.Config{
		Backend:      cfg.Vector.Backend,
		QdrantURL:    cfg.Vector.QdrantURL,
		QdrantAPIKey: cfg.Vector.QdrantAPIKey,
		PostgresDSN:  cfg.Vector.PostgresDSN,
		Table:        cfg.Vector.Table,
		Timeout:      cfg.Vector.Timeout,
		SnapshotPath: cfg.Storage.VectorSnapshotPath,
	}, logger)
	if err != nil {
		c.Close(logger)
		return nil, fmt.Errorf("failed to initialize vector store: %w", err)
	}
	if err := retrieval.EnsureCollections(ctx, c.Vectors, table, cfg.Embedding.Dimensions); err != nil {
		c.Close(logger)
		return nil, err
	}
	logger.Info("vector store initialized",
		zap.String("backend", cfg.Vector.Backend),
		zap.Int("collections", len(table.Collections())),
		zap.Int("dimensions", cfg.Embedding.Dimensions))

	c.Storage, err = storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		c.Close(logger)
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	opts := []retrieval.Option{retrieval.WithLogger(logger)}
	if cfg.Retrieval.Hybrid {
		kw, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
		if err != nil {
			c.Close(logger)
			return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
		}
		c.KeywordIndex = kw
		opts = append(opts, retrieval.WithKeywordIndex(kw), retrieval.WithChunkStorage(c.Storage))
	}

	router := routing.NewRouter(table, routing.WithLogger(logger))
	c.Orchestrator, err = retrieval.New(router, c.Vectors, embedder, retrievalConfig(cfg), opts...)
	if err != nil {
		c.Close(logger)
		return nil, err
	}
	c.Indexer = indexer.NewIndexer(c.Storage, embedder, c.Vectors, c.KeywordIndex, cfg.Ingest,
		indexer.WithLogger(logger), indexer.WithRoutingTable(table))
	return c, nil
}

func printUsage() {
	fmt.Println(`zantara - Query routing and multi-collection retrieval

Usage:
  zantara server [flags]             Start the HTTP server
  zantara route [flags] <query>      Show which collection a query routes to
  zantara retrieve [flags] <query>   Retrieve context from the routed collection
  zantara search [flags] <query>     Retrieve across close collections (conflict resolution)
  zantara ingest [flags] <path>      Ingest a file or directory into a collection
  zantara status [flags]             Show storage and index status
  zantara version                    Show version
  zantara help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/zantara/config.yaml)
  --debug            Enable debug logging
  --no-watch         Do not watch ingest source directories

Retrieve/Search Flags:
  --server string      Server URL (default: http://localhost:8080). Use --server "" to open storage directly.
  --level int          Requester access level 0-3 (default: 0)
  --type string        Query type: greeting, casual, business, emergency (default: classify)
  --limit int          Maximum documents (default: 5)
  --collection string  Force a collection and bypass routing
  --fallbacks          Walk fallback collections (search only, default: true)
  --output string      Output format: text or json

Ingest Flags:
  --collection string  Target collection (required)
  --tier string        Access tier S, A, B or C (default: C)
  --min-level int      Minimum access level (default: 0)
  --language string    Document language
  --sources            Ingest every configured source

Examples:
  zantara server
  zantara route "how do I extend my KITAS"
  zantara retrieve --level 2 "PT PMA minimum capital"
  zantara search --output json "tax on property sale"
  zantara ingest --collection visa_oracle --tier A ./docs/visa
  zantara status --output json`)
}
