// Package main is the osusume CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/osusume-io/osusume/internal/behavior"
	"github.com/osusume-io/osusume/internal/catalog"
	"github.com/osusume-io/osusume/internal/config"
	"github.com/osusume-io/osusume/internal/embedding"
	"github.com/osusume-io/osusume/internal/indexer"
	"github.com/osusume-io/osusume/internal/keyword"
	"github.com/osusume-io/osusume/internal/partition"
	"github.com/osusume-io/osusume/internal/recommend"
	"github.com/osusume-io/osusume/internal/search"
	"github.com/osusume-io/osusume/internal/server"
	"github.com/osusume-io/osusume/internal/session"
	"github.com/osusume-io/osusume/internal/vector"
	"github.com/osusume-io/osusume/internal/watcher"
	"github.com/osusume-io/osusume/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/osusume/config.yaml"

// loadConfig loads config from path. When path is the default, a config.yaml
// in the current directory takes precedence so development runs pick up the
// project config. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "build-index":
		runBuildIndex()
	case "import":
		runImport()
	case "search":
		runSearch()
	case "recommend":
		runRecommend()
	case "version":
		fmt.Printf("osusume %s\n", version)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `osusume - catalog similarity search and recommendation engine

Usage:
  osusume server       [-config path]                 run the HTTP API server
  osusume build-index  [-config path]                 build and persist all indexes
  osusume import       [-config path] [-csv path]     import catalog items from CSV
  osusume search       [-config path] [-k n] <query>  search the catalog
  osusume recommend    [-config path] [-n count] <user-id>  print recommendations
  osusume version                                     print version
`)
}

// engine bundles everything the commands need.
type engine struct {
	cfg       *config.Config
	logger    *zap.Logger
	behaviors *behavior.Store
	catalog   *catalog.Store
	captions  *keyword.CaptionIndex
	registry  *partition.Registry
	global    *vector.Handle
	builder   *indexer.Builder
	searches  *search.Service
	recs      *recommend.Service
}

func newEngine(cfg *config.Config, logger *zap.Logger) (*engine, error) {
	behaviors, err := behavior.NewStore(cfg.Storage.BehaviorDBPath)
	if err != nil {
		return nil, fmt.Errorf("open behavior store: %w", err)
	}
	cat, err := catalog.NewStore(cfg.Storage.CatalogDBPath)
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}
	captions, err := keyword.NewCaptionIndex(cfg.Storage.CaptionIndexPath)
	if err != nil {
		return nil, fmt.Errorf("open caption index: %w", err)
	}
	embedder, err := newEmbedder(cfg, logger)
	if err != nil {
		return nil, err
	}

	classifier := partition.NewClassifier(cfg.Recommend.Rules, cfg.Recommend.DefaultPartition)
	registry := partition.NewRegistry(logger)
	global := vector.NewHandle()
	builder := indexer.NewBuilder(cat, embedder, classifier, registry, global, captions, cfg.Storage.IndexDir, logger)

	searchSessions := session.NewCache(cfg.Recommend.SessionCapacity)
	recSessions := session.NewCache(cfg.Recommend.SessionCapacity)
	searches := search.NewService(global, captions, embedder, cat, behaviors, searchSessions,
		cfg.Search.SemanticWeight, cfg.Search.KeywordWeight, logger)
	planner := recommend.NewPlanner(registry, cfg.Recommend.Quotas)
	interest := recommend.NewInterestBuilder(behaviors, embedder, cfg.Recommend.RecentEvents)
	recs := recommend.NewService(planner, interest, cat, behaviors, recSessions, logger)

	return &engine{
		cfg:       cfg,
		logger:    logger,
		behaviors: behaviors,
		catalog:   cat,
		captions:  captions,
		registry:  registry,
		global:    global,
		builder:   builder,
		searches:  searches,
		recs:      recs,
	}, nil
}

func (e *engine) close() {
	_ = e.behaviors.Close()
	_ = e.catalog.Close()
	_ = e.captions.Close()
}

func newEmbedder(cfg *config.Config, logger *zap.Logger) (embedding.Embedder, error) {
	var inner embedding.Embedder
	switch cfg.Embedding.Provider {
	case "remote":
		inner = embedding.NewRemoteEmbedder(
			cfg.Embedding.TextEndpoint, cfg.Embedding.ImageEndpoint, cfg.Embedding.Dimensions, logger)
	case "onnx":
		onnx, err := embedding.NewONNXEmbedder(
			cfg.Embedding.TextModelPath, cfg.Embedding.ImageModelPath, cfg.Embedding.Dimensions, logger)
		if err != nil {
			return nil, fmt.Errorf("create ONNX embedder: %w", err)
		}
		inner = onnx
	case "mock":
		inner = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Embedding.Provider)
	}
	return embedding.NewCachedEmbedder(inner, cfg.Embedding.CacheSize), nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	watch := fs.Bool("watch", true, "rebuild indexes when catalog sources change")
	_ = fs.Parse(os.Args[2:])

	cfg, loadedFrom, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("path", loadedFrom))

	eng, err := newEngine(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	defer eng.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eng.builder.LoadOrBuild(ctx); err != nil {
		logger.Fatal("failed to load or build indexes", zap.Error(err))
	}

	if *watch {
		w := watcher.NewWatcher(
			[]string{cfg.Catalog.CSVPath, cfg.Catalog.ImageDir},
			func() {
				if err := eng.builder.Build(context.Background()); err != nil {
					logger.Error("rebuild failed", zap.Error(err))
				}
			},
			logger,
		)
		if err := w.Start(ctx); err != nil {
			logger.Warn("catalog watch unavailable", zap.Error(err))
		}
	}

	srv := server.NewServer(eng.searches, eng.recs, eng.builder, eng.behaviors,
		eng.catalog, eng.registry, eng.global, cfg, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = srv.Stop(shutdownCtx)
		cancel()
	}()

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func runBuildIndex() {
	fs := flag.NewFlagSet("build-index", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	_ = fs.Parse(os.Args[2:])

	eng, logger := mustEngine(*configPath)
	defer eng.close()
	defer logger.Sync()

	started := time.Now()
	if err := eng.builder.Build(context.Background()); err != nil {
		logger.Fatal("build failed", zap.Error(err))
	}
	fmt.Printf("indexes built in %s (global: %d items, partitions: %v)\n",
		time.Since(started).Round(time.Millisecond), eng.global.Size(), eng.registry.Sizes())
}

func runImport() {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	csvPath := fs.String("csv", "", "catalog CSV path (defaults to config catalog.csv_path)")
	_ = fs.Parse(os.Args[2:])

	eng, logger := mustEngine(*configPath)
	defer eng.close()
	defer logger.Sync()

	path := *csvPath
	if path == "" {
		path = eng.cfg.Catalog.CSVPath
	}
	count, err := eng.catalog.ImportCSV(context.Background(), path, eng.cfg.Catalog.ImageDir)
	if err != nil {
		logger.Fatal("import failed", zap.Error(err))
	}
	fmt.Printf("imported %d catalog items from %s\n", count, path)
}

func runSearch() {
	fs := flag.NewFlagSet("search", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	k := fs.Int("k", 5, "number of results")
	_ = fs.Parse(os.Args[2:])
	query := strings.Join(fs.Args(), " ")
	if query == "" {
		fmt.Fprintln(os.Stderr, "usage: osusume search [-k n] <query>")
		os.Exit(1)
	}

	eng, logger := mustEngine(*configPath)
	defer eng.close()
	defer logger.Sync()

	ctx := context.Background()
	if err := eng.builder.LoadOrBuild(ctx); err != nil {
		logger.Fatal("failed to load indexes", zap.Error(err))
	}
	resp, err := eng.searches.TextSearch(ctx, 0, query, *k)
	if err != nil {
		logger.Fatal("search failed", zap.Error(err))
	}
	for i, item := range resp.Results {
		fmt.Printf("%2d. %.4f  %s  %s\n", i+1, item.Score, item.Path, item.Caption)
	}
}

func runRecommend() {
	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	n := fs.Int("n", 0, "number of recommendations (defaults to config)")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: osusume recommend [-n count] <user-id>")
		os.Exit(1)
	}
	var userID int64
	if _, err := fmt.Sscanf(fs.Arg(0), "%d", &userID); err != nil || userID <= 0 {
		fmt.Fprintln(os.Stderr, "invalid user id")
		os.Exit(1)
	}

	eng, logger := mustEngine(*configPath)
	defer eng.close()
	defer logger.Sync()

	ctx := context.Background()
	if err := eng.builder.LoadOrBuild(ctx); err != nil {
		logger.Fatal("failed to load indexes", zap.Error(err))
	}
	count := *n
	if count <= 0 {
		count = eng.cfg.Recommend.DefaultCount
	}
	rec, err := eng.recs.Recommend(ctx, userID, count)
	if err != nil {
		logger.Fatal("recommendation failed", zap.Error(err))
	}
	fmt.Println(rec.Reason)
	for i, item := range rec.Items {
		fmt.Printf("%2d. %.4f  %s  %s\n", i+1, item.Score, item.Path, item.Caption)
	}
}

func mustEngine(configPath string) (*engine, *zap.Logger) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	eng, err := newEngine(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", zap.Error(err))
	}
	return eng, logger
}
