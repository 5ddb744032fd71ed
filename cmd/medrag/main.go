package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/careline/medrag/internal/ai"
	"github.com/careline/medrag/internal/analytics"
	"github.com/careline/medrag/internal/cache"
	"github.com/careline/medrag/internal/config"
	"github.com/careline/medrag/internal/corpus"
	"github.com/careline/medrag/internal/embedstore"
	"github.com/careline/medrag/internal/handler"
	"github.com/careline/medrag/internal/job"
	"github.com/careline/medrag/internal/knowledge"
	"github.com/careline/medrag/internal/middleware"
	"github.com/careline/medrag/internal/optimize"
	"github.com/careline/medrag/internal/remote"
	"github.com/careline/medrag/internal/repo"
	"github.com/careline/medrag/internal/retrieval"
	"github.com/careline/medrag/internal/schedule"
	"github.com/careline/medrag/internal/semantic"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "medrag",
		Short: "medrag retrieval service",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run medrag server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			var db *sql.DB
			if cfg.DBDSN != "" {
				db, err = repo.Open(cfg.DBDSN)
				if err != nil {
					return fmt.Errorf("open db: %w", err)
				}
				if err := repo.ApplyMigrations(db); err != nil {
					return fmt.Errorf("migrations: %w", err)
				}
			}
			return runServer(cfg, db)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, db *sql.DB) error {
	ctx := context.Background()
	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.Bool("durable", db != nil),
	)

	provider, err := ai.NewProvider(cfg.Embedding.Provider, cfg.Embedding.Data)
	if err != nil {
		return fmt.Errorf("init embedding provider: %w", err)
	}

	var embedOpts []embedstore.Option
	var cacheRepo *repo.EmbeddingCacheRepo
	var docRepo *repo.DocumentRepo
	if db != nil {
		cacheRepo = repo.NewEmbeddingCacheRepo(db)
		docRepo = repo.NewDocumentRepo(db)
		embedOpts = append(embedOpts, embedstore.WithDurableCache(cacheRepo))
	}
	embedCache := cache.NewMemory(8192, 7*24*time.Hour)
	embedder := embedstore.New(provider, embedCache, embedstore.Config{}, embedOpts...)

	index := knowledge.NewIndex(embedder, cache.NewMemory(2048, 24*time.Hour), knowledge.Config{})
	if cfg.SeedCorpus {
		loaded := knowledge.Seed(ctx, index)
		logutil.GetLogger(ctx).Info("seed corpus indexed", zap.Int("documents", loaded))
	}
	if docRepo != nil {
		docs, err := docRepo.List(ctx)
		if err != nil {
			return fmt.Errorf("load persisted corpus: %w", err)
		}
		for _, doc := range docs {
			index.AddDocument(ctx, doc)
		}
		logutil.GetLogger(ctx).Info("persisted corpus indexed", zap.Int("documents", len(docs)))
	}

	var loader *corpus.Loader
	if cfg.Corpus.Type != "" {
		source, err := corpus.New(cfg.Corpus.Type, cfg.Corpus.Data)
		if err != nil {
			return fmt.Errorf("init corpus source: %w", err)
		}
		loader = corpus.NewLoader(source, index, docRepo)
		if _, err := loader.LoadAll(ctx); err != nil {
			return fmt.Errorf("load corpus: %w", err)
		}
	}

	engine := semantic.New(index, cache.NewMemory(4096, 30*time.Minute), semantic.Config{})

	var backend retrieval.Backend
	if cfg.Remote.BaseURL != "" {
		backend = remote.New(remote.Config{
			BaseURL: cfg.Remote.BaseURL,
			APIKey:  cfg.Remote.APIKey,
			Timeout: time.Duration(cfg.Remote.TimeoutSeconds) * time.Second,
		})
	}
	router := retrieval.New(backend, engine, cache.NewMemory(4096, 30*time.Minute), analytics.LogSink{}, retrieval.Config{
		EnableLocal:  cfg.Retrieval.EnableLocal,
		EnableHybrid: cfg.Retrieval.EnableHybrid,
		MaxChunks:    cfg.Retrieval.MaxChunks,
	})

	optimizer := optimize.New(router, optimize.Config{
		BatchSize:     cfg.Optimizer.BatchSize,
		BatchInterval: time.Duration(cfg.Optimizer.BatchIntervalMS) * time.Millisecond,
		PrefetchSize:  cfg.Optimizer.PrefetchSize,
		Prefetch:      cfg.Optimizer.Prefetch,
	})
	defer optimizer.Close()

	scheduler := schedule.NewCronScheduler()
	if cacheRepo != nil {
		if err := scheduler.AddJob(job.NewEmbeddingCacheCleanupJob(cacheRepo, cfg.Jobs.CacheMaxAgeDays), cfg.Jobs.CacheCleanupSpec); err != nil {
			return err
		}
	}
	if err := scheduler.AddJob(job.NewOptimizerTuneJob(optimizer), cfg.Jobs.TuneSpec); err != nil {
		return err
	}
	if cfg.Jobs.ReindexSpec != "" {
		if err := scheduler.AddJob(job.NewCorpusReindexJob(index), cfg.Jobs.ReindexSpec); err != nil {
			return err
		}
	}

	deps := handler.RouterDeps{
		Query:        handler.NewQueryHandler(optimizer),
		Search:       handler.NewSearchHandler(engine),
		Knowledge:    handler.NewKnowledgeHandler(index, docRepo, loader),
		QueryQPS:     cfg.QueryQPS,
		QueryBurst:   cfg.QueryBurst,
		AdminEnabled: cfg.AdminEnabled,
	}

	webEngine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllow),
			gzip.Gzip(gzip.DefaultCompression),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	signalCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(signalCtx)
	defer scheduler.Stop()

	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))
	go func() {
		if err := webEngine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(ctx).Error("server error", zap.Error(err))
		}
	}()

	<-signalCtx.Done()
	logutil.GetLogger(ctx).Info("server stopping...")
	return nil
}
