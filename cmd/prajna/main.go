package main

import (
	"context"
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

	"github.com/devashis/prajna/internal/ai"
	"github.com/devashis/prajna/internal/assetstore"
	"github.com/devashis/prajna/internal/chat"
	"github.com/devashis/prajna/internal/config"
	"github.com/devashis/prajna/internal/db"
	"github.com/devashis/prajna/internal/docstore"
	"github.com/devashis/prajna/internal/geotools"
	"github.com/devashis/prajna/internal/handler"
	"github.com/devashis/prajna/internal/intent"
	"github.com/devashis/prajna/internal/job"
	"github.com/devashis/prajna/internal/middleware"
	"github.com/devashis/prajna/internal/ratelimit"
	"github.com/devashis/prajna/internal/retriever"
	"github.com/devashis/prajna/internal/schedule"
	"github.com/devashis/prajna/internal/vectorstore"
)

const rateLimitCleanupSpec = "30 3 * * *"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "prajna",
		Short: "prajna answer engine",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the answer engine server",
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
			return runServer(cfg)
		},
	}

	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logutil.GetLogger(ctx).Info(
		"starting server",
		zap.Int("port", cfg.Port),
		zap.String("site", cfg.Site.ID),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("asset_store", cfg.Assets.Type),
	)

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer conn.Close()
	if err := db.ApplyMigrations(conn); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}

	assets, err := assetstore.New(cfg.Assets)
	if err != nil {
		return fmt.Errorf("init asset store: %w", err)
	}

	provider, err := ai.NewProvider(cfg.AI.Provider, cfg.AI.Data)
	if err != nil {
		return fmt.Errorf("init ai provider: %w", err)
	}
	manager := ai.NewManager(provider, ai.ManagerConfig{
		DefaultModel: cfg.AI.Model,
		EmbedModel:   cfg.AI.EmbedModel,
		Timeout:      cfg.AI.Timeout,
		MaxQPS:       cfg.AI.MaxQPS,
	})

	docs := docstore.WithRetry(docstore.NewSQLStore(conn))

	classifier := intent.NewClassifier(manager.Embedder(), assets, intent.Config{
		PositiveThreshold:    cfg.Site.Intent.PositiveThreshold,
		ContrastiveThreshold: cfg.Site.Intent.ContrastiveThreshold,
	})
	if err := classifier.Initialize(ctx, cfg.Site.ID); err != nil {
		return fmt.Errorf("init intent classifier: %w", err)
	}

	var facilities *geotools.FacilityIndex
	if cfg.Site.Facility.CSVKey != "" {
		facilities, err = geotools.LoadFacilityIndex(ctx, assets, cfg.Site.Facility.CSVKey, cfg.Site.Facility.RadiusMiles)
		if err != nil {
			logutil.GetLogger(ctx).Warn("facility dataset unavailable, location tools disabled", zap.Error(err))
			facilities = nil
		}
	}

	svc := chat.NewService(
		&cfg.Site,
		retriever.New(vectorstore.NewPgStore(conn), manager.Embedder()),
		classifier,
		manager,
		geotools.NewLocator(cfg.Site.IPGeoURL, cfg.Site.GeocodeURL),
		facilities,
		docs,
	)

	limiter := ratelimit.New(docs, 24*time.Hour, cfg.Site.DailyQuota)
	deps := handler.RouterDeps{
		Chat: handler.NewChatHandler(&cfg.Site, svc, limiter),
		Site: handler.NewSiteHandler(&cfg.Site),
	}

	scheduler := schedule.NewCronScheduler()
	if err := scheduler.AddJob(ctx, job.NewRateLimitCleanupJob(conn, 7), rateLimitCleanupSpec); err != nil {
		return fmt.Errorf("schedule cleanup: %w", err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	engine, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.RequestID(),
			middleware.CORS(cfg.CORS),
			// event streams must not be buffered by compression
			gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/api/v1/chat"})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}
	logutil.GetLogger(ctx).Info("http server listening", zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	go func() {
		if err := engine.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	return nil
}
