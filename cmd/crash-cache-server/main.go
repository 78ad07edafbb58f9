package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/ethicnology/crash-cache/internal/adminapi"
	"github.com/ethicnology/crash-cache/internal/analytics"
	"github.com/ethicnology/crash-cache/internal/archivemirror"
	"github.com/ethicnology/crash-cache/internal/codec"
	"github.com/ethicnology/crash-cache/internal/config"
	"github.com/ethicnology/crash-cache/internal/digest"
	"github.com/ethicnology/crash-cache/internal/health"
	"github.com/ethicnology/crash-cache/internal/ingestion"
	"github.com/ethicnology/crash-cache/internal/projectcache"
	"github.com/ethicnology/crash-cache/internal/queueevents"
	"github.com/ethicnology/crash-cache/internal/ratelimit"
	"github.com/ethicnology/crash-cache/internal/recovery"
	"github.com/ethicnology/crash-cache/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.DatabasePoolSize)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancelPing := context.WithTimeout(context.Background(), time.Duration(cfg.DatabasePoolTimeoutSecs)*time.Second)
	defer cancelPing()
	if err := db.PingContext(pingCtx); err != nil {
		log.Fatalf("ping db: %v", err)
	}

	st := store.New(db)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	analyticsCollector := analytics.New(st, cfg.AnalyticsBufferSize,
		time.Duration(cfg.AnalyticsFlushIntervalSecs)*time.Second, cfg.AnalyticsRetentionDays)
	go analyticsCollector.Run(ctx)

	healthCache := health.New(st, 10*time.Second)
	go healthCache.Run(ctx)

	limiter := ratelimit.New(
		float64(cfg.RateLimitGlobalPerSec),
		float64(cfg.RateLimitPerIPPerSec),
		float64(cfg.RateLimitPerProjectPerSec),
		cfg.RateLimitBurstMultiplier,
	)

	projectKeyCache := projectcache.New(time.Minute)
	compressor := codec.NewCompressor(cfg.MaxConcurrentCompressions)

	ingestionService := ingestion.New(st, projectKeyCache, compressor, analyticsCollector, ingestion.Config{
		MaxUncompressedPayloadBytes: cfg.MaxUncompressedPayloadBytes,
	})

	if cfg.S3Bucket != "" {
		mirror, err := archivemirror.New(ctx, cfg.S3Bucket, "crash-cache")
		if err != nil {
			log.Fatalf("configure archive mirror: %v", err)
		}
		ingestionService.WithMirror(mirror)
	}

	var publisher *queueevents.Publisher
	if cfg.KafkaBrokers != "" {
		publisher = queueevents.New(queueevents.Config{
			Brokers: splitCSV(cfg.KafkaBrokers),
			Topic:   cfg.KafkaTopic,
		})
		defer publisher.Close()
	}

	digestUseCase := digest.NewUseCase(st).WithNotifier(publisher)
	worker := digest.NewWorker(digestUseCase, digest.WorkerConfig{
		IntervalSecs: cfg.WorkerIntervalSecs,
		BatchSize:    cfg.WorkerReportsBatchSize,
	})
	go worker.Run(ctx)

	ingestionServer := ingestion.NewServer(ingestionService, limiter, healthCache)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler: ingestionServer.Router(),
	}

	var adminServer *http.Server
	if cfg.AdminJWTSecret != "" {
		recoveryUseCase := recovery.NewUseCase(st)
		admin := adminapi.NewServer(recoveryUseCase, healthCache, cfg.AdminJWTSecret)
		adminServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort+1),
			Handler: admin.Router(),
		}
		go func() {
			log.Printf("crash-cache admin API listening on %s", adminServer.Addr)
			if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("admin server error: %v", err)
			}
		}()
	}

	go func() {
		log.Printf("crash-cache server listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	waitForShutdown(httpServer, adminServer, worker, cancel)
}

func waitForShutdown(srv, adminSrv *http.Server, worker *digest.Worker, cancelBackground context.CancelFunc) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	worker.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}
	if adminSrv != nil {
		if err := adminSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("admin graceful shutdown failed: %v", err)
		}
	}

	cancelBackground()
}

func splitCSV(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
