package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"DubFlow/cache"
	"DubFlow/config"
	"DubFlow/core/dubbing"
	"DubFlow/core/gemini"
	"DubFlow/core/jobs"
	"DubFlow/core/voice"
	"DubFlow/logger"
	"DubFlow/repository"
	"DubFlow/storage"
)

const (
	serviceName = "dubflow"
	version     = "1.0.0"
	apiPrefix   = "/api/v1/dubbing"
)

// NewRouter registers every HTTP route on a fresh router.
func NewRouter(h *DubbingHandler) *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware)
	router.Use(metricsMiddleware)

	router.HandleFunc("/health", healthHandler(serviceName, version)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix(apiPrefix).Subrouter()
	api.HandleFunc("/upload", h.UploadHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/status/{request_id}", h.StatusHandler).Methods(http.MethodGet)
	api.HandleFunc("/download/{request_id}", h.DownloadHandler).Methods(http.MethodGet, http.MethodHead)
	api.HandleFunc("/custom", h.CustomHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/voices", VoicesHandler).Methods(http.MethodGet)
	api.HandleFunc("/requests", h.ListRequestsHandler).Methods(http.MethodGet)
	api.HandleFunc("/request/{request_id}", h.DeleteRequestHandler).Methods(http.MethodDelete, http.MethodOptions)
	api.HandleFunc("/cancel/{request_id}", h.CancelHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/ws/{request_id}", h.StatusStreamHandler).Methods(http.MethodGet)
	api.HandleFunc("/health", healthHandler("dubbing", "")).Methods(http.MethodGet)

	return router
}

// Start wires the dubbing service from cfg and serves HTTP until SIGINT or SIGTERM.
func Start(cfg *config.Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	assets, err := repository.NewJSONAssetRepository(cfg.VideoStorePath())
	if err != nil {
		return err
	}
	requests, err := repository.NewJSONRequestRepository(cfg.RequestStorePath())
	if err != nil {
		return err
	}
	results, err := repository.NewJSONResultRepository(cfg.ResultStorePath())
	if err != nil {
		return err
	}
	files, err := storage.NewFileStore(cfg.UploadDir, cfg.OutputDir)
	if err != nil {
		return err
	}

	client := gemini.NewClient(&gemini.Config{
		APIKey:       cfg.GeminiAPIKey,
		BaseURL:      cfg.GeminiBaseURL,
		Model:        cfg.GeminiModel,
		TTSModel:     cfg.GeminiTTSModel,
		Timeout:      cfg.GeminiTimeout,
		PollInterval: cfg.UploadPollInterval,
		PollTimeout:  cfg.UploadPollTimeout,
	}, voice.NewKeywordSelector())

	runner := jobs.NewRunner(cfg.MaxConcurrentJobs)
	deps := dubbing.Dependencies{
		Assets:   assets,
		Requests: requests,
		Results:  results,
		Gateway:  client,
		Files:    files,
		Runner:   runner,
	}

	ctx := context.Background()
	var feed StatusFeed
	if cfg.CacheEnabled() {
		redisClient, err := cache.NewRedisClient(ctx, cfg)
		if err != nil {
			// 状态缓存是可选的，连接失败时继续运行
			logger.Warn("Status cache disabled", logger.ErrorField(err))
		} else {
			resultCache := cache.NewResultCache(redisClient, cfg.StatusCacheTTL)
			defer resultCache.Close()
			deps.Cache = resultCache
			feed = resultCache
			logger.Info("Status cache enabled", logger.String("redis", cfg.RedisHost+":"+cfg.RedisPort))
		}
	}
	if cfg.ArchiveEnabled() {
		archive, err := storage.NewMinioArchive(ctx, cfg)
		if err != nil {
			logger.Warn("Audio archive disabled", logger.ErrorField(err))
		} else {
			deps.Archive = archive
		}
	}

	svc := dubbing.NewService(deps, dubbing.Options{
		MaxFileSize:       cfg.MaxFileSize,
		DefaultLanguage:   cfg.DefaultLanguage,
		DefaultVoiceStyle: cfg.DefaultVoiceStyle,
	})
	handler := NewDubbingHandler(svc, cfg.MaxFileSize)
	if feed != nil {
		handler.SetStatusFeed(feed)
	}

	// 设置服务器超时，上传和下载可能较慢
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           NewRouter(handler),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Server starting",
			logger.String("addr", cfg.Addr()),
			logger.Int("maxConcurrentJobs", cfg.MaxConcurrentJobs))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	// 等待中断信号或启动失败
	select {
	case <-stop:
	case err := <-serveErr:
		return fmt.Errorf("failed to start server: %w", err)
	}
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// 先停止接收请求，再等待后台配音任务
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Server forced to shutdown", logger.ErrorField(err))
	}
	if err := runner.Shutdown(shutdownCtx); err != nil {
		logger.Warn("Dubbing jobs interrupted by shutdown", logger.ErrorField(err))
	}

	logger.Info("Server stopped")
	return nil
}
