package main

import (
	"context"
	"embed"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"

	"rule-proxy/internal/auth"
	"rule-proxy/internal/common/httpclient"
	"rule-proxy/internal/common/logging"
	"rule-proxy/internal/config"
	"rule-proxy/internal/handlers"
	"rule-proxy/internal/metrics"
	"rule-proxy/internal/middleware"
	"rule-proxy/internal/proxy"
	"rule-proxy/internal/server"
	"rule-proxy/internal/storage"
)

//go:embed web/static
var webAssets embed.FS

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logging.Error("Invalid configuration", err)
		os.Exit(1)
	}

	fileWriter, err := logging.NewRollingFileWriter(cfg.LogDir, cfg.LogMaxSize)
	if err != nil {
		logging.Error("Failed to open log directory", err, logging.String("dir", cfg.LogDir))
		os.Exit(1)
	}
	logging.InitGlobalLogger(fileWriter)
	defer logging.MustSync()

	store, err := storage.NewStorage(cfg)
	if err != nil {
		logging.Error("Failed to initialize storage", err)
		os.Exit(1)
	}
	defer store.Close()

	directPrefix, err := store.GetSetting(storage.SettingDirectProxyPath)
	if err != nil {
		logging.Warn("Direct proxy path setting missing, using default", logging.Err(err))
		directPrefix = "proxy"
	}

	table := proxy.NewTable(directPrefix)
	reload := func() (int, error) {
		rules, err := store.ListEnabledRules()
		if err != nil {
			return 0, err
		}
		count := table.Reload(rules)
		metrics.RulesLoaded.Set(float64(count))
		return count, nil
	}
	if _, err := reload(); err != nil {
		logging.Error("Failed to load rules", err)
		os.Exit(1)
	}

	client := httpclient.New()
	dispatcher := proxy.NewDispatcher(table, cfg.DefaultTimeout)
	forwarder := proxy.NewForwarder(client)
	proxyServer := server.New("proxy", cfg.ProxyPort, proxy.NewHandler(dispatcher, forwarder))

	authService := auth.NewService(cfg)

	staticFS, err := fs.Sub(webAssets, "web/static")
	if err != nil {
		logging.Error("Failed to mount embedded assets", err)
		os.Exit(1)
	}

	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")
	handlers.New(store, authService, cfg, table, staticFS, reload).RegisterRoutes(router)

	adminHandler := middleware.Logging(authService.RequireAuth(router))
	adminServer := server.New("admin", cfg.AdminPort, adminHandler)

	scheduler := cron.New()
	scheduler.AddFunc("@hourly", func() {
		if removed := authService.CleanupExpired(); removed > 0 {
			logging.Info("Swept expired sessions", logging.Int("removed", removed))
		}
	})
	scheduler.AddFunc("@daily", func() {
		if removed := logging.CleanupOldLogs(cfg.LogDir, cfg.LogRetentionDays); removed > 0 {
			logging.Info("Removed old log files", logging.Int("removed", removed))
		}
	})
	scheduler.Start()
	defer scheduler.Stop()

	proxyErr := proxyServer.Start()
	adminErr := adminServer.Start()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		logging.Info("Shutdown signal received")
	case err := <-proxyErr:
		if err != nil {
			logging.Error("Proxy server failed", err)
		}
	case err := <-adminErr:
		if err != nil {
			logging.Error("Admin server failed", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := proxyServer.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
		logging.Error("Proxy server shutdown failed", err)
	}
	if err := adminServer.Shutdown(ctx); err != nil && err != http.ErrServerClosed {
		logging.Error("Admin server shutdown failed", err)
	}

	logging.Info("Shutdown complete")
}
