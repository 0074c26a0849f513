package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/cgt-tools/hmrc-rate-service/internal/application/service"
	"github.com/cgt-tools/hmrc-rate-service/internal/config"
	"github.com/cgt-tools/hmrc-rate-service/internal/infrastructure/api"
	"github.com/cgt-tools/hmrc-rate-service/internal/infrastructure/db"
	"github.com/cgt-tools/hmrc-rate-service/internal/infrastructure/handler"
	"github.com/cgt-tools/hmrc-rate-service/internal/infrastructure/logger"
	"github.com/cgt-tools/hmrc-rate-service/internal/infrastructure/middleware"
	"github.com/cgt-tools/hmrc-rate-service/internal/infrastructure/store"
	"github.com/cgt-tools/hmrc-rate-service/internal/metrics"
	"github.com/dgraph-io/badger/v3"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.NewJSONLogger(os.Stdout, logger.ParseLevel(cfg.Log.Level))
	logger.SetDefaultLogger(log)

	log.Info("Starting HMRC GBP exchange rate service", map[string]interface{}{
		"rates_file": cfg.Rates.File,
		"badger_dir": cfg.DB.Dir,
		"port":       cfg.Server.Port,
	})

	// Setup BadgerDB for broker transactions
	if err := os.MkdirAll(cfg.DB.Dir, 0755); err != nil {
		log.Fatal("Failed to create database directory", map[string]interface{}{
			"dir":   cfg.DB.Dir,
			"error": err.Error(),
		})
	}

	badgerOpts := badger.DefaultOptions(cfg.DB.Dir)
	badgerOpts.Logger = nil // Disable Badger's default logger

	badgerDB, err := badger.Open(badgerOpts)
	if err != nil {
		log.Fatal("Failed to open database", map[string]interface{}{
			"dir":   cfg.DB.Dir,
			"error": err.Error(),
		})
	}

	defer func() {
		if err := badgerDB.Close(); err != nil {
			log.Error("Error closing BadgerDB", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}()

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	// Initialize repositories and the rate infrastructure
	txRepo := db.NewBadgerTransactionRepository(badgerDB)
	rateStore := store.NewCSVRateStore(cfg.Rates.File, log)
	hmrcClient := api.NewHMRCClient(&http.Client{Timeout: cfg.Rates.Timeout}, cfg.Rates.File, log)

	// Initialize services
	txService := service.NewTransactionService(txRepo)
	converter, err := service.NewConverterService(hmrcClient, rateStore, nil, m, log)
	if err != nil {
		log.Fatal("Failed to load exchange rate table", map[string]interface{}{
			"rates_file": cfg.Rates.File,
			"error":      err.Error(),
		})
	}

	// Initialize handlers
	txHandler := handler.NewTransactionHandler(txService, log)
	conversionHandler := handler.NewConversionHandler(txService, converter, log)

	// Setup router
	router := mux.NewRouter()
	router.Use(middleware.RequestIDMiddleware)
	router.Use(middleware.LoggingMiddleware(log))
	router.Use(middleware.MetricsMiddleware(m))

	txHandler.RegisterRoutes(router)
	conversionHandler.RegisterRoutes(router)
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods("GET")

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Info("Server listening", map[string]interface{}{
		"addr": srv.Addr,
	})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal("Server stopped", map[string]interface{}{
			"error": err.Error(),
		})
	}
}
