package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	intconfig "conductor/internal/config"
	router "conductor/internal/http"
	h "conductor/internal/http/handlers"
	"conductor/internal/location"
	"conductor/internal/metrics"
	"conductor/internal/services"
	"conductor/internal/uploader"
	"conductor/internal/utils"

	"github.com/gin-gonic/gin"
)

func main() {
	env, err := intconfig.LoadEnv()
	if err != nil {
		utils.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logCfg := utils.DefaultLoggerConfig()
	logCfg.Level = utils.ParseLevel(env.LogLevel)
	logCfg.FilePath = env.LogFile
	utils.InitLogger(logCfg)

	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := intconfig.ConnectDB(ctx, env)
	if err != nil {
		utils.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	reference := services.ReferenceService{Store: store}
	if env.ReferenceFile != "" {
		sum, err := reference.ImportFile(ctx, env.ReferenceFile)
		if err != nil {
			// An active trip keeps the tables it opened with.
			utils.Warn("reference import skipped", "file", env.ReferenceFile, "error", err)
		} else {
			utils.Info("reference data loaded", "stops", sum.Stops, "routes", sum.Routes, "prices", sum.Prices)
		}
	}

	collector := metrics.NewCollector()

	loc := services.NewLocationService()
	loc.Metrics = collector

	ledger := services.NewLedgerService(store, env.DeviceID)
	ledger.Metrics = collector
	ledger.Tracker = loc
	if err := ledger.ResumeTracking(ctx); err != nil {
		utils.Warn("could not resume tracking of the active trip", "error", err)
	}

	prices := services.PriceTable{Store: store}
	issuer := services.TicketService{Ledger: ledger, Prices: prices, Location: loc, Metrics: collector}

	var up services.Uploader = uploader.Disabled{}
	switch env.SyncTransport {
	case "http":
		if env.SyncEndpoint == "" {
			utils.Warn("SYNC_ENDPOINT not set; records stay queued")
		} else {
			up = uploader.NewHTTPUploader(env.SyncEndpoint, env.SyncToken, env.SyncTimeout)
		}
	case "nats":
		// Offline at boot is normal; the client keeps dialing in the background
		// and the queue holds records until it connects.
		nu, err := uploader.NewNATSUploader(env.NATSURL, env.NATSSubjectPrefix, env.DeviceID, collector)
		if err != nil {
			utils.Warn("nats misconfigured; records stay queued", "url", env.NATSURL, "error", err)
		} else {
			defer nu.Close()
			up = nu
		}
	}

	syncSvc := services.NewSyncService(store, up, env.DeviceID, env.SyncBatchSize, env.SyncTimeout)
	syncSvc.Metrics = collector
	go syncSvc.Run(ctx, env.SyncInterval, env.SyncPurgeAfter)

	if env.LocationFeedURL != "" {
		feed := location.NewFeedSource(env.LocationFeedURL, env.LocationVehicleID, loc)
		go feed.Run(ctx, env.LocationPoll)
	}

	hd := &h.Handler{
		Store:     store,
		Ledger:    ledger,
		Issuer:    issuer,
		Prices:    prices,
		Sync:      syncSvc,
		Location:  loc,
		Reference: reference,
		Docs:      services.DocsService{Ledger: ledger, Currency: env.Currency, DeviceID: env.DeviceID},
	}

	var metricsHandler http.Handler
	if env.MetricsEnabled {
		metricsHandler = collector.Handler()
	}
	r := router.NewRouter(env, hd, metricsHandler)

	srv := &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		utils.Info("server listening", "addr", env.AppAddr, "device_id", env.DeviceID)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	utils.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		utils.Error("server shutdown failed", "error", err)
	}
	utils.Info("server stopped")
}
