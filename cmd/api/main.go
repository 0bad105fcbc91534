package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"restaurant-ops-api/internal/app"
	"restaurant-ops-api/internal/config"
	"restaurant-ops-api/internal/handler"
	"restaurant-ops-api/internal/middleware"
	"restaurant-ops-api/internal/router"
	"restaurant-ops-api/internal/service"
)

func main() {
	cfg := config.MustLoad()
	log := config.NewLogger(cfg.Log)
	log.WithField("env", cfg.App.Environment).Info("starting restaurant ops API")

	ctx := context.Background()

	a, err := app.Open(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize")
	}

	// Initialize managers
	orders, err := service.NewOrderManager(ctx, a.Store, log)
	if err != nil {
		a.Close(ctx)
		log.WithError(err).Fatal("failed to load orders")
	}
	defer orders.Close()

	inventory, err := service.NewInventoryManager(ctx, a.Store, log)
	if err != nil {
		a.Close(ctx)
		log.WithError(err).Fatal("failed to load inventory")
	}
	defer inventory.Close()

	scheduler := service.NewBackupScheduler(a.Backups, cfg.Backup.Interval, log)
	if cfg.Backup.AutoEnabled {
		scheduler.Start()
	}

	monitor := service.NewStatusMonitor(a.Probes(), cfg.Status.Interval, log)
	monitor.Start()

	r := router.New(router.Config{
		Handler:          handler.New(cfg.App.Version, monitor),
		OrderHandler:     handler.NewOrderHandler(orders),
		InventoryHandler: handler.NewInventoryHandler(inventory),
		BackupHandler:    handler.NewBackupHandler(a.Backups),
		AdminHandler:     handler.NewAdminHandler(a.Store, a.Backend, a.Backups, cfg.Store.Type),
		AuthMiddleware:   middleware.NewAuthMiddleware(cfg.App.APIKey),
		Logger:           log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.WithField("addr", cfg.Server.Address()).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	var lost <-chan struct{}
	if a.Lease != nil {
		lost = a.Lease.Lost()
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
		log.Info("shutting down server")
	case <-lost:
		log.Error("writer lease lost, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server shutdown error")
	}

	scheduler.Stop()
	monitor.Stop()
	a.Close(shutdownCtx)

	log.Info("server stopped")
}
