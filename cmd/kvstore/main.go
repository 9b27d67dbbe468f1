package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/UltraSive/ttlkv/internal/cleaner"
	"github.com/UltraSive/ttlkv/internal/clock"
	"github.com/UltraSive/ttlkv/internal/config"
	"github.com/UltraSive/ttlkv/internal/datastore"
	"github.com/UltraSive/ttlkv/internal/handler"
	"github.com/UltraSive/ttlkv/internal/logger"
	"github.com/UltraSive/ttlkv/internal/transport"
)

func main() {
	// --- Config ---
	configPath := flag.String("config", os.Getenv(config.EnvPrefix+"CONFIG"), "path to a YAML config file")
	addr := flag.String("addr", "", "listen address, overrides config")
	httpAddr := flag.String("http", "", "HTTP listen address, overrides config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	// --- Logging ---
	logger.SetVerbosity(cfg.LogVerbosity)
	log, closeLog, err := logger.New(logger.Options{Path: cfg.LogFile})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}
	defer closeLog.Close()
	otel.SetLogger(log.WithName("otel"))

	// --- Store ---
	clk := clock.NewProcess()
	db := datastore.NewMemory(clk, cfg.Shards)
	if reg, err := datastore.RegisterGauge(db); err != nil {
		log.Error(err, "registering key gauge")
	} else {
		defer reg.Unregister()
	}

	// --- Handler ---
	h := handler.New(db, log.WithName("handler"))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Line Listener ---
	l, err := transport.Listen(ctx, cfg.Network, cfg.Addr, cfg.ReusePort)
	if err != nil {
		log.Error(err, "listen")
		os.Exit(1)
	}
	srv := &transport.LineServer{
		Handler:      h,
		MaxConns:     cfg.MaxConns,
		MaxLineBytes: cfg.MaxLineBytes,
		IdleTimeout:  cfg.IdleTimeout,
		Log:          log.WithName("line"),
	}
	serveDone := make(chan error, 1)
	go func() { serveDone <- srv.Serve(ctx, l) }()
	log.Info("listening", "network", cfg.Network, "addr", l.Addr().String(), "shards", cfg.Shards)

	// --- HTTP Server (optional) ---
	var httpSrv *http.Server
	if cfg.HTTPAddr != "" {
		httpSrv = &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: transport.NewHTTPRouter(h, transport.Info{
				Started: clk.Started(),
				Keys:    db.Len,
			}, cfg.MaxLineBytes),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error(err, "http server")
				stop()
			}
		}()
		log.Info("http api listening", "addr", cfg.HTTPAddr)
	}

	// --- Sweeper (only if an interval is set) ---
	stopCleaner := make(chan struct{})
	if cfg.SweepInterval > 0 {
		cleaner.Start(db, cfg.SweepInterval, cfg.SweepChunk, stopCleaner, log.WithName("cleaner"))
		log.Info("expiry sweeper enabled", "interval", cfg.SweepInterval.String(), "chunk", cfg.SweepChunk)
	}

	// --- Wait for Interrupt ---
	served := false
	select {
	case <-ctx.Done():
	case err := <-serveDone:
		served = true
		if err != nil {
			log.Error(err, "line server")
		}
		stop()
	}
	log.Info("shutting down")

	close(stopCleaner)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if httpSrv != nil {
		_ = httpSrv.Shutdown(shutdownCtx)
	}
	if !served {
		select {
		case <-serveDone:
		case <-shutdownCtx.Done():
			log.Info("line server did not drain in time")
		}
	}
	log.Info("shutdown complete")
}
