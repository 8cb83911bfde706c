// Command simulatord bootstraps the full transaction-cost simulator:
// it loads configuration, builds the Book and Simulator, wires the
// WebSocket transport and the HTTP/WS output surface, and runs until
// terminated. Adapted from the teacher's cmd/server/main.go bootstrap
// shape (config.Load, dependency wiring, graceful shutdown) with the
// database/service layer replaced by the simulator's own components.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"costsim/internal/book"
	"costsim/internal/config"
	"costsim/internal/output"
	"costsim/internal/simulator"
	"costsim/internal/transport"
	"costsim/internal/websocket"
	"costsim/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.InitGlobalLogger(logging.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	log := logging.L().WithComponent("simulatord")

	b := book.New(cfg.Parameters.Exchange, cfg.Parameters.SpotAsset, cfg.Simulation.MaxOrderbookDepth, cfg.Simulation.MetricsTTL)

	sim := simulator.New(b, simulator.Parameters{
		Exchange:    cfg.Parameters.Exchange,
		SpotAsset:   cfg.Parameters.SpotAsset,
		OrderType:   cfg.Parameters.OrderType,
		QuantityUSD: cfg.Parameters.QuantityUSD,
		Volatility:  cfg.Parameters.Volatility,
		FeeTier:     cfg.Parameters.FeeTier,
	}, simulator.Config{
		ProcessingBatchSize:    cfg.Simulation.ProcessingBatchSize,
		BenchmarkInterval:      cfg.Simulation.BenchmarkInterval,
		ImpactMarketFactor:     cfg.Simulation.ACMarketImpactFactor,
		ImpactVolatilityFactor: cfg.Simulation.ACVolatilityFactor,
		ImpactRiskAversion:     cfg.Simulation.ACRiskAversion,
	})
	sim.Start()

	client := transport.New(transport.Config{
		URL:              cfg.Transport.WSEndpoint,
		ReconnectDelay:   cfg.Transport.ReconnectDelay,
		MaxReconnectWait: cfg.Transport.MaxReconnectWait,
		PingInterval:     cfg.Transport.PingInterval,
		ReadTimeout:      cfg.Transport.ReadTimeout,
		MaxRetries:       cfg.Transport.MaxRetries,
	}, cfg.Parameters.Exchange, cfg.Parameters.SpotAsset, sim.OnSnapshot)

	ctx, cancel := context.WithCancel(context.Background())
	if err := client.Connect(ctx); err != nil {
		log.Warn("initial connect failed, ingest is not running (the initial dial is not retried)", logging.Err(err))
	}

	hub := websocket.NewHub()
	go hub.Run()

	emitter := output.NewEmitter(sim, hub)
	go emitter.Run(ctx)

	router := output.SetupRoutes(output.Dependencies{Simulator: sim, Hub: hub})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", logging.String("addr", server.Addr))
		var err error
		if cfg.Server.UseHTTPS {
			err = server.ListenAndServeTLS(cfg.Server.CertFile, cfg.Server.KeyFile)
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && err != http.ErrServerClosed {
			log.Error("server failed", logging.Err(err))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	cancel()

	if err := client.Close(); err != nil {
		log.Warn("error closing transport", logging.Err(err))
	}
	sim.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", logging.Err(err))
		os.Exit(1)
	}

	log.Info("shutdown complete")
}
