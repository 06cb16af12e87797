package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"rwagate/internal/kyc/expiry"
	"rwagate/internal/platform/config"
	"rwagate/internal/platform/httpserver"
	"rwagate/internal/platform/logger"
	"rwagate/pkg/platform/audit/worker"
)

// main wires the gateway: configuration, stores, the verification services
// and their background workers, and the ops server. The business API is
// served by the embedding application, not by this process.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gatewayd:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	infra, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.Close()

	gw, err := newGateway(ctx, cfg, infra, reg, log)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	sweeper, err := expiry.New(gw.KYC, expiry.WithLogger(log))
	if err != nil {
		return err
	}
	g.Go(func() error { return ignoreCanceled(sweeper.Run(gctx)) })

	if infra.producer != nil {
		relay, err := worker.NewRelay(infra.outbox, infra.producer, infra.runner,
			worker.WithLogger(log), worker.WithInterval(cfg.Kafka.RelayInterval))
		if err != nil {
			return err
		}
		g.Go(func() error { return ignoreCanceled(relay.Run(gctx)) })
		log.Info("audit relay started", "topic", cfg.Kafka.Topic, "brokers", cfg.Kafka.Brokers)
	}

	srv := httpserver.New(cfg.OpsAddr, httpserver.OpsRouter(reg, infra.HealthChecks()))
	g.Go(func() error {
		log.Info("ops server listening", "addr", cfg.OpsAddr, "environment", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Info("gatewayd stopped")
	return err
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
