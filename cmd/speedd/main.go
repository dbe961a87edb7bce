// Command speedd runs the traffic-enforcement aggregation server: it
// accepts camera and dispatcher connections over TCP, tracks speed
// observations in memory, and routes tickets to the dispatcher responsible
// for each road.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/marinuss/speedd/internal/aggregator"
	"github.com/marinuss/speedd/internal/connactor"
	"github.com/marinuss/speedd/internal/logging"
	"github.com/marinuss/speedd/internal/metrics"
)

var (
	// Set by LDFLAGS.
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultListenAddr = "0.0.0.0:9000"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "TCP address to accept camera and dispatcher connections on")
	metricsAddrFlag := flag.String("metrics-addr", "", "address to listen on for Prometheus metrics (disabled if empty)")
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	flag.Parse()

	// godotenv does not override existing env vars, so process env and
	// explicit exports take precedence.
	_ = godotenv.Load()

	if envListenAddr := os.Getenv("SPEEDD_LISTEN_ADDR"); envListenAddr != "" {
		*listenAddrFlag = envListenAddr
	}
	if envMetricsAddr := os.Getenv("SPEEDD_METRICS_ADDR"); envMetricsAddr != "" {
		*metricsAddrFlag = envMetricsAddr
	}
	if os.Getenv("SPEEDD_VERBOSE") == "true" {
		*verboseFlag = true
	}

	log := logging.New(*verboseFlag)
	log.Info("speedd starting", "version", version, "commit", commit, "date", date, "listen_addr", *listenAddrFlag)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", "signal", sig.String())
		cancel()
	}()

	listener, err := net.Listen("tcp", *listenAddrFlag)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", *listenAddrFlag, err)
	}
	log.Info("listening", "address", listener.Addr().String())

	agg, err := aggregator.New(aggregator.Config{Logger: log})
	if err != nil {
		return fmt.Errorf("failed to construct aggregator: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return agg.Run(ctx)
	})

	g.Go(func() error {
		return connactor.Serve(ctx, connactor.ListenerConfig{
			Listener: listener,
			Sink:     agg,
			Logger:   log,
			Clock:    clockwork.NewRealClock(),
		})
	})

	if *metricsAddrFlag != "" {
		reg := prometheus.NewRegistry()
		metrics.Register(reg)
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)

		metricsListener, err := net.Listen("tcp", *metricsAddrFlag)
		if err != nil {
			return fmt.Errorf("failed to listen on metrics address %s: %w", *metricsAddrFlag, err)
		}
		log.Info("prometheus metrics listening", "address", metricsListener.Addr().String())

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Handler: mux}

		g.Go(func() error {
			if err := srv.Serve(metricsListener); err != nil && err != http.ErrServerClosed {
				return fmt.Errorf("metrics server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			return srv.Close()
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("speedd exited with error: %w", err)
	}
	log.Info("speedd stopped")
	return nil
}
