// respool drives a bounded resource pool with a concurrent synthetic
// workload and reports pool statistics.
//
// Usage:
//
//	respool [flags]
//
// Flags:
//
//	-config string
//	    Path to configuration file (default "respool.toml")
//	-capacity int
//	    Pool capacity (overrides config)
//	-timeout duration
//	    Acquire timeout, 0 never waits (overrides config)
//	-workers int
//	    Concurrent workers (default 4)
//	-iterations int
//	    Scoped acquisitions per worker (default 100)
//	-hold duration
//	    How long each worker holds a resource (default 10ms)
//	-dial duration
//	    Simulated connection setup time for the memory driver
//	-metrics string
//	    Serve Prometheus metrics on this address (overrides config)
//	-v
//	    Enable verbose logging
//	-version
//	    Print version and exit
//
// The database driver comes from the [database] section of the config
// file. The "memory" driver needs no server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-i2p/respool/lib/config"
	"github.com/go-i2p/respool/lib/dbconn"
	"github.com/go-i2p/respool/lib/metrics"
	"github.com/go-i2p/respool/lib/pool"
	"github.com/go-i2p/respool/lib/resilience"
	"github.com/go-i2p/respool/version"
)

const metricsInterval = time.Second

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "respool.toml", "Path to configuration file")
	capacity := flag.Int("capacity", 0, "Pool capacity (overrides config)")
	timeout := flag.Duration("timeout", 0, "Acquire timeout, 0 never waits (overrides config)")
	workers := flag.Int("workers", 4, "Concurrent workers")
	iterations := flag.Int("iterations", 100, "Scoped acquisitions per worker")
	holdFor := flag.Duration("hold", 10*time.Millisecond, "How long each worker holds a resource")
	dial := flag.Duration("dial", 0, "Simulated connection setup time for the memory driver")
	metricsAddr := flag.String("metrics", "", "Serve Prometheus metrics on this address (overrides config)")
	verbose := flag.Bool("v", false, "Enable verbose logging")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "respool - bounded resource pool load driver\n\n")
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  respool [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if *showVersion {
		fmt.Println(version.Banner("respool"))
		return 0
	}

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return 1
	}

	// Apply command-line overrides for flags that were set explicitly.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "capacity":
			cfg.Pool.Capacity = *capacity
		case "timeout":
			cfg.Pool.AcquireTimeout = config.Duration(*timeout)
		}
	})
	if *metricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Listen = *metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}
	if *workers < 1 || *iterations < 0 || *dial < 0 {
		logger.Error("workers must be at least 1, iterations and dial non-negative")
		return 1
	}

	// Create a context that is cancelled on SIGINT/SIGTERM
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	metrics.RecordStartTime()
	metrics.RecordBuildInfo(version.Full())

	lc := loadConfig{
		Workers:    *workers,
		Iterations: *iterations,
		Hold:       *holdFor,
		Dial:       *dial,
	}
	var listen string
	if cfg.Metrics.Enabled {
		listen = cfg.Metrics.Listen
	}

	logger.Info("respool starting",
		"version", version.Full(),
		"driver", cfg.Database.Driver,
		"capacity", cfg.Pool.Capacity,
		"acquire_timeout", cfg.Pool.AcquireTimeout.Std(),
		"workers", lc.Workers,
		"iterations", lc.Iterations,
		"dial", lc.Dial)

	var res loadResult
	switch cfg.Database.Driver {
	case config.DriverMySQL:
		res = exercise(ctx, logger, guarded(cfg, dbconn.MySQLFactory(cfg.DatabaseOptions())), cfg.PoolConfig(), lc, listen,
			func(ctx context.Context, c *dbconn.MySQLConn) error { return c.PingContext(ctx) })
	case config.DriverPostgres:
		res = exercise(ctx, logger, guarded(cfg, dbconn.PostgresFactory(cfg.DatabaseOptions())), cfg.PoolConfig(), lc, listen,
			func(ctx context.Context, c *dbconn.PGConn) error { return c.Ping(ctx) })
	default:
		res = runMemory(ctx, logger, cfg, lc, listen)
	}

	if res.Failed > 0 {
		return 1
	}
	logger.Info("respool stopped")
	return 0
}

// guarded applies the configured creation rate limit and circuit breaker
// to factory.
func guarded[R comparable](cfg *config.Config, factory pool.Factory[R]) pool.Factory[R] {
	return resilience.Throttle(cfg.Limiter(), resilience.Guard(cfg.Breaker(), factory))
}

// runMemory exercises a pool of in-process connections that each take
// lc.Dial to open.
func runMemory(ctx context.Context, logger *slog.Logger, cfg *config.Config, lc loadConfig, listen string) loadResult {
	return exercise(ctx, logger, guarded(cfg, memoryFactory(lc.Dial)), cfg.PoolConfig(), lc, listen,
		func(ctx context.Context, c *memConn) error { return c.Use(ctx) })
}

// exercise builds a pool from factory, runs the workload against it and
// prints the report before closing the pool. The metrics server, when
// enabled, lives as long as the pool.
func exercise[R comparable](ctx context.Context, logger *slog.Logger, factory pool.Factory[R], pc pool.Config, lc loadConfig, listen string, use func(context.Context, R) error) loadResult {
	p := pool.New(factory, pc)
	defer func() {
		if err := p.Close(); err != nil {
			logger.Warn("closing pool", "error", err)
		}
	}()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	go watchMetrics(watchCtx, p, metricsInterval)

	if listen != "" {
		go func() {
			logger.Info("serving metrics", "listen", listen)
			if err := metrics.Serve(watchCtx, listen, statusRoutes(p)); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	res := runLoad(ctx, logger, p, lc, use)
	pool.UpdateMetrics(p.Stats())

	printReport(os.Stdout, p, res)
	return res
}
