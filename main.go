package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/d1nch8g/lingolive/audio"
	"github.com/d1nch8g/lingolive/config"
	"github.com/d1nch8g/lingolive/console"
	"github.com/d1nch8g/lingolive/engine"
	"github.com/d1nch8g/lingolive/live"
	"github.com/d1nch8g/lingolive/live/gemini"
	"github.com/d1nch8g/lingolive/live/genaisdk"
	"github.com/d1nch8g/lingolive/logging"
	"github.com/d1nch8g/lingolive/metrics"
	"github.com/d1nch8g/lingolive/sound"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to .env file with GEMINI_API_KEY")
	flag.Parse()

	if err := config.LoadEnv(*envPath); err != nil {
		log.Fatalf("Failed to load environment: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Error("lingolive exited with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	settings, err := cfg.Tutor.Settings()
	if err != nil {
		return err
	}

	if _, err := config.APIKey(); err != nil {
		fmt.Println("Warning: GEMINI_API_KEY is not set. Put it in the environment or a .env file:")
		fmt.Println("GEMINI_API_KEY=your_api_key")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	appMetrics := metrics.New(registry)

	var dialer live.Dialer
	switch cfg.Live.Driver {
	case config.DriverSDK:
		dialer = genaisdk.NewDialer(logger)
	default:
		d := gemini.NewDialer(cfg.Live.Endpoint, logger)
		if cfg.Live.ConnectTimeout > 0 {
			d.SetupTimeout = cfg.Live.ConnectTimeout
		}
		dialer = d
	}

	printer := console.NewPrinter(os.Stdout)
	eng := engine.NewEngine(
		engine.EngineConfig{
			Model:              cfg.Live.Model,
			Voice:              cfg.Live.Voice,
			CaptureSampleRate:  cfg.Audio.CaptureSampleRate,
			PlaybackSampleRate: cfg.Audio.PlaybackSampleRate,
			FramesPerBuffer:    cfg.Audio.FramesPerBuffer,
			ConnectTimeout:     cfg.Live.ConnectTimeout,
		},
		audio.NewPortaudioMicrophone(logger),
		sound.PortaudioOpener(cfg.Audio.FramesPerBuffer, logger),
		dialer,
		config.APIKey,
		engine.WithLogger(logger),
		engine.WithMetrics(appMetrics),
		engine.WithObserver(printer),
	)
	cons := console.New(eng, printer, settings, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.Run(ctx)
	})

	g.Go(func() error {
		// Leaving the console ends the process.
		defer stop()
		return cons.Run(ctx, os.Stdin)
	})

	if cfg.Metrics.Address != "" {
		server := &http.Server{
			Addr:              cfg.Metrics.Address,
			Handler:           metricsHandler(registry),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("metrics server listening", zap.String("address", cfg.Metrics.Address))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func metricsHandler(registry *prometheus.Registry) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return mux
}
