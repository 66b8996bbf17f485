package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"PrimeBoard/internal/broadcast"
	"PrimeBoard/internal/core"
	"PrimeBoard/internal/event"
	"PrimeBoard/internal/ingestion"
	"PrimeBoard/internal/observability"
	"PrimeBoard/internal/server"
	"PrimeBoard/internal/state"
)

// Config holds all application configuration, loaded from environment
// variables (optionally seeded from a .env file).
type Config struct {
	// Upstream feed
	UpstreamURL    string
	ProgramAddress string
	Commitment     string

	// Front door
	ListenAddr string
	PublicDir  string

	// Metrics
	MetricsAddr string

	// Channels
	EventChanSize    int
	OutboundChanSize int

	// PrimeFound dedup
	SeenSetCapacity int

	// Optional NATS relay; disabled when empty
	NATSURL string
}

func DefaultConfig() Config {
	return Config{
		UpstreamURL:      envOrDefault("PRIME_UPSTREAM_URL", "ws://xolana.xen.network:8900"),
		ProgramAddress:   envOrDefault("PRIME_PROGRAM_ADDRESS", "B4FMCpibTGdZhxHHNgWWnwk5PhhKdST37uFRY6TVksaj"),
		Commitment:       envOrDefault("PRIME_COMMITMENT", "finalized"),
		ListenAddr:       envOrDefault("PRIME_LISTEN_ADDR", ":3333"),
		PublicDir:        envOrDefault("PRIME_PUBLIC_DIR", "public"),
		MetricsAddr:      envOrDefault("PRIME_METRICS_ADDR", ":9100"),
		EventChanSize:    envIntOrDefault("PRIME_EVENT_CHAN_SIZE", 1024),
		OutboundChanSize: envIntOrDefault("PRIME_OUTBOUND_CHAN_SIZE", 4096),
		SeenSetCapacity:  envIntOrDefault("PRIME_SEEN_SET_CAPACITY", 65536),
		NATSURL:          envOrDefault("PRIME_NATS_URL", ""),
	}
}

func main() {
	// Missing .env is the normal production case.
	godotenv.Load()

	log := observability.NewLogger("main")
	log.Info().Msg("PrimeBoard starting")

	cfg := DefaultConfig()

	// --- Context with graceful shutdown ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// --- Observability ---
	metrics := observability.NewMetrics()
	healthChecker := observability.NewHealthChecker()

	// --- State ---
	store := state.NewStore()
	seen := state.NewSeenSet(cfg.SeenSetCapacity)

	// --- Optional NATS relay ---
	var outboundChan chan ingestion.Outbound
	var publisher *ingestion.Publisher
	if cfg.NATSURL != "" {
		nc, js, err := ingestion.ConnectNATS(cfg.NATSURL, observability.NewLogger("nats"))
		if err != nil {
			log.Fatal().Err(err).Msg("nats connect")
		}
		defer nc.Close()

		if err := ingestion.EnsureOutboundStream(ctx, js); err != nil {
			log.Fatal().Err(err).Msg("ensure outbound stream")
		}

		outboundChan = make(chan ingestion.Outbound, cfg.OutboundChanSize)
		publisher = ingestion.NewPublisher(js, outboundChan, observability.NewLogger("publisher"), metrics)
		log.Info().Str("url", cfg.NATSURL).Msg("NATS relay enabled")
	}

	// --- Pipeline: subscriber → parser → aggregator → hub → viewers ---
	eventChan := make(chan event.Event, cfg.EventChanSize)

	hub := broadcast.NewHub(store, observability.NewLogger("hub"), metrics)

	var outbound chan<- ingestion.Outbound
	if outboundChan != nil {
		outbound = outboundChan
	}
	aggregator := core.NewAggregator(store, seen, eventChan, hub, outbound, observability.NewLogger("aggregator"), metrics)

	subscriber := ingestion.NewSubscriber(ingestion.SubscriberConfig{
		URL:            cfg.UpstreamURL,
		ProgramAddress: cfg.ProgramAddress,
		Commitment:     cfg.Commitment,
	}, eventChan, observability.NewLogger("subscriber"), metrics)

	frontDoor := server.New(cfg.ListenAddr, cfg.PublicDir, hub, store, healthChecker, observability.NewLogger("server"))

	// --- Start goroutines ---
	errChan := make(chan error, 8)

	// 1. Broadcast hub
	go func() {
		errChan <- hub.Run(ctx)
	}()

	// 2. Single-writer aggregator loop
	go func() {
		errChan <- aggregator.Run(ctx)
	}()

	// 3. Upstream subscriber (reconnects forever on transport faults)
	go func() {
		errChan <- subscriber.Run(ctx)
	}()

	// 4. Viewer-facing front door; bind failure here is process-fatal
	go func() {
		errChan <- frontDoor.Run(ctx)
	}()

	// 5. Optional outbound relay
	if publisher != nil {
		go func() {
			errChan <- publisher.Run(ctx)
		}()
	}

	// 6. Prometheus metrics server
	go func() {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{
			Addr:    cfg.MetricsAddr,
			Handler: metricsMux,
		}
		go func() {
			<-ctx.Done()
			shutCtx, c := context.WithTimeout(context.Background(), 5*time.Second)
			defer c()
			metricsServer.Shutdown(shutCtx)
		}()
		log.Info().Str("addr", cfg.MetricsAddr).Msg("metrics server listening")
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	healthChecker.SetReady(true)
	log.Info().
		Str("listen", cfg.ListenAddr).
		Str("metrics", cfg.MetricsAddr).
		Str("upstream", cfg.UpstreamURL).
		Str("program", cfg.ProgramAddress).
		Msg("PrimeBoard ready")

	// --- Wait for shutdown signal ---
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errChan:
		if err != nil {
			log.Error().Err(err).Msg("goroutine failed, shutting down")
		}
	}

	cancel()
	healthChecker.SetReady(false)

	// Give pumps and servers a moment to drain.
	time.Sleep(200 * time.Millisecond)
	log.Info().Msg("PrimeBoard shutdown complete")
}

// --- Helpers ---

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envIntOrDefault(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var i int
	if _, err := fmt.Sscanf(v, "%d", &i); err != nil {
		return defaultVal
	}
	return i
}
