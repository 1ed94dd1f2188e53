package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dennisdiepolder/monti/softphone/internal/aggregator"
	"github.com/dennisdiepolder/monti/softphone/internal/alerts"
	"github.com/dennisdiepolder/monti/softphone/internal/api"
	"github.com/dennisdiepolder/monti/softphone/internal/auth"
	"github.com/dennisdiepolder/monti/softphone/internal/cache"
	"github.com/dennisdiepolder/monti/softphone/internal/config"
	"github.com/dennisdiepolder/monti/softphone/internal/directory"
	"github.com/dennisdiepolder/monti/softphone/internal/engine"
	"github.com/dennisdiepolder/monti/softphone/internal/event"
	"github.com/dennisdiepolder/monti/softphone/internal/ledger"
	"github.com/dennisdiepolder/monti/softphone/internal/metrics"
	"github.com/dennisdiepolder/monti/softphone/internal/publisher"
	"github.com/dennisdiepolder/monti/softphone/internal/storage"
	"github.com/dennisdiepolder/monti/softphone/internal/ticker"
	"github.com/dennisdiepolder/monti/softphone/internal/transport"
	"github.com/dennisdiepolder/monti/softphone/internal/types"
	"github.com/dennisdiepolder/monti/softphone/internal/websocket"
	"github.com/dennisdiepolder/monti/softphone/pkg/middleware"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

func main() {
	// Configure logger
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Warn().Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().
		Str("port", cfg.Port).
		Strs("allowed_origins", cfg.AllowedOrigins).
		Str("log_level", cfg.LogLevel).
		Dur("ring_timeout", cfg.RingTimeout).
		Msg("starting softphone engine")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.NewStore(ctx, storage.LoadConfig(), log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}

	seed := &directory.Seed{}
	if cfg.SeedFile != "" {
		seed, err = directory.LoadSeed(cfg.SeedFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.SeedFile).Msg("failed to load seed file")
		}
	}
	contacts, err := directory.NewMemory(seed.Contacts)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid contact directory")
	}

	hub := websocket.NewHub(log.Logger)
	go hub.Run(ctx)

	// Ledger fan-out
	led := ledger.New(log.Logger)
	stats := storage.NewDailyStats(store)
	records, err := store.GetCallRecords(ctx, types.DateKey(time.Now()))
	if err != nil {
		log.Warn().Err(err).Msg("failed to load today's call records")
	}
	if loaded := led.Load(records); loaded > 0 {
		log.Info().Int("records", loaded).Msg("ledger warmed from storage")
	}
	led.AddSink("store", ledger.SinkFunc(store.SaveCallRecord))
	led.AddSink("daily_stats", stats)
	led.AddSink("websocket", hub)

	var events *publisher.EventPublisher
	if cfg.MQTTBroker != "" {
		mqttPub, err := publisher.Dial(publisher.BrokerOptions{
			URL:         cfg.MQTTBroker,
			ClientID:    cfg.MQTTClientID,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			StatusTopic: publisher.StatusTopic(cfg.MQTTTopicPrefix),
		}, log.Logger)
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTTBroker).Msg("MQTT unavailable, event publishing disabled")
		} else {
			defer mqttPub.Close()
			events = publisher.NewEventPublisher(mqttPub, cfg.MQTTTopicPrefix, log.Logger)
			led.AddSink("mqtt", events)
		}
	}

	sim := transport.NewSimulated(cfg.SimRingDelay, cfg.SimAnswerDelay, log.Logger)
	eng := engine.New(engine.Config{
		RingTimeout:      cfg.RingTimeout,
		HoldCountsAsTalk: cfg.HoldCountsAsTalk,
	}, led, contacts, sim, log.Logger)

	eventCache := cache.NewEventCache()
	eng.Subscribe(hub)
	eng.Subscribe(eventCache)
	if events != nil {
		eng.Subscribe(events)
		eng.SubscribeAgents(events)
	}
	eng.RegisterRoster(seed.Agents)
	log.Info().Int("agents", len(seed.Agents)).Int("contacts", len(seed.Contacts)).Msg("seed loaded")

	metrics.Get().RegisterCollector(metrics.NewCollector(eng, eng, led, time.Now()))

	tickerService := ticker.NewTicker(eng, hub, cfg.TickInterval, log.Logger)
	go tickerService.Start(ctx)

	aggregatorService := aggregator.NewAggregator(eng, eventCache, hub, cfg.SnapshotInterval, alerts.Thresholds{
		WrapUp: cfg.WrapUpAlert,
		Hold:   cfg.HoldAlert,
		Break:  cfg.BreakAlert,
	}, log.Logger)
	go aggregatorService.Start(ctx)

	limiter := middleware.NewKeyedRateLimiter(middleware.RateLimitConfig{
		Rate:  rate.Limit(cfg.StartCallRate),
		Burst: cfg.StartCallBurst,
	}, log.Logger)
	defer limiter.Stop()

	r := newRouter(cfg, routerDeps{
		engine:   eng,
		ledger:   led,
		stats:    stats,
		store:    store,
		hub:      hub,
		receiver: event.NewReceiver(eng, log.Logger),
		limiter:  limiter,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Msgf("server listening on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	// Stop background loops, then drain pending timers and sink deliveries
	cancel()
	sim.Close()
	eng.Close()
	led.Wait()
	if events != nil {
		events.Close()
	}
	if err := store.Close(); err != nil {
		log.Error().Err(err).Msg("failed to close storage")
	}

	log.Info().Msg("server stopped")
}

type routerDeps struct {
	engine   *engine.Engine
	ledger   *ledger.Ledger
	stats    *storage.DailyStats
	store    storage.Store
	hub      *websocket.Hub
	receiver *event.Receiver
	limiter  *middleware.KeyedRateLimiter
}

func newRouter(cfg *config.Config, d routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(log.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	// Public routes
	r.Get("/health", healthHandler)
	r.Handle("/metrics", metrics.Get().Handler())

	// Internal routes for the telephony adapter (no auth)
	r.Route("/internal", func(r chi.Router) {
		r.Post("/transport/events", d.receiver.HandleEvent)
		r.Get("/transport/stats", d.receiver.GetStats)
	})

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(auth.Options{
			SkipAuth:        cfg.SkipAuth,
			VerifySignature: cfg.VerifySignature,
			Issuer:          cfg.OIDCIssuer,
		}, log.Logger))

		r.Get("/ws", websocket.NewHandler(d.hub, cfg, log.Logger).ServeHTTP)

		deps := api.Deps{
			Engine: d.engine,
			Ledger: d.ledger,
			Stats:  d.stats,
			Store:  d.store,
			Logger: log.Logger,
		}
		if d.limiter != nil {
			deps.StartLimit = middleware.RateLimit(d.limiter)
		}
		api.Mount(r, deps)
	})

	return r
}

// healthHandler handles health check requests
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","service":"softphone-engine"}`)
}
