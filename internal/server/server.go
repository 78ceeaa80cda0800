/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package server wires the scanner process together: catalog store, watcher,
// reconciliation engine, sweep, cache, event feeds, and the HTTP query
// surface.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_scanner/internal/api"
	"github.com/friendsincode/grimnir_scanner/internal/cache"
	"github.com/friendsincode/grimnir_scanner/internal/catalog"
	"github.com/friendsincode/grimnir_scanner/internal/config"
	"github.com/friendsincode/grimnir_scanner/internal/db"
	"github.com/friendsincode/grimnir_scanner/internal/eventbus"
	"github.com/friendsincode/grimnir_scanner/internal/events"
	"github.com/friendsincode/grimnir_scanner/internal/probe"
	"github.com/friendsincode/grimnir_scanner/internal/scanner"
	"github.com/friendsincode/grimnir_scanner/internal/telemetry"
	"github.com/friendsincode/grimnir_scanner/internal/watch"
)

// Server owns the scanner's long-running components.
type Server struct {
	cfg    *config.Config
	logger zerolog.Logger

	database *gorm.DB
	store    *catalog.Store
	cacheSvc *cache.Cache
	bus      *events.Bus
	natsPub  *eventbus.Publisher
	watcher  *watch.Watcher
	engine   *scanner.Engine
	sweep    *scanner.Sweep
	router   chi.Router

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs and wires all components. Failures here are startup-fatal;
// per-file failures later never are.
func New(cfg *config.Config, logger zerolog.Logger) (*Server, error) {
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := db.Migrate(database); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	store := catalog.NewStore(database, logger)
	bus := events.NewBus()

	var cacheSvc *cache.Cache
	if cfg.RedisAddr != "" {
		cacheSvc, err = cache.New(cache.Config{
			RedisAddr:      cfg.RedisAddr,
			RedisPassword:  cfg.RedisPassword,
			RedisDB:        cfg.RedisDB,
			DisableOnError: true,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize cache: %w", err)
		}
	}

	var natsPub *eventbus.Publisher
	if cfg.NATSURL != "" {
		natsPub, err = eventbus.NewPublisher(cfg.NATSURL, bus, logger)
		if err != nil {
			return nil, fmt.Errorf("initialize nats publisher: %w", err)
		}
	}

	prober := probe.New(probe.Config{
		FFprobePath:      cfg.FFprobePath,
		FFmpegPath:       cfg.FFmpegPath,
		Timeout:          cfg.ProbeTimeout,
		ThumbnailWidth:   cfg.ThumbnailWidth,
		ThumbnailHeight:  cfg.ThumbnailHeight,
		FieldOrderFrames: cfg.FieldOrderScanFrames,
	}, logger)

	watcher, err := watch.New(watch.Config{
		Roots:       cfg.ScanRoots,
		Debounce:    cfg.DebounceInterval,
		FilterMedia: cfg.MediaFilterEnabled,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize watcher: %w", err)
	}

	engine := scanner.NewEngine(scanner.Config{
		MediaRoot:           cfg.MediaRoot,
		GenerateMediaInfo:   cfg.GenerateMediaInfo,
		FieldOrderDetection: cfg.FieldOrderDetection,
	}, store, prober, bus, logger)

	sweep := scanner.NewSweep(store, cfg.ScanRoots, cfg.SweepPageSize, bus, logger)

	s := &Server{
		cfg:      cfg,
		logger:   logger.With().Str("component", "server").Logger(),
		database: database,
		store:    store,
		cacheSvc: cacheSvc,
		bus:      bus,
		natsPub:  natsPub,
		watcher:  watcher,
		engine:   engine,
		sweep:    sweep,
	}
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(telemetry.MetricsMiddleware)

	apiSvc := api.New(s.store, s.cacheSvc, s.bus, s.logger)
	apiSvc.Routes(r)
	return r
}

// requestLogger logs each request with zerolog.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

// Start launches the watcher, the reconciliation engine, the sweep, the
// cache invalidation feed, and the metrics listener.
func (s *Server) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.watcher.Run(ctx); err != nil && err != context.Canceled {
			s.logger.Error().Err(err).Msg("watcher stopped")
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.engine.Run(ctx, s.watcher.Events()); err != nil && err != context.Canceled {
			s.logger.Error().Err(err).Msg("engine stopped")
		}
	}()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sweep.RunPeriodic(ctx, s.cfg.SweepInterval)
	}()

	if s.cacheSvc != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.invalidateLoop(ctx)
		}()
	}

	if s.cfg.MetricsBind != "" {
		go func() {
			s.logger.Info().Str("addr", s.cfg.MetricsBind).Msg("metrics listening")
			mux := http.NewServeMux()
			mux.Handle("/metrics", telemetry.Handler())
			if err := http.ListenAndServe(s.cfg.MetricsBind, mux); err != nil && err != http.ErrServerClosed {
				s.logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}
}

// invalidateLoop drops cached entries when the catalog changes under them.
func (s *Server) invalidateLoop(ctx context.Context) {
	subs := make([]events.Subscriber, 0, len(events.AllMedia))
	for _, t := range events.AllMedia {
		subs = append(subs, s.bus.Subscribe(t))
	}
	defer func() {
		for i, sub := range subs {
			s.bus.Unsubscribe(events.AllMedia[i], sub)
		}
	}()

	merged := make(chan events.Payload, 64)
	for _, sub := range subs {
		go func(sub events.Subscriber) {
			for payload := range sub {
				select {
				case merged <- payload:
				case <-ctx.Done():
					return
				}
			}
		}(sub)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-merged:
			if id, ok := payload["id"].(string); ok {
				s.cacheSvc.Invalidate(ctx, id)
			}
		}
	}
}

// HTTPServer returns the catalog query server.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.HTTPBind, s.cfg.HTTPPort),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// Close stops background work and releases resources.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	if s.natsPub != nil {
		if err := s.natsPub.Close(); err != nil {
			s.logger.Warn().Err(err).Msg("nats publisher close failed")
		}
	}
	if err := s.cacheSvc.Close(); err != nil {
		s.logger.Warn().Err(err).Msg("cache close failed")
	}
	return db.Close(s.database)
}
