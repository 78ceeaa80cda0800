/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package scanner contains the scan-and-reconcile pipeline: the serialized
// event consumer that turns filesystem changes into catalog documents, and
// the sweep that reconciles the catalog against the filesystem.
package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/friendsincode/grimnir_scanner/internal/catalog"
	"github.com/friendsincode/grimnir_scanner/internal/clipinfo"
	"github.com/friendsincode/grimnir_scanner/internal/events"
	"github.com/friendsincode/grimnir_scanner/internal/models"
	"github.com/friendsincode/grimnir_scanner/internal/probe"
	"github.com/friendsincode/grimnir_scanner/internal/telemetry"
	"github.com/friendsincode/grimnir_scanner/internal/watch"
)

// Store is the catalog surface the pipeline reconciles against.
type Store interface {
	Get(ctx context.Context, id string) (*models.CatalogEntry, error)
	Put(ctx context.Context, entry *models.CatalogEntry) error
	Remove(ctx context.Context, id string, revision int64) error
	ListPage(ctx context.Context, startID string, limit int) ([]models.CatalogEntry, bool, error)
	BulkDelete(ctx context.Context, ids []string) error
	Count(ctx context.Context) (int64, error)
}

// Prober is the external probe surface.
type Prober interface {
	Info(ctx context.Context, path string) (*probe.Result, error)
	Thumbnail(ctx context.Context, path string) ([]byte, error)
	FieldOrder(ctx context.Context, path string) string
}

// Config holds engine parameters.
type Config struct {
	MediaRoot           string
	GenerateMediaInfo   bool
	FieldOrderDetection bool
}

// Engine consumes the ordered event stream and reconciles the catalog.
// Events are processed strictly one at a time; only the two probes within a
// single event run concurrently.
type Engine struct {
	cfg    Config
	store  Store
	prober Prober
	bus    *events.Bus
	logger zerolog.Logger
}

// NewEngine creates the reconciliation engine.
func NewEngine(cfg Config, store Store, prober Prober, bus *events.Bus, logger zerolog.Logger) *Engine {
	return &Engine{
		cfg:    cfg,
		store:  store,
		prober: prober,
		bus:    bus,
		logger: logger.With().Str("component", "engine").Logger(),
	}
}

// Run drains the event channel until it closes or the context is cancelled.
// Per-file failures never stop the stream.
func (e *Engine) Run(ctx context.Context, eventsCh <-chan watch.Event) error {
	e.logger.Info().Msg("reconciliation engine started")
	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("reconciliation engine stopped")
			return ctx.Err()
		case ev, ok := <-eventsCh:
			if !ok {
				e.logger.Info().Msg("event stream closed")
				return nil
			}
			e.Handle(ctx, ev)
		}
	}
}

// Handle processes one filesystem event.
func (e *Engine) Handle(ctx context.Context, ev watch.Event) {
	if ev.IsDir {
		return
	}
	id := catalog.CmsID(e.cfg.MediaRoot, ev.Path)

	switch ev.Op {
	case watch.Removed:
		e.handleRemoved(ctx, id, ev.Path)
	case watch.Added, watch.Changed:
		e.handleScan(ctx, id, ev)
	}
}

func (e *Engine) handleRemoved(ctx context.Context, id, path string) {
	entry, err := e.store.Get(ctx, id)
	if errors.Is(err, catalog.ErrNotFound) {
		return
	}
	if err != nil {
		e.logger.Error().Err(err).Str("id", id).Msg("lookup for removal failed")
		return
	}

	if err := e.store.Remove(ctx, id, entry.Revision); err != nil {
		// Logged only; subsequent events and the sweep keep converging.
		e.logger.Error().Err(err).Str("id", id).Str("path", path).Msg("entry removal failed")
		return
	}

	e.logger.Info().Str("id", id).Str("path", path).Msg("entry removed")
	e.bus.Publish(events.EventMediaRemoved, events.Payload{"id": id, "path": path})
}

func (e *Engine) handleScan(ctx context.Context, id string, ev watch.Event) {
	ctx, span := telemetry.Tracer("scanner").Start(ctx, "scan_file")
	defer span.End()
	span.SetAttributes(attribute.String("clip.id", id), attribute.String("clip.path", ev.Path))

	entry, err := e.store.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, catalog.ErrNotFound) {
			e.logger.Warn().Err(err).Str("id", id).Msg("lookup failed, treating entry as new")
		}
		entry = &models.CatalogEntry{ID: id}
	}

	// Two distinct paths deriving the same id must not clobber each other;
	// skip and leave the first claimant alone.
	if entry.MediaPath != "" && entry.MediaPath != ev.Path {
		telemetry.IDCollisions.Inc()
		e.logger.Warn().
			Str("id", id).
			Str("path", ev.Path).
			Str("existing_path", entry.MediaPath).
			Msg("clip id collision, event skipped")
		return
	}

	if entry.MediaSize == ev.Size && entry.MediaTime == ev.ModTime {
		telemetry.ScansSkipped.Inc()
		e.logger.Debug().Str("id", id).Msg("unchanged, skipping")
		return
	}

	isNew := entry.Revision == 0
	entry.MediaPath = ev.Path
	entry.MediaSize = ev.Size
	entry.MediaTime = ev.ModTime

	infoRes, thumb, infoErr, thumbErr := e.probeBoth(ctx, ev.Path)

	if thumbErr != nil {
		telemetry.ProbeFailures.WithLabelValues("thumbnail").Inc()
		e.logger.Warn().Err(thumbErr).Str("id", id).Str("path", ev.Path).Msg("thumbnail generation failed")
	} else {
		entry.ThumbnailData = thumb
		entry.ThumbSize = int64(len(thumb))
		entry.ThumbTime = time.Now().UnixMilli()
	}

	if infoErr != nil {
		kind := "info"
		if errors.Is(infoErr, probe.ErrNotMedia) {
			kind = "not_media"
		}
		telemetry.ProbeFailures.WithLabelValues(kind).Inc()
		e.logger.Warn().Err(infoErr).Str("id", id).Str("path", ev.Path).Msg("info probe failed")
	} else {
		e.generate(ctx, entry, infoRes)
	}

	if err := e.store.Put(ctx, entry); err != nil {
		if errors.Is(err, catalog.ErrConflict) {
			// No retry here; the next change event or sweep pass re-scans.
			telemetry.StoreConflicts.Inc()
			e.logger.Error().Str("id", id).Str("path", ev.Path).Msg("catalog write conflict, update dropped")
			return
		}
		e.logger.Error().Err(err).Str("id", id).Str("path", ev.Path).Msg("catalog write failed")
		return
	}

	telemetry.FilesScanned.Inc()
	e.logger.Info().
		Str("id", id).
		Str("path", ev.Path).
		Int64("size", ev.Size).
		Bool("new", isNew).
		Msg("entry scanned")

	eventType := events.EventMediaUpdated
	if isNew {
		eventType = events.EventMediaAdded
	}
	e.bus.Publish(eventType, events.Payload{"id": id, "path": ev.Path})
}

// probeBoth runs the info and thumbnail probes concurrently. Each failure is
// independent; the caller writes whatever succeeded.
func (e *Engine) probeBoth(ctx context.Context, path string) (*probe.Result, []byte, error, error) {
	var (
		wg       sync.WaitGroup
		infoRes  *probe.Result
		infoErr  error
		thumb    []byte
		thumbErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		infoRes, infoErr = e.prober.Info(ctx, path)
	}()
	go func() {
		defer wg.Done()
		thumb, thumbErr = e.prober.Thumbnail(ctx, path)
	}()
	wg.Wait()

	return infoRes, thumb, infoErr, thumbErr
}

// generate regenerates the legacy records and the structured metadata from
// one successful probe run.
func (e *Engine) generate(ctx context.Context, entry *models.CatalogEntry, res *probe.Result) {
	typ, tb := clipinfo.Infer(res)
	frames := clipinfo.Frames(res, tb)
	thumbTime := time.UnixMilli(entry.ThumbTime)

	entry.CINF = clipinfo.CINF(entry.ID, typ, entry.MediaSize, thumbTime, frames, tb)
	entry.TINF = clipinfo.TINF(entry.ID, thumbTime, entry.ThumbSize)

	if !e.cfg.GenerateMediaInfo {
		return
	}

	fieldOrder := probe.FieldOrderUnknown
	if e.cfg.FieldOrderDetection && typ == clipinfo.TypeMovie {
		fieldOrder = e.prober.FieldOrder(ctx, entry.MediaPath)
	}

	doc := clipinfo.MediaInfoDocument(res, fieldOrder)
	data, err := json.Marshal(doc)
	if err != nil {
		e.logger.Warn().Err(err).Str("id", entry.ID).Msg("media info marshal failed")
		return
	}
	entry.MediaInfo = string(data)
}
