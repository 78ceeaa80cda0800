/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package api exposes the catalog query surface the playout engine consumes:
// legacy CINF/TINF records, structured media info, thumbnails, and a change
// feed.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_scanner/internal/cache"
	"github.com/friendsincode/grimnir_scanner/internal/catalog"
	"github.com/friendsincode/grimnir_scanner/internal/events"
	"github.com/friendsincode/grimnir_scanner/internal/models"
)

// listPageSize is the page size used when streaming full-catalog listings.
const listPageSize = 256

// Catalog is the read surface the API serves from.
type Catalog interface {
	Get(ctx context.Context, id string) (*models.CatalogEntry, error)
	ListPage(ctx context.Context, startID string, limit int) ([]models.CatalogEntry, bool, error)
}

// API exposes HTTP handlers.
type API struct {
	store  Catalog
	cache  *cache.Cache
	bus    *events.Bus
	logger zerolog.Logger
}

// New creates the API.
func New(store Catalog, c *cache.Cache, bus *events.Bus, logger zerolog.Logger) *API {
	return &API{
		store:  store,
		cache:  c,
		bus:    bus,
		logger: logger.With().Str("component", "api").Logger(),
	}
}

// Routes mounts the query surface.
func (a *API) Routes(r chi.Router) {
	r.Get("/cls", a.handleCLS)
	r.Get("/tls", a.handleTLS)
	r.Get("/cinf/*", a.handleCINF)
	r.Get("/tinf/*", a.handleTINF)
	r.Get("/thumbnail/*", a.handleThumbnail)
	r.Get("/media", a.handleMediaList)
	r.Get("/media/info/*", a.handleMediaInfo)
	r.Get("/changes", a.handleChanges)
	r.Get("/healthz", a.handleHealthz)
}

// lookup fetches an entry by id, consulting the cache first.
func (a *API) lookup(ctx context.Context, id string) (*models.CatalogEntry, error) {
	if entry := a.cache.GetEntry(ctx, id); entry != nil {
		return entry, nil
	}
	entry, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	a.cache.SetEntry(ctx, entry)
	return entry, nil
}

// clipID extracts and normalizes the wildcard id path segment. Clip ids may
// contain slashes, so routes use a wildcard rather than a single param.
func clipID(r *http.Request) string {
	return strings.ToUpper(strings.Trim(chi.URLParam(r, "*"), "/"))
}

func (a *API) handleCLS(w http.ResponseWriter, r *http.Request) {
	a.streamRecords(w, r, func(e *models.CatalogEntry) string { return e.CINF })
}

func (a *API) handleTLS(w http.ResponseWriter, r *http.Request) {
	a.streamRecords(w, r, func(e *models.CatalogEntry) string { return e.TINF })
}

// streamRecords writes one legacy record per entry, paging through the whole
// catalog in id order.
func (a *API) streamRecords(w http.ResponseWriter, r *http.Request, record func(*models.CatalogEntry) string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	cursor := ""
	for {
		entries, hasMore, err := a.store.ListPage(r.Context(), cursor, listPageSize)
		if err != nil {
			a.logger.Error().Err(err).Msg("catalog listing failed")
			http.Error(w, "catalog listing failed", http.StatusInternalServerError)
			return
		}
		for i := range entries {
			if rec := record(&entries[i]); rec != "" {
				if _, err := w.Write([]byte(rec)); err != nil {
					return
				}
			}
			cursor = entries[i].ID
		}
		if !hasMore || len(entries) == 0 {
			return
		}
	}
}

func (a *API) handleCINF(w http.ResponseWriter, r *http.Request) {
	entry, err := a.lookup(r.Context(), clipID(r))
	if err != nil || entry.CINF == "" {
		a.notFound(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(entry.CINF))
}

func (a *API) handleTINF(w http.ResponseWriter, r *http.Request) {
	entry, err := a.lookup(r.Context(), clipID(r))
	if err != nil || entry.TINF == "" {
		a.notFound(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(entry.TINF))
}

func (a *API) handleThumbnail(w http.ResponseWriter, r *http.Request) {
	entry, err := a.lookup(r.Context(), clipID(r))
	if err != nil || len(entry.ThumbnailData) == 0 {
		a.notFound(w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(entry.ThumbnailData)
}

// mediaSummary is the listing shape for GET /media.
type mediaSummary struct {
	ID        string `json:"id"`
	MediaPath string `json:"mediaPath"`
	MediaSize int64  `json:"mediaSize"`
	MediaTime int64  `json:"mediaTime"`
}

func (a *API) handleMediaList(w http.ResponseWriter, r *http.Request) {
	out := make([]mediaSummary, 0, listPageSize)

	cursor := ""
	for {
		entries, hasMore, err := a.store.ListPage(r.Context(), cursor, listPageSize)
		if err != nil {
			a.logger.Error().Err(err).Msg("catalog listing failed")
			http.Error(w, "catalog listing failed", http.StatusInternalServerError)
			return
		}
		for _, e := range entries {
			out = append(out, mediaSummary{
				ID:        e.ID,
				MediaPath: e.MediaPath,
				MediaSize: e.MediaSize,
				MediaTime: e.MediaTime,
			})
			cursor = e.ID
		}
		if !hasMore || len(entries) == 0 {
			break
		}
	}

	writeJSON(w, out)
}

func (a *API) handleMediaInfo(w http.ResponseWriter, r *http.Request) {
	entry, err := a.lookup(r.Context(), clipID(r))
	if err != nil || entry.MediaInfo == "" {
		a.notFound(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(entry.MediaInfo))
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (a *API) notFound(w http.ResponseWriter, err error) {
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		a.logger.Error().Err(err).Msg("catalog lookup failed")
		http.Error(w, "catalog lookup failed", http.StatusInternalServerError)
		return
	}
	http.Error(w, "not found", http.StatusNotFound)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
