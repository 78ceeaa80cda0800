/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scanner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/friendsincode/grimnir_scanner/internal/events"
	"github.com/friendsincode/grimnir_scanner/internal/models"
	"github.com/friendsincode/grimnir_scanner/internal/telemetry"
)

// Sweep walks the whole catalog in pages and deletes entries whose backing
// file is confirmed gone, covering removals the watcher missed (downtime,
// delete racing a rename). Entries stored under paths outside the scan roots
// are never touched.
type Sweep struct {
	store    Store
	roots    []string
	pageSize int
	bus      *events.Bus
	logger   zerolog.Logger
}

// NewSweep creates a sweep scanner.
func NewSweep(store Store, roots []string, pageSize int, bus *events.Bus, logger zerolog.Logger) *Sweep {
	if pageSize < 1 {
		pageSize = 256
	}
	return &Sweep{
		store:    store,
		roots:    roots,
		pageSize: pageSize,
		bus:      bus,
		logger:   logger.With().Str("component", "sweep").Logger(),
	}
}

// Run performs one full pass. Per-entry and per-page errors are logged and
// counted but never abort the pass.
func (s *Sweep) Run(ctx context.Context) (*models.SweepResult, error) {
	start := time.Now()
	runID := uuid.NewString()[:8]
	result := &models.SweepResult{}

	s.logger.Info().Str("run", runID).Msg("sweep started")

	cursor := ""
	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		entries, hasMore, err := s.store.ListPage(ctx, cursor, s.pageSize)
		if err != nil {
			s.logger.Error().Err(err).Str("run", runID).Str("cursor", cursor).Msg("sweep page listing failed")
			result.Errors++
			break
		}
		if len(entries) == 0 {
			break
		}
		cursor = entries[len(entries)-1].ID

		doomed := make([]string, 0, len(entries))
		for _, entry := range entries {
			result.Checked++

			if !s.underRoots(entry.MediaPath) {
				result.Skipped++
				continue
			}

			info, err := os.Stat(entry.MediaPath)
			if err != nil || !info.Mode().IsRegular() {
				doomed = append(doomed, entry.ID)
			}
		}

		if len(doomed) > 0 {
			if err := s.store.BulkDelete(ctx, doomed); err != nil {
				s.logger.Error().Err(err).Str("run", runID).Int("count", len(doomed)).Msg("sweep batch delete failed")
				result.Errors++
			} else {
				result.Deleted += len(doomed)
				telemetry.SweepDeletions.Add(float64(len(doomed)))
				for _, id := range doomed {
					s.bus.Publish(events.EventMediaRemoved, events.Payload{"id": id})
				}
			}
		}

		if !hasMore {
			break
		}
	}

	result.Duration = time.Since(start)

	if count, err := s.store.Count(ctx); err == nil {
		telemetry.CatalogEntries.Set(float64(count))
	}

	s.logger.Info().
		Str("run", runID).
		Int("checked", result.Checked).
		Int("deleted", result.Deleted).
		Int("skipped", result.Skipped).
		Int("errors", result.Errors).
		Dur("duration", result.Duration).
		Msg("sweep complete")

	s.bus.Publish(events.EventSweepDone, events.Payload{
		"run":     runID,
		"checked": result.Checked,
		"deleted": result.Deleted,
	})

	return result, nil
}

// RunPeriodic runs the startup pass, then repeats on the interval until the
// context is cancelled. A zero interval disables the repeat.
func (s *Sweep) RunPeriodic(ctx context.Context, interval time.Duration) {
	if _, err := s.Run(ctx); err != nil && err != context.Canceled {
		s.logger.Error().Err(err).Msg("startup sweep failed")
	}
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Run(ctx); err != nil && err != context.Canceled {
				s.logger.Error().Err(err).Msg("periodic sweep failed")
			}
		}
	}
}

// underRoots reports whether path lies under any configured scan root.
func (s *Sweep) underRoots(path string) bool {
	for _, root := range s.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			continue
		}
		if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			continue
		}
		return true
	}
	return false
}
