/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog implements the document store the scanner reconciles
// against: revision-guarded single-entry writes over gorm, plus the paged
// listing the sweep walks.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/friendsincode/grimnir_scanner/internal/models"
)

var (
	// ErrNotFound indicates a lookup miss; expected and benign.
	ErrNotFound = errors.New("catalog: entry not found")

	// ErrConflict indicates a revision-guarded write lost the race.
	ErrConflict = errors.New("catalog: revision conflict")
)

// Store provides catalog access with optimistic concurrency.
type Store struct {
	db     *gorm.DB
	logger zerolog.Logger
}

// NewStore creates a catalog store.
func NewStore(db *gorm.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "catalog").Logger(),
	}
}

// Get fetches one entry by id, including its current revision.
func (s *Store) Get(ctx context.Context, id string) (*models.CatalogEntry, error) {
	var entry models.CatalogEntry
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %s: %w", id, err)
	}
	return &entry, nil
}

// Put writes the entry guarded by the revision it was read at. Revision zero
// inserts; non-zero updates only the row still carrying that revision. The
// entry's Revision field holds the new revision on success.
func (s *Store) Put(ctx context.Context, entry *models.CatalogEntry) error {
	entry.UpdatedAt = time.Now()

	if entry.Revision == 0 {
		entry.Revision = 1
		res := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(entry)
		if res.Error != nil {
			entry.Revision = 0
			return fmt.Errorf("insert entry %s: %w", entry.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			entry.Revision = 0
			return ErrConflict
		}
		return nil
	}

	readRevision := entry.Revision
	res := s.db.WithContext(ctx).
		Model(&models.CatalogEntry{}).
		Where("id = ? AND revision = ?", entry.ID, readRevision).
		Updates(map[string]any{
			"media_path":     entry.MediaPath,
			"media_size":     entry.MediaSize,
			"media_time":     entry.MediaTime,
			"thumb_size":     entry.ThumbSize,
			"thumb_time":     entry.ThumbTime,
			"cinf":           entry.CINF,
			"tinf":           entry.TINF,
			"media_info":     entry.MediaInfo,
			"thumbnail_data": entry.ThumbnailData,
			"revision":       readRevision + 1,
			"updated_at":     entry.UpdatedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("update entry %s: %w", entry.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	entry.Revision = readRevision + 1
	return nil
}

// Remove deletes the entry only if it still carries the given revision.
func (s *Store) Remove(ctx context.Context, id string, revision int64) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND revision = ?", id, revision).
		Delete(&models.CatalogEntry{})
	if res.Error != nil {
		return fmt.Errorf("remove entry %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrConflict
	}
	return nil
}

// ListPage returns up to limit entries ordered by id, strictly after startID.
// The second return reports whether more pages follow.
func (s *Store) ListPage(ctx context.Context, startID string, limit int) ([]models.CatalogEntry, bool, error) {
	if limit < 1 {
		limit = 1
	}
	var entries []models.CatalogEntry
	err := s.db.WithContext(ctx).
		Where("id > ?", startID).
		Order("id ASC").
		Limit(limit + 1).
		Find(&entries).Error
	if err != nil {
		return nil, false, fmt.Errorf("list page after %q: %w", startID, err)
	}
	hasMore := len(entries) > limit
	if hasMore {
		entries = entries[:limit]
	}
	return entries, hasMore, nil
}

// BulkDelete removes entries unconditionally. Used by the sweep once the
// backing file is confirmed gone; no revision guard because filesystem
// absence outranks any in-flight write.
func (s *Store) BulkDelete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&models.CatalogEntry{})
	if res.Error != nil {
		return fmt.Errorf("bulk delete %d entries: %w", len(ids), res.Error)
	}
	if res.RowsAffected != int64(len(ids)) {
		s.logger.Debug().
			Int("requested", len(ids)).
			Int64("deleted", res.RowsAffected).
			Msg("bulk delete removed fewer rows than requested")
	}
	return nil
}

// Count returns the number of catalog entries.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.CatalogEntry{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count entries: %w", err)
	}
	return count, nil
}
