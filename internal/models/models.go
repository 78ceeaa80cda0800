/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package models defines the catalog persistence types.
package models

import "time"

// CatalogEntry is one indexed media file. The id is derived from the file's
// path relative to the media root and is stable across re-scans of an
// unchanged file.
type CatalogEntry struct {
	ID        string `gorm:"primaryKey"`
	MediaPath string `gorm:"index"`

	// MediaSize and MediaTime (epoch ms) are the change-detection
	// fingerprint; matching both makes a re-scan a no-op.
	MediaSize int64
	MediaTime int64

	ThumbSize int64
	ThumbTime int64

	CINF string
	TINF string

	// MediaInfo holds the structured metadata document as JSON; empty when
	// the media info feature is disabled or the probe has not succeeded yet.
	MediaInfo string

	ThumbnailData []byte

	// Revision is the optimistic concurrency token. Zero means "new": a Put
	// with revision 0 inserts, any other value guards an update.
	Revision int64

	UpdatedAt time.Time
}

// TableName keeps the legacy table name used by earlier deployments.
func (CatalogEntry) TableName() string {
	return "catalog_entries"
}

// SweepResult aggregates one full reconciliation pass over the catalog.
type SweepResult struct {
	Checked  int
	Deleted  int
	Skipped  int
	Errors   int
	Duration time.Duration
}
