/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"path/filepath"
	"strings"
)

// CmsID derives the stable catalog key for a media path: relative to the
// media root, extension stripped, separators normalized to forward slashes,
// upper-cased. The playout engine addresses clips by exactly this form.
func CmsID(mediaRoot, mediaPath string) string {
	rel, err := filepath.Rel(mediaRoot, mediaPath)
	if err != nil {
		rel = filepath.Base(mediaPath)
	}
	rel = strings.TrimSuffix(rel, filepath.Ext(rel))
	rel = filepath.ToSlash(rel)
	return strings.ToUpper(rel)
}
