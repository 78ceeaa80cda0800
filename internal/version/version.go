/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package version carries the build version.
package version

// Version is the current version of Grimnir Scanner.
// Set at build time via ldflags:
//
//	-X github.com/friendsincode/grimnir_scanner/internal/version.Version=X.Y.Z
var Version = "0.3.1"
