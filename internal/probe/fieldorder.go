/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package probe

import (
	"context"
	"os"
	"os/exec"
	"regexp"
	"strconv"
)

// Field order values resolved by the idet pass.
const (
	FieldOrderUnknown     = "unknown"
	FieldOrderProgressive = "progressive"
	FieldOrderTFF         = "tff"
	FieldOrderBFF         = "bff"
)

var idetSummary = regexp.MustCompile(`Multi frame detection: TFF:\s+(\d+)\s+BFF:\s+(\d+)\s+Progressive:\s+(\d+)`)

// FieldOrder runs an interlace-detection pass over the configured number of
// frames and classifies the result from ffmpeg's idet summary line. Tool
// failure or an absent summary both resolve to unknown; field order is a
// best-effort attribute, never a scan failure.
func (p *Prober) FieldOrder(ctx context.Context, path string) string {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.cfg.FFmpegPath,
		"-hide_banner",
		"-i", path,
		"-filter:v", "idet",
		"-frames:v", strconv.Itoa(p.cfg.FieldOrderFrames),
		"-an",
		"-f", "rawvideo",
		"-y", os.DevNull,
	)
	// idet writes its summary to stderr.
	output, err := cmd.CombinedOutput()
	if err != nil {
		p.logger.Debug().Err(err).Str("path", path).Msg("idet pass failed")
		return FieldOrderUnknown
	}
	return ClassifyFieldOrder(string(output))
}

// ClassifyFieldOrder parses the idet summary from ffmpeg diagnostic output.
// Both interlaced counts at or below 10 means progressive; otherwise the
// larger count wins. No summary line means unknown.
func ClassifyFieldOrder(output string) string {
	m := idetSummary.FindStringSubmatch(output)
	if m == nil {
		return FieldOrderUnknown
	}
	tff, _ := strconv.Atoi(m[1])
	bff, _ := strconv.Atoi(m[2])

	if tff <= 10 && bff <= 10 {
		return FieldOrderProgressive
	}
	if tff > bff {
		return FieldOrderTFF
	}
	return FieldOrderBFF
}
