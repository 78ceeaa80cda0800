/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package probe wraps the external ffprobe/ffmpeg executables as
// request/response operations. Invocations are argument vectors only; no
// shell is ever involved.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrProbe indicates the external tool exited non-zero or produced
	// unparseable output.
	ErrProbe = errors.New("probe: tool failed")

	// ErrNotMedia indicates the tool succeeded but found no decodable streams.
	ErrNotMedia = errors.New("probe: no streams")

	// ErrThumbnail indicates thumbnail generation or readback failed.
	ErrThumbnail = errors.New("probe: thumbnail failed")
)

// Stream is one elementary stream as reported by ffprobe. Fields the
// inference logic requires are listed first; the remainder feed the
// structured media-info document.
type Stream struct {
	Index         int    `json:"index"`
	CodecType     string `json:"codec_type"`
	TimeBase      string `json:"time_base"`
	CodecTimeBase string `json:"codec_time_base"`
	RFrameRate    string `json:"r_frame_rate"`
	AvgFrameRate  string `json:"avg_frame_rate"`
	Duration      string `json:"duration"`

	CodecName     string `json:"codec_name"`
	CodecLongName string `json:"codec_long_name"`
	Profile       string `json:"profile"`
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	PixFmt        string `json:"pix_fmt"`
	SampleFmt     string `json:"sample_fmt"`
	SampleRate    string `json:"sample_rate"`
	Channels      int    `json:"channels"`
	BitRate       string `json:"bit_rate"`
	NbFrames      string `json:"nb_frames"`
}

// Format is the container description as reported by ffprobe.
type Format struct {
	FormatName     string `json:"format_name"`
	FormatLongName string `json:"format_long_name"`
	StartTime      string `json:"start_time"`
	Duration       string `json:"duration"`
	Size           string `json:"size"`
	BitRate        string `json:"bit_rate"`
}

// Result is the parsed output of one info probe.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// DurationSeconds returns the container duration, falling back to the first
// stream that reports one. ok is false when nothing parseable was found.
func (r *Result) DurationSeconds() (float64, bool) {
	if d, err := strconv.ParseFloat(r.Format.Duration, 64); err == nil && d > 0 {
		return d, true
	}
	for _, s := range r.Streams {
		if d, err := strconv.ParseFloat(s.Duration, 64); err == nil && d > 0 {
			return d, true
		}
	}
	return 0, false
}

// Config holds the executable paths and probe parameters.
type Config struct {
	FFprobePath string
	FFmpegPath  string
	Timeout     time.Duration

	ThumbnailWidth  int
	ThumbnailHeight int

	FieldOrderFrames int
}

// Prober runs the external probe operations.
type Prober struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates a prober.
func New(cfg Config, logger zerolog.Logger) *Prober {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Prober{
		cfg:    cfg,
		logger: logger.With().Str("component", "probe").Logger(),
	}
}

// Info introspects container format and per-stream codec attributes.
func (p *Prober) Info(ctx context.Context, path string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, p.cfg.FFprobePath,
		"-hide_banner",
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: ffprobe %s: %s", ErrProbe, path, exitDetail(err))
	}

	var result Result
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("%w: parse ffprobe output for %s: %v", ErrProbe, path, err)
	}
	if len(result.Streams) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotMedia, path)
	}
	return &result, nil
}

// exitDetail surfaces stderr from a failed exec, which ffprobe/ffmpeg use
// for their diagnostics.
func exitDetail(err error) string {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
		return strings.TrimSpace(string(exitErr.Stderr))
	}
	return err.Error()
}
