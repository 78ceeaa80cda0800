/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package clipinfo derives the legacy playout records from probe output.
// Everything here is a pure transformation; byte-exact output stability of
// the CINF/TINF strings matters because the playout engine parses them by
// fixed field order.
package clipinfo

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/friendsincode/grimnir_scanner/internal/probe"
)

// MediaType classifies a clip for the playout engine.
type MediaType string

const (
	TypeMovie MediaType = "MOVIE"
	TypeStill MediaType = "STILL"
	TypeAudio MediaType = "AUDIO"
)

// token returns the space-padded 7 character form embedded in CINF records.
func (t MediaType) token() string {
	return " " + string(t) + " "
}

// Timebase is ticks per second as a rational.
type Timebase struct {
	Num int
	Den int
}

func (tb Timebase) String() string {
	return fmt.Sprintf("%d/%d", tb.Num, tb.Den)
}

// stillTimebase is the sentinel codec time-base ffprobe reports for
// single-frame (still image) video streams.
const stillTimebase = "0/1"

var fallbackTimebase = Timebase{Num: 1, Den: 25}

// parseRational parses "num/den" with a non-zero denominator.
func parseRational(s string) (Timebase, bool) {
	num, den, ok := strings.Cut(s, "/")
	if !ok {
		return Timebase{}, false
	}
	n, err1 := strconv.Atoi(strings.TrimSpace(num))
	d, err2 := strconv.Atoi(strings.TrimSpace(den))
	if err1 != nil || err2 != nil || d == 0 {
		return Timebase{}, false
	}
	return Timebase{Num: n, Den: d}, true
}

// Infer resolves the single canonical media type and timebase from the
// probe's heterogeneous stream list.
//
// Precedence: a motion video stream makes the clip a MOVIE; a still video
// stream with no audio present makes it a STILL; everything else is AUDIO.
func Infer(res *probe.Result) (MediaType, Timebase) {
	audioTb := fallbackTimebase
	audioFound := false
	stillFound := false
	var videoTb *Timebase

	for _, s := range res.Streams {
		switch s.CodecType {
		case "audio":
			if audioFound {
				continue
			}
			audioFound = true
			if tb, ok := parseRational(s.TimeBase); ok {
				audioTb = tb
			}
		case "video":
			if stillFound || videoTb != nil {
				continue
			}
			if s.CodecTimeBase == stillTimebase {
				stillFound = true
				continue
			}
			tb := motionTimebase(s)
			videoTb = &tb
		}
	}

	switch {
	case videoTb != nil:
		return TypeMovie, *videoTb
	case stillFound && !audioFound:
		return TypeStill, Timebase{Num: 0, Den: 1}
	case audioFound:
		return TypeAudio, audioTb
	default:
		return TypeAudio, Timebase{Num: 0, Den: 1}
	}
}

// motionTimebase derives the timebase of a motion video stream, preferring
// the frame-rate fields (inverted) over the stream's own time-base.
func motionTimebase(s probe.Stream) Timebase {
	for _, rate := range []string{s.AvgFrameRate, s.RFrameRate} {
		if fr, ok := parseRational(rate); ok && fr.Num > 0 {
			return Timebase{Num: fr.Den, Den: fr.Num}
		}
	}
	if tb, ok := parseRational(s.TimeBase); ok {
		return tb
	}
	return fallbackTimebase
}

// Frames converts the probed duration to a frame count in the given
// timebase. A zero-numerator timebase (stills) always yields zero frames; a
// missing duration falls back to a single frame at 24fps.
func Frames(res *probe.Result, tb Timebase) int64 {
	if tb.Num == 0 {
		return 0
	}
	dur, ok := res.DurationSeconds()
	if !ok {
		dur = 1.0 / 24.0
	}
	return int64(math.Floor(dur * float64(tb.Den) / float64(tb.Num)))
}

// CINF renders the clip information record: quoted id, padded type token,
// media byte size, thumbnail timestamp, frame duration, timebase. CRLF
// terminated.
func CINF(id string, typ MediaType, mediaSize int64, thumbTime time.Time, frames int64, tb Timebase) string {
	return fmt.Sprintf("%q%s%d %s %d %s\r\n",
		id,
		typ.token(),
		mediaSize,
		thumbTime.UTC().Format("20060102150405"),
		frames,
		tb,
	)
}

// TINF renders the thumbnail information record: quoted id, thumbnail
// timestamp, thumbnail byte size. CRLF terminated.
func TINF(id string, thumbTime time.Time, thumbSize int64) string {
	return fmt.Sprintf("%q %s %d\r\n",
		id,
		thumbTime.UTC().Format("20060102T150405"),
		thumbSize,
	)
}
