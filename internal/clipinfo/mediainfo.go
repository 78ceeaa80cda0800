/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package clipinfo

import "github.com/friendsincode/grimnir_scanner/internal/probe"

// StreamDoc is the structured per-stream metadata exposed to consumers. A
// straight field remap of the probe output, no derived computation.
type StreamDoc struct {
	Index         int    `json:"index"`
	CodecName     string `json:"codec_name,omitempty"`
	CodecLongName string `json:"codec_long_name,omitempty"`
	CodecType     string `json:"codec_type,omitempty"`
	Profile       string `json:"profile,omitempty"`
	TimeBase      string `json:"time_base,omitempty"`
	Duration      string `json:"duration,omitempty"`
	Width         int    `json:"width,omitempty"`
	Height        int    `json:"height,omitempty"`
	PixFmt        string `json:"pix_fmt,omitempty"`
	SampleFmt     string `json:"sample_fmt,omitempty"`
	SampleRate    string `json:"sample_rate,omitempty"`
	Channels      int    `json:"channels,omitempty"`
	BitRate       string `json:"bit_rate,omitempty"`
	NbFrames      string `json:"nb_frames,omitempty"`
}

// FormatDoc is the structured container metadata.
type FormatDoc struct {
	Name      string `json:"name,omitempty"`
	LongName  string `json:"long_name,omitempty"`
	StartTime string `json:"start_time,omitempty"`
	Duration  string `json:"duration,omitempty"`
	Size      string `json:"size,omitempty"`
	BitRate   string `json:"bit_rate,omitempty"`
}

// Document is the full structured metadata record for one clip.
type Document struct {
	FieldOrder string      `json:"field_order"`
	Format     FormatDoc   `json:"format"`
	Streams    []StreamDoc `json:"streams"`
}

// MediaInfoDocument assembles the structured metadata document from probe
// output and the resolved field order.
func MediaInfoDocument(res *probe.Result, fieldOrder string) *Document {
	doc := &Document{
		FieldOrder: fieldOrder,
		Format: FormatDoc{
			Name:      res.Format.FormatName,
			LongName:  res.Format.FormatLongName,
			StartTime: res.Format.StartTime,
			Duration:  res.Format.Duration,
			Size:      res.Format.Size,
			BitRate:   res.Format.BitRate,
		},
		Streams: make([]StreamDoc, 0, len(res.Streams)),
	}
	for _, s := range res.Streams {
		doc.Streams = append(doc.Streams, StreamDoc{
			Index:         s.Index,
			CodecName:     s.CodecName,
			CodecLongName: s.CodecLongName,
			CodecType:     s.CodecType,
			Profile:       s.Profile,
			TimeBase:      s.TimeBase,
			Duration:      s.Duration,
			Width:         s.Width,
			Height:        s.Height,
			PixFmt:        s.PixFmt,
			SampleFmt:     s.SampleFmt,
			SampleRate:    s.SampleRate,
			Channels:      s.Channels,
			BitRate:       s.BitRate,
			NbFrames:      s.NbFrames,
		})
	}
	return doc
}
