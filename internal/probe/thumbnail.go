/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package probe

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/google/uuid"
)

// Thumbnail renders a single scaled PNG frame for the file. Frame selection
// prefers the first frame after a scene-change confidence above 0.4 and
// falls back to the very first frame (stills and short clips never trip the
// scene filter). The frame goes through a temp file that is removed after
// being read into memory.
func (p *Prober) Thumbnail(ctx context.Context, path string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	tmp := filepath.Join(os.TempDir(), "grimnir-thumb-"+uuid.NewString()+".png")
	defer os.Remove(tmp)

	sceneFilter := fmt.Sprintf("select=gt(scene\\,0.4),scale=%d:%d", p.cfg.ThumbnailWidth, p.cfg.ThumbnailHeight)
	if err := p.renderFrame(ctx, path, sceneFilter, tmp); err == nil {
		if data, err := os.ReadFile(tmp); err == nil && len(data) > 0 {
			return data, nil
		}
	}

	// First-frame fallback.
	plainFilter := fmt.Sprintf("scale=%d:%d", p.cfg.ThumbnailWidth, p.cfg.ThumbnailHeight)
	if err := p.renderFrame(ctx, path, plainFilter, tmp); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrThumbnail, path, err)
	}

	data, err := os.ReadFile(tmp)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrThumbnail, tmp, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty output for %s", ErrThumbnail, path)
	}
	return data, nil
}

func (p *Prober) renderFrame(ctx context.Context, path, filter, out string) error {
	cmd := exec.CommandContext(ctx, p.cfg.FFmpegPath,
		"-hide_banner",
		"-loglevel", "error",
		"-i", path,
		"-vf", filter,
		"-frames:v", "1",
		"-f", "image2",
		"-y", out,
	)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %s", exitDetail(err))
	}
	return nil
}
