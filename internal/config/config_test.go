package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.DBBackend != DatabaseSQLite {
		t.Fatalf("default backend = %q, want sqlite", cfg.DBBackend)
	}
	if cfg.ThumbnailWidth != 256 || cfg.ThumbnailHeight != 144 {
		t.Fatalf("default thumbnail = %dx%d, want 256x144", cfg.ThumbnailWidth, cfg.ThumbnailHeight)
	}
	if cfg.DebounceInterval != 2*time.Second {
		t.Fatalf("default debounce = %s, want 2s", cfg.DebounceInterval)
	}
	if len(cfg.ScanRoots) != 1 || cfg.ScanRoots[0] != cfg.MediaRoot {
		t.Fatalf("scan roots should default to the media root, got %v", cfg.ScanRoots)
	}
	if !filepath.IsAbs(cfg.MediaRoot) {
		t.Fatalf("media root not absolute: %q", cfg.MediaRoot)
	}
}

func TestLoadReadsEnvOverrides(t *testing.T) {
	t.Setenv("GRIMNIR_SCANNER_MEDIA_ROOT", "/srv/media")
	t.Setenv("GRIMNIR_SCANNER_SCAN_ROOTS", "/srv/media/clips, /srv/media/stills")
	t.Setenv("GRIMNIR_SCANNER_FFMPEG", "/opt/ffmpeg/bin/ffmpeg")
	t.Setenv("GRIMNIR_SCANNER_SWEEP_INTERVAL", "15m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MediaRoot != "/srv/media" {
		t.Fatalf("media root = %q", cfg.MediaRoot)
	}
	if len(cfg.ScanRoots) != 2 || cfg.ScanRoots[1] != "/srv/media/stills" {
		t.Fatalf("scan roots = %v", cfg.ScanRoots)
	}
	if cfg.FFmpegPath != "/opt/ffmpeg/bin/ffmpeg" {
		t.Fatalf("ffmpeg path = %q", cfg.FFmpegPath)
	}
	if cfg.SweepInterval != 15*time.Minute {
		t.Fatalf("sweep interval = %s", cfg.SweepInterval)
	}
}

func TestLoadRejectsBadBackend(t *testing.T) {
	t.Setenv("GRIMNIR_SCANNER_DB_BACKEND", "mongodb")
	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail for unsupported backend")
	}
}

func TestLoadRejectsScanRootOutsideMediaRoot(t *testing.T) {
	// Clip ids are relative to the media root; a root outside it would
	// derive ids that escape upward.
	t.Setenv("GRIMNIR_SCANNER_MEDIA_ROOT", "/srv/media")
	t.Setenv("GRIMNIR_SCANNER_SCAN_ROOTS", "/srv/media/clips, /srv/other")

	if _, err := Load(); err == nil {
		t.Fatal("expected load to fail for scan root outside the media root")
	}
}

func TestLoadAcceptsMediaRootAsScanRoot(t *testing.T) {
	t.Setenv("GRIMNIR_SCANNER_MEDIA_ROOT", "/srv/media")
	t.Setenv("GRIMNIR_SCANNER_SCAN_ROOTS", "/srv/media")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.ScanRoots) != 1 || cfg.ScanRoots[0] != "/srv/media" {
		t.Fatalf("scan roots = %v", cfg.ScanRoots)
	}
}

func TestLoadMergesYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scanner.yml")
	content := `
media_root: /srv/playout/media
scan_roots:
  - /srv/playout/media/clips
  - /srv/playout/media/stills
ffmpeg: /usr/local/bin/ffmpeg
thumbnail:
  width: 512
  height: 288
media_info:
  enabled: true
  field_order: true
  field_order_frames: 100
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GRIMNIR_SCANNER_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.MediaRoot != "/srv/playout/media" {
		t.Fatalf("media root = %q", cfg.MediaRoot)
	}
	if len(cfg.ScanRoots) != 2 {
		t.Fatalf("scan roots = %v", cfg.ScanRoots)
	}
	if cfg.ThumbnailWidth != 512 || cfg.ThumbnailHeight != 288 {
		t.Fatalf("thumbnail = %dx%d", cfg.ThumbnailWidth, cfg.ThumbnailHeight)
	}
	if !cfg.FieldOrderDetection || cfg.FieldOrderScanFrames != 100 {
		t.Fatalf("field order = %v frames=%d", cfg.FieldOrderDetection, cfg.FieldOrderScanFrames)
	}
}

func TestEnvWinsOverFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scanner.yml")
	if err := os.WriteFile(path, []byte("ffmpeg: /from/file/ffmpeg\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("GRIMNIR_SCANNER_CONFIG", path)
	t.Setenv("GRIMNIR_SCANNER_FFMPEG", "/from/env/ffmpeg")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.FFmpegPath != "/from/env/ffmpeg" {
		t.Fatalf("ffmpeg path = %q, want env value", cfg.FFmpegPath)
	}
}
