/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables,
// optionally merged over a YAML file for the multi-root scan layout.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	MetricsBind string

	DBBackend DatabaseBackend
	DBDSN     string

	// MediaRoot is the root that clip ids are derived relative to.
	// ScanRoots are the directories the watcher registers; they default to
	// the media root when unset.
	MediaRoot string
	ScanRoots []string

	FFmpegPath  string
	FFprobePath string

	ThumbnailWidth  int
	ThumbnailHeight int

	// GenerateMediaInfo enables the structured metadata document.
	// FieldOrderDetection additionally runs the idet pass.
	GenerateMediaInfo    bool
	FieldOrderDetection  bool
	FieldOrderScanFrames int

	// ProbeTimeout bounds a single external tool invocation.
	ProbeTimeout time.Duration

	// DebounceInterval is the stability threshold before a changed file is
	// reported by the watcher.
	DebounceInterval time.Duration

	// MediaFilterEnabled restricts scanning to known media extensions.
	MediaFilterEnabled bool

	SweepPageSize int
	SweepInterval time.Duration // 0 disables the periodic repeat; startup pass always runs

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	NATSURL string

	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// fileConfig is the optional YAML file shape. Env vars win over file values.
type fileConfig struct {
	MediaRoot string   `yaml:"media_root"`
	ScanRoots []string `yaml:"scan_roots"`
	FFmpeg    string   `yaml:"ffmpeg"`
	FFprobe   string   `yaml:"ffprobe"`
	Thumbnail struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"thumbnail"`
	MediaInfo struct {
		Enabled        bool `yaml:"enabled"`
		FieldOrder     bool `yaml:"field_order"`
		FieldOrderRows int  `yaml:"field_order_frames"`
	} `yaml:"media_info"`
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("GRIMNIR_SCANNER_ENV", "development"),
		HTTPBind:    getEnv("GRIMNIR_SCANNER_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("GRIMNIR_SCANNER_HTTP_PORT", 8000),
		MetricsBind: getEnv("GRIMNIR_SCANNER_METRICS_BIND", "127.0.0.1:9000"),

		DBBackend: DatabaseBackend(getEnv("GRIMNIR_SCANNER_DB_BACKEND", string(DatabaseSQLite))),
		DBDSN:     getEnv("GRIMNIR_SCANNER_DB_DSN", "scanner.db"),

		MediaRoot:   getEnv("GRIMNIR_SCANNER_MEDIA_ROOT", "./media"),
		FFmpegPath:  getEnv("GRIMNIR_SCANNER_FFMPEG", "ffmpeg"),
		FFprobePath: getEnv("GRIMNIR_SCANNER_FFPROBE", "ffprobe"),

		ThumbnailWidth:  getEnvInt("GRIMNIR_SCANNER_THUMBNAIL_WIDTH", 256),
		ThumbnailHeight: getEnvInt("GRIMNIR_SCANNER_THUMBNAIL_HEIGHT", 144),

		GenerateMediaInfo:    getEnvBool("GRIMNIR_SCANNER_MEDIA_INFO", true),
		FieldOrderDetection:  getEnvBool("GRIMNIR_SCANNER_FIELD_ORDER", false),
		FieldOrderScanFrames: getEnvInt("GRIMNIR_SCANNER_FIELD_ORDER_FRAMES", 200),

		ProbeTimeout:     getEnvDuration("GRIMNIR_SCANNER_PROBE_TIMEOUT", 30*time.Second),
		DebounceInterval: getEnvDuration("GRIMNIR_SCANNER_DEBOUNCE", 2*time.Second),

		MediaFilterEnabled: getEnvBool("GRIMNIR_SCANNER_MEDIA_FILTER", true),

		SweepPageSize: getEnvInt("GRIMNIR_SCANNER_SWEEP_PAGE_SIZE", 256),
		SweepInterval: getEnvDuration("GRIMNIR_SCANNER_SWEEP_INTERVAL", time.Hour),

		RedisAddr:     getEnv("GRIMNIR_SCANNER_REDIS_ADDR", ""),
		RedisPassword: getEnv("GRIMNIR_SCANNER_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("GRIMNIR_SCANNER_REDIS_DB", 0),

		NATSURL: getEnv("GRIMNIR_SCANNER_NATS_URL", ""),

		TracingEnabled:    getEnvBool("GRIMNIR_SCANNER_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("GRIMNIR_SCANNER_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("GRIMNIR_SCANNER_TRACING_SAMPLE_RATE", 1.0),
	}

	if path := getEnv("GRIMNIR_SCANNER_CONFIG", ""); path != "" {
		if err := mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if roots := getEnv("GRIMNIR_SCANNER_SCAN_ROOTS", ""); roots != "" {
		cfg.ScanRoots = splitList(roots)
	}

	return cfg, cfg.validate()
}

// mergeFile fills config slots from the YAML file that env did not override.
// Env values were already applied, so only default-valued slots are replaced.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.MediaRoot != "" && os.Getenv("GRIMNIR_SCANNER_MEDIA_ROOT") == "" {
		cfg.MediaRoot = fc.MediaRoot
	}
	if len(fc.ScanRoots) > 0 {
		cfg.ScanRoots = fc.ScanRoots
	}
	if fc.FFmpeg != "" && os.Getenv("GRIMNIR_SCANNER_FFMPEG") == "" {
		cfg.FFmpegPath = fc.FFmpeg
	}
	if fc.FFprobe != "" && os.Getenv("GRIMNIR_SCANNER_FFPROBE") == "" {
		cfg.FFprobePath = fc.FFprobe
	}
	if fc.Thumbnail.Width > 0 && os.Getenv("GRIMNIR_SCANNER_THUMBNAIL_WIDTH") == "" {
		cfg.ThumbnailWidth = fc.Thumbnail.Width
	}
	if fc.Thumbnail.Height > 0 && os.Getenv("GRIMNIR_SCANNER_THUMBNAIL_HEIGHT") == "" {
		cfg.ThumbnailHeight = fc.Thumbnail.Height
	}
	if os.Getenv("GRIMNIR_SCANNER_MEDIA_INFO") == "" {
		cfg.GenerateMediaInfo = fc.MediaInfo.Enabled || cfg.GenerateMediaInfo
	}
	if os.Getenv("GRIMNIR_SCANNER_FIELD_ORDER") == "" && fc.MediaInfo.FieldOrder {
		cfg.FieldOrderDetection = true
	}
	if fc.MediaInfo.FieldOrderRows > 0 && os.Getenv("GRIMNIR_SCANNER_FIELD_ORDER_FRAMES") == "" {
		cfg.FieldOrderScanFrames = fc.MediaInfo.FieldOrderRows
	}
	return nil
}

func (c *Config) validate() error {
	if c.DBBackend != DatabasePostgres && c.DBBackend != DatabaseMySQL && c.DBBackend != DatabaseSQLite {
		return fmt.Errorf("unsupported database backend %q", c.DBBackend)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("GRIMNIR_SCANNER_DB_DSN must be provided")
	}
	if c.MediaRoot == "" {
		return fmt.Errorf("GRIMNIR_SCANNER_MEDIA_ROOT must be provided")
	}

	abs, err := filepath.Abs(c.MediaRoot)
	if err != nil {
		return fmt.Errorf("resolve media root: %w", err)
	}
	c.MediaRoot = abs

	if len(c.ScanRoots) == 0 {
		c.ScanRoots = []string{c.MediaRoot}
	}
	for i, root := range c.ScanRoots {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolve scan root %q: %w", root, err)
		}
		// Clip ids are derived relative to the media root; a root outside it
		// would produce ids escaping upward.
		rel, err := filepath.Rel(c.MediaRoot, abs)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return fmt.Errorf("scan root %q lies outside media root %q", abs, c.MediaRoot)
		}
		c.ScanRoots[i] = abs
	}

	if c.ThumbnailWidth <= 0 || c.ThumbnailHeight <= 0 {
		return fmt.Errorf("thumbnail dimensions must be positive, got %dx%d", c.ThumbnailWidth, c.ThumbnailHeight)
	}
	if c.SweepPageSize < 1 {
		c.SweepPageSize = 256
	}
	if c.FieldOrderScanFrames < 1 {
		c.FieldOrderScanFrames = 200
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return def
}
