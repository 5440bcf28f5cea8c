package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the converter configuration.
type Config struct {
	OutputDir       string `json:"output_dir" yaml:"output_dir"`
	Workers         int    `json:"workers" yaml:"workers"`
	JPGQuality      int    `json:"jpg_quality" yaml:"jpg_quality"`
	SVGJPGQuality   int    `json:"svg_jpg_quality" yaml:"svg_jpg_quality"`
	WebPQuality     int    `json:"webp_quality" yaml:"webp_quality"`
	AVIFQuality     int    `json:"avif_quality" yaml:"avif_quality"`
	CompressQuality int    `json:"compress_quality" yaml:"compress_quality"`
	IcoSize         int    `json:"ico_size" yaml:"ico_size"`
	SVGScale        int    `json:"svg_scale" yaml:"svg_scale"`
	Resize          bool   `json:"resize" yaml:"resize"`
	MaxWidth        int    `json:"max_width" yaml:"max_width"`
	MaxHeight       int    `json:"max_height" yaml:"max_height"`
	KeepAspect      *bool  `json:"keep_aspect" yaml:"keep_aspect"`
	AVIFFallback    bool   `json:"avif_fallback" yaml:"avif_fallback"`
	Overwrite       bool   `json:"overwrite" yaml:"overwrite"`
}

var configPath string

func init() {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	configPath = filepath.Join(home, ".config", "pixconv", "config.json")
}

// defaultConfig returns a Config with default values.
func defaultConfig() Config {
	keepAspect := true
	opts := defaultOptions()
	return Config{
		OutputDir:       ".",
		Workers:         runtime.NumCPU(),
		JPGQuality:      opts.JPGQuality,
		SVGJPGQuality:   opts.SVGJPGQuality,
		WebPQuality:     opts.WebPQuality,
		AVIFQuality:     opts.AVIFQuality,
		CompressQuality: 80,
		IcoSize:         opts.IcoSize,
		SVGScale:        opts.SVGScale,
		MaxWidth:        1920,
		MaxHeight:       1080,
		KeepAspect:      &keepAspect,
	}
}

// configKeepAspect dereferences KeepAspect with a default of true.
func configKeepAspect(cfg Config) bool {
	if cfg.KeepAspect == nil {
		return true
	}
	return *cfg.KeepAspect
}

// isYAMLPath reports whether the config path selects the YAML encoding.
func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func unmarshalConfig(path string, data []byte, cfg *Config) error {
	if isYAMLPath(path) {
		return yaml.Unmarshal(data, cfg)
	}
	return json.Unmarshal(data, cfg)
}

// loadConfig loads config from disk, creating a default if it doesn't exist.
// Missing fields keep their defaults since the file is decoded into a
// pre-populated struct.
func loadConfig() Config {
	cfg := defaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			if writeErr := saveConfig(cfg); writeErr != nil {
				log.Printf("Failed to write default config: %v", writeErr)
			} else {
				log.Printf("Created default config at %s", configPath)
			}
			return cfg
		}
		log.Printf("Failed to read config %s: %v", configPath, err)
		return cfg
	}

	if err := unmarshalConfig(configPath, data, &cfg); err != nil {
		log.Printf("Failed to parse config %s: %v", configPath, err)
		return defaultConfig()
	}

	sanitizeConfig(&cfg)
	return cfg
}

// sanitizeConfig replaces invalid fields with their defaults.
func sanitizeConfig(cfg *Config) {
	defaults := defaultConfig()
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaults.OutputDir
	}
	if cfg.Workers <= 0 {
		log.Printf("Invalid workers %d in config, using default %d", cfg.Workers, defaults.Workers)
		cfg.Workers = defaults.Workers
	}
	fixQuality := func(name string, v *int, def int) {
		if !validQuality(*v) {
			log.Printf("Invalid %s %d in config, using default %d", name, *v, def)
			*v = def
		}
	}
	fixQuality("jpg_quality", &cfg.JPGQuality, defaults.JPGQuality)
	fixQuality("svg_jpg_quality", &cfg.SVGJPGQuality, defaults.SVGJPGQuality)
	fixQuality("webp_quality", &cfg.WebPQuality, defaults.WebPQuality)
	fixQuality("avif_quality", &cfg.AVIFQuality, defaults.AVIFQuality)
	fixQuality("compress_quality", &cfg.CompressQuality, defaults.CompressQuality)
	if !validIcoSize(cfg.IcoSize) {
		log.Printf("Invalid ico_size %d in config, using default %d", cfg.IcoSize, defaults.IcoSize)
		cfg.IcoSize = defaults.IcoSize
	}
	if !validSVGScale(cfg.SVGScale) {
		log.Printf("Invalid svg_scale %d in config, using default %d", cfg.SVGScale, defaults.SVGScale)
		cfg.SVGScale = defaults.SVGScale
	}
	if cfg.MaxWidth < 0 {
		log.Printf("Invalid max_width %d in config, using default %d", cfg.MaxWidth, defaults.MaxWidth)
		cfg.MaxWidth = defaults.MaxWidth
	}
	if cfg.MaxHeight < 0 {
		log.Printf("Invalid max_height %d in config, using default %d", cfg.MaxHeight, defaults.MaxHeight)
		cfg.MaxHeight = defaults.MaxHeight
	}
	if cfg.KeepAspect == nil {
		cfg.KeepAspect = defaults.KeepAspect
	}
}

// conversionOptions extracts transcoder options from the config.
func conversionOptions(cfg Config) Options {
	return Options{
		JPGQuality:    cfg.JPGQuality,
		SVGJPGQuality: cfg.SVGJPGQuality,
		WebPQuality:   cfg.WebPQuality,
		AVIFQuality:   cfg.AVIFQuality,
		IcoSize:       cfg.IcoSize,
		SVGScale:      cfg.SVGScale,
		AVIFFallback:  cfg.AVIFFallback,
	}
}

// compressOptions extracts compressor options. Bounds only apply when
// resizing is enabled.
func compressOptions(cfg Config) CompressOptions {
	o := CompressOptions{Quality: cfg.CompressQuality, KeepAspect: configKeepAspect(cfg)}
	if cfg.Resize {
		o.MaxWidth = cfg.MaxWidth
		o.MaxHeight = cfg.MaxHeight
	}
	return o
}

// saveConfig writes config to disk with restrictive permissions (0600).
func saveConfig(cfg Config) error {
	var (
		data []byte
		err  error
	)
	if isYAMLPath(configPath) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return writeFileSecure(configPath, data)
}

// writeFileSecure writes data to path with 0600 permissions, creating parent dirs.
func writeFileSecure(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create dir %s: %w", dir, err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
