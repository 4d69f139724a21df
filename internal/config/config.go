// Package config loads subcue settings from an optional TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultFileName is looked up in the working directory when no path is given.
const DefaultFileName = "subcue.toml"

// Segmentation controls how transcript segments are cut into cues.
type Segmentation struct {
	MaxCharsPerCue int    `toml:"max_chars_per_cue"`
	Mode           string `toml:"mode"`
}

// Translation controls the cue translation stage.
type Translation struct {
	Engine            string `toml:"engine"`
	TargetLang        string `toml:"target_lang"`
	Concurrency       int    `toml:"concurrency"`
	DefaultEmotion    string `toml:"default_emotion"`
	RequestsPerMinute int    `toml:"requests_per_minute"`
	CachePath         string `toml:"cache_path"`
}

type OpenRouter struct {
	APIKey         string   `toml:"api_key"`
	Model          string   `toml:"model"`
	BaseURL        string   `toml:"base_url"`
	AllowedHosts   []string `toml:"allowed_hosts"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
	MaxRetries     int      `toml:"max_retries"`
}

type DeepL struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// Emotion configures the optional classifier endpoint. An empty URL disables
// the lookup.
type Emotion struct {
	URL            string `toml:"url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Tools points at the external binaries and the whisper model.
type Tools struct {
	FFmpeg       string `toml:"ffmpeg"`
	FFprobe      string `toml:"ffprobe"`
	WhisperBin   string `toml:"whisper_bin"`
	WhisperModel string `toml:"whisper_model"`
	Language     string `toml:"language"`
}

type Paths struct {
	CacheDir string `toml:"cache_dir"`
	OutDir   string `toml:"out_dir"`
	// ASS also writes an .ass file next to every .srt.
	ASS      bool   `toml:"ass"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Config encapsulates all subcue settings.
type Config struct {
	Segmentation Segmentation `toml:"segmentation"`
	Translation  Translation  `toml:"translation"`
	OpenRouter   OpenRouter   `toml:"openrouter"`
	DeepL        DeepL        `toml:"deepl"`
	Emotion      Emotion      `toml:"emotion"`
	Tools        Tools        `toml:"tools"`
	Paths        Paths        `toml:"paths"`
	Logging      Logging      `toml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Segmentation: Segmentation{
			MaxCharsPerCue: 40,
			Mode:           "words",
		},
		Translation: Translation{
			Engine:            EngineOpenRouter,
			TargetLang:        "ko",
			Concurrency:       5,
			DefaultEmotion:    "neutral",
			RequestsPerMinute: 60,
			CachePath:         filepath.Join(".cache", "translations.db"),
		},
		OpenRouter: OpenRouter{
			Model:          "openai/gpt-4o-mini",
			BaseURL:        "https://openrouter.ai",
			TimeoutSeconds: 90,
			MaxRetries:     3,
		},
		DeepL: DeepL{
			BaseURL: "https://api-free.deepl.com",
		},
		Emotion: Emotion{
			TimeoutSeconds: 10,
		},
		Tools: Tools{
			FFmpeg:       "ffmpeg",
			FFprobe:      "ffprobe",
			WhisperBin:   filepath.Join(".cache", "bin", "whisper.cpp"),
			WhisperModel: filepath.Join(".cache", "models", "ggml-base.bin"),
			Language:     "en",
		},
		Paths: Paths{
			CacheDir: ".cache",
			OutDir:   "out",
		},
		Logging: Logging{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load reads path over the defaults. An empty path falls back to
// DefaultFileName in the working directory; a missing default file is not an
// error. Environment overrides are applied after the file.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultFileName
	}
	b, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg.ApplyEnv()
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	c.Segmentation.Mode = strings.ToLower(strings.TrimSpace(c.Segmentation.Mode))
	c.Translation.Engine = strings.ToLower(strings.TrimSpace(c.Translation.Engine))
	c.Translation.TargetLang = strings.TrimSpace(c.Translation.TargetLang)
	c.Translation.DefaultEmotion = strings.ToLower(strings.TrimSpace(c.Translation.DefaultEmotion))
	c.Tools.Language = strings.TrimSpace(c.Tools.Language)
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
}
