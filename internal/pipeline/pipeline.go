package pipeline

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/gofrs/flock"

	"github.com/forPelevin/subcue/internal/config"
	"github.com/forPelevin/subcue/internal/domain/cues"
	"github.com/forPelevin/subcue/internal/domain/subtitles"
	"github.com/forPelevin/subcue/internal/faults"
	"github.com/forPelevin/subcue/internal/lang"
	"github.com/forPelevin/subcue/internal/ports"
	"github.com/forPelevin/subcue/internal/ports/adapters/deepl"
	"github.com/forPelevin/subcue/internal/ports/adapters/emotionhttp"
	"github.com/forPelevin/subcue/internal/ports/adapters/ffmpeg"
	"github.com/forPelevin/subcue/internal/ports/adapters/openrouter"
	"github.com/forPelevin/subcue/internal/ports/adapters/transcache"
	"github.com/forPelevin/subcue/internal/ports/adapters/whispercpp"
	"github.com/forPelevin/subcue/internal/types"
	"github.com/forPelevin/subcue/internal/usecase"
)

// MediaExtensions lists the containers accepted by Run.
var MediaExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".wav": true, ".flac": true,
	".ogg": true, ".aac": true, ".mp4": true, ".mov": true,
	".mkv": true, ".avi": true, ".flv": true, ".webm": true,
}

type Config struct {
	Input     string
	OutDir    string
	CacheDir  string
	KeepAudio bool
	WriteASS  bool
	Logger    *slog.Logger

	Segment cues.Options

	SourceLang        string
	TargetLang        string
	Engine            string
	Concurrency       int
	DefaultEmotion    string
	RequestsPerMinute int
	// TranslationCache is the SQLite cache path; empty disables caching.
	TranslationCache string

	FFmpegPath  string
	FFprobePath string

	WhisperBin   string
	WhisperModel string

	OpenRouterAPIKey       string
	OpenRouterModel        string
	OpenRouterBaseURL      string
	OpenRouterAllowedHosts []string
	OpenRouterTimeout      time.Duration
	OpenRouterMaxRetries   int

	DeepLAPIKey  string
	DeepLBaseURL string

	EmotionURL     string
	EmotionTimeout time.Duration
}

// FromSettings maps loaded settings onto a pipeline Config. Input is left
// for the caller.
func FromSettings(s config.Config) (Config, error) {
	mode, err := cues.ParseMode(s.Segmentation.Mode)
	if err != nil {
		return Config{}, faults.Wrap(faults.ErrConfiguration, "config", "segmentation.mode", err)
	}
	return Config{
		OutDir:   s.Paths.OutDir,
		CacheDir: s.Paths.CacheDir,
		WriteASS: s.Paths.ASS,
		Segment:  cues.Options{MaxCharsPerCue: s.Segmentation.MaxCharsPerCue, Mode: mode},

		SourceLang:        s.Tools.Language,
		TargetLang:        s.Translation.TargetLang,
		Engine:            s.Translation.Engine,
		Concurrency:       s.Translation.Concurrency,
		DefaultEmotion:    s.Translation.DefaultEmotion,
		RequestsPerMinute: s.Translation.RequestsPerMinute,
		TranslationCache:  s.Translation.CachePath,

		FFmpegPath:   s.Tools.FFmpeg,
		FFprobePath:  s.Tools.FFprobe,
		WhisperBin:   s.Tools.WhisperBin,
		WhisperModel: s.Tools.WhisperModel,

		OpenRouterAPIKey:       s.OpenRouter.APIKey,
		OpenRouterModel:        s.OpenRouter.Model,
		OpenRouterBaseURL:      s.OpenRouter.BaseURL,
		OpenRouterAllowedHosts: s.OpenRouter.AllowedHosts,
		OpenRouterTimeout:      time.Duration(s.OpenRouter.TimeoutSeconds) * time.Second,
		OpenRouterMaxRetries:   s.OpenRouter.MaxRetries,

		DeepLAPIKey:  s.DeepL.APIKey,
		DeepLBaseURL: s.DeepL.BaseURL,

		EmotionURL:     s.Emotion.URL,
		EmotionTimeout: time.Duration(s.Emotion.TimeoutSeconds) * time.Second,
	}, nil
}

// Validate checks the settings shared by every command. Input checks are
// done by ValidateMedia.
func (c Config) Validate() error {
	if c.Segment.MaxCharsPerCue < 0 {
		return faults.Wrap(faults.ErrConfiguration, "config", "max chars per cue must be >= 0", nil)
	}
	if _, err := cues.ParseMode(string(c.Segment.Mode)); err != nil {
		return faults.Wrap(faults.ErrConfiguration, "config", "segmentation mode", err)
	}
	if c.Concurrency < 0 {
		return faults.Wrap(faults.ErrConfiguration, "config", "concurrency must be >= 0", nil)
	}
	switch c.Engine {
	case config.EngineNone:
		return nil
	case config.EngineOpenRouter:
		if err := openrouter.ValidateBaseURL(c.OpenRouterBaseURL, c.OpenRouterAllowedHosts); err != nil {
			return err
		}
	case config.EngineDeepL:
	default:
		return faults.Wrap(faults.ErrConfiguration, "config", fmt.Sprintf("unknown engine %q", c.Engine), nil)
	}
	if _, err := lang.Parse(c.TargetLang); err != nil {
		return faults.Wrap(faults.ErrConfiguration, "config", "target language", err)
	}
	return nil
}

// ValidateMedia checks that the input exists and has a supported extension.
func (c Config) ValidateMedia() error {
	if c.Input == "" {
		return faults.Wrap(faults.ErrInput, "input", "path is empty", nil)
	}
	if _, err := os.Stat(c.Input); err != nil {
		return faults.Wrap(faults.ErrInput, "input", "stat", err)
	}
	ext := strings.ToLower(filepath.Ext(c.Input))
	if !MediaExtensions[ext] {
		return faults.Wrap(faults.ErrInput, "input", fmt.Sprintf("unsupported file type %q", ext), nil)
	}
	if c.WhisperModel == "" {
		return faults.Wrap(faults.ErrConfiguration, "config", "whisper model path is required", nil)
	}
	return nil
}

// Run executes the full media → subtitles pipeline and returns the result
// together with the run output directory.
func Run(ctx context.Context, cfg Config) (usecase.Result, string, error) {
	log := logger(cfg)
	if err := cfg.ValidateMedia(); err != nil {
		return usecase.Result{}, "", err
	}

	jobID := hash(cfg.Input)
	runsDir := filepath.Join(baseCacheDir(cfg), "runs")
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return usecase.Result{}, "", faults.Wrap(faults.ErrInput, "pipeline", "create cache dir", err)
	}
	unlock, err := lockJob(filepath.Join(runsDir, jobID+".lock"))
	if err != nil {
		return usecase.Result{}, "", err
	}
	defer unlock()
	cacheDir := filepath.Join(runsDir, jobID)
	log.Debug("cache", "dir", cacheDir)

	tr, closeTr, err := newTranslator(cfg, log)
	if err != nil {
		return usecase.Result{}, "", err
	}
	defer closeTr()

	deps := usecase.Deps{
		Video:      ffmpeg.New(cfg.FFmpegPath, cfg.FFprobePath),
		ASR:        whispercpp.New(cfg.WhisperBin, cfg.WhisperModel, cfg.SourceLang),
		Translator: tr,
		Logger:     log,
	}
	if strings.TrimSpace(cfg.EmotionURL) != "" {
		deps.Emotion = func(wavPath string) ports.EmotionLookup {
			return emotionhttp.New(cfg.EmotionURL, wavPath, cfg.EmotionTimeout)
		}
	}

	runOutDir := buildRunOutDir(outDir(cfg), cfg.Input, time.Now().UTC())
	log.Info("output run dir", "path", runOutDir)

	res, err := usecase.New(deps).Run(ctx, usecase.Input{
		InputMedia: cfg.Input,
		CacheDir:   cacheDir,
		OutDir:     runOutDir,
		SourceLang: cfg.SourceLang,
		TargetLang: cfg.TargetLang,
		Engine:     cfg.Engine,
		Segment:    cfg.Segment,
		Translate:  usecase.TranslateOptions{Concurrency: cfg.Concurrency, DefaultEmotion: cfg.DefaultEmotion},
		KeepAudio:  cfg.KeepAudio,
		WriteASS:   cfg.WriteASS,
	})
	if err != nil && res.Manifest.RunID == "" {
		return res, runOutDir, err
	}
	if werr := writeManifest(runOutDir, res.Manifest, log); werr != nil {
		return res, runOutDir, errors.Join(err, werr)
	}
	return res, runOutDir, err
}

// TranslateFile translates an existing SRT file into <out>/<base>_<target>.srt.
func TranslateFile(ctx context.Context, cfg Config) (usecase.Result, string, error) {
	log := logger(cfg)
	src, err := subtitles.ReadSRTFile(cfg.Input)
	if err != nil {
		return usecase.Result{}, "", faults.Wrap(faults.ErrInput, "translate", "read subtitles", err)
	}
	if cfg.Engine == config.EngineNone {
		return usecase.Result{}, "", faults.Wrap(faults.ErrConfiguration, "translate", "engine is none", nil)
	}
	tr, closeTr, err := newTranslator(cfg, log)
	if err != nil {
		return usecase.Result{}, "", err
	}
	defer closeTr()

	out := outDir(cfg)
	res, err := usecase.New(usecase.Deps{Translator: tr, Logger: log}).TranslateCues(ctx, usecase.Input{
		InputMedia: cfg.Input,
		OutDir:     out,
		BaseName:   srtBaseName(cfg.Input, cfg.SourceLang),
		SourceLang: cfg.SourceLang,
		TargetLang: cfg.TargetLang,
		Engine:     cfg.Engine,
		Translate:  usecase.TranslateOptions{Concurrency: cfg.Concurrency, DefaultEmotion: cfg.DefaultEmotion},
		WriteASS:   cfg.WriteASS,
	}, src)
	return res, out, err
}

// SegmentFile cuts a saved transcript (whisper.cpp full JSON or a
// normalized transcript) into cues and writes <out>/<base>_<lang>.srt.
func SegmentFile(cfg Config) ([]types.Cue, string, error) {
	b, err := os.ReadFile(cfg.Input)
	if err != nil {
		return nil, "", faults.Wrap(faults.ErrInput, "segment", "read transcript", err)
	}
	tr, err := whispercpp.Decode(b)
	if err != nil {
		return nil, "", faults.Wrap(faults.ErrInput, "segment", "decode transcript", err)
	}
	out := cues.Segment(tr, cfg.Segment)

	src := tr.Language
	if src == "" {
		src = cfg.SourceLang
	}
	if src == "" {
		src = "en"
	}
	dir := outDir(cfg)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", faults.Wrap(faults.ErrInput, "segment", "create output dir", err)
	}
	base := strings.TrimSuffix(filepath.Base(cfg.Input), filepath.Ext(cfg.Input))
	path := filepath.Join(dir, base+"_"+src+".srt")
	if err := subtitles.WriteSRTFile(path, out); err != nil {
		return nil, "", faults.Wrap(faults.ErrInput, "segment", "write subtitles", err)
	}
	logger(cfg).Info("subtitles written", "path", path, "cues", len(out))
	return out, path, nil
}

func newTranslator(cfg Config, log *slog.Logger) (ports.Translator, func(), error) {
	noop := func() {}
	if cfg.Engine == config.EngineNone || cfg.Engine == "" {
		return nil, noop, nil
	}
	target, err := lang.Parse(cfg.TargetLang)
	if err != nil {
		return nil, noop, faults.Wrap(faults.ErrConfiguration, "config", "target language", err)
	}
	source, err := lang.Parse(firstNonEmpty(cfg.SourceLang, "en"))
	if err != nil {
		return nil, noop, faults.Wrap(faults.ErrConfiguration, "config", "source language", err)
	}

	var tr ports.Translator
	switch cfg.Engine {
	case config.EngineOpenRouter:
		tr = openrouter.New(openrouter.Config{
			APIKey:            cfg.OpenRouterAPIKey,
			Model:             cfg.OpenRouterModel,
			BaseURL:           cfg.OpenRouterBaseURL,
			SourceLang:        lang.EnglishName(source),
			TargetLang:        lang.EnglishName(target),
			Timeout:           cfg.OpenRouterTimeout,
			MaxRetries:        cfg.OpenRouterMaxRetries,
			RequestsPerMinute: cfg.RequestsPerMinute,
		})
	case config.EngineDeepL:
		tr = deepl.New(deepl.Config{
			APIKey:            cfg.DeepLAPIKey,
			BaseURL:           cfg.DeepLBaseURL,
			SourceLang:        strings.ToUpper(lang.Base(source)),
			TargetLang:        lang.DeepLCode(target),
			RequestsPerMinute: cfg.RequestsPerMinute,
		})
	default:
		return nil, noop, faults.Wrap(faults.ErrConfiguration, "config", fmt.Sprintf("unknown engine %q", cfg.Engine), nil)
	}

	if cfg.TranslationCache == "" {
		return tr, noop, nil
	}
	store, err := transcache.Open(cfg.TranslationCache)
	if err != nil {
		log.Warn("translation cache disabled", "path", cfg.TranslationCache, "err", err)
		return tr, noop, nil
	}
	closeStore := func() {
		if err := store.Close(); err != nil {
			log.Warn("close translation cache", "err", err)
		}
	}
	scope := transcache.Scope{Engine: cfg.Engine, Source: source.String(), Target: target.String()}
	if cfg.Engine == config.EngineOpenRouter {
		scope.Model = cfg.OpenRouterModel
	}
	return transcache.Wrap(tr, store, scope, log), closeStore, nil
}

// lockJob holds an exclusive lock so two runs over the same input do not
// share a cache directory.
func lockJob(path string) (func(), error) {
	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, faults.Wrap(faults.ErrInput, "pipeline", "lock cache dir", err)
	}
	if !ok {
		return nil, faults.Wrap(faults.ErrInput, "pipeline", "another run is processing this input", nil)
	}
	return func() { _ = fl.Unlock() }, nil
}

func writeManifest(runOutDir string, m types.Manifest, log *slog.Logger) error {
	path := filepath.Join(runOutDir, "manifest.json")
	if err := usecase.WriteManifest(path, m); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	log.Info("manifest written", "path", path, "cues", m.Cues)
	return nil
}

func logger(cfg Config) *slog.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func baseCacheDir(cfg Config) string {
	if cfg.CacheDir == "" {
		return ".cache"
	}
	return cfg.CacheDir
}

func outDir(cfg Config) string {
	if cfg.OutDir == "" {
		return "out"
	}
	return cfg.OutDir
}

// srtBaseName strips the extension and a trailing ".<lang>" so
// "talk.en.srt" becomes "talk".
func srtBaseName(path, sourceLang string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, suffix := range []string{"." + sourceLang, "_" + sourceLang} {
		if sourceLang != "" && strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix)
		}
	}
	return name
}

func buildRunOutDir(outRoot, input string, now time.Time) string {
	name := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	name = normalizePathSegment(name)
	if name == "" {
		name = "input"
	}
	ts := now.UTC().Format("20060102-150405Z")
	runSeed := fmt.Sprintf("%s|%d", input, now.UTC().UnixNano())
	suffix := hash(runSeed)[:6]
	return filepath.Join(outRoot, fmt.Sprintf("%s-%s-%s", name, ts, suffix))
}

func normalizePathSegment(s string) string {
	var b strings.Builder
	prevDash := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])[:12]
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// ensure adapters implement ports
var (
	_ ports.VideoTool         = (*ffmpeg.Adapter)(nil)
	_ ports.ASR               = (*whispercpp.Adapter)(nil)
	_ ports.Translator        = (*openrouter.Adapter)(nil)
	_ ports.Translator        = (*deepl.Adapter)(nil)
	_ ports.Translator        = (*transcache.Translator)(nil)
	_ ports.Availability      = (*openrouter.Adapter)(nil)
	_ ports.Availability      = (*deepl.Adapter)(nil)
	_ ports.EmotionLookup     = (*emotionhttp.Adapter)(nil)
	_ ports.Availability      = (*emotionhttp.Adapter)(nil)
	_ ports.ConcurrencySafety = (*transcache.Translator)(nil)
)
