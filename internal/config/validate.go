package config

import (
	"errors"
	"fmt"
	"strings"
)

const (
	EngineOpenRouter = "openrouter"
	EngineDeepL      = "deepl"
	EngineNone       = "none"
)

// Validate checks value ranges. Missing API keys are not an error here: the
// pipeline degrades to source-only output when the engine is unusable.
func (c *Config) Validate() error {
	if err := c.validateSegmentation(); err != nil {
		return err
	}
	if err := c.validateTranslation(); err != nil {
		return err
	}
	if c.OpenRouter.TimeoutSeconds < 0 {
		return errors.New("openrouter.timeout_seconds must be >= 0")
	}
	if c.OpenRouter.MaxRetries < 0 {
		return errors.New("openrouter.max_retries must be >= 0")
	}
	if c.Emotion.TimeoutSeconds < 0 {
		return errors.New("emotion.timeout_seconds must be >= 0")
	}
	if strings.TrimSpace(c.Tools.WhisperModel) == "" {
		return errors.New("tools.whisper_model must be set")
	}
	return nil
}

func (c *Config) validateSegmentation() error {
	if c.Segmentation.MaxCharsPerCue <= 0 {
		return errors.New("segmentation.max_chars_per_cue must be > 0")
	}
	switch c.Segmentation.Mode {
	case "", "words", "segments":
		return nil
	default:
		return fmt.Errorf("segmentation.mode: unsupported value %q (want words or segments)", c.Segmentation.Mode)
	}
}

func (c *Config) validateTranslation() error {
	switch c.Translation.Engine {
	case EngineOpenRouter, EngineDeepL, EngineNone:
	default:
		return fmt.Errorf("translation.engine: unsupported value %q (want openrouter, deepl or none)", c.Translation.Engine)
	}
	if c.Translation.Engine != EngineNone && c.Translation.TargetLang == "" {
		return errors.New("translation.target_lang must be set")
	}
	if c.Translation.Concurrency < 0 {
		return errors.New("translation.concurrency must be >= 0")
	}
	if c.Translation.RequestsPerMinute < 0 {
		return errors.New("translation.requests_per_minute must be >= 0")
	}
	return nil
}
