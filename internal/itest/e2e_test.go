//go:build integration

package itest

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/forPelevin/subcue/internal/config"
	"github.com/forPelevin/subcue/internal/domain/cues"
	"github.com/forPelevin/subcue/internal/domain/subtitles"
	"github.com/forPelevin/subcue/internal/pipeline"
	"github.com/forPelevin/subcue/internal/ports/adapters/ffmpeg"
)

func TestE2E(t *testing.T) {
	tmp := t.TempDir()
	in := filepath.Join(tmp, "input.mp4")

	// Generate speech audio via espeak-ng.
	wav := filepath.Join(tmp, "speech.wav")
	text := "Here is the key idea. Step one: do this. Step two: measure results. This is important."
	cmd := exec.Command("espeak-ng", "-w", wav, text)
	if b, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("espeak-ng failed: %v\n%s", err, string(b))
	}

	// Build a simple mp4 with audio.
	ff := exec.Command("ffmpeg",
		"-y",
		"-f", "lavfi",
		"-i", "color=c=black:s=640x360:d=15",
		"-i", wav,
		"-shortest",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-c:a", "aac",
		in,
	)
	if b, err := ff.CombinedOutput(); err != nil {
		t.Fatalf("ffmpeg fixture failed: %v\n%s", err, string(b))
	}

	repoRoot := mustRepoRoot(t)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	probed, err := ffmpeg.New("ffmpeg", "ffprobe").ProbeDuration(ctx, in)
	if err != nil {
		t.Fatalf("probe fixture: %v", err)
	}
	duration := probed.Seconds()

	cfg := pipeline.Config{
		Input:          in,
		OutDir:         filepath.Join(tmp, "out"),
		CacheDir:       filepath.Join(tmp, "cache"),
		Segment:        cues.Options{MaxCharsPerCue: 30, Mode: cues.ModeWords},
		SourceLang:     "en",
		TargetLang:     "ko",
		Engine:         config.EngineNone,
		Concurrency:    2,
		DefaultEmotion: "neutral",
		FFmpegPath:     "ffmpeg",
		FFprobePath:    "ffprobe",
		WhisperBin:     filepath.Join(repoRoot, ".cache", "bin", "whisper.cpp"),
		WhisperModel:   filepath.Join(repoRoot, ".cache", "models", "ggml-base.bin"),

		OpenRouterBaseURL:    "https://openrouter.ai",
		OpenRouterModel:      "openai/gpt-4o-mini",
		OpenRouterTimeout:    90 * time.Second,
		OpenRouterMaxRetries: 3,
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		cfg.Engine = config.EngineOpenRouter
		cfg.OpenRouterAPIKey = key
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config: %v", err)
	}

	res, runDir, err := pipeline.Run(ctx, cfg)
	if err != nil {
		t.Fatalf("pipeline failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(runDir, "manifest.json")); err != nil {
		t.Fatalf("missing manifest: %v", err)
	}
	src, err := subtitles.ReadSRTFile(filepath.Join(runDir, res.Manifest.SourceSRT))
	if err != nil {
		t.Fatalf("read source srt: %v", err)
	}
	if len(src) == 0 {
		t.Fatalf("expected at least one cue")
	}
	prevEnd := 0.0
	for i, c := range src {
		if c.Index != i+1 {
			t.Fatalf("cue %d has index %d", i+1, c.Index)
		}
		if c.Start < prevEnd || c.End < c.Start {
			t.Fatalf("cue %d timing out of order: %+v", c.Index, c)
		}
		if c.End > duration+0.5 {
			t.Fatalf("cue %d ends at %.3f past media duration %.3f", c.Index, c.End, duration)
		}
		prevEnd = c.End
	}

	if cfg.Engine == config.EngineNone {
		return
	}
	if res.Manifest.TargetSRT == "" {
		t.Fatalf("expected translated subtitles in manifest: %+v", res.Manifest)
	}
	dst, err := subtitles.ReadSRTFile(filepath.Join(runDir, res.Manifest.TargetSRT))
	if err != nil {
		t.Fatalf("read target srt: %v", err)
	}
	if len(dst) != len(src) {
		t.Fatalf("translated cue count %d, want %d", len(dst), len(src))
	}
	for i := range src {
		if dst[i].Start != src[i].Start || dst[i].End != src[i].End {
			t.Fatalf("cue %d timing changed by translation: %+v vs %+v", i+1, dst[i], src[i])
		}
	}
}
