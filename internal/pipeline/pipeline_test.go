package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/forPelevin/subcue/internal/config"
	"github.com/forPelevin/subcue/internal/domain/cues"
	"github.com/forPelevin/subcue/internal/domain/subtitles"
	"github.com/forPelevin/subcue/internal/faults"
)

func TestBuildRunOutDir(t *testing.T) {
	now := time.Date(2026, 2, 12, 10, 30, 45, 1234, time.UTC)
	got := buildRunOutDir("out", "/tmp/My Cool.Video.mp4", now)
	base := filepath.Base(got)
	if filepath.Dir(got) != "out" {
		t.Fatalf("unexpected parent dir: %s", got)
	}
	if !strings.HasPrefix(base, "my-cool-video-20260212-103045Z-") {
		t.Fatalf("unexpected run dir format: %s", base)
	}
	if len(base) != len("my-cool-video-20260212-103045Z-")+6 {
		t.Fatalf("unexpected run dir suffix length: %s", base)
	}
}

func TestNormalizePathSegment(t *testing.T) {
	tests := map[string]string{
		"  My Cool.Video  ": "my-cool-video",
		"___":               "",
		"abc123":            "abc123",
		"Name (v2)!":        "name-v2",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			if got := normalizePathSegment(in); got != want {
				t.Fatalf("normalizePathSegment(%q) = %q, want %q", in, got, want)
			}
		})
	}
}

func TestSrtBaseName(t *testing.T) {
	tests := []struct{ path, lang, want string }{
		{"/x/talk.en.srt", "en", "talk"},
		{"/x/talk_en.srt", "en", "talk"},
		{"/x/talk.srt", "en", "talk"},
		{"/x/talk.srt", "", "talk"},
	}
	for _, tt := range tests {
		if got := srtBaseName(tt.path, tt.lang); got != tt.want {
			t.Fatalf("srtBaseName(%q, %q) = %q, want %q", tt.path, tt.lang, got, tt.want)
		}
	}
}

func TestFromSettingsAndValidate(t *testing.T) {
	s := config.Default()
	s.Segmentation.Mode = "segments"
	cfg, err := FromSettings(s)
	if err != nil {
		t.Fatalf("from settings: %v", err)
	}
	if cfg.Segment.Mode != cues.ModeSegments || cfg.Concurrency != 5 || cfg.OpenRouterTimeout != 90*time.Second {
		t.Fatalf("unexpected mapping %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	bad := cfg
	bad.OpenRouterBaseURL = "http://evil.example"
	if err := bad.Validate(); !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	bad = cfg
	bad.TargetLang = "???"
	if err := bad.Validate(); !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected configuration error for target, got %v", err)
	}
	none := cfg
	none.Engine = config.EngineNone
	none.TargetLang = ""
	if err := none.Validate(); err != nil {
		t.Fatalf("engine none: %v", err)
	}

	s.Segmentation.Mode = "paragraphs"
	if _, err := FromSettings(s); !errors.Is(err, faults.ErrConfiguration) {
		t.Fatalf("expected mode error, got %v", err)
	}
}

func TestValidateMedia(t *testing.T) {
	dir := t.TempDir()
	video := filepath.Join(dir, "clip.MP4")
	doc := filepath.Join(dir, "notes.txt")
	for _, p := range []string{video, doc} {
		if err := os.WriteFile(p, []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	ok := Config{Input: video, WhisperModel: "m.bin"}
	if err := ok.ValidateMedia(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, c := range []Config{
		{Input: "", WhisperModel: "m.bin"},
		{Input: filepath.Join(dir, "missing.mp4"), WhisperModel: "m.bin"},
		{Input: doc, WhisperModel: "m.bin"},
	} {
		if err := c.ValidateMedia(); !errors.Is(err, faults.ErrInput) {
			t.Fatalf("expected input error for %q, got %v", c.Input, err)
		}
	}
}

func TestSegmentFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "lecture.json")
	transcript := `{"segments":[{"start":0,"end":2,"text":"One. Two.","words":[
		{"start":0,"end":0.5,"word":"One."},{"start":1,"end":1.5,"word":"Two."}]}]}`
	if err := os.WriteFile(in, []byte(transcript), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	out, path, err := SegmentFile(Config{Input: in, OutDir: filepath.Join(dir, "out"), Segment: cues.DefaultOptions()})
	if err != nil {
		t.Fatalf("segment: %v", err)
	}
	if filepath.Base(path) != "lecture_en.srt" || len(out) != 2 {
		t.Fatalf("unexpected result %s %+v", path, out)
	}
	back, err := subtitles.ReadSRTFile(path)
	if err != nil || len(back) != 2 || back[1].Text != "Two." {
		t.Fatalf("unexpected srt %+v %v", back, err)
	}

	if _, _, err := SegmentFile(Config{Input: filepath.Join(dir, "missing.json")}); !errors.Is(err, faults.ErrInput) {
		t.Fatalf("expected input error, got %v", err)
	}
}

func TestTranslateFile_UnavailableEngine(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "talk.en.srt")
	if err := os.WriteFile(in, []byte("1\n00:00:00,000 --> 00:00:01,000\nHello\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := Config{
		Input:      in,
		OutDir:     filepath.Join(dir, "out"),
		SourceLang: "en",
		TargetLang: "ko",
		Engine:     config.EngineDeepL,
	}
	_, _, err := TranslateFile(context.Background(), cfg)
	if !errors.Is(err, faults.ErrUnavailable) {
		t.Fatalf("expected unavailable error without an API key, got %v", err)
	}
}

func TestTranslateFile_UnavailableKeepsInputBytes(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "movie_en.srt")
	original := "\ufeff1\n00:00:00,000 --> 00:00:01,000 X1:10 X2:20\nHello\n\n7\n00:00:02,000 --> 00:00:03,000\n   \n"
	if err := os.WriteFile(in, []byte(original), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg := Config{
		Input:      in,
		OutDir:     dir,
		SourceLang: "en",
		TargetLang: "ko",
		Engine:     config.EngineDeepL,
	}
	if _, _, err := TranslateFile(context.Background(), cfg); !errors.Is(err, faults.ErrUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	b, err := os.ReadFile(in)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != original {
		t.Fatalf("input was rewritten:\n%q", b)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Fatalf("expected only the input in %s, got %v", dir, entries)
	}
}

func TestLockJob_Exclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.lock")
	unlock, err := lockJob(path)
	if err != nil {
		t.Fatalf("lock: %v", err)
	}
	if _, err := lockJob(path); err == nil {
		t.Fatalf("expected second lock to fail")
	}
	unlock()
	again, err := lockJob(path)
	if err != nil {
		t.Fatalf("relock: %v", err)
	}
	again()
}
