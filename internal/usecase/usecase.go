package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/forPelevin/subcue/internal/domain/cues"
	"github.com/forPelevin/subcue/internal/domain/subtitles"
	"github.com/forPelevin/subcue/internal/domain/translation"
	"github.com/forPelevin/subcue/internal/faults"
	"github.com/forPelevin/subcue/internal/ports"
	"github.com/forPelevin/subcue/internal/types"
)

type Deps struct {
	Video ports.VideoTool
	ASR   ports.ASR
	// Translator is optional; nil produces source subtitles only.
	Translator ports.Translator
	// Emotion builds a lookup over the extracted audio; nil disables it.
	Emotion func(wavPath string) ports.EmotionLookup
	Logger  *slog.Logger
	Now     func() time.Time
}

type Usecase struct{ d Deps }

func New(d Deps) Usecase {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return Usecase{d: d}
}

type Input struct {
	InputMedia string
	CacheDir   string
	OutDir     string
	// BaseName prefixes output files; defaults to the input file name.
	BaseName   string
	SourceLang string
	TargetLang string
	Engine     string
	Segment    cues.Options
	Translate  TranslateOptions
	KeepAudio  bool
	// WriteASS adds an .ass rendition of every subtitle file.
	WriteASS   bool
}

type TranslateOptions struct {
	Concurrency    int
	DefaultEmotion string
}

type Result struct {
	Manifest   types.Manifest
	SourceCues []types.Cue
	TargetCues []types.Cue
	Report     translation.Report
}

// Run extracts audio, transcribes it, writes the source subtitles and, when
// a translator is usable, the translated subtitles.
func (u Usecase) Run(ctx context.Context, in Input) (Result, error) {
	log := u.d.Logger
	if err := os.MkdirAll(in.CacheDir, 0o755); err != nil {
		return Result{}, faults.Wrap(faults.ErrInput, "usecase", "create cache dir", err)
	}
	if err := os.MkdirAll(in.OutDir, 0o755); err != nil {
		return Result{}, faults.Wrap(faults.ErrInput, "usecase", "create output dir", err)
	}

	wav := filepath.Join(in.CacheDir, "audio.wav")
	log.Info("extracting audio", "input", in.InputMedia)
	if err := u.d.Video.ExtractAudioMono16k(ctx, in.InputMedia, wav); err != nil {
		return Result{}, err
	}
	if !in.KeepAudio {
		defer func() {
			if err := os.Remove(wav); err != nil && !os.IsNotExist(err) {
				log.Warn("remove temporary audio", "path", wav, "err", err)
			}
		}()
	}
	if d, err := u.d.Video.ProbeDuration(ctx, in.InputMedia); err != nil {
		log.Warn("probe duration failed", "err", err)
	} else {
		log.Info("media duration", "duration", d.Round(time.Millisecond).String())
	}

	log.Info("transcribing audio")
	tr, err := u.d.ASR.Transcribe(ctx, wav, in.CacheDir)
	if err != nil {
		return Result{}, err
	}
	if err := writeJSON(filepath.Join(in.CacheDir, "transcript.json"), tr); err != nil {
		log.Warn("save transcript", "err", err)
	}

	src := firstNonEmpty(tr.Language, in.SourceLang, "en")
	sourceCues := cues.Segment(tr, in.Segment)
	log.Info("segmented transcript", "segments", len(tr.Segments), "cues", len(sourceCues))
	if err := cues.Validate(sourceCues); err != nil {
		log.Warn("cue invariants violated", "err", err)
	}

	var lookup ports.EmotionLookup
	if u.d.Emotion != nil {
		lookup = u.d.Emotion(wav)
		if a, ok := lookup.(ports.Availability); ok {
			if err := a.Available(ctx); err != nil {
				log.Warn("emotion lookup unavailable, using default emotion", "err", err)
				lookup = nil
			}
		}
	}

	return u.finish(ctx, in, src, sourceCues, lookup, u.translatorUsable(ctx, in))
}

// TranslateCues translates already segmented cues, writes both subtitle
// files and returns the manifest. It backs the translate command. Nothing is
// written when the translator is not usable, and a source file that is the
// input itself is left untouched.
func (u Usecase) TranslateCues(ctx context.Context, in Input, sourceCues []types.Cue) (Result, error) {
	if err := u.translatorReady(ctx, in); err != nil {
		return Result{}, faults.Wrap(faults.ErrUnavailable, "translate", "translator is not usable", err)
	}
	if err := os.MkdirAll(in.OutDir, 0o755); err != nil {
		return Result{}, faults.Wrap(faults.ErrInput, "usecase", "create output dir", err)
	}
	return u.finish(ctx, in, firstNonEmpty(in.SourceLang, "en"), sourceCues, nil, true)
}

func (u Usecase) finish(ctx context.Context, in Input, src string, sourceCues []types.Cue, lookup ports.EmotionLookup, translate bool) (Result, error) {
	log := u.d.Logger
	base := in.BaseName
	if base == "" {
		base = strings.TrimSuffix(filepath.Base(in.InputMedia), filepath.Ext(in.InputMedia))
	}

	res := Result{SourceCues: sourceCues}
	m := types.Manifest{
		RunID:     uuid.NewString(),
		Input:     in.InputMedia,
		Language:  src,
		Cues:      len(sourceCues),
		SourceSRT: base + "_" + src + ".srt",
	}
	if srcPath := filepath.Join(in.OutDir, m.SourceSRT); sameFile(srcPath, in.InputMedia) {
		log.Info("source subtitles are the input, leaving them as is", "path", srcPath)
	} else {
		if err := subtitles.WriteSRTFile(srcPath, sourceCues); err != nil {
			return Result{}, faults.Wrap(faults.ErrInput, "usecase", "write source subtitles", err)
		}
		log.Info("source subtitles written", "path", m.SourceSRT, "cues", len(sourceCues))
	}
	if in.WriteASS {
		m.SourceASS = base + "_" + src + ".ass"
		if err := subtitles.WriteASSFile(filepath.Join(in.OutDir, m.SourceASS), sourceCues); err != nil {
			return Result{}, faults.Wrap(faults.ErrInput, "usecase", "write source ass", err)
		}
	}

	if translate {
		target := strings.TrimSpace(in.TargetLang)
		out, rep := translation.Translate(ctx, sourceCues, u.d.Translator, translation.Options{
			Concurrency:    in.Translate.Concurrency,
			Emotion:        lookup,
			DefaultEmotion: in.Translate.DefaultEmotion,
			Logger:         log,
		})
		m.TargetLang = target
		m.Engine = in.Engine
		m.TargetSRT = base + "_" + target + ".srt"
		if err := subtitles.WriteSRTFile(filepath.Join(in.OutDir, m.TargetSRT), out); err != nil {
			return Result{}, faults.Wrap(faults.ErrInput, "usecase", "write translated subtitles", err)
		}
		if in.WriteASS {
			m.TargetASS = base + "_" + target + ".ass"
			if err := subtitles.WriteASSFile(filepath.Join(in.OutDir, m.TargetASS), out); err != nil {
				return Result{}, faults.Wrap(faults.ErrInput, "usecase", "write translated ass", err)
			}
		}
		log.Info("translated subtitles written", "path", m.TargetSRT)

		m.Translated = rep.Count(translation.Translated)
		m.FallenBack = rep.Count(translation.FallenBack)
		m.Skipped = rep.Count(translation.Skipped)
		for _, f := range rep.Failures {
			m.Failures = append(m.Failures, types.ManifestFailure{Index: f.Index, Error: f.Err.Error()})
		}
		res.TargetCues = out
		res.Report = rep
	}

	m.GeneratedAt = u.d.Now().UTC().Format(time.RFC3339)
	res.Manifest = m
	return res, ctx.Err()
}

var (
	errNoTranslator = errors.New("translation disabled")
	errNoTarget     = errors.New("no target language")
)

// translatorReady returns nil when cues can be sent to the translator.
func (u Usecase) translatorReady(ctx context.Context, in Input) error {
	if u.d.Translator == nil {
		return errNoTranslator
	}
	if strings.TrimSpace(in.TargetLang) == "" {
		return errNoTarget
	}
	if a, ok := u.d.Translator.(ports.Availability); ok {
		return a.Available(ctx)
	}
	return nil
}

func (u Usecase) translatorUsable(ctx context.Context, in Input) bool {
	err := u.translatorReady(ctx, in)
	switch {
	case err == nil:
		return true
	case errors.Is(err, errNoTranslator):
		u.d.Logger.Info("translation disabled")
	default:
		u.d.Logger.Warn("translator unavailable, writing source subtitles only", "err", err)
	}
	return false
}

// sameFile reports whether a and b name the same existing file.
func sameFile(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	sa, err := os.Stat(a)
	if err != nil {
		return false
	}
	sb, err := os.Stat(b)
	if err != nil {
		return false
	}
	return os.SameFile(sa, sb)
}

// WriteManifest stores m as indented JSON.
func WriteManifest(path string, m types.Manifest) error {
	return writeJSON(path, m)
}

func writeJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, b, 0o644)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
