package ports

import (
	"context"
	"time"

	"github.com/forPelevin/subcue/internal/types"
)

type VideoTool interface {
	ExtractAudioMono16k(ctx context.Context, inMedia, outWav string) error
	ProbeDuration(ctx context.Context, inMedia string) (time.Duration, error)
}

type ASR interface {
	Transcribe(ctx context.Context, wavPath, cacheDir string) (types.Transcript, error)
}

// Translator renders text in the target language. emotion is an advisory
// style hint and may be empty.
type Translator interface {
	Translate(ctx context.Context, text, emotion string) (string, error)
}

// EmotionLookup classifies the audio window [start, end] (seconds).
type EmotionLookup interface {
	Predict(ctx context.Context, start, end float64) (string, error)
}

// Availability is implemented by collaborators that can tell whether they
// are configured and reachable. A nil error means usable.
type Availability interface {
	Available(ctx context.Context) error
}

// ConcurrencySafety is implemented by translators that cannot serve
// concurrent calls. Callers must serialize access when it returns false.
type ConcurrencySafety interface {
	ConcurrencySafe() bool
}
