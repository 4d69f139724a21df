// Package translation fans cue translation out to a Translator under a
// concurrency bound and re-joins the results in input order.
package translation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/forPelevin/subcue/internal/ports"
	"github.com/forPelevin/subcue/internal/types"
)

const (
	DefaultConcurrency = 5
	DefaultEmotion     = "neutral"
)

// State is the lifecycle position of a single cue within one Translate call.
type State int

const (
	Pending State = iota
	InFlight
	Translated
	FallenBack
	Skipped
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case InFlight:
		return "in_flight"
	case Translated:
		return "translated"
	case FallenBack:
		return "fallen_back"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

var (
	ErrBlankTranslation = errors.New("translator returned blank text")
	ErrTranslatorPanic  = errors.New("translator panic")
)

type Options struct {
	Concurrency    int
	Emotion        ports.EmotionLookup
	DefaultEmotion string
	Logger         *slog.Logger
}

type Failure struct {
	Index int
	Err   error
}

type Report struct {
	States   []State
	Failures []Failure
}

func (r Report) Count(s State) int {
	n := 0
	for _, st := range r.States {
		if st == s {
			n++
		}
	}
	return n
}

// Translate returns a new cue slice where position i always corresponds to
// in[i]. A cue whose translation fails or comes back blank keeps its original
// text; such failures are logged and listed in the report, never returned.
// When ctx ends, cues not yet translated keep their original text.
func Translate(ctx context.Context, in []types.Cue, tr ports.Translator, opts Options) ([]types.Cue, Report) {
	out := make([]types.Cue, len(in))
	copy(out, in)
	rep := Report{States: make([]State, len(in))}
	if len(in) == 0 {
		return out, rep
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	limit := opts.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if cs, ok := tr.(ports.ConcurrencySafety); ok && !cs.ConcurrencySafe() {
		limit = 1
	}
	fallbackEmotion := strings.TrimSpace(opts.DefaultEmotion)
	if fallbackEmotion == "" {
		fallbackEmotion = DefaultEmotion
	}

	var (
		mu  sync.Mutex
		g   errgroup.Group
		sem = semaphore.NewWeighted(int64(limit))
	)
	fail := func(i int, err error) {
		rep.States[i] = FallenBack
		mu.Lock()
		rep.Failures = append(rep.Failures, Failure{Index: in[i].Index, Err: err})
		mu.Unlock()
		log.Warn("cue translation failed, keeping original text",
			"cue", in[i].Index,
			"err", err)
	}

	for i := range in {
		text := normalizeText(in[i].Text)
		if text == "" {
			rep.States[i] = Skipped
			continue
		}
		if ctx.Err() != nil {
			fail(i, ctx.Err())
			continue
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			fail(i, err)
			continue
		}
		rep.States[i] = InFlight
		g.Go(func() error {
			defer sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					fail(i, fmt.Errorf("%w: %v", ErrTranslatorPanic, r))
				}
			}()
			emotion := resolveEmotion(ctx, in[i], opts.Emotion, fallbackEmotion, log)
			got, err := tr.Translate(ctx, text, emotion)
			if err == nil && strings.TrimSpace(got) == "" {
				err = ErrBlankTranslation
			}
			if err != nil {
				fail(i, err)
				return nil
			}
			out[i] = in[i].WithText(strings.TrimSpace(got))
			rep.States[i] = Translated
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(rep.Failures, func(a, b int) bool {
		return rep.Failures[a].Index < rep.Failures[b].Index
	})

	log.Info("cue translation finished",
		"cues", len(in),
		"translated", rep.Count(Translated),
		"fallen_back", rep.Count(FallenBack),
		"skipped", rep.Count(Skipped))
	return out, rep
}
