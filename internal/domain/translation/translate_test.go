package translation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/forPelevin/subcue/internal/types"
)

type fakeTranslator struct {
	failOn   map[string]bool
	panicOn  map[string]bool
	blankOn  map[string]bool
	maxDelay time.Duration
	unsafe   bool
	onCall   func(n int64)

	calls    atomic.Int64
	inFlight atomic.Int64
	peak     atomic.Int64

	mu       sync.Mutex
	emotions map[string]string
}

func (f *fakeTranslator) Translate(ctx context.Context, text, emotion string) (string, error) {
	n := f.calls.Add(1)
	cur := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if cur <= p || f.peak.CompareAndSwap(p, cur) {
			break
		}
	}

	f.mu.Lock()
	if f.emotions == nil {
		f.emotions = map[string]string{}
	}
	f.emotions[text] = emotion
	f.mu.Unlock()

	if f.onCall != nil {
		f.onCall(n)
	}
	if f.maxDelay > 0 {
		d := time.Duration(rand.Int63n(int64(f.maxDelay)))
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if f.panicOn[text] {
		var m map[string]int
		m[text]++
	}
	if f.failOn[text] {
		return "", errors.New("quota exceeded")
	}
	if f.blankOn[text] {
		return "   ", nil
	}
	return "T(" + text + ")", nil
}

func (f *fakeTranslator) ConcurrencySafe() bool { return !f.unsafe }

func (f *fakeTranslator) emotionFor(text string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.emotions[text]
}

type fakeEmotion struct {
	labels map[float64]string
	errs   map[float64]bool
}

func (f fakeEmotion) Predict(_ context.Context, start, _ float64) (string, error) {
	if f.errs[start] {
		return "", errors.New("classifier offline")
	}
	return f.labels[start], nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func makeCues(n int) []types.Cue {
	out := make([]types.Cue, n)
	for i := range out {
		out[i] = types.Cue{
			Index: i + 1,
			Start: float64(i),
			End:   float64(i) + 0.75,
			Text:  fmt.Sprintf("cue %d", i+1),
		}
	}
	return out
}

func TestTranslate_EmptyInputMakesNoCalls(t *testing.T) {
	tr := &fakeTranslator{}
	out, rep := Translate(context.Background(), nil, tr, Options{Logger: quietLogger()})
	if len(out) != 0 || len(rep.States) != 0 || len(rep.Failures) != 0 {
		t.Fatalf("expected empty result, got %+v %+v", out, rep)
	}
	if tr.calls.Load() != 0 {
		t.Fatalf("expected zero translator calls, got %d", tr.calls.Load())
	}
}

func TestTranslate_PreservesOrderUnderRandomLatency(t *testing.T) {
	in := makeCues(60)
	tr := &fakeTranslator{maxDelay: 5 * time.Millisecond}

	out, rep := Translate(context.Background(), in, tr, Options{Concurrency: 8, Logger: quietLogger()})
	if len(out) != len(in) {
		t.Fatalf("expected %d cues, got %d", len(in), len(out))
	}
	for i := range in {
		if out[i].Index != in[i].Index || out[i].Start != in[i].Start || out[i].End != in[i].End {
			t.Fatalf("position %d: timing/index changed: %+v vs %+v", i, out[i], in[i])
		}
		if want := "T(" + in[i].Text + ")"; out[i].Text != want {
			t.Fatalf("position %d: text = %q, want %q", i, out[i].Text, want)
		}
	}
	if got := rep.Count(Translated); got != len(in) {
		t.Fatalf("expected %d translated, got %d", len(in), got)
	}
	if in[0].Text != "cue 1" {
		t.Fatalf("input slice was mutated: %+v", in[0])
	}
}

func TestTranslate_FallbackIsolatedToFailingCue(t *testing.T) {
	in := makeCues(5)
	tr := &fakeTranslator{failOn: map[string]bool{"cue 3": true}, maxDelay: time.Millisecond}

	out, rep := Translate(context.Background(), in, tr, Options{Logger: quietLogger()})
	for i, c := range out {
		if c.Index == 3 {
			if c.Text != "cue 3" {
				t.Fatalf("expected original text for cue 3, got %q", c.Text)
			}
			continue
		}
		if want := "T(" + in[i].Text + ")"; c.Text != want {
			t.Fatalf("cue %d text = %q, want %q", c.Index, c.Text, want)
		}
	}
	if len(rep.Failures) != 1 || rep.Failures[0].Index != 3 {
		t.Fatalf("expected one failure for cue 3, got %+v", rep.Failures)
	}
	if rep.States[2] != FallenBack {
		t.Fatalf("expected cue 3 fallen back, got %s", rep.States[2])
	}
}

func TestTranslate_PanickingCueFallsBackAlone(t *testing.T) {
	in := makeCues(5)
	tr := &fakeTranslator{panicOn: map[string]bool{"cue 3": true}, maxDelay: time.Millisecond}

	out, rep := Translate(context.Background(), in, tr, Options{Concurrency: 2, Logger: quietLogger()})
	for i, c := range out {
		want := "T(" + in[i].Text + ")"
		if c.Index == 3 {
			want = "cue 3"
		}
		if c.Text != want {
			t.Fatalf("cue %d text = %q, want %q", c.Index, c.Text, want)
		}
	}
	if rep.Count(Translated) != 4 || rep.States[2] != FallenBack {
		t.Fatalf("unexpected states %v", rep.States)
	}
	if len(rep.Failures) != 1 || !errors.Is(rep.Failures[0].Err, ErrTranslatorPanic) {
		t.Fatalf("expected one panic failure, got %+v", rep.Failures)
	}
	if got := tr.inFlight.Load(); got != 0 {
		t.Fatalf("expected in-flight counter released, got %d", got)
	}
}

func TestTranslate_BlankResultFallsBack(t *testing.T) {
	in := makeCues(2)
	tr := &fakeTranslator{blankOn: map[string]bool{"cue 2": true}}

	out, rep := Translate(context.Background(), in, tr, Options{Logger: quietLogger()})
	if out[1].Text != "cue 2" {
		t.Fatalf("expected original text, got %q", out[1].Text)
	}
	if len(rep.Failures) != 1 || !errors.Is(rep.Failures[0].Err, ErrBlankTranslation) {
		t.Fatalf("expected blank translation failure, got %+v", rep.Failures)
	}
}

func TestTranslate_RespectsConcurrencyLimit(t *testing.T) {
	tests := []struct {
		name   string
		limit  int
		unsafe bool
		want   int64
	}{
		{name: "limit 2", limit: 2, want: 2},
		{name: "default", limit: 0, want: DefaultConcurrency},
		{name: "unsafe backend serialized", limit: 4, unsafe: true, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &fakeTranslator{maxDelay: 3 * time.Millisecond, unsafe: tt.unsafe}
			Translate(context.Background(), makeCues(10+int(tt.want)*4), tr, Options{Concurrency: tt.limit, Logger: quietLogger()})
			if got := tr.peak.Load(); got > tt.want {
				t.Fatalf("observed %d concurrent calls, limit %d", got, tt.want)
			}
		})
	}
}

func TestTranslate_NormalizesTextAndSkipsBlank(t *testing.T) {
	in := []types.Cue{
		{Index: 1, Start: 0, End: 1, Text: " first line\r\nsecond line \n"},
		{Index: 2, Start: 1, End: 2, Text: " \n "},
	}
	tr := &fakeTranslator{}

	out, rep := Translate(context.Background(), in, tr, Options{Logger: quietLogger()})
	if out[0].Text != "T(first line second line)" {
		t.Fatalf("unexpected normalized translation %q", out[0].Text)
	}
	if rep.States[1] != Skipped || out[1].Text != in[1].Text {
		t.Fatalf("expected blank cue skipped untouched, got %s %q", rep.States[1], out[1].Text)
	}
	if tr.calls.Load() != 1 {
		t.Fatalf("expected 1 translator call, got %d", tr.calls.Load())
	}
}

func TestTranslate_EmotionLookupIsAdvisory(t *testing.T) {
	in := makeCues(3)
	lookup := fakeEmotion{
		labels: map[float64]string{0: " Happy ", 2: ""},
		errs:   map[float64]bool{1: true},
	}
	tr := &fakeTranslator{}

	out, rep := Translate(context.Background(), in, tr, Options{Emotion: lookup, DefaultEmotion: "calm", Logger: quietLogger()})
	if rep.Count(Translated) != 3 {
		t.Fatalf("emotion lookup failures must not fail cues: %+v", rep)
	}
	want := map[string]string{"cue 1": "happy", "cue 2": "calm", "cue 3": "calm"}
	for text, emo := range want {
		if got := tr.emotionFor(text); got != emo {
			t.Fatalf("emotion for %q = %q, want %q", text, got, emo)
		}
	}
	if !strings.HasPrefix(out[0].Text, "T(") {
		t.Fatalf("unexpected output %q", out[0].Text)
	}
}

func TestTranslate_DefaultEmotionWithoutLookup(t *testing.T) {
	tr := &fakeTranslator{}
	Translate(context.Background(), makeCues(1), tr, Options{Logger: quietLogger()})
	if got := tr.emotionFor("cue 1"); got != DefaultEmotion {
		t.Fatalf("expected %q, got %q", DefaultEmotion, got)
	}
}

func TestTranslate_CancellationKeepsCompletedWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tr := &fakeTranslator{onCall: func(n int64) {
		if n == 3 {
			cancel()
		}
	}}
	in := makeCues(5)

	out, rep := Translate(ctx, in, tr, Options{Concurrency: 1, Logger: quietLogger()})
	wantStates := []State{Translated, Translated, FallenBack, FallenBack, FallenBack}
	for i, want := range wantStates {
		if rep.States[i] != want {
			t.Fatalf("cue %d state = %s, want %s", i+1, rep.States[i], want)
		}
	}
	if out[0].Text != "T(cue 1)" || out[4].Text != "cue 5" {
		t.Fatalf("unexpected texts after cancel: %+v", out)
	}
	for _, f := range rep.Failures {
		if !errors.Is(f.Err, context.Canceled) {
			t.Fatalf("expected context.Canceled for cue %d, got %v", f.Index, f.Err)
		}
	}
	if got := tr.inFlight.Load(); got != 0 {
		t.Fatalf("expected no in-flight calls after return, got %d", got)
	}
}

func TestNormalizeText(t *testing.T) {
	tests := map[string]string{
		"":                  "",
		"  a  ":             "a",
		"a\nb":              "a b",
		"a\r\n\r\nb\rc":     "a b c",
		"keep  inner space": "keep  inner space",
	}
	for in, want := range tests {
		if got := normalizeText(in); got != want {
			t.Fatalf("normalizeText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestStateString(t *testing.T) {
	if InFlight.String() != "in_flight" || State(42).String() != "unknown" {
		t.Fatalf("unexpected state names")
	}
}
