package cues

import (
	"fmt"
	"strings"

	"github.com/forPelevin/subcue/internal/types"
)

const DefaultMaxCharsPerCue = 40

// Mode selects how segments are turned into cues.
type Mode string

const (
	// ModeWords re-chunks word tokens by length and sentence punctuation.
	ModeWords Mode = "words"
	// ModeSegments emits one cue per recognized segment.
	ModeSegments Mode = "segments"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeWords:
		return ModeWords, nil
	case ModeSegments:
		return ModeSegments, nil
	default:
		return "", fmt.Errorf("unknown segmentation mode %q (want %q or %q)", s, ModeWords, ModeSegments)
	}
}

type Options struct {
	MaxCharsPerCue int
	Mode           Mode
}

func DefaultOptions() Options {
	return Options{MaxCharsPerCue: DefaultMaxCharsPerCue, Mode: ModeWords}
}

func (o Options) normalized() Options {
	if o.MaxCharsPerCue <= 0 {
		o.MaxCharsPerCue = DefaultMaxCharsPerCue
	}
	if o.Mode == "" {
		o.Mode = ModeWords
	}
	return o
}

// Segment converts recognized segments into an ordered cue sequence with
// indices 1..N. Segments without word timing, or whose words are all
// blank, become a single cue.
func Segment(tr types.Transcript, opts Options) []types.Cue {
	opts = opts.normalized()
	b := builder{max: opts.MaxCharsPerCue}
	for _, s := range tr.Segments {
		if opts.Mode == ModeSegments || len(s.Words) == 0 {
			b.emitSegment(s)
			continue
		}
		kept := 0
		for _, w := range s.Words {
			if b.push(w) {
				kept++
			}
		}
		if kept == 0 {
			b.emitSegment(s)
			continue
		}
		b.flush()
	}
	return b.out
}

type builder struct {
	max int
	out []types.Cue

	buf []chunkWord
	n   int
}

type chunkWord struct {
	text       string
	start, end float64
}

// push buffers w and reports whether it carried text.
func (b *builder) push(w types.Word) bool {
	text := strings.TrimSpace(w.Word)
	if text == "" {
		return false
	}
	start, end := clampRange(w.Start, w.End)
	b.buf = append(b.buf, chunkWord{text: text, start: start, end: end})
	b.n += len(text) + 1
	if b.n >= b.max || endsSentence(text) {
		b.flush()
	}
	return true
}

func (b *builder) flush() {
	if len(b.buf) == 0 {
		return
	}
	parts := make([]string, len(b.buf))
	for i, w := range b.buf {
		parts[i] = w.text
	}
	b.emit(b.buf[0].start, b.buf[len(b.buf)-1].end, strings.Join(parts, " "))
	b.buf = b.buf[:0]
	b.n = 0
}

func (b *builder) emitSegment(s types.Segment) {
	text := strings.TrimSpace(s.Text)
	if text == "" {
		return
	}
	start, end := clampRange(s.Start, s.End)
	b.emit(start, end, text)
}

func (b *builder) emit(start, end float64, text string) {
	// Out-of-order word timing can put the last end before the first start.
	if end < start {
		end = start
	}
	b.out = append(b.out, types.Cue{
		Index: len(b.out) + 1,
		Start: start,
		End:   end,
		Text:  text,
	})
}

func endsSentence(s string) bool {
	return strings.HasSuffix(s, ".") || strings.HasSuffix(s, "?") || strings.HasSuffix(s, "!")
}

func clampRange(start, end float64) (float64, float64) {
	if start < 0 {
		start = 0
	}
	if end < start {
		end = start
	}
	return start, end
}

// Validate reports the first violated cue-sequence invariant.
func Validate(cs []types.Cue) error {
	prevStart := 0.0
	for i, c := range cs {
		if c.Index != i+1 {
			return fmt.Errorf("cue %d: index %d, want %d", i, c.Index, i+1)
		}
		if c.End < c.Start {
			return fmt.Errorf("cue %d: end %.3f before start %.3f", c.Index, c.End, c.Start)
		}
		if strings.TrimSpace(c.Text) == "" {
			return fmt.Errorf("cue %d: empty text", c.Index)
		}
		if i > 0 && c.Start < prevStart {
			return fmt.Errorf("cue %d: start %.3f before previous start %.3f", c.Index, c.Start, prevStart)
		}
		prevStart = c.Start
	}
	return nil
}
