package translation

import (
	"context"
	"log/slog"
	"strings"

	"github.com/forPelevin/subcue/internal/ports"
	"github.com/forPelevin/subcue/internal/types"
)

// normalizeText trims the cue text and folds line breaks into single spaces.
func normalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	lines := strings.Split(s, "\n")
	parts := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			parts = append(parts, l)
		}
	}
	return strings.Join(parts, " ")
}

// resolveEmotion asks the lookup for the cue window. Any failure or blank
// label yields fallback; the lookup never fails the cue.
func resolveEmotion(ctx context.Context, c types.Cue, lookup ports.EmotionLookup, fallback string, log *slog.Logger) string {
	if lookup == nil {
		return fallback
	}
	label, err := lookup.Predict(ctx, c.Start, c.End)
	if err != nil {
		log.Debug("emotion lookup failed", "cue", c.Index, "err", err)
		return fallback
	}
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" {
		return fallback
	}
	return label
}
