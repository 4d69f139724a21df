package transcache

import (
	"context"
	"log/slog"
	"strings"

	"github.com/forPelevin/subcue/internal/ports"
)

// Translator is a read-through cache in front of another Translator. Cache
// failures are logged and never fail a translation.
type Translator struct {
	inner ports.Translator
	store *Store
	scope Scope
	log   *slog.Logger
}

// Scope is the part of the cache key fixed for one translator: everything
// that changes the output for the same text and emotion.
type Scope struct {
	Engine string
	Model  string
	Source string
	Target string
}

func Wrap(inner ports.Translator, store *Store, scope Scope, log *slog.Logger) *Translator {
	if log == nil {
		log = slog.Default()
	}
	return &Translator{inner: inner, store: store, scope: scope, log: log}
}

func (t *Translator) Translate(ctx context.Context, text, emotion string) (string, error) {
	k := Key{
		Engine:  t.scope.Engine,
		Model:   t.scope.Model,
		Source:  t.scope.Source,
		Target:  t.scope.Target,
		Emotion: strings.ToLower(strings.TrimSpace(emotion)),
		Text:    text,
	}
	if got, ok, err := t.store.Get(ctx, k); err != nil {
		t.log.Debug("translation cache lookup failed", "err", err)
	} else if ok {
		return got, nil
	}

	out, err := t.inner.Translate(ctx, text, emotion)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) != "" {
		if err := t.store.Put(ctx, k, out); err != nil {
			t.log.Debug("translation cache store failed", "err", err)
		}
	}
	return out, nil
}

func (t *Translator) ConcurrencySafe() bool {
	if cs, ok := t.inner.(ports.ConcurrencySafety); ok {
		return cs.ConcurrencySafe()
	}
	return true
}

func (t *Translator) Available(ctx context.Context) error {
	if a, ok := t.inner.(ports.Availability); ok {
		return a.Available(ctx)
	}
	return nil
}
