package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/forPelevin/subcue/internal/faults"
)

const (
	defaultModel      = "openai/gpt-4o-mini"
	defaultTimeout    = 90 * time.Second
	defaultMaxRetries = 3
	retryBaseDelay    = time.Second
	retryMaxDelay     = 20 * time.Second
	temperature       = 0.3
)

type Config struct {
	APIKey     string
	Model      string
	BaseURL    string
	SourceLang string // English display name, e.g. "English"
	TargetLang string // English display name, e.g. "Korean"
	Timeout    time.Duration
	MaxRetries int
	// RequestsPerMinute throttles outgoing requests; 0 disables throttling.
	RequestsPerMinute int
	HTTPClient        *http.Client
}

// Adapter translates single cue texts through the OpenRouter chat
// completions API.
type Adapter struct {
	key        string
	model      string
	baseURL    string
	source     string
	target     string
	timeout    time.Duration
	maxRetries int
	limiter    *rate.Limiter
	client     *http.Client
	sleep      func(ctx context.Context, d time.Duration) error
}

func New(cfg Config) *Adapter {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = defaultMaxRetries
	}
	source := strings.TrimSpace(cfg.SourceLang)
	if source == "" {
		source = "English"
	}
	target := strings.TrimSpace(cfg.TargetLang)
	if target == "" {
		target = "Korean"
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	return &Adapter{
		key:        strings.TrimSpace(cfg.APIKey),
		model:      model,
		baseURL:    normalizeBaseURL(cfg.BaseURL),
		source:     source,
		target:     target,
		timeout:    timeout,
		maxRetries: retries,
		limiter:    rate.NewLimiter(limit, 1),
		client:     client,
		sleep:      sleepCtx,
	}
}

// Available reports whether an API key is configured.
func (a *Adapter) Available(context.Context) error {
	if a.key == "" {
		return faults.Wrap(faults.ErrUnavailable, "openrouter", "OPENROUTER_API_KEY is not set", nil)
	}
	return nil
}

// ConcurrencySafe reports that the adapter may be called from several
// goroutines at once.
func (a *Adapter) ConcurrencySafe() bool { return true }

func (a *Adapter) Translate(ctx context.Context, text, emotion string) (string, error) {
	if err := a.Available(ctx); err != nil {
		return "", err
	}
	body, err := json.Marshal(a.buildRequest(text, emotion))
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			delay, retry := retryDelay(lastErr, attempt)
			if !retry {
				break
			}
			if err := a.sleep(ctx, delay); err != nil {
				return "", err
			}
		}
		if err := a.limiter.Wait(ctx); err != nil {
			return "", err
		}
		out, err := a.do(ctx, body)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", lastErr
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Stream      bool          `json:"stream"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

func (a *Adapter) buildRequest(text, emotion string) chatRequest {
	return chatRequest{
		Model:       a.model,
		Temperature: temperature,
		Messages: []chatMessage{
			{Role: "system", Content: buildSystemPrompt(a.source, a.target, emotion)},
			{Role: "user", Content: "Text: '" + text + "'"},
		},
	}
}

func buildSystemPrompt(source, target, emotion string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a professional subtitle translator. Translate %s to %s. ", source, target)
	b.WriteString("Output ONLY the translated text. Do NOT add notes, explanations, or parentheses.")
	emotion = strings.ToLower(strings.TrimSpace(emotion))
	if emotion != "" && emotion != "neutral" {
		fmt.Fprintf(&b, " The speaker feels '%s'. ", emotion)
		fmt.Fprintf(&b, "Reflect this emotion ONLY through %s nuances, sentence endings, and punctuation. ", target)
		b.WriteString("Do NOT add descriptive text like (sad) or (angry).")
	}
	return b.String()
}

type statusError struct {
	Code       int
	Body       string
	RetryAfter time.Duration
}

func (e *statusError) Error() string {
	return fmt.Sprintf("openrouter status %d: %s", e.Code, e.Body)
}

func (a *Adapter) do(ctx context.Context, body []byte) (string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, a.baseURL+"/api/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+a.key)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		if ctx.Err() == nil && errors.Is(reqCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("openrouter timeout after %s (model=%s): %w", a.timeout, a.model, reqCtx.Err())
		}
		return "", fmt.Errorf("openrouter request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		rb, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return "", &statusError{
			Code:       resp.StatusCode,
			Body:       truncate(redactSecrets(strings.TrimSpace(string(rb)), a.key), 400),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var raw struct {
		Choices []struct {
			Message struct {
				Content any `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return "", fmt.Errorf("openrouter decode response: %w", err)
	}
	if raw.Error != nil {
		return "", fmt.Errorf("openrouter api error: %s", strings.TrimSpace(raw.Error.Message))
	}
	if len(raw.Choices) == 0 {
		return "", errors.New("openrouter: no choices in response")
	}
	content, err := messageContentToString(raw.Choices[0].Message.Content)
	if err != nil {
		return "", err
	}
	return cleanTranslation(content), nil
}

func messageContentToString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case []any:
		// Some providers return an array of {type,text} parts.
		var b strings.Builder
		for _, it := range x {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			if t, ok := m["text"].(string); ok {
				b.WriteString(t)
			}
		}
		s := b.String()
		if strings.TrimSpace(s) == "" {
			return "", errors.New("openrouter: empty content")
		}
		return s, nil
	default:
		return "", fmt.Errorf("openrouter: unexpected content type %T", v)
	}
}

// cleanTranslation strips markdown fences and the quotes the prompt wraps
// the source text in, which models sometimes echo back.
func cleanTranslation(s string) string {
	t := strings.TrimSpace(s)
	if strings.HasPrefix(t, "```") {
		if i := strings.Index(t, "\n"); i >= 0 {
			t = t[i+1:]
		}
		if j := strings.LastIndex(t, "```"); j >= 0 {
			t = t[:j]
		}
		t = strings.TrimSpace(t)
	}
	for _, q := range [][2]string{{"'", "'"}, {`"`, `"`}, {"“", "”"}} {
		if len(t) >= len(q[0])+len(q[1]) && strings.HasPrefix(t, q[0]) && strings.HasSuffix(t, q[1]) {
			t = strings.TrimSpace(t[len(q[0]) : len(t)-len(q[1])])
			break
		}
	}
	return t
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
