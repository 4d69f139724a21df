// Package deepl translates cue text with the DeepL REST API.
package deepl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/forPelevin/subcue/internal/faults"
)

const defaultBaseURL = "https://api-free.deepl.com"

type Config struct {
	APIKey     string
	BaseURL    string
	SourceLang string // DeepL code, e.g. "EN"; empty lets DeepL detect
	TargetLang string // DeepL code, e.g. "KO"
	// RequestsPerMinute throttles outgoing requests; 0 disables throttling.
	RequestsPerMinute int
	HTTPClient        *http.Client
}

type Adapter struct {
	key     string
	baseURL string
	source  string
	target  string
	limiter *rate.Limiter
	client  *http.Client
}

func New(cfg Config) *Adapter {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: time.Minute}
	}
	return &Adapter{
		key:     strings.TrimSpace(cfg.APIKey),
		baseURL: base,
		source:  strings.ToUpper(strings.TrimSpace(cfg.SourceLang)),
		target:  strings.ToUpper(strings.TrimSpace(cfg.TargetLang)),
		limiter: rate.NewLimiter(limit, 1),
		client:  client,
	}
}

func (a *Adapter) ConcurrencySafe() bool { return true }

// Usage is the account quota reported by /v2/usage.
type Usage struct {
	CharacterCount int64 `json:"character_count"`
	CharacterLimit int64 `json:"character_limit"`
}

func (u Usage) Remaining() int64 {
	if u.CharacterLimit <= u.CharacterCount {
		return 0
	}
	return u.CharacterLimit - u.CharacterCount
}

// Available checks the key against /v2/usage and fails once the character
// quota is exhausted.
func (a *Adapter) Available(ctx context.Context) error {
	if a.key == "" {
		return faults.Wrap(faults.ErrUnavailable, "deepl", "DEEPL_API_KEY is not set", nil)
	}
	u, err := a.Usage(ctx)
	if err != nil {
		return faults.Wrap(faults.ErrUnavailable, "deepl", "usage check", err)
	}
	if u.CharacterLimit > 0 && u.Remaining() == 0 {
		return faults.Wrap(faults.ErrUnavailable, "deepl", "character quota exhausted", nil)
	}
	return nil
}

func (a *Adapter) Usage(ctx context.Context) (Usage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v2/usage", nil)
	if err != nil {
		return Usage{}, err
	}
	req.Header.Set("Authorization", "DeepL-Auth-Key "+a.key)

	var u Usage
	if err := a.doJSON(req, &u); err != nil {
		return Usage{}, err
	}
	return u, nil
}

// Translate ignores emotion: DeepL has no equivalent control.
func (a *Adapter) Translate(ctx context.Context, text, _ string) (string, error) {
	if a.key == "" {
		return "", faults.Wrap(faults.ErrUnavailable, "deepl", "DEEPL_API_KEY is not set", nil)
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return "", err
	}

	form := url.Values{}
	form.Add("text", text)
	form.Set("target_lang", a.target)
	if a.source != "" {
		form.Set("source_lang", a.source)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/v2/translate", strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "DeepL-Auth-Key "+a.key)

	var resp struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := a.doJSON(req, &resp); err != nil {
		return "", err
	}
	if len(resp.Translations) == 0 {
		return "", fmt.Errorf("deepl: empty translations in response")
	}
	return strings.TrimSpace(resp.Translations[0].Text), nil
}

func (a *Adapter) doJSON(req *http.Request, out any) error {
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("deepl request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("deepl read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if a.key != "" {
			msg = strings.ReplaceAll(msg, a.key, "[REDACTED]")
		}
		return fmt.Errorf("deepl status %d: %s", resp.StatusCode, msg)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("deepl parse response: %w", err)
	}
	return nil
}
