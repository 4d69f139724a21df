package config

import (
	"os"
	"strings"
)

// ApplyEnv overrides file values with the documented environment variables.
// Empty variables are ignored.
func (c *Config) ApplyEnv() {
	setString(&c.OpenRouter.APIKey, "OPENROUTER_API_KEY")
	setString(&c.OpenRouter.Model, "OPENROUTER_MODEL")
	setString(&c.OpenRouter.BaseURL, "OPENROUTER_BASE_URL")
	if v := strings.TrimSpace(os.Getenv("OPENROUTER_ALLOWED_HOSTS")); v != "" {
		c.OpenRouter.AllowedHosts = splitList(v)
	}
	setString(&c.DeepL.APIKey, "DEEPL_API_KEY")
	setString(&c.Emotion.URL, "EMOTION_URL")
	setString(&c.Translation.TargetLang, "SUBCUE_TARGET_LANG")
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
