// Package lang normalizes user supplied language names and codes.
package lang

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Parse accepts BCP 47 tags ("ko", "pt-BR", "zh-Hant") and common English
// names ("korean").
func Parse(s string) (language.Tag, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return language.Und, fmt.Errorf("language is empty")
	}
	if tag, err := language.Parse(s); err == nil {
		return tag, nil
	}
	if tag, ok := byName[strings.ToLower(s)]; ok {
		return tag, nil
	}
	return language.Und, fmt.Errorf("unknown language %q", s)
}

// Base returns the lowercase ISO 639 code, e.g. "pt" for pt-BR.
func Base(tag language.Tag) string {
	b, _ := tag.Base()
	return b.String()
}

// EnglishName returns the English display name, e.g. "Korean".
func EnglishName(tag language.Tag) string {
	if name := display.English.Tags().Name(tag); name != "" {
		return name
	}
	return tag.String()
}

// DeepLCode maps a tag to the target_lang value DeepL expects.
func DeepLCode(tag language.Tag) string {
	base := Base(tag)
	switch base {
	case "en":
		if r, conf := tag.Region(); conf == language.Exact && r.String() == "GB" {
			return "EN-GB"
		}
		return "EN-US"
	case "pt":
		if r, conf := tag.Region(); conf == language.Exact && r.String() == "PT" {
			return "PT-PT"
		}
		return "PT-BR"
	case "zh":
		if s, conf := tag.Script(); conf == language.Exact && s.String() == "Hant" {
			return "ZH-HANT"
		}
		return "ZH"
	default:
		return strings.ToUpper(base)
	}
}

var byName = map[string]language.Tag{
	"english":    language.English,
	"korean":     language.Korean,
	"japanese":   language.Japanese,
	"chinese":    language.Chinese,
	"spanish":    language.Spanish,
	"french":     language.French,
	"german":     language.German,
	"italian":    language.Italian,
	"portuguese": language.Portuguese,
	"russian":    language.Russian,
	"dutch":      language.Dutch,
	"polish":     language.Polish,
}
