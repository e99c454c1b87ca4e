// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// ReviewLanguage is a validated BCP-47 tag controlling the language the
// review text is written in.
type ReviewLanguage struct {
	tag language.Tag
}

// ParseLanguage parses a BCP-47 tag such as "en" or "zh-CN". An empty tag
// means English; a malformed one is an error.
func ParseLanguage(raw string) (ReviewLanguage, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ReviewLanguage{tag: language.English}, nil
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return ReviewLanguage{}, fmt.Errorf("%q is not a valid BCP-47 language tag: %w", raw, err)
	}
	return ReviewLanguage{tag: tag}, nil
}

// String returns the canonical tag, e.g. "en" or "zh-CN"
func (l ReviewLanguage) String() string {
	return l.tag.String()
}

// IsEnglish reports whether the base language is English. English output
// needs no prompt instruction.
func (l ReviewLanguage) IsEnglish() bool {
	base, _ := l.tag.Base()
	return base.String() == "en"
}

// PromptInstruction returns the English name of the language for use in
// the review prompt, e.g. "Japanese" for ja.
func (l ReviewLanguage) PromptInstruction() string {
	if name := display.English.Tags().Name(l.tag); name != "" {
		return name
	}
	return l.tag.String()
}

// DetectSystemLanguage reads the locale environment variables in POSIX
// precedence order and returns the best matching tag. Used to prefill the
// review language during interactive setup.
func DetectSystemLanguage() ReviewLanguage {
	for _, name := range []string{"LC_ALL", "LC_MESSAGES", "LANG", "LANGUAGE"} {
		raw := os.Getenv(name)
		if raw == "" || raw == "C" || raw == "POSIX" || strings.HasPrefix(raw, "C.") {
			continue
		}
		// Locale values look like "en_US.UTF-8"; LANGUAGE can hold a
		// colon-separated list
		raw = strings.SplitN(raw, ":", 2)[0]
		raw = strings.SplitN(raw, ".", 2)[0]
		raw = strings.ReplaceAll(raw, "_", "-")
		if tag, err := language.Parse(raw); err == nil {
			return ReviewLanguage{tag: tag}
		}
	}
	return ReviewLanguage{tag: language.English}
}

// GetOutputLanguage parses the configured review output language
func (c *ReviewConfig) GetOutputLanguage() (ReviewLanguage, error) {
	return ParseLanguage(c.Language)
}
