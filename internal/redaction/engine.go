// Package redaction scrubs secrets from text before it leaves the
// process. Diffs routinely contain keys committed by accident; nothing
// sent to a model provider should include them.
package redaction

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
)

// Engine replaces detected secrets with stable placeholders. The same
// secret always maps to the same placeholder, so a model can still tell
// two occurrences apart from two different secrets.
type Engine struct {
	patterns []*regexp.Regexp
}

// NewEngine builds an engine with the default secret patterns.
func NewEngine() *Engine {
	return &Engine{patterns: defaultPatterns()}
}

// Scrub returns text with every detected secret replaced by a
// placeholder of the form <REDACTED:xxxxxxxx>.
func (e *Engine) Scrub(text string) string {
	placeholders := make(map[string]string)

	for _, pattern := range e.patterns {
		for _, match := range pattern.FindAllString(text, -1) {
			if _, seen := placeholders[match]; seen {
				continue
			}
			placeholders[match] = placeholderFor(match)
		}
	}

	for secret, placeholder := range placeholders {
		text = strings.ReplaceAll(text, secret, placeholder)
	}
	return text
}

// ContainsPlaceholder reports whether text already carries redaction
// markers.
func ContainsPlaceholder(text string) bool {
	return strings.Contains(text, "<REDACTED:")
}

func placeholderFor(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return fmt.Sprintf("<REDACTED:%s>", hex.EncodeToString(sum[:])[:8])
}

func defaultPatterns() []*regexp.Regexp {
	raw := []string{
		// OpenAI-style keys, including the sk-ant- variant
		`sk-[a-zA-Z0-9\-]{20,}`,
		// AWS access key IDs
		`AKIA[0-9A-Z]{16}`,
		// AWS secret keys assigned near an aws-prefixed name
		`aws.{0,20}?['\"][0-9a-zA-Z/+]{40}['\"]`,
		// GitHub personal, OAuth, server, and refresh tokens
		`gh[posr]_[a-zA-Z0-9]{20,}`,
		// Google API keys
		`AIza[0-9A-Za-z\-_]{35}`,
		// JWTs
		`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`,
		// PEM private key blocks
		`-----BEGIN\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----[\s\S]*?-----END\s+(?:RSA|EC|OPENSSH|DSA|ENCRYPTED)\s+PRIVATE\s+KEY-----`,
		// Slack tokens
		`xox[baprs]-[a-zA-Z0-9\-]{10,}`,
		// Anything presented as a bearer credential
		`Bearer\s+[a-zA-Z0-9_\-\.]+`,
	}

	compiled := make([]*regexp.Regexp, 0, len(raw))
	for _, pattern := range raw {
		compiled = append(compiled, regexp.MustCompile(pattern))
	}
	return compiled
}
