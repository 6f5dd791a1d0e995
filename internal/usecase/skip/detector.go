// Package skip decides which files are not worth a billable review call:
// lockfiles, generated or vendored code, and binary patches.
package skip

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/reviewpilot/reviewpilot/internal/domain"
)

// generatedMarkerPattern matches the conventional generated-code header
// within the first lines of a patch.
var generatedMarkerPattern = regexp.MustCompile(`(?i)code generated .* do not edit`)

// lockfileNames are exact basenames that never need review.
var lockfileNames = map[string]bool{
	"package-lock.json": true,
	"yarn.lock":         true,
	"pnpm-lock.yaml":    true,
	"go.sum":            true,
	"cargo.lock":        true,
	"gemfile.lock":      true,
	"poetry.lock":       true,
	"composer.lock":     true,
}

// Result explains a skip decision. Confidence is 1.0 for exact-name and
// marker matches, lower for heuristics.
type Result struct {
	ShouldSkip bool
	Reason     string
	Confidence float64
}

// Check examines one file diff and reports whether to skip it.
func Check(file domain.FileDiff) Result {
	if file.Binary {
		return Result{ShouldSkip: true, Reason: "binary file", Confidence: 1.0}
	}

	base := strings.ToLower(filepath.Base(file.Path))
	if lockfileNames[base] {
		return Result{ShouldSkip: true, Reason: "lockfile", Confidence: 1.0}
	}

	if strings.HasPrefix(file.Path, "vendor/") || strings.Contains(file.Path, "/vendor/") {
		return Result{ShouldSkip: true, Reason: "vendored code", Confidence: 0.9}
	}

	if strings.HasSuffix(base, ".pb.go") || strings.HasSuffix(base, ".min.js") || strings.HasSuffix(base, ".min.css") {
		return Result{ShouldSkip: true, Reason: "generated file", Confidence: 0.9}
	}

	if generatedMarkerPattern.MatchString(head(file.Patch, 10)) {
		return Result{ShouldSkip: true, Reason: "generated file", Confidence: 0.8}
	}

	return Result{}
}

// head returns the first n lines of text.
func head(text string, n int) string {
	lines := strings.SplitN(text, "\n", n+1)
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
