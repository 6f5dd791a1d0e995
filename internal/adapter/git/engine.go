// Package git reads diffs out of a local repository using go-git.
package git

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	goGit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	formatdiff "github.com/go-git/go-git/v5/plumbing/format/diff"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/reviewpilot/reviewpilot/internal/domain"
)

// Engine produces diffs from a repository working directory.
type Engine struct {
	repoDir string
}

// NewEngine constructs an engine for the provided repository directory.
func NewEngine(repoDir string) *Engine {
	return &Engine{repoDir: repoDir}
}

// FetchDiff computes the per-file diff between two refs. Branch names,
// tags, and raw hashes all resolve; branch names are also tried under
// refs/heads and refs/remotes/origin.
func (e *Engine) FetchDiff(ctx context.Context, baseRef, targetRef string) (domain.Diff, error) {
	repo, err := goGit.PlainOpenWithOptions(e.repoDir, &goGit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return domain.Diff{}, fmt.Errorf("open repo: %w", err)
	}

	baseCommit, err := resolveCommit(repo, baseRef)
	if err != nil {
		return domain.Diff{}, fmt.Errorf("resolve base ref %q: %w", baseRef, err)
	}

	targetCommit, err := resolveCommit(repo, targetRef)
	if err != nil {
		return domain.Diff{}, fmt.Errorf("resolve target ref %q: %w", targetRef, err)
	}

	patch, err := baseCommit.PatchContext(ctx, targetCommit)
	if err != nil {
		return domain.Diff{}, fmt.Errorf("compute patch: %w", err)
	}

	files := make([]domain.FileDiff, 0, len(patch.FilePatches()))
	for _, fp := range patch.FilePatches() {
		patchText, err := encodeFilePatch(fp)
		if err != nil {
			return domain.Diff{}, fmt.Errorf("encode patch: %w", err)
		}
		files = append(files, domain.FileDiff{
			Path:   filePatchPath(fp),
			Patch:  patchText,
			Binary: fp.IsBinary() || IsBinaryPatch(patchText),
		})
	}

	return domain.Diff{
		FromCommitHash: baseCommit.Hash.String(),
		ToCommitHash:   targetCommit.Hash.String(),
		Files:          files,
	}, nil
}

func resolveCommit(repo *goGit.Repository, ref string) (*object.Commit, error) {
	candidates := []string{
		ref,
		fmt.Sprintf("refs/heads/%s", ref),
		fmt.Sprintf("refs/remotes/origin/%s", ref),
	}

	var lastErr error
	for _, candidate := range candidates {
		hash, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err != nil {
			lastErr = err
			continue
		}
		return repo.CommitObject(*hash)
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, fmt.Errorf("unable to resolve ref %s", ref)
}

// filePatchPath prefers the post-image path so renamed and added files
// are tracked under the name reviewers will see.
func filePatchPath(fp formatdiff.FilePatch) string {
	from, to := fp.Files()
	if to != nil {
		return to.Path()
	}
	if from != nil {
		return from.Path()
	}
	return ""
}

// IsBinaryPatch reports whether patch text describes a binary change.
func IsBinaryPatch(patchText string) bool {
	return strings.Contains(patchText, "Binary files") ||
		strings.Contains(patchText, "GIT binary patch")
}

func encodeFilePatch(fp formatdiff.FilePatch) (string, error) {
	var buf bytes.Buffer
	encoder := formatdiff.NewUnifiedEncoder(&buf, formatdiff.DefaultContextLines)
	if err := encoder.Encode(singlePatch{fp: fp}); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type singlePatch struct {
	fp formatdiff.FilePatch
}

func (s singlePatch) FilePatches() []formatdiff.FilePatch {
	return []formatdiff.FilePatch{s.fp}
}

func (s singlePatch) Message() string {
	return ""
}

var fileHeaderPattern = regexp.MustCompile(`(?m)^diff --git a/(.+) b/(.+)$`)

// ParseUnifiedDiff splits a multi-file unified diff, as produced by
// git diff, into per-file entries. fromHash and toHash label the result;
// a diff read from a file carries no commit identity of its own.
func ParseUnifiedDiff(raw, fromHash, toHash string) domain.Diff {
	matches := fileHeaderPattern.FindAllStringSubmatchIndex(raw, -1)

	files := make([]domain.FileDiff, 0, len(matches))
	for i, m := range matches {
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		section := raw[m[0]:end]
		files = append(files, domain.FileDiff{
			Path:   raw[m[4]:m[5]],
			Patch:  section,
			Binary: IsBinaryPatch(section),
		})
	}

	return domain.Diff{
		FromCommitHash: fromHash,
		ToCommitHash:   toHash,
		Files:          files,
	}
}
