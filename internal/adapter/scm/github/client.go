// Package github reviews pull requests through the GitHub REST API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	llmhttp "github.com/reviewpilot/reviewpilot/internal/adapter/llm/http"
	"github.com/reviewpilot/reviewpilot/internal/diff"
	"github.com/reviewpilot/reviewpilot/internal/domain"
)

const (
	providerName   = "github"
	defaultBaseURL = "https://api.github.com"
	defaultTimeout = 30 * time.Second
	perPage        = 100
)

// Client targets one pull request. It implements the review pipeline's
// source-control port: it fetches the PR diff, posts inline comments,
// and surfaces existing discussion threads.
type Client struct {
	owner      string
	repo       string
	pullNumber int
	token      string
	baseURL    string
	httpClient *http.Client

	mu      sync.Mutex
	patches map[string]string
	headSHA string
}

// NewClient creates a client for one pull request. The token is a
// personal access token or GITHUB_TOKEN from Actions.
func NewClient(owner, repo string, pullNumber int, token string) *Client {
	return &Client{
		owner:      owner,
		repo:       repo,
		pullNumber: pullNumber,
		token:      token,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		patches:    map[string]string{},
	}
}

// SetBaseURL overrides the API endpoint (for testing).
func (c *Client) SetBaseURL(url string) {
	c.baseURL = strings.TrimRight(url, "/")
}

type pullResponse struct {
	Base struct {
		SHA string `json:"sha"`
	} `json:"base"`
	Head struct {
		SHA string `json:"sha"`
	} `json:"head"`
}

type pullFile struct {
	Filename string `json:"filename"`
	Status   string `json:"status"`
	Patch    string `json:"patch"`
}

// FetchDiff pulls the PR's base and head SHAs plus its per-file patches.
// The refs arguments are ignored; the pull request defines the diff.
// Files the API returns without a patch, binaries included, are marked
// binary so the pipeline skips them.
func (c *Client) FetchDiff(ctx context.Context, baseRef, targetRef string) (domain.Diff, error) {
	var pull pullResponse
	pullURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", c.baseURL, c.owner, c.repo, c.pullNumber)
	if err := c.getJSON(ctx, pullURL, &pull); err != nil {
		return domain.Diff{}, fmt.Errorf("fetch pull request: %w", err)
	}

	var files []domain.FileDiff
	for page := 1; ; page++ {
		var pageFiles []pullFile
		filesURL := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/files?per_page=%d&page=%d",
			c.baseURL, c.owner, c.repo, c.pullNumber, perPage, page)
		if err := c.getJSON(ctx, filesURL, &pageFiles); err != nil {
			return domain.Diff{}, fmt.Errorf("fetch pull request files: %w", err)
		}
		for _, f := range pageFiles {
			files = append(files, domain.FileDiff{
				Path:   f.Filename,
				Patch:  f.Patch,
				Binary: f.Patch == "",
			})
		}
		if len(pageFiles) < perPage {
			break
		}
	}

	c.mu.Lock()
	c.headSHA = pull.Head.SHA
	c.patches = make(map[string]string, len(files))
	for _, f := range files {
		c.patches[f.Path] = f.Patch
	}
	c.mu.Unlock()

	return domain.Diff{
		FromCommitHash: pull.Base.SHA,
		ToCommitHash:   pull.Head.SHA,
		Files:          files,
	}, nil
}

type createCommentRequest struct {
	Body      string `json:"body"`
	CommitID  string `json:"commit_id"`
	Path      string `json:"path"`
	Line      int    `json:"line"`
	StartLine int    `json:"start_line,omitempty"`
	Side      string `json:"side"`
	StartSide string `json:"start_side,omitempty"`
}

// PostReviewComment publishes one inline comment on the PR's head
// commit. Multi-line comments use the start_line/line form the API
// expects.
func (c *Client) PostReviewComment(ctx context.Context, comment domain.ReviewComment) error {
	c.mu.Lock()
	commitID := c.headSHA
	c.mu.Unlock()
	if commitID == "" {
		return fmt.Errorf("post comment: no pull request fetched yet")
	}

	req := createCommentRequest{
		Body:     comment.Text,
		CommitID: commitID,
		Path:     comment.Filename,
		Line:     comment.EndLine,
		Side:     "RIGHT",
	}
	if comment.StartLine < comment.EndLine {
		req.StartLine = comment.StartLine
		req.StartSide = "RIGHT"
	}

	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/comments", c.baseURL, c.owner, c.repo, c.pullNumber)
	return c.postJSON(ctx, url, req)
}

type reviewComment struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Body string `json:"body"`
	User struct {
		Login string `json:"login"`
	} `json:"user"`
}

// CommentChains groups the PR's existing review comments on a file by
// the hunk their line falls in, using the patch cached by FetchDiff.
// Comments outside any hunk are dropped.
func (c *Client) CommentChains(ctx context.Context, filename string) (map[int]string, error) {
	c.mu.Lock()
	patch := c.patches[filename]
	c.mu.Unlock()
	if patch == "" {
		return nil, nil
	}

	var comments []reviewComment
	for page := 1; ; page++ {
		var pageComments []reviewComment
		url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d/comments?per_page=%d&page=%d",
			c.baseURL, c.owner, c.repo, c.pullNumber, perPage, page)
		if err := c.getJSON(ctx, url, &pageComments); err != nil {
			return nil, fmt.Errorf("fetch review comments: %w", err)
		}
		comments = append(comments, pageComments...)
		if len(pageComments) < perPage {
			break
		}
	}

	hunks := diff.Decompose(patch)
	chains := make(map[int]string)
	for _, comment := range comments {
		if comment.Path != filename || comment.Line == 0 {
			continue
		}
		for i, h := range hunks {
			if comment.Line >= h.Range.NewStart && comment.Line <= h.Range.NewEnd {
				entry := fmt.Sprintf("%s: %s", comment.User.Login, comment.Body)
				if existing := chains[i]; existing != "" {
					chains[i] = existing + "\n" + entry
				} else {
					chains[i] = entry
				}
				break
			}
		}
	}
	if len(chains) == 0 {
		return nil, nil
	}
	return chains, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return llmhttp.NewNetworkError(providerName, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llmhttp.NewNetworkError(providerName, err.Error())
	}
	if resp.StatusCode >= 400 {
		return mapStatus(resp.StatusCode, body)
	}
	return json.Unmarshal(body, out)
}

func (c *Client) postJSON(ctx context.Context, url string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return llmhttp.NewNetworkError(providerName, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return mapStatus(resp.StatusCode, body)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}

func mapStatus(statusCode int, body []byte) error {
	message := fmt.Sprintf("HTTP %d: %s", statusCode, llmhttp.TruncateForLogging(string(body)))
	switch {
	case statusCode == http.StatusTooManyRequests || statusCode == http.StatusForbidden && strings.Contains(string(body), "rate limit"):
		return llmhttp.NewRateLimitError(providerName, message)
	case statusCode == http.StatusRequestTimeout:
		return llmhttp.NewTimeoutError(providerName, message)
	default:
		return llmhttp.NewAPIError(providerName, message, statusCode)
	}
}
