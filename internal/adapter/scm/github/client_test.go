package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewpilot/reviewpilot/internal/domain"
	"github.com/reviewpilot/reviewpilot/internal/retry"
)

const testPatch = `@@ -1,3 +1,4 @@
 package main
+import "fmt"

 func main() {}`

func newTestServer(t *testing.T, posted *[]map[string]interface{}) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls/7", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"base": map[string]string{"sha": "basesha"},
			"head": map[string]string{"sha": "headsha"},
		})
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/7/files", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"filename": "main.go", "status": "modified", "patch": testPatch},
			{"filename": "logo.png", "status": "added"},
		})
	})
	mux.HandleFunc("/repos/acme/widgets/pulls/7/comments", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			*posted = append(*posted, body)
			w.WriteHeader(http.StatusCreated)
			return
		}
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{
				"path": "main.go",
				"line": 2,
				"body": "should this be log instead?",
				"user": map[string]string{"login": "reviewer-a"},
			},
			{
				"path": "other.go",
				"line": 2,
				"body": "unrelated",
				"user": map[string]string{"login": "reviewer-b"},
			},
		})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, posted *[]map[string]interface{}) *Client {
	t.Helper()
	server := newTestServer(t, posted)
	client := NewClient("acme", "widgets", 7, "test-token")
	client.SetBaseURL(server.URL)
	return client
}

func TestFetchDiff(t *testing.T) {
	client := newTestClient(t, &[]map[string]interface{}{})

	d, err := client.FetchDiff(context.Background(), "", "")
	require.NoError(t, err)

	assert.Equal(t, "basesha", d.FromCommitHash)
	assert.Equal(t, "headsha", d.ToCommitHash)
	require.Len(t, d.Files, 2)
	assert.Equal(t, "main.go", d.Files[0].Path)
	assert.False(t, d.Files[0].Binary)
	assert.True(t, d.Files[1].Binary, "file without a patch is treated as binary")
}

func TestPostReviewComment(t *testing.T) {
	var posted []map[string]interface{}
	client := newTestClient(t, &posted)

	_, err := client.FetchDiff(context.Background(), "", "")
	require.NoError(t, err)

	err = client.PostReviewComment(context.Background(), domain.ReviewComment{
		Filename:  "main.go",
		StartLine: 2,
		EndLine:   4,
		Text:      "Group the imports.",
	})
	require.NoError(t, err)

	require.Len(t, posted, 1)
	assert.Equal(t, "Group the imports.", posted[0]["body"])
	assert.Equal(t, "headsha", posted[0]["commit_id"])
	assert.Equal(t, "main.go", posted[0]["path"])
	assert.Equal(t, float64(4), posted[0]["line"])
	assert.Equal(t, float64(2), posted[0]["start_line"])
	assert.Equal(t, "RIGHT", posted[0]["side"])
}

func TestPostSingleLineCommentOmitsStartLine(t *testing.T) {
	var posted []map[string]interface{}
	client := newTestClient(t, &posted)

	_, err := client.FetchDiff(context.Background(), "", "")
	require.NoError(t, err)

	err = client.PostReviewComment(context.Background(), domain.ReviewComment{
		Filename: "main.go", StartLine: 2, EndLine: 2, Text: "note",
	})
	require.NoError(t, err)

	require.Len(t, posted, 1)
	_, hasStartLine := posted[0]["start_line"]
	assert.False(t, hasStartLine)
}

func TestPostCommentBeforeFetchFails(t *testing.T) {
	client := NewClient("acme", "widgets", 7, "token")

	err := client.PostReviewComment(context.Background(), domain.ReviewComment{Filename: "a.go"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no pull request fetched")
}

func TestCommentChainsGroupsByHunk(t *testing.T) {
	client := newTestClient(t, &[]map[string]interface{}{})

	_, err := client.FetchDiff(context.Background(), "", "")
	require.NoError(t, err)

	chains, err := client.CommentChains(context.Background(), "main.go")
	require.NoError(t, err)
	require.Len(t, chains, 1)
	assert.Equal(t, "reviewer-a: should this be log instead?", chains[0])
}

func TestCommentChainsUnknownFile(t *testing.T) {
	client := newTestClient(t, &[]map[string]interface{}{})

	_, err := client.FetchDiff(context.Background(), "", "")
	require.NoError(t, err)

	chains, err := client.CommentChains(context.Background(), "missing.go")
	require.NoError(t, err)
	assert.Nil(t, chains)
}

func TestRateLimitMapsToRateLimitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"message":"API rate limit exceeded"}`))
	}))
	t.Cleanup(server.Close)

	client := NewClient("acme", "widgets", 7, "token")
	client.SetBaseURL(server.URL)

	_, err := client.FetchDiff(context.Background(), "", "")
	require.Error(t, err)
	assert.Equal(t, retry.ErrorRateLimit, retry.ClassifyErr(err))
}
