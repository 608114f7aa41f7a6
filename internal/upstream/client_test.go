package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pders01/likesync/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.TestConfig(t.TempDir())
	cfg.Upstream.BaseURL = server.URL + "/1.1"
	cfg.Upstream.BearerToken = "secret"

	client, err := NewPermissiveHTTPClient(cfg)
	require.NoError(t, err)
	return client
}

func TestFetchBatch(t *testing.T) {
	var gotPath, gotIDs, gotAuth, gotUA, gotMode string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotIDs = r.URL.Query().Get("id")
		gotMode = r.URL.Query().Get("tweet_mode")
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[{"id_str":"1","full_text":"a"},{"id_str":"3","full_text":"c"}]`)
	})

	posts, err := client.FetchBatch(context.Background(), []string{"1", "2", "3"})
	require.NoError(t, err)

	assert.Equal(t, "/1.1/statuses/lookup.json", gotPath)
	assert.Equal(t, "1,2,3", gotIDs)
	assert.Equal(t, "extended", gotMode)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "likesync-test/1.0", gotUA)

	require.Len(t, posts, 2, "missing posts are omitted")
	assert.JSONEq(t, `{"id_str":"1","full_text":"a"}`, string(posts[0]))
	assert.JSONEq(t, `{"id_str":"3","full_text":"c"}`, string(posts[1]))
}

func TestFetchBatch_Empty(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	posts, err := client.FetchBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.False(t, called)
}

func TestFetchBatch_TooLarge(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("oversized batch must not be sent")
	})

	ids := make([]string, MaxBatch+1)
	for i := range ids {
		ids[i] = fmt.Sprint(i)
	}
	_, err := client.FetchBatch(context.Background(), ids)
	assert.Error(t, err)
}

func TestFetchBatch_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"errors":[{"code":88,"message":"Rate limit exceeded"}]}`)
	})

	_, err := client.FetchBatch(context.Background(), []string{"1"})
	require.Error(t, err)

	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, http.StatusTooManyRequests, batchErr.Status)
	assert.Equal(t, 1, batchErr.Size)
	assert.Contains(t, batchErr.Error(), "Rate limit exceeded")
}

func TestFetchBatch_BadJSON(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"not":"an array"}`)
	})

	_, err := client.FetchBatch(context.Background(), []string{"1"})
	var batchErr *BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Error(t, batchErr.Err)
}

func TestFetchBatch_RateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})
	client.limiter.SetLimit(0.01)
	client.limiter.SetBurst(1)

	_, err := client.FetchBatch(context.Background(), []string{"1"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = client.FetchBatch(ctx, []string{"2"})
	require.Error(t, err, "second call has to wait far longer than the deadline")
	assert.True(t, strings.Contains(err.Error(), "rate limiter"))
}

func TestNewHTTPClient_RejectsInsecureBaseURL(t *testing.T) {
	cfg := config.TestConfig(t.TempDir())
	cfg.Upstream.BaseURL = "http://api.example.com/1.1"

	_, err := NewHTTPClient(cfg)
	assert.Error(t, err)

	cfg.Upstream.BaseURL = "https://api.example.com/1.1"
	_, err = NewHTTPClient(cfg)
	assert.NoError(t, err)
}
