package linkedin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := New(Config{
		APIURL:       server.URL,
		APIKey:       "test-key",
		PollInterval: 5 * time.Millisecond,
		MaxPolls:     5,
	}, zap.NewNop())
	require.NoError(t, err)
	return client, server
}

func TestCompanyPollsUntilReady(t *testing.T) {
	t.Parallel()

	var snapshotCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/trigger", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode(map[string]string{"snapshot_id": "snap_1"}) //nolint:errcheck
	})
	mux.HandleFunc("/snapshot/snap_1", func(w http.ResponseWriter, r *http.Request) {
		if snapshotCalls.Add(1) < 3 {
			w.WriteHeader(http.StatusAccepted)
			return
		}
		json.NewEncoder(w).Encode([]map[string]any{{ //nolint:errcheck
			"name":       "Acme Corp",
			"industries": "Software",
			"url":        "https://linkedin.com/company/acme",
		}})
	})

	client, _ := newTestClient(t, mux)
	company, err := client.Company(context.Background(), "https://linkedin.com/company/acme")
	require.NoError(t, err)
	require.Equal(t, "Acme Corp", company.Name)
	require.Equal(t, "Software", company.Industry)
	require.EqualValues(t, 3, snapshotCalls.Load())
}

func TestCompanyPostsRespectsLimit(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/trigger", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"snapshot_id": "snap_2"}) //nolint:errcheck
	})
	mux.HandleFunc("/snapshot/snap_2", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{ //nolint:errcheck
			{"url": "p1", "post_text": "first"},
			{"url": "p2", "post_text": "second"},
			{"url": "p3", "post_text": "third"},
		})
	})

	client, _ := newTestClient(t, mux)
	posts, err := client.CompanyPosts(context.Background(), "https://linkedin.com/company/acme", 2)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	require.Equal(t, "first", posts[0].Text)
}

func TestCollectGivesUpAfterMaxPolls(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/trigger", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"snapshot_id": "snap_3"}) //nolint:errcheck
	})
	mux.HandleFunc("/snapshot/snap_3", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	client, _ := newTestClient(t, mux)
	_, err := client.Profile(context.Background(), "https://linkedin.com/in/someone")
	require.Error(t, err)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "profile", apiErr.Op)
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{}, nil)
	require.Error(t, err)
}
