package closeio

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

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{APIURL: server.URL, APIKey: "api_key"}, zap.NewNop())
	require.NoError(t, err)
	return client
}

func TestEmailOpensExpandsPerOpenTimestamp(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/activity/email/", func(w http.ResponseWriter, r *http.Request) {
		user, _, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, "api_key", user)
		require.NotEmpty(t, r.URL.Query().Get("date_created__gt"))

		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"data": []map[string]any{
				{
					"id":        "acti_1",
					"lead_id":   "lead_1",
					"lead_name": "Acme Corp",
					"subject":   "Intro",
					"to":        []string{"ceo@acme.test"},
					"opens": []map[string]string{
						{"opened_at": "2025-03-01T10:00:00Z"},
						{"opened_at": "2025-03-01T11:30:00Z"},
					},
				},
				{
					"id":      "acti_2",
					"lead_id": "lead_2",
					"subject": "No opens yet",
					"opens":   []map[string]string{},
				},
			},
		})
	})

	client := newTestClient(t, mux)
	events, err := client.EmailOpens(context.Background(), time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.Equal(t, "acti_1", events[0].EventID)
	require.Equal(t, "Acme Corp", events[0].LeadName)
	require.Equal(t, "ceo@acme.test", events[0].Recipient)
	require.Equal(t, 2, events[0].OpenCount)
	require.Equal(t, "acti_1|2025-03-01T10:00:00Z", events[0].Key())
	require.Equal(t, "acti_1|2025-03-01T11:30:00Z", events[1].Key())
}

func TestEmailOpensLooksUpMissingLeadNameOnce(t *testing.T) {
	t.Parallel()

	var leadLookups atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/activity/email/", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{ //nolint:errcheck
			"data": []map[string]any{
				{
					"id":      "acti_1",
					"lead_id": "lead_1",
					"subject": "First",
					"opens":   []map[string]string{{"opened_at": "2025-03-01T10:00:00Z"}},
				},
				{
					"id":      "acti_2",
					"lead_id": "lead_1",
					"subject": "Second",
					"opens":   []map[string]string{{"opened_at": "2025-03-01T12:00:00Z"}},
				},
			},
		})
	})
	mux.HandleFunc("/lead/lead_1/", func(w http.ResponseWriter, r *http.Request) {
		leadLookups.Add(1)
		json.NewEncoder(w).Encode(map[string]string{"display_name": "Acme Corp"}) //nolint:errcheck
	})

	client := newTestClient(t, mux)
	events, err := client.EmailOpens(context.Background(), time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "Acme Corp", events[0].LeadName)
	require.Equal(t, "Acme Corp", events[1].LeadName)
	require.EqualValues(t, 1, leadLookups.Load())
}

func TestEmailOpensSurfacesAPIError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	_, err := client.EmailOpens(context.Background(), time.Time{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestNewClientRequiresKey(t *testing.T) {
	t.Parallel()

	_, err := NewClient(Config{APIURL: "https://api.close.com/api/v1"}, nil)
	require.Error(t, err)
}
