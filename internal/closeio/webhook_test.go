package closeio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseWebhookEmailOpen(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"event": {
			"id": "whev_1",
			"object_type": "activity.email",
			"action": "updated",
			"date_created": "2025-03-01T10:05:00Z",
			"data": {
				"id": "acti_9",
				"lead_id": "lead_7",
				"lead_name": "Globex",
				"subject": "Proposal",
				"to": ["cto@globex.test"],
				"opens": [
					{"opened_at": "2025-03-01T10:00:00Z"},
					{"opened_at": "2025-03-01T10:04:00Z"}
				]
			}
		}
	}`)

	events, err := ParseWebhook(body)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "acti_9", events[0].EventID)
	require.Equal(t, "Globex", events[0].LeadName)
	require.Equal(t, "cto@globex.test", events[0].Recipient)
	require.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), events[0].OpenedAt)
	require.Equal(t, 2, events[0].OpenCount)
}

func TestParseWebhookIgnoresOtherObjectTypes(t *testing.T) {
	t.Parallel()

	body := []byte(`{"event": {"object_type": "lead", "action": "created", "data": {}}}`)
	_, err := ParseWebhook(body)
	require.ErrorIs(t, err, ErrNotEmailOpen)
}

func TestParseWebhookIgnoresEmailWithoutOpens(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"event": {
			"object_type": "activity.email",
			"action": "created",
			"data": {"id": "acti_1", "lead_id": "lead_1", "opens": []}
		}
	}`)
	_, err := ParseWebhook(body)
	require.ErrorIs(t, err, ErrNotEmailOpen)
}

func TestParseWebhookMalformedBody(t *testing.T) {
	t.Parallel()

	_, err := ParseWebhook([]byte(`{"event": `))
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrNotEmailOpen)
}

func TestParseWebhookFallsBackToEnvelopeEventID(t *testing.T) {
	t.Parallel()

	body := []byte(`{
		"event": {
			"id": "whev_42",
			"object_type": "activity.email",
			"action": "updated",
			"data": {"lead_id": "lead_1", "opens": [{"opened_at": "2025-03-01T10:00:00Z"}]}
		}
	}`)
	events, err := ParseWebhook(body)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "whev_42", events[0].EventID)
}

func TestParseWebhookRedeliveryKeepsEventID(t *testing.T) {
	t.Parallel()

	// No activity id and no envelope id. The derived id must be stable so a
	// CRM retry of the same delivery dedups against the first one.
	body := []byte(`{
		"event": {
			"object_type": "activity.email",
			"action": "updated",
			"data": {
				"lead_id": "lead_1",
				"subject": "Intro",
				"to": ["ceo@acme.test"],
				"opens": [{"opened_at": "2025-03-01T10:00:00Z"}]
			}
		}
	}`)
	first, err := ParseWebhook(body)
	require.NoError(t, err)
	second, err := ParseWebhook(body)
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.NotEmpty(t, first[0].EventID)
	require.Equal(t, first[0].EventID, second[0].EventID)
	require.Equal(t, first[0].Key(), second[0].Key())
}
