package closeio

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotEmailOpen marks a well-formed webhook that is not an email open
// event. Callers acknowledge and drop these.
var ErrNotEmailOpen = errors.New("webhook is not an email open event")

type webhookEnvelope struct {
	Event struct {
		ID         string          `json:"id"`
		ObjectType string          `json:"object_type"`
		Action     string          `json:"action"`
		DateOpened time.Time       `json:"date_created"`
		Data       json.RawMessage `json:"data"`
	} `json:"event"`
}

// ParseWebhook decodes a Close webhook body. It returns the open events the
// payload carries, ErrNotEmailOpen for payloads about something else, and a
// decode error for malformed bodies.
func ParseWebhook(body []byte) ([]OpenEvent, error) {
	var envelope webhookEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode webhook envelope: %w", err)
	}
	if envelope.Event.ObjectType != "activity.email" {
		return nil, ErrNotEmailOpen
	}

	var activity emailActivity
	if len(envelope.Event.Data) > 0 {
		if err := json.Unmarshal(envelope.Event.Data, &activity); err != nil {
			return nil, fmt.Errorf("decode email activity: %w", err)
		}
	}
	if len(activity.Opens) == 0 {
		return nil, ErrNotEmailOpen
	}

	recipient := ""
	if len(activity.To) > 0 {
		recipient = activity.To[0]
	}

	// Close omits the activity id on some subscription shapes. Fall back to
	// the envelope's event id, then to a digest of the stable fields, so a
	// redelivery of the same payload still maps to the same event.
	eventID := activity.ID
	if eventID == "" {
		eventID = envelope.Event.ID
	}
	if eventID == "" {
		sum := sha256.Sum256([]byte(activity.LeadID + "\x00" + activity.Subject + "\x00" + recipient))
		eventID = "ev_" + hex.EncodeToString(sum[:10])
	}

	events := make([]OpenEvent, 0, len(activity.Opens))
	for _, open := range activity.Opens {
		openedAt := open.OpenedAt
		if openedAt.IsZero() {
			openedAt = envelope.Event.DateOpened
		}
		events = append(events, OpenEvent{
			EventID:   eventID,
			LeadID:    activity.LeadID,
			LeadName:  activity.LeadName,
			Subject:   activity.Subject,
			Recipient: recipient,
			OpenCount: len(activity.Opens),
			OpenedAt:  openedAt,
		})
	}
	return events, nil
}
