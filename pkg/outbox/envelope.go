package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/marketplace-backend/pkg/enums"
)

// ActorRef identifies who produced the event. System actors carry no user id.
type ActorRef struct {
	UserID *uuid.UUID      `json:"userId,omitempty"`
	Role   enums.ActorRole `json:"role"`
}

// CurrentPayloadVersion is stamped on envelopes when the producer does not
// pick a version. Consumers decode by (event type, version).
const CurrentPayloadVersion = 1

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored or delivered envelope.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, err
	}
	return envelope, nil
}
