package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EnvelopeVersion is written on every new row. Readers reject newer versions
// instead of guessing at their shape.
const EnvelopeVersion = 1

var errEmptyEventData = errors.New("outbox: envelope carries no data")

// ActorRef identifies who caused the event. Webhook and cron driven events
// carry no actor.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and relayed
// verbatim as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

func newEnvelope(data any, actor *ActorRef, occurredAt time.Time) (PayloadEnvelope, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return PayloadEnvelope{}, fmt.Errorf("outbox: encode event data: %w", err)
	}
	if isEmptyJSON(raw) {
		return PayloadEnvelope{}, errEmptyEventData
	}
	return PayloadEnvelope{
		Version:    EnvelopeVersion,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Actor:      actor,
		Data:       raw,
	}, nil
}

// DecodeEnvelope parses a stored payload and checks it can be relayed.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("outbox: decode envelope: %w", err)
	}
	if env.Version < 1 || env.Version > EnvelopeVersion {
		return PayloadEnvelope{}, fmt.Errorf("outbox: unsupported envelope version %d", env.Version)
	}
	if isEmptyJSON(env.Data) {
		return PayloadEnvelope{}, errEmptyEventData
	}
	return env, nil
}

func isEmptyJSON(raw []byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
