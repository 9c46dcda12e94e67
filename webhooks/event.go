package webhooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-payments/core"
)

type eventEnvelope struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Livemode bool   `json:"livemode"`
	Created  int64  `json:"created"`
	Data     *struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// ParseEvent decodes and structurally validates a verified event body.
// Numbers inside data.object are kept as json.Number.
func ParseEvent(body []byte) (core.ProviderEvent, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return core.ProviderEvent{}, core.BadInputError("malformed JSON payload", map[string]any{
			"reason": err.Error(),
		})
	}

	eventID := strings.TrimSpace(envelope.ID)
	eventType := strings.TrimSpace(envelope.Type)
	if eventID == "" || eventType == "" {
		return core.ProviderEvent{}, core.BadInputError("event id and type are required", map[string]any{
			"event_id": eventID,
		})
	}
	if envelope.Data == nil || len(bytes.TrimSpace(envelope.Data.Object)) == 0 {
		return core.ProviderEvent{}, core.BadInputError("event data.object is required", map[string]any{
			"event_id": eventID,
		})
	}

	object := map[string]any{}
	decoder := json.NewDecoder(bytes.NewReader(envelope.Data.Object))
	decoder.UseNumber()
	if err := decoder.Decode(&object); err != nil || object == nil {
		reason := "data.object must be a JSON object"
		if err != nil {
			reason = fmt.Sprintf("%s: %v", reason, err)
		}
		return core.ProviderEvent{}, core.BadInputError("event data.object is required", map[string]any{
			"event_id": eventID,
			"reason":   reason,
		})
	}

	payload := make(json.RawMessage, len(body))
	copy(payload, body)

	return core.ProviderEvent{
		ID:       eventID,
		Type:     eventType,
		Kind:     core.EventKindOf(eventType),
		Livemode: envelope.Livemode,
		Created:  envelope.Created,
		Object:   object,
		Payload:  payload,
	}, nil
}
