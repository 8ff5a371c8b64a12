package outbox

import (
	"encoding/json"
	"time"

	"github.com/freightline/settlement-engine/pkg/enums"
)

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int              `json:"version"`
	EventID    string           `json:"eventId"`
	OccurredAt time.Time        `json:"occurredAt"`
	Actor      enums.AuditActor `json:"actor,omitempty"`
	Data       json.RawMessage  `json:"data"`
}
