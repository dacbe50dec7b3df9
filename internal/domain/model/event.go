// File: internal/domain/model/event.go
package model

// EventType is the normalized kind of an inbound webhook event.
type EventType string

const (
	EventCreated           EventType = "page.created"
	EventUpdated           EventType = "page.updated"
	EventPropertiesUpdated EventType = "page.properties_updated"
	EventDeleted           EventType = "page.deleted"
	EventOther             EventType = "other"
)

// Handled reports whether the relay propagates events of this type.
// Deletions are intentionally not propagated.
func (t EventType) Handled() bool {
	switch t {
	case EventCreated, EventUpdated, EventPropertiesUpdated:
		return true
	}
	return false
}

// WebhookEnvelope mirrors the raw Notion webhook delivery body.
type WebhookEnvelope struct {
	Type              string `json:"type"`
	VerificationToken string `json:"verification_token,omitempty"`
	Entity            struct {
		ID   string `json:"id"`
		Type string `json:"type"`
	} `json:"entity"`
	Data struct {
		Parent struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"parent"`
		UpdatedProperties []string `json:"updated_properties"`
	} `json:"data"`
}

// WebhookEvent is the classified form of one delivery. It lives only for the
// duration of that delivery's processing.
type WebhookEvent struct {
	Type              EventType
	EntityID          string
	EntityType        string
	ParentDatabaseID  string
	ChangedProperties []string
	VerificationToken string
}

// ParseEvent classifies a raw envelope. Unknown type strings map to EventOther.
func ParseEvent(env *WebhookEnvelope) *WebhookEvent {
	ev := &WebhookEvent{
		EntityID:          env.Entity.ID,
		EntityType:        env.Entity.Type,
		ChangedProperties: env.Data.UpdatedProperties,
		VerificationToken: env.VerificationToken,
	}
	switch EventType(env.Type) {
	case EventCreated, EventUpdated, EventPropertiesUpdated, EventDeleted:
		ev.Type = EventType(env.Type)
	default:
		ev.Type = EventOther
	}
	if env.Data.Parent.Type == "database" {
		ev.ParentDatabaseID = env.Data.Parent.ID
	}
	return ev
}
