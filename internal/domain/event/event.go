package event

import (
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeLeadAssigned       Type = "lead_assigned"
	TypeAssignmentConflict Type = "assignment_conflict"
	TypeSettingsUpdated    Type = "settings_updated"
	TypeCursorReset        Type = "cursor_reset"
)

// Channel is a domain-scoped Postgres NOTIFY channel. All event types within
// a domain share one LISTEN connection.
type Channel string

const (
	ChannelAssignment Channel = "assignment"
	ChannelSettings   Channel = "settings"
)

var typeToChannel = map[Type]Channel{
	TypeLeadAssigned:       ChannelAssignment,
	TypeAssignmentConflict: ChannelAssignment,
	TypeSettingsUpdated:    ChannelSettings,
	TypeCursorReset:        ChannelSettings,
}

// ChannelFor returns the domain channel for a given event type.
func ChannelFor(t Type) Channel { return typeToChannel[t] }

// Event carries identifiers only, not full state. Subscribers fetch fresh
// state from the policy repository when they need it.
type Event struct {
	ID              uuid.UUID `json:"id"`
	Type            Type      `json:"type"`
	IntegrationType string    `json:"integration_type,omitempty"`
	IntegrationID   string    `json:"integration_id,omitempty"`
	LeadID          string    `json:"lead_id,omitempty"`
	Assignee        string    `json:"assignee,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

func New(eventType Type) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
	}
}
