// Package event defines the protocol-neutral event and message model that
// every adapter normalizes into and every workflow node consumes.
package event

import "time"

// Kind classifies an incoming event the way a protocol adapter saw it,
// before any workflow-level interpretation is applied.
type Kind string

const (
	KindMessage   Kind = "message"
	KindNotice    Kind = "notice"
	KindRequest   Kind = "request"
	KindMeta      Kind = "meta"
	KindScheduled Kind = "scheduled"
)

// Event is the canonical, protocol-neutral representation of anything an
// adapter hands to dispatch. Adapters only ever construct one of these;
// nothing downstream knows which protocol it came from except through the
// Protocol field.
type Event struct {
	ID        string
	Kind      Kind
	Protocol  string // "webhook", "websocket", "discord", "telegram"
	BotID     string
	EventName string // adapter-specific sub-type, e.g. "GROUP_AT_MESSAGE_CREATE", "message.group", "MESSAGE_CREATE"

	UserID    string
	GroupID   string
	ChannelID string

	Message   Message
	ToMe      bool
	Timestamp time.Time

	RawData map[string]any
}

// SessionID derives the dedup/affinity key a single conversational thread
// shares, in priority order group > channel > private.
func (e Event) SessionID() string {
	switch {
	case e.GroupID != "":
		return "group_" + e.GroupID
	case e.ChannelID != "":
		return "channel_" + e.ChannelID
	default:
		return "private_" + e.UserID
	}
}

// ScheduledEvent is the synthetic event the scheduler fans out to the bot
// named on each enabled subscription when a schedule trigger fires. It carries no
// message content, only the trigger's identity and fire time.
type ScheduledEvent struct {
	WorkflowID string
	Schedule   string
	Timezone   string
	FiredAt    time.Time
}

// ToEvent lifts a ScheduledEvent into the canonical Event shape so it can be
// routed through the ordinary dispatch path.
func (s ScheduledEvent) ToEvent(botID string) Event {
	return Event{
		Kind:      KindScheduled,
		Protocol:  "scheduler",
		BotID:     botID,
		EventName: "schedule.fire",
		Timestamp: s.FiredAt,
		RawData: map[string]any{
			"workflow_id": s.WorkflowID,
			"schedule":    s.Schedule,
			"timezone":    s.Timezone,
			"fired_at":    s.FiredAt.Format(time.RFC3339),
		},
	}
}
