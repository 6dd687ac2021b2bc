package pipeline

import "leadchat_backend/platform/events"

// Event names published by the processor.
const (
	EventMessageProcessed = "message.processed"
	EventLeadQualified    = "lead.qualified"
)

// MessageProcessed is published after a message reaches its terminal
// persisted state, whether the attempt succeeded or failed terminally.
type MessageProcessed struct {
	events.BaseEvent
	MessageID   string
	SenderKey   string
	IsLead      bool
	IsQualified bool
}

func (MessageProcessed) EventName() string { return EventMessageProcessed }

// LeadQualified is published the first time a sender crosses the
// qualification threshold.
type LeadQualified struct {
	events.BaseEvent
	SenderKey string
	Priority  string
}

func (LeadQualified) EventName() string { return EventLeadQualified }
