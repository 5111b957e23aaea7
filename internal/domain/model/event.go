package model

import (
	"encoding/json"
	"time"
)

// Envelope is a verified webhook delivery handed to the ingestion core.
type Envelope struct {
	DeliveryID string
	EventType  string
	Action     string // Empty when the payload carries no action.
	Payload    json.RawMessage
}

// Key renders the routing key as "type" or "type.action".
func (e Envelope) Key() string {
	if e.Action == "" {
		return e.EventType
	}
	return e.EventType + "." + e.Action
}

// IngestedEvent is the audit record of a webhook delivery. It is written once
// by the front door and never mutated.
type IngestedEvent struct {
	DeliveryID     string
	EventType      string
	Action         string
	InstallationID int64
	OrgLogin       string
	RepoFullName   string
	Content        json.RawMessage
	ReceivedAt     time.Time
}

// Envelope returns the routable view of the audit record.
func (e IngestedEvent) Envelope() Envelope {
	return Envelope{
		DeliveryID: e.DeliveryID,
		EventType:  e.EventType,
		Action:     e.Action,
		Payload:    e.Content,
	}
}
