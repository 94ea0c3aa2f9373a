package domain

import (
	"encoding/json"
)

const (
	TableProfiles = "profiles"
	TableMessages = "messages"
	TableBlocks   = "blocks"
)

type ChangeKind string

const (
	ChangeInsert ChangeKind = "INSERT"
	ChangeUpdate ChangeKind = "UPDATE"
	ChangeDelete ChangeKind = "DELETE"
)

// ChangeEvent is a row-level notification from the change feed.
// Record is the new row (empty on DELETE), OldRecord the previous one when known.
type ChangeEvent struct {
	Table     string          `json:"table"`
	Kind      ChangeKind      `json:"type"`
	Record    json.RawMessage `json:"record,omitempty"`
	OldRecord json.RawMessage `json:"old_record,omitempty"`
}

// MessageParticipants are the routing columns of a messages row.
type MessageParticipants struct {
	SenderID   string `json:"sender_id"`
	ReceiverID string `json:"receiver_id"`
}

// Participants decodes sender and receiver from the new row, if there is one.
func (e ChangeEvent) Participants() (MessageParticipants, bool) {
	return decodeParticipants(e.Record)
}

// OldParticipants decodes sender and receiver from the previous row, if there is one.
func (e ChangeEvent) OldParticipants() (MessageParticipants, bool) {
	return decodeParticipants(e.OldRecord)
}

func decodeParticipants(raw json.RawMessage) (MessageParticipants, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return MessageParticipants{}, false
	}
	var p MessageParticipants
	if err := json.Unmarshal(raw, &p); err != nil {
		return MessageParticipants{}, false
	}
	return p, true
}
