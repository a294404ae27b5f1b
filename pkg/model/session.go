package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionID string

// NewSessionID generates a new unique SessionID
func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

// ConversationVersion is the serialization schema version of Conversation.
// Bump when the blob layout changes so old blobs can be migrated on read.
const ConversationVersion = 1

// Conversation is the per-session metadata state tracked across turns:
// entities the engine has mentioned, corrections the user has made, and
// snapshots of enumerated lists shown to the user. It is serialized as an
// opaque JSON blob alongside the session record and round-trips losslessly.
type Conversation struct {
	Version   int       `json:"v"`
	SessionID SessionID `json:"session_id"`

	// Turn increases by exactly one per inbound utterance and orders all
	// tracked records for recency tie-breaks.
	Turn int `json:"turn"`

	Entities    []*TrackedEntity `json:"entities,omitempty"`
	Corrections []*Correction    `json:"corrections,omitempty"`
	Lists       []*ListSnapshot  `json:"lists,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewConversation creates an empty conversation state for a session
func NewConversation(id SessionID) *Conversation {
	now := time.Now()
	return &Conversation{
		Version:   ConversationVersion,
		SessionID: id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
