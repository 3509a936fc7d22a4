package model

import "time"

// ExportSchemaVersion is bumped when the transcript format changes.
const ExportSchemaVersion = 1

// Transcript is the serialized form of a conversation. Exporting the same
// unchanged conversation twice yields byte-identical output, and importing a
// transcript reproduces the original message sequence.
type Transcript struct {
	SchemaVersion int                `json:"schema_version"`
	Conversation  TranscriptHeader   `json:"conversation"`
	Messages      []TranscriptRecord `json:"messages"`
}

// TranscriptHeader carries the conversation metadata included in an export.
type TranscriptHeader struct {
	Title       string            `json:"title"`
	ContextType ContextType       `json:"context_type"`
	ContextID   string            `json:"context_id,omitempty"`
	ContextName string            `json:"context_name,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// TranscriptRecord is one exported message.
type TranscriptRecord struct {
	Role      Role              `json:"role"`
	Content   string            `json:"content"`
	Timestamp time.Time         `json:"timestamp"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// NewTranscript builds the export form of a conversation.
func NewTranscript(conv *Conversation) *Transcript {
	records := make([]TranscriptRecord, len(conv.Messages))
	for i, msg := range conv.Messages {
		records[i] = TranscriptRecord{
			Role:      msg.Role,
			Content:   msg.Content,
			Timestamp: msg.CreatedAt,
			Metadata:  msg.Metadata,
		}
	}
	return &Transcript{
		SchemaVersion: ExportSchemaVersion,
		Conversation: TranscriptHeader{
			Title:       conv.Title,
			ContextType: conv.ContextType,
			ContextID:   conv.ContextID,
			ContextName: conv.ContextName,
			CreatedAt:   conv.CreatedAt,
			Metadata:    conv.Metadata,
		},
		Messages: records,
	}
}
