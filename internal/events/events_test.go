package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	subject := Subject("tenant-a", "conv-1", EventTurnCompleted)
	assert.Equal(t, "conv.tenant-a.conv-1.event.turn_completed", subject)

	subject = Subject("tenant-a", "conv-1", EventConversationDeleted)
	assert.Equal(t, "conv.tenant-a.conv-1.event.conversation_deleted", subject)
}

func TestNopPublisher(t *testing.T) {
	p := NopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), &Event{Type: EventTurnFailed}))
	p.Close()
}
