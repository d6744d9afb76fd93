package client

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yiyebaofu0518/typix/internal/chat"
	"github.com/yiyebaofu0518/typix/internal/domain"
)

func serverMessage(id, content string, role domain.MessageRole) chat.MessageView {
	now := time.Now()
	return chat.MessageView{
		ID:        id,
		ChatID:    "chat-1",
		Content:   content,
		Role:      role,
		Type:      domain.MessageTypeText,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func assistantWithGeneration(id, generationID string, status domain.GenerationStatus) chat.MessageView {
	msg := serverMessage(id, "", domain.MessageRoleAssistant)
	msg.Type = domain.MessageTypeImage
	msg.GenerationID = generationID
	msg.Generation = &chat.GenerationView{ID: generationID, Status: status}
	return msg
}

func TestConfirmReplacesOptimisticMessage(t *testing.T) {
	conv := NewConversation("chat-1")
	tempID := conv.AppendOptimistic("a red fox")
	require.True(t, conv.HasOptimistic())

	conv.Confirm(tempID, []chat.MessageView{
		serverMessage("m1", "a red fox", domain.MessageRoleUser),
		assistantWithGeneration("m2", "g1", domain.GenerationStatusPending),
	})

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
	assert.False(t, conv.HasOptimistic())
	// The prompt content appears exactly once.
	count := 0
	for _, m := range msgs {
		if m.Content == "a red fox" {
			count++
		}
	}
	assert.Equal(t, 1, count)
}

func TestConfirmPreservesInterimTail(t *testing.T) {
	conv := NewConversation("chat-1")
	tempID := conv.AppendOptimistic("first prompt")
	// A message lands after the optimistic one before the server responds.
	conv.Append(serverMessage("later", "unrelated", domain.MessageRoleUser))

	conv.Confirm(tempID, []chat.MessageView{
		serverMessage("m1", "first prompt", domain.MessageRoleUser),
		assistantWithGeneration("m2", "g1", domain.GenerationStatusPending),
	})

	msgs := conv.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, []string{"m1", "m2", "later"}, []string{msgs[0].ID, msgs[1].ID, msgs[2].ID})
}

func TestConfirmUnknownTempIDAppends(t *testing.T) {
	conv := NewConversation("chat-1")
	conv.Confirm("temp-user-gone", []chat.MessageView{serverMessage("m1", "hi", domain.MessageRoleUser)})

	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}

func TestRejectRemovesOptimisticMessage(t *testing.T) {
	conv := NewConversation("chat-1")
	conv.Append(serverMessage("m0", "earlier", domain.MessageRoleUser))
	tempID := conv.AppendOptimistic("doomed prompt")

	conv.Reject(tempID)

	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m0", msgs[0].ID)
	assert.False(t, conv.HasOptimistic())
	// Repeat rejection is a no-op.
	conv.Reject(tempID)
	assert.Len(t, conv.Messages(), 1)
}

func TestApplyGenerationReplacesSubObjectOnly(t *testing.T) {
	conv := NewConversation("chat-1")
	msg := assistantWithGeneration("m2", "g1", domain.GenerationStatusPending)
	conv.Load([]chat.MessageView{serverMessage("m1", "a red fox", domain.MessageRoleUser), msg})

	conv.ApplyGeneration("g1", &chat.GenerationView{
		ID:      "g1",
		Status:  domain.GenerationStatusCompleted,
		FileIDs: []string{"f1"},
	})

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Nil(t, msgs[0].Generation)
	updated := msgs[1]
	assert.Equal(t, "m2", updated.ID)
	assert.Equal(t, msg.CreatedAt, updated.CreatedAt)
	require.NotNil(t, updated.Generation)
	assert.Equal(t, domain.GenerationStatusCompleted, updated.Generation.Status)
	assert.Equal(t, []string{"f1"}, updated.Generation.FileIDs)
}

func TestApplyGenerationUpdatesEveryReference(t *testing.T) {
	conv := NewConversation("chat-1")
	conv.Load([]chat.MessageView{
		assistantWithGeneration("m1", "g1", domain.GenerationStatusPending),
		assistantWithGeneration("m2", "g1", domain.GenerationStatusPending),
	})

	conv.ApplyGeneration("g1", &chat.GenerationView{ID: "g1", Status: domain.GenerationStatusGenerating})

	for _, m := range conv.Messages() {
		require.NotNil(t, m.Generation)
		assert.Equal(t, domain.GenerationStatusGenerating, m.Generation.Status)
	}
}

func TestApplyGenerationNeverRegressesTerminal(t *testing.T) {
	conv := NewConversation("chat-1")
	conv.Load([]chat.MessageView{assistantWithGeneration("m1", "g1", domain.GenerationStatusCompleted)})

	conv.ApplyGeneration("g1", &chat.GenerationView{ID: "g1", Status: domain.GenerationStatusGenerating})

	msgs := conv.Messages()
	assert.Equal(t, domain.GenerationStatusCompleted, msgs[0].Generation.Status)

	// Terminal over terminal is allowed; the latest authoritative record wins.
	conv.ApplyGeneration("g1", &chat.GenerationView{ID: "g1", Status: domain.GenerationStatusFailed, ErrorMessage: "late"})
	msgs = conv.Messages()
	assert.Equal(t, domain.GenerationStatusFailed, msgs[0].Generation.Status)
}

func TestInFlightDeduplicatesAndSkipsTerminal(t *testing.T) {
	conv := NewConversation("chat-1")
	conv.Load([]chat.MessageView{
		assistantWithGeneration("m1", "g1", domain.GenerationStatusPending),
		assistantWithGeneration("m2", "g1", domain.GenerationStatusPending),
		assistantWithGeneration("m3", "g2", domain.GenerationStatusCompleted),
		assistantWithGeneration("m4", "g3", domain.GenerationStatusGenerating),
		serverMessage("m5", "plain text", domain.MessageRoleUser),
	})

	assert.Equal(t, []string{"g1", "g3"}, conv.InFlight())
}

func TestAppendOptimisticTempID(t *testing.T) {
	conv := NewConversation("chat-1")
	tempID := conv.AppendOptimistic("hello")
	assert.True(t, strings.HasPrefix(tempID, "temp-user-"))

	msgs := conv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.MessageRoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "chat-1", msgs[0].ChatID)
}
