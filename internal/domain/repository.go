package domain

import (
	"context"
	"time"
)

// ChatRepository defines persistence for chats.
type ChatRepository interface {
	Create(ctx context.Context, chat *Chat) error
	GetByID(ctx context.Context, id string) (*Chat, error)
	ListByUser(ctx context.Context, userID string) ([]Chat, error)
	Update(ctx context.Context, chat *Chat) error
	SoftDelete(ctx context.Context, id string) error
	Touch(ctx context.Context, id string, at time.Time) error
}

// MessageRepository defines persistence for chat messages.
type MessageRepository interface {
	Create(ctx context.Context, msg *Message) error
	ListByChat(ctx context.Context, chatID string) ([]Message, error)
	// LatestCompletedAssistantImage returns the most recent assistant image
	// message in the chat whose generation completed with files, or
	// ErrNotFound when the chat has none. Messages whose generation is still
	// resolving do not qualify; the assistant message of the generation being
	// resolved is already in the chat when the lookup runs.
	LatestCompletedAssistantImage(ctx context.Context, chatID string) (*Message, error)
}

// GenerationRepository defines persistence for generation records. Status
// writes must be monotonic: a terminal status is never overwritten, so
// Complete and Fail on an already-terminal generation return ErrTerminalStatus.
type GenerationRepository interface {
	Create(ctx context.Context, gen *Generation) error
	GetByID(ctx context.Context, id string) (*Generation, error)
	MarkGenerating(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, fileIDs []string, took time.Duration) error
	Fail(ctx context.Context, id string, errMsg string) error
}

// ProviderSettingsRepository stores each user's configured settings per
// provider as a flat key/value map.
type ProviderSettingsRepository interface {
	Get(ctx context.Context, userID, providerID string) (map[string]any, error)
	Put(ctx context.Context, userID, providerID string, settings map[string]any) error
}

// FileStore persists generated images and resolves opaque file ids. URL
// resolution is transport-specific and never touches the stored bytes.
type FileStore interface {
	Save(ctx context.Context, userID string, data []byte) (string, error)
	Data(ctx context.Context, userID, fileID string) ([]byte, error)
	URL(fileID string) string
}
