package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/yiyebaofu0518/typix/internal/domain"
)

// Memory bundles in-memory implementations of every repository interface.
// They back tests and deployments without a configured database. Writers and
// readers never block each other beyond the map guard.
type Memory struct {
	mu          sync.RWMutex
	chats       map[string]domain.Chat
	messages    map[string]domain.Message
	generations map[string]domain.Generation
	settings    map[string]map[string]any
}

// NewMemory creates the in-memory repository bundle.
func NewMemory() *Memory {
	return &Memory{
		chats:       make(map[string]domain.Chat),
		messages:    make(map[string]domain.Message),
		generations: make(map[string]domain.Generation),
		settings:    make(map[string]map[string]any),
	}
}

// Chats returns the chat repository view.
func (m *Memory) Chats() domain.ChatRepository { return (*memoryChats)(m) }

// Messages returns the message repository view.
func (m *Memory) Messages() domain.MessageRepository { return (*memoryMessages)(m) }

// Generations returns the generation repository view.
func (m *Memory) Generations() domain.GenerationRepository { return (*memoryGenerations)(m) }

// Settings returns the provider settings repository view.
func (m *Memory) Settings() domain.ProviderSettingsRepository { return (*memorySettings)(m) }

type memoryChats Memory

func (m *memoryChats) Create(_ context.Context, chat *domain.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chats[chat.ID] = *chat
	return nil
}

func (m *memoryChats) GetByID(_ context.Context, id string) (*domain.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	chat, ok := m.chats[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := chat
	return &out, nil
}

func (m *memoryChats) ListByUser(_ context.Context, userID string) ([]domain.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var chats []domain.Chat
	for _, chat := range m.chats {
		if chat.UserID == userID && !chat.Deleted {
			chats = append(chats, chat)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i].CreatedAt.After(chats[j].CreatedAt) })
	return chats, nil
}

func (m *memoryChats) Update(_ context.Context, chat *domain.Chat) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.chats[chat.ID]; !ok {
		return domain.ErrNotFound
	}
	m.chats[chat.ID] = *chat
	return nil
}

func (m *memoryChats) SoftDelete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[id]
	if !ok {
		return domain.ErrNotFound
	}
	chat.Deleted = true
	chat.UpdatedAt = time.Now()
	m.chats[id] = chat
	return nil
}

func (m *memoryChats) Touch(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	chat, ok := m.chats[id]
	if !ok {
		return domain.ErrNotFound
	}
	chat.UpdatedAt = at
	m.chats[id] = chat
	return nil
}

type memoryMessages Memory

func (m *memoryMessages) Create(_ context.Context, msg *domain.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[msg.ID] = *msg
	return nil
}

func (m *memoryMessages) ListByChat(_ context.Context, chatID string) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var msgs []domain.Message
	for _, msg := range m.messages {
		if msg.ChatID == chatID {
			msgs = append(msgs, msg)
		}
	}
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt.Before(msgs[j].CreatedAt) })
	return msgs, nil
}

func (m *memoryMessages) LatestCompletedAssistantImage(_ context.Context, chatID string) (*domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *domain.Message
	for _, msg := range m.messages {
		if msg.ChatID != chatID || msg.Role != domain.MessageRoleAssistant || msg.Type != domain.MessageTypeImage {
			continue
		}
		gen, ok := m.generations[msg.GenerationID]
		if !ok || gen.Status != domain.GenerationStatusCompleted || len(gen.FileIDs) == 0 {
			continue
		}
		if latest == nil || msg.CreatedAt.After(latest.CreatedAt) {
			found := msg
			latest = &found
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

type memoryGenerations Memory

func (m *memoryGenerations) Create(_ context.Context, gen *domain.Generation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generations[gen.ID] = *gen
	return nil
}

func (m *memoryGenerations) GetByID(_ context.Context, id string) (*domain.Generation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	gen, ok := m.generations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := gen
	out.FileIDs = append([]string(nil), gen.FileIDs...)
	return &out, nil
}

func (m *memoryGenerations) MarkGenerating(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gen, ok := m.generations[id]
	if !ok {
		return domain.ErrNotFound
	}
	if gen.Status != domain.GenerationStatusPending {
		return nil
	}
	gen.Status = domain.GenerationStatusGenerating
	gen.UpdatedAt = time.Now()
	m.generations[id] = gen
	return nil
}

func (m *memoryGenerations) Complete(_ context.Context, id string, fileIDs []string, took time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gen, ok := m.generations[id]
	if !ok {
		return domain.ErrNotFound
	}
	if gen.Status.Terminal() {
		return domain.ErrTerminalStatus
	}
	gen.Status = domain.GenerationStatusCompleted
	gen.FileIDs = append([]string(nil), fileIDs...)
	gen.GenerationTime = took
	gen.ErrorMessage = ""
	gen.UpdatedAt = time.Now()
	m.generations[id] = gen
	return nil
}

func (m *memoryGenerations) Fail(_ context.Context, id string, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	gen, ok := m.generations[id]
	if !ok {
		return domain.ErrNotFound
	}
	if gen.Status.Terminal() {
		return domain.ErrTerminalStatus
	}
	gen.Status = domain.GenerationStatusFailed
	gen.ErrorMessage = errMsg
	gen.UpdatedAt = time.Now()
	m.generations[id] = gen
	return nil
}

type memorySettings Memory

func settingsKey(userID, providerID string) string { return userID + "/" + providerID }

func (m *memorySettings) Get(_ context.Context, userID, providerID string) (map[string]any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	settings, ok := m.settings[settingsKey(userID, providerID)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make(map[string]any, len(settings))
	for k, v := range settings {
		out[k] = v
	}
	return out, nil
}

func (m *memorySettings) Put(_ context.Context, userID, providerID string, settings map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := make(map[string]any, len(settings))
	for k, v := range settings {
		copied[k] = v
	}
	m.settings[settingsKey(userID, providerID)] = copied
	return nil
}
