// Package chat implements the conversation service and the asynchronous
// generation orchestrator. Message submission returns immediately; the
// provider dispatch runs detached from the request that spawned it and is
// observed only through status polling.
package chat

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yiyebaofu0518/typix/internal/domain"
	"github.com/yiyebaofu0518/typix/internal/provider"
)

const defaultResolveTimeout = 5 * time.Minute

// Deps bundles the collaborators the service needs.
type Deps struct {
	Chats       domain.ChatRepository
	Messages    domain.MessageRepository
	Generations domain.GenerationRepository
	Settings    domain.ProviderSettingsRepository
	Files       domain.FileStore
	Registry    *provider.Registry
	Logger      zerolog.Logger
	// ResolveTimeout bounds a single resolution routine. Zero selects the
	// default.
	ResolveTimeout time.Duration
}

// Service owns chats, messages and generation records. The generation record
// is mutated exclusively by the resolution routine: created once, resolved
// once.
type Service struct {
	chats          domain.ChatRepository
	messages       domain.MessageRepository
	generations    domain.GenerationRepository
	settings       domain.ProviderSettingsRepository
	files          domain.FileStore
	registry       *provider.Registry
	logger         zerolog.Logger
	resolveTimeout time.Duration

	wg sync.WaitGroup
}

// NewService constructs the chat service.
func NewService(deps Deps) *Service {
	timeout := deps.ResolveTimeout
	if timeout <= 0 {
		timeout = defaultResolveTimeout
	}
	return &Service{
		chats:          deps.Chats,
		messages:       deps.Messages,
		generations:    deps.Generations,
		settings:       deps.Settings,
		files:          deps.Files,
		registry:       deps.Registry,
		logger:         deps.Logger,
		resolveTimeout: timeout,
	}
}

// CreateChatRequest creates a conversation, optionally with a first message
// that triggers a generation.
type CreateChatRequest struct {
	Title    string   `json:"title"`
	Provider string   `json:"provider"`
	Model    string   `json:"model"`
	Content  string   `json:"content,omitempty"`
	Images   []string `json:"images,omitempty"`
}

// CreateChatResult reports the new chat id and, when a first message was
// supplied, the created message pair.
type CreateChatResult struct {
	ID       string        `json:"id"`
	Messages []MessageView `json:"messages,omitempty"`
}

// CreateChat creates a new chat for the user.
func (s *Service) CreateChat(ctx context.Context, userID string, req CreateChatRequest) (*CreateChatResult, error) {
	providerID := req.Provider
	if providerID == "" {
		def := s.registry.Default()
		if def == nil {
			return nil, fmt.Errorf("create chat: %w", domain.ErrProviderNotFound)
		}
		providerID = def.Descriptor().ID
	}
	prov, err := s.registry.Resolve(providerID)
	if err != nil {
		return nil, err
	}
	modelID := req.Model
	if modelID == "" && len(prov.Descriptor().Models) > 0 {
		modelID = prov.Descriptor().Models[0].ID
	}

	now := time.Now()
	chat := &domain.Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     req.Title,
		Provider:  providerID,
		Model:     modelID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.chats.Create(ctx, chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}

	result := &CreateChatResult{ID: chat.ID}
	if req.Content != "" {
		msgResult, err := s.CreateMessage(ctx, userID, CreateMessageRequest{
			ChatID:   chat.ID,
			Content:  req.Content,
			Provider: providerID,
			Model:    modelID,
			Type:     domain.MessageTypeText,
			Images:   req.Images,
		})
		if err != nil {
			return nil, err
		}
		result.Messages = msgResult.Messages
	}
	return result, nil
}

// ListChats returns the user's chats, newest first.
func (s *Service) ListChats(ctx context.Context, userID string) ([]domain.Chat, error) {
	return s.chats.ListByUser(ctx, userID)
}

// GetChat returns a chat with its messages and resolved generation views.
func (s *Service) GetChat(ctx context.Context, userID, chatID string) (*ChatView, error) {
	chat, err := s.ownedChat(ctx, userID, chatID)
	if err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	view := &ChatView{
		ID:        chat.ID,
		Title:     chat.Title,
		Provider:  chat.Provider,
		Model:     chat.Model,
		CreatedAt: chat.CreatedAt,
		UpdatedAt: chat.UpdatedAt,
	}
	for i := range msgs {
		mv := newMessageView(&msgs[i], nil)
		if msgs[i].GenerationID != "" {
			if gen, err := s.generations.GetByID(ctx, msgs[i].GenerationID); err == nil {
				mv.Generation = s.newGenerationView(gen)
			}
		}
		view.Messages = append(view.Messages, mv)
	}
	return view, nil
}

// UpdateChatRequest changes chat metadata. Provider and model are validated
// together when both are present.
type UpdateChatRequest struct {
	ID       string `json:"id"`
	Title    string `json:"title,omitempty"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

// UpdateChat updates title, provider and model of a chat.
func (s *Service) UpdateChat(ctx context.Context, userID string, req UpdateChatRequest) error {
	chat, err := s.ownedChat(ctx, userID, req.ID)
	if err != nil {
		return err
	}
	if req.Provider != "" && req.Model != "" {
		prov, err := s.registry.Resolve(req.Provider)
		if err != nil {
			return err
		}
		if _, ok := prov.Descriptor().Model(req.Model); !ok {
			return fmt.Errorf("model %q on provider %q: %w", req.Model, req.Provider, domain.ErrModelNotFound)
		}
	}
	if req.Title != "" {
		chat.Title = req.Title
	}
	if req.Provider != "" {
		chat.Provider = req.Provider
	}
	if req.Model != "" {
		chat.Model = req.Model
	}
	chat.UpdatedAt = time.Now()
	if err := s.chats.Update(ctx, chat); err != nil {
		return fmt.Errorf("update chat: %w", err)
	}
	return nil
}

// DeleteChat soft-deletes a chat owned by the user.
func (s *Service) DeleteChat(ctx context.Context, userID, chatID string) error {
	if _, err := s.ownedChat(ctx, userID, chatID); err != nil {
		return err
	}
	return s.chats.SoftDelete(ctx, chatID)
}

// CreateMessageRequest submits a prompt to a chat.
type CreateMessageRequest struct {
	ChatID   string             `json:"chatId"`
	Content  string             `json:"content"`
	Provider string             `json:"provider"`
	Model    string             `json:"model"`
	Type     domain.MessageType `json:"type"`
	// Images holds base64-encoded reference images, no data-URL prefix.
	Images []string `json:"images,omitempty"`
}

// CreateMessageResult carries the persisted user and assistant messages. The
// assistant message references a generation still in pending state.
type CreateMessageResult struct {
	Messages []MessageView `json:"messages"`
}

// CreateMessage inserts the user message, a pending generation record and the
// assistant message referencing it, then launches the resolution routine and
// returns without waiting for the provider. Synchronous failures (unknown
// chat, unknown provider) abort before any record is created.
func (s *Service) CreateMessage(ctx context.Context, userID string, req CreateMessageRequest) (*CreateMessageResult, error) {
	if req.Content == "" {
		return nil, fmt.Errorf("content is required: %w", domain.ErrInvalidRequest)
	}
	if _, err := s.ownedChat(ctx, userID, req.ChatID); err != nil {
		return nil, err
	}
	prov, err := s.registry.Resolve(req.Provider)
	if err != nil {
		return nil, err
	}

	msgType := req.Type
	if msgType == "" {
		msgType = domain.MessageTypeText
	}
	now := time.Now()
	userMessage := &domain.Message{
		ID:        uuid.NewString(),
		UserID:    userID,
		ChatID:    req.ChatID,
		Content:   req.Content,
		Role:      domain.MessageRoleUser,
		Type:      msgType,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.messages.Create(ctx, userMessage); err != nil {
		return nil, fmt.Errorf("create user message: %w", err)
	}
	if err := s.chats.Touch(ctx, req.ChatID, now); err != nil {
		s.logger.Warn().Err(err).Str("chat_id", req.ChatID).Msg("chat: touch failed")
	}

	gen := &domain.Generation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Type:      domain.GenerationTypeImage,
		Prompt:    req.Content,
		Provider:  req.Provider,
		Model:     req.Model,
		Status:    domain.GenerationStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.generations.Create(ctx, gen); err != nil {
		return nil, fmt.Errorf("create generation: %w", err)
	}

	assistantMessage := &domain.Message{
		ID:           uuid.NewString(),
		UserID:       userID,
		ChatID:       req.ChatID,
		Content:      "",
		Role:         domain.MessageRoleAssistant,
		Type:         domain.MessageTypeImage,
		GenerationID: gen.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.messages.Create(ctx, assistantMessage); err != nil {
		return nil, fmt.Errorf("create assistant message: %w", err)
	}

	// The caller's path ends here; resolution runs detached and outlives
	// the request.
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.resolve(prov, gen.ID, userID, req)
	}()

	return &CreateMessageResult{
		Messages: []MessageView{
			newMessageView(userMessage, nil),
			newMessageView(assistantMessage, s.newGenerationView(gen)),
		},
	}, nil
}

// GenerationStatus returns the generation record for polling, or ErrNotFound
// when it does not exist or is not owned by the caller.
func (s *Service) GenerationStatus(ctx context.Context, userID, generationID string) (*GenerationView, error) {
	gen, err := s.generations.GetByID(ctx, generationID)
	if err != nil {
		return nil, err
	}
	if gen.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return s.newGenerationView(gen), nil
}

// Drain waits for in-flight resolution routines to finish, bounded by ctx.
func (s *Service) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// resolve runs the generation to its terminal status. Errors never propagate
// to any caller; they terminate the job in failed state and are observed only
// via polling. The final status write is the commit point: a crash before it
// leaves the record retryable by a fresh submission.
func (s *Service) resolve(prov provider.Provider, generationID, userID string, req CreateMessageRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), s.resolveTimeout)
	defer cancel()

	log := s.logger.With().Str("generation_id", generationID).Str("provider", req.Provider).Str("model", req.Model).Logger()
	log.Info().Msg("generation: resolving")

	if err := s.generations.MarkGenerating(ctx, generationID); err != nil {
		log.Error().Err(err).Msg("generation: mark generating failed")
	}

	referImages, err := s.referenceImages(ctx, prov, userID, req)
	if err != nil {
		// Generating without the reference would silently produce a
		// different image than the one the user asked to edit.
		s.fail(ctx, generationID, fmt.Sprintf("reference image lookup: %v", err), log)
		return
	}

	settings := s.loadSettings(ctx, prov, userID)

	start := time.Now()
	resp, err := prov.Generate(ctx, provider.GenerateRequest{
		ProviderID: req.Provider,
		ModelID:    req.Model,
		Prompt:     req.Content,
		Images:     referImages,
	}, settings)
	if err != nil {
		s.fail(ctx, generationID, err.Error(), log)
		return
	}
	if resp == nil || len(resp.Images) == 0 {
		s.fail(ctx, generationID, "provider returned no images", log)
		return
	}

	fileIDs := make([]string, 0, len(resp.Images))
	for _, img := range resp.Images {
		data, err := base64.StdEncoding.DecodeString(img)
		if err != nil {
			s.fail(ctx, generationID, fmt.Sprintf("decode generated image: %v", err), log)
			return
		}
		fileID, err := s.files.Save(ctx, userID, data)
		if err != nil {
			s.fail(ctx, generationID, fmt.Sprintf("persist generated image: %v", err), log)
			return
		}
		fileIDs = append(fileIDs, fileID)
	}

	took := time.Since(start)
	if err := s.generations.Complete(ctx, generationID, fileIDs, took); err != nil {
		log.Error().Err(err).Msg("generation: complete write failed")
		return
	}
	log.Info().Int("images", len(fileIDs)).Dur("took", took).Msg("generation: completed")
}

// referenceImages returns the images to condition the generation on: the
// caller's images when supplied, otherwise the latest resolved assistant
// image in the chat when the model can edit images. This enables iterative
// "edit the last image" flows without explicit re-upload.
func (s *Service) referenceImages(ctx context.Context, prov provider.Provider, userID string, req CreateMessageRequest) ([]string, error) {
	if len(req.Images) > 0 {
		return req.Images, nil
	}
	model, ok := prov.Descriptor().Model(req.Model)
	if !ok || !model.SupportsImageEdit {
		return nil, nil
	}
	last, err := s.messages.LatestCompletedAssistantImage(ctx, req.ChatID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	gen, err := s.generations.GetByID(ctx, last.GenerationID)
	if err != nil {
		return nil, err
	}
	if len(gen.FileIDs) == 0 {
		return nil, nil
	}
	data, err := s.files.Data(ctx, userID, gen.FileIDs[len(gen.FileIDs)-1])
	if err != nil {
		return nil, err
	}
	return []string{base64.StdEncoding.EncodeToString(data)}, nil
}

// loadSettings merges the user's persisted provider settings with each schema
// item's default for keys not present.
func (s *Service) loadSettings(ctx context.Context, prov provider.Provider, userID string) provider.Settings {
	stored, err := s.settings.Get(ctx, userID, prov.Descriptor().ID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn().Err(err).Str("provider", prov.Descriptor().ID).Msg("chat: load provider settings failed")
	}
	merged := provider.Settings{}
	for _, item := range prov.SettingsSchema() {
		if v, ok := stored[item.Key]; ok && v != nil && v != "" {
			merged[item.Key] = v
			continue
		}
		if item.Default != nil {
			merged[item.Key] = item.Default
		}
	}
	return merged
}

func (s *Service) fail(ctx context.Context, generationID, msg string, log zerolog.Logger) {
	if err := s.generations.Fail(ctx, generationID, msg); err != nil {
		if errors.Is(err, domain.ErrTerminalStatus) {
			return
		}
		log.Error().Err(err).Msg("generation: fail write failed")
		return
	}
	log.Warn().Str("error_message", msg).Msg("generation: failed")
}

func (s *Service) ownedChat(ctx context.Context, userID, chatID string) (*domain.Chat, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if chat.UserID != userID || chat.Deleted {
		return nil, domain.ErrNotFound
	}
	return chat, nil
}
