package chat

import (
	"time"

	"github.com/yiyebaofu0518/typix/internal/domain"
)

// GenerationView is the transport shape of a generation record. File ids are
// additionally resolved into URLs, at most once per id.
type GenerationView struct {
	ID             string                  `json:"id"`
	Type           domain.GenerationType   `json:"type"`
	Prompt         string                  `json:"prompt"`
	Provider       string                  `json:"provider"`
	Model          string                  `json:"model"`
	Status         domain.GenerationStatus `json:"status"`
	FileIDs        []string                `json:"fileIds,omitempty"`
	ResultURLs     []string                `json:"resultUrls,omitempty"`
	ErrorMessage   string                  `json:"errorMessage,omitempty"`
	GenerationTime int64                   `json:"generationTime,omitempty"`
	CreatedAt      time.Time               `json:"createdAt"`
	UpdatedAt      time.Time               `json:"updatedAt"`
}

// MessageView is the transport shape of a message, with its generation
// sub-object when present.
type MessageView struct {
	ID           string             `json:"id"`
	ChatID       string             `json:"chatId"`
	Content      string             `json:"content"`
	Role         domain.MessageRole `json:"role"`
	Type         domain.MessageType `json:"type"`
	GenerationID string             `json:"generationId,omitempty"`
	CreatedAt    time.Time          `json:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt"`
	Generation   *GenerationView    `json:"generation,omitempty"`
}

// ChatView is a chat with its messages.
type ChatView struct {
	ID        string        `json:"id"`
	Title     string        `json:"title"`
	Provider  string        `json:"provider"`
	Model     string        `json:"model"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
	Messages  []MessageView `json:"messages"`
}

func newMessageView(msg *domain.Message, gen *GenerationView) MessageView {
	return MessageView{
		ID:           msg.ID,
		ChatID:       msg.ChatID,
		Content:      msg.Content,
		Role:         msg.Role,
		Type:         msg.Type,
		GenerationID: msg.GenerationID,
		CreatedAt:    msg.CreatedAt,
		UpdatedAt:    msg.UpdatedAt,
		Generation:   gen,
	}
}

func (s *Service) newGenerationView(gen *domain.Generation) *GenerationView {
	view := &GenerationView{
		ID:             gen.ID,
		Type:           gen.Type,
		Prompt:         gen.Prompt,
		Provider:       gen.Provider,
		Model:          gen.Model,
		Status:         gen.Status,
		FileIDs:        gen.FileIDs,
		ErrorMessage:   gen.ErrorMessage,
		GenerationTime: gen.GenerationTime.Milliseconds(),
		CreatedAt:      gen.CreatedAt,
		UpdatedAt:      gen.UpdatedAt,
	}
	if s.files != nil {
		for _, id := range gen.FileIDs {
			view.ResultURLs = append(view.ResultURLs, s.files.URL(id))
		}
	}
	return view
}
