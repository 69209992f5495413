package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidAttachment = errors.New("invalid attachment")

const (
	RoleUser  = "user"
	RoleModel = "model"
)

type Tone string

const (
	TonePrecise  Tone = "precise"
	ToneBalanced Tone = "balanced"
	ToneCreative Tone = "creative"
	ToneGod      Tone = "god"
)

// MaxAttachmentSize caps inline uploads at 5 MiB of decoded payload.
const MaxAttachmentSize = 5 * 1024 * 1024

const titleLimit = 30

type Attachment struct {
	Type     string `json:"type"` // image | audio
	Data     string `json:"data"` // base64
	MimeType string `json:"mimeType"`
}

type Message struct {
	ID          string       `json:"id"`
	Role        string       `json:"role"`
	Text        string       `json:"text"`
	Timestamp   int64        `json:"timestamp"`
	IsStreaming bool         `json:"isStreaming,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Suggestions []string     `json:"suggestions,omitempty"`
}

type Session struct {
	ID               string    `json:"id"`
	Title            string    `json:"title"`
	Messages         []Message `json:"messages"`
	ModelID          string    `json:"modelId"`
	LastModified     int64     `json:"lastModified"`
	IsGodModeSession bool      `json:"isGodModeSession,omitempty"`
	Tone             Tone      `json:"tone,omitempty"`
}

func NewSession(modelID string, godMode bool) Session {
	return Session{
		ID:               uuid.NewString(),
		Title:            "New Chat",
		Messages:         []Message{},
		ModelID:          modelID,
		LastModified:     time.Now().UnixMilli(),
		IsGodModeSession: godMode,
		Tone:             ToneBalanced,
	}
}

// DeriveTitle truncates the first user message into a session title.
func DeriveTitle(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return "Image Analysis"
	}
	runes := []rune(text)
	if len(runes) > titleLimit {
		return string(runes[:titleLimit])
	}
	return text
}

// ValidateAttachment enforces the size and type limits on inline uploads.
// Size is the decoded payload length.
func ValidateAttachment(a Attachment, size int64) error {
	if size > MaxAttachmentSize {
		return ErrInvalidAttachment
	}
	if !strings.HasPrefix(a.MimeType, "image/") && !strings.HasPrefix(a.MimeType, "audio/") {
		return ErrInvalidAttachment
	}
	switch a.Type {
	case "image", "audio":
		return nil
	}
	return ErrInvalidAttachment
}

// suggestionPlans are the tiers that receive follow-up suggestions after a
// completed response.
var suggestionPlans = map[string]bool{
	"premium":       true,
	"pro-premium":   true,
	"super-premium": true,
	"max":           true,
}

func SuggestionsForPlan(planID string) []string {
	if !suggestionPlans[planID] {
		return nil
	}
	return []string{"Tell me more.", "Summarize this.", "Explain details."}
}

// EstimateTokens approximates usage at 4 characters per token.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// EstimateCost prices estimated tokens at $0.50 per million.
func EstimateCost(tokens int) float64 {
	return float64(tokens) / 1000000 * 0.50
}
