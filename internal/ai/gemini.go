package ai

import (
	"context"
	"encoding/base64"
	"fmt"

	"google.golang.org/genai"

	"nexus.chat/internal/chat"
)

type GeminiProvider struct {
	client *genai.Client
}

func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func (p *GeminiProvider) Name() string {
	return "gemini"
}

func (p *GeminiProvider) StreamChat(ctx context.Context, req Request, emit func(string) error) (Usage, error) {
	contents := historyToContents(req.History)

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
	}
	if req.MaxTokens > 0 {
		config.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.Thinking {
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(int32(8192))}
	}

	var usage Usage
	for resp, err := range p.client.Models.GenerateContentStream(ctx, req.UpstreamModel, contents, config) {
		if err != nil {
			return usage, fmt.Errorf("gemini stream: %w", err)
		}
		if resp.UsageMetadata != nil {
			in := int(resp.UsageMetadata.PromptTokenCount)
			usage = Usage{
				InputTokens:  in,
				OutputTokens: int(resp.UsageMetadata.TotalTokenCount) - in,
			}
		}
		if text := resp.Text(); text != "" {
			if err := emit(text); err != nil {
				return usage, err
			}
		}
	}
	return usage, nil
}

func historyToContents(history []chat.Message) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		var role genai.Role = genai.RoleUser
		if msg.Role == chat.RoleModel {
			role = genai.RoleModel
		}

		var parts []*genai.Part
		if msg.Text != "" {
			parts = append(parts, genai.NewPartFromText(msg.Text))
		}
		for _, a := range msg.Attachments {
			data, err := base64.StdEncoding.DecodeString(a.Data)
			if err != nil {
				continue
			}
			parts = append(parts, genai.NewPartFromBytes(data, a.MimeType))
		}
		if len(parts) == 0 {
			continue
		}
		contents = append(contents, genai.NewContentFromParts(parts, role))
	}
	return contents
}
