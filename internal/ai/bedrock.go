package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"nexus.chat/internal/chat"
)

type BedrockProvider struct {
	client  *bedrockruntime.Client
	modelID string
}

func NewBedrockProvider(ctx context.Context) (*BedrockProvider, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, err
	}

	return &BedrockProvider{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: os.Getenv("BEDROCK_MODEL_ID"),
	}, nil
}

func (p *BedrockProvider) Name() string {
	return "bedrock-" + p.modelID
}

func (p *BedrockProvider) StreamChat(ctx context.Context, req Request, emit func(string) error) (Usage, error) {
	messages := make([]map[string]any, 0, len(req.History))
	for _, msg := range req.History {
		role := "user"
		if msg.Role == chat.RoleModel {
			role = "assistant"
		}
		content := []map[string]any{}
		if msg.Text != "" {
			content = append(content, map[string]any{"type": "text", "text": msg.Text})
		}
		for _, a := range msg.Attachments {
			if a.Type != "image" {
				continue
			}
			content = append(content, map[string]any{
				"type": "image",
				"source": map[string]any{
					"type":       "base64",
					"media_type": a.MimeType,
					"data":       a.Data,
				},
			})
		}
		if len(content) == 0 {
			continue
		}
		messages = append(messages, map[string]any{"role": role, "content": content})
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}
	reqBody := map[string]any{
		"anthropic_version": "bedrock-2023-05-31",
		"max_tokens":        maxTokens,
		"system":            req.System,
		"messages":          messages,
	}
	body, _ := json.Marshal(reqBody)

	output, err := p.client.InvokeModelWithResponseStream(ctx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     aws.String(p.modelID),
		Body:        body,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return Usage{}, err
	}
	stream := output.GetStream()
	defer stream.Close()

	var usage Usage
	for event := range stream.Events() {
		chunk, ok := event.(*types.ResponseStreamMemberChunk)
		if !ok {
			continue
		}

		var payload struct {
			Type  string `json:"type"`
			Delta struct {
				Text string `json:"text"`
			} `json:"delta"`
			Message struct {
				Usage struct {
					InputTokens int `json:"input_tokens"`
				} `json:"usage"`
			} `json:"message"`
			Usage struct {
				OutputTokens int `json:"output_tokens"`
			} `json:"usage"`
		}
		if err := json.Unmarshal(chunk.Value.Bytes, &payload); err != nil {
			continue
		}

		switch payload.Type {
		case "message_start":
			usage.InputTokens = payload.Message.Usage.InputTokens
		case "content_block_delta":
			if payload.Delta.Text != "" {
				if err := emit(payload.Delta.Text); err != nil {
					return usage, err
				}
			}
		case "message_delta":
			usage.OutputTokens = payload.Usage.OutputTokens
		}
	}
	if err := stream.Err(); err != nil {
		return usage, fmt.Errorf("bedrock stream: %w", err)
	}
	return usage, nil
}
