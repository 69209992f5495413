// Package ai streams model responses. Three providers exist: the Gemini API,
// AWS Bedrock, and an offline simulator used when neither is configured.
package ai

import (
	"context"
	"os"

	"github.com/rs/zerolog/log"

	"nexus.chat/internal/chat"
)

// Request carries one chat turn to a provider. History includes the freshly
// appended user message; UpstreamModel is the provider-level model id.
type Request struct {
	UpstreamModel string
	System        string
	History       []chat.Message
	MaxTokens     int
	Thinking      bool
}

type Usage struct {
	InputTokens  int
	OutputTokens int
}

func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Provider streams a response, calling emit once per text fragment. emit
// returning an error aborts the stream.
type Provider interface {
	Name() string
	StreamChat(ctx context.Context, req Request, emit func(text string) error) (Usage, error)
}

// NewProvider selects by configuration presence: Gemini, then Bedrock, then
// the simulator.
func NewProvider(ctx context.Context) Provider {
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		p, err := NewGeminiProvider(ctx, key)
		if err == nil {
			log.Info().Msg("ai: using gemini provider")
			return p
		}
		log.Warn().Err(err).Msg("ai: gemini init failed")
	}

	if os.Getenv("BEDROCK_MODEL_ID") != "" {
		p, err := NewBedrockProvider(ctx)
		if err == nil {
			log.Info().Str("provider", p.Name()).Msg("ai: using bedrock provider")
			return p
		}
		log.Warn().Err(err).Msg("ai: bedrock init failed")
	}

	log.Warn().Msg("ai: no provider configured, using simulator")
	return NewSimProvider()
}
