package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nexus.chat/internal/chat"
)

// SimProvider fabricates streamed responses offline. It echoes enough of the
// request to make local development usable without credentials.
type SimProvider struct {
	delay time.Duration
}

func NewSimProvider() *SimProvider {
	return &SimProvider{delay: 30 * time.Millisecond}
}

// NewSimProviderWithDelay exists for tests.
func NewSimProviderWithDelay(delay time.Duration) *SimProvider {
	return &SimProvider{delay: delay}
}

func (p *SimProvider) Name() string {
	return "simulator"
}

func (p *SimProvider) StreamChat(ctx context.Context, req Request, emit func(string) error) (Usage, error) {
	prompt := lastUserText(req.History)

	var reply string
	switch {
	case prompt == "":
		reply = "I received your attachment. It looks well formed; ask me anything about it."
	case req.Thinking:
		reply = fmt.Sprintf("Let me think this through step by step. You asked: %q. "+
			"Considering the context of our conversation, the key point is that this is a simulated answer, "+
			"produced locally because no model backend is configured.", prompt)
	default:
		reply = fmt.Sprintf("Here is a simulated answer to %q. Configure a model backend to get real responses.", prompt)
	}

	words := strings.SplitAfter(reply, " ")
	for _, w := range words {
		if p.delay > 0 {
			select {
			case <-time.After(p.delay):
			case <-ctx.Done():
				return Usage{}, ctx.Err()
			}
		}
		if err := emit(w); err != nil {
			return Usage{}, err
		}
	}

	in := 0
	for _, msg := range req.History {
		in += chat.EstimateTokens(msg.Text)
	}
	return Usage{InputTokens: in, OutputTokens: chat.EstimateTokens(reply)}, nil
}

func lastUserText(history []chat.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == chat.RoleUser {
			return strings.TrimSpace(history[i].Text)
		}
	}
	return ""
}
