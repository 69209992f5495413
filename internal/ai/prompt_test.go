package ai

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus.chat/internal/catalog"
	"nexus.chat/internal/chat"
	"nexus.chat/internal/entitlement"
)

func TestBuildSystemInstruction(t *testing.T) {
	ep := entitlement.Resolve("super-premium", nil)

	s := BuildSystemInstruction(SystemOptions{
		Plan:    ep,
		Tone:    chat.TonePrecise,
		GodMode: true,
	})
	assert.Contains(t, s, "God Mode")
	assert.Contains(t, s, "precisely")
	assert.Contains(t, s, "hardened session")
	assert.Contains(t, s, "runnable programs")

	free := BuildSystemInstruction(SystemOptions{Plan: entitlement.Resolve("free", nil)})
	assert.NotContains(t, free, "God Mode")
	assert.Contains(t, free, "not included")
}

func TestBuildSystemInstructionDataLinkAndVault(t *testing.T) {
	cfg := &catalog.CustomPlanConfig{CompanyContext: "https://acme.example", SecurityLevel: catalog.SecurityHigh}
	ep := entitlement.Resolve(catalog.EnterprisePlanID, cfg)

	s := BuildSystemInstruction(SystemOptions{
		Plan:           ep,
		CompanyContext: cfg.CompanyContext,
		VaultSession:   true,
		UserName:       "Alice",
	})
	assert.Contains(t, s, "https://acme.example")
	assert.Contains(t, s, "vault session")
	assert.Contains(t, s, "Alice")
}

func TestSimProviderStreams(t *testing.T) {
	p := NewSimProviderWithDelay(0)

	var got strings.Builder
	usage, err := p.StreamChat(context.Background(), Request{
		UpstreamModel: "gemini-2.5-flash",
		History: []chat.Message{
			{Role: chat.RoleUser, Text: "What is the capital of France?"},
		},
	}, func(text string) error {
		got.WriteString(text)
		return nil
	})
	require.NoError(t, err)
	assert.Contains(t, got.String(), "What is the capital of France?")
	assert.Greater(t, usage.Total(), 0)
}

func TestSimProviderStopsWhenEmitFails(t *testing.T) {
	p := NewSimProviderWithDelay(0)

	calls := 0
	_, err := p.StreamChat(context.Background(), Request{
		History: []chat.Message{{Role: chat.RoleUser, Text: "stop early"}},
	}, func(string) error {
		calls++
		return context.Canceled
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
