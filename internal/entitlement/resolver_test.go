package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus.chat/internal/catalog"
)

func TestResolveCatalogPlans(t *testing.T) {
	for _, p := range catalog.Plans {
		ep := Resolve(p.ID, nil)
		assert.Equal(t, p.ID, ep.ID)
		assert.NotEmpty(t, ep.AllowedModels, "plan %s must offer at least one model", p.ID)
		assert.False(t, ep.IsCustom)
	}
}

func TestResolveUnknownPlanFallsBackToFree(t *testing.T) {
	ep := Resolve("does-not-exist", nil)
	assert.Equal(t, catalog.FreePlanID, ep.ID)
	assert.NotEmpty(t, ep.AllowedModels)
}

func TestResolveCustomPlan(t *testing.T) {
	cfg := &catalog.CustomPlanConfig{
		AllowedModels:    []string{"nexus-coder"},
		CodingCapability: catalog.CodingPartial,
		SecurityLevel:    catalog.SecurityAdvance,
		TeamName:         "Acme Corp",
	}
	ep := Resolve(catalog.EnterprisePlanID, cfg)

	assert.True(t, ep.IsCustom)
	assert.Equal(t, "Acme Corp", ep.Name)
	assert.Equal(t, []string{"nexus-coder"}, ep.AllowedModels)
	assert.Equal(t, catalog.CodingHalf, ep.CodingCapability, "partial folds into half")
	assert.True(t, ep.GodModeEligible)
	assert.True(t, ep.VaultEligible)
	assert.True(t, ep.CanExport)
	assert.Equal(t, catalog.ImageUnlimited, ep.ImageLimit)
	assert.Equal(t, catalog.VoiceNeural, ep.VoiceCapability)
	assert.Equal(t, customMaxTokens, ep.MaxTokensOutput)
}

func TestResolveCustomPlanVaultRequiresHighSecurity(t *testing.T) {
	cfg := &catalog.CustomPlanConfig{
		AllowedModels: []string{"nexus-0"},
		SecurityLevel: catalog.SecurityMedium,
	}
	assert.False(t, Resolve(catalog.EnterprisePlanID, cfg).VaultEligible)

	cfg.SecurityLevel = catalog.SecurityHigh
	assert.True(t, Resolve(catalog.EnterprisePlanID, cfg).VaultEligible)
}

func TestModelsForCatalogOrder(t *testing.T) {
	ep := Resolve("max", nil)
	models := ModelsFor(ep, nil)
	require.NotEmpty(t, models)

	// Returned models must follow catalog order.
	pos := map[string]int{}
	for i, m := range catalog.Models {
		pos[m.ID] = i
	}
	for i := 1; i < len(models); i++ {
		assert.Less(t, pos[models[i-1].ID], pos[models[i].ID])
	}
}

func TestModelsForAgentPrepended(t *testing.T) {
	cfg := &catalog.CustomPlanConfig{
		AllowedModels:  []string{"nexus-0"},
		CompanyContext: "https://acme.example",
	}
	ep := Resolve(catalog.EnterprisePlanID, cfg)
	models := ModelsFor(ep, cfg)

	require.NotEmpty(t, models)
	assert.Equal(t, catalog.AgentModelID, models[0].ID)

	// The agent is offered even when the allowed list would exclude it.
	cfg.AllowedModels = nil
	models = ModelsFor(Resolve(catalog.EnterprisePlanID, cfg), cfg)
	require.Len(t, models, 1)
	assert.Equal(t, catalog.AgentModelID, models[0].ID)
}

func TestDefaultModelID(t *testing.T) {
	agent := catalog.AgentModel
	flagship, _ := catalog.ModelByID(catalog.FlagshipModelID)
	lite, _ := catalog.ModelByID("nexus-0")

	assert.Equal(t, catalog.AgentModelID, DefaultModelID([]catalog.AIModel{lite, agent}))
	assert.Equal(t, catalog.FlagshipModelID, DefaultModelID([]catalog.AIModel{lite, flagship}))
	assert.Equal(t, "nexus-0", DefaultModelID([]catalog.AIModel{lite}))
	assert.Equal(t, catalog.Models[0].ID, DefaultModelID(nil))
}

func TestCheckCredits(t *testing.T) {
	model, ok := catalog.ModelByID(catalog.AgentModelID)
	require.True(t, ok)

	custom := Resolve(catalog.EnterprisePlanID, &catalog.CustomPlanConfig{AllowedModels: []string{"nexus-0"}})
	assert.ErrorIs(t, CheckCredits(custom, model, model.CreditCost-1), ErrInsufficientCredits)
	assert.NoError(t, CheckCredits(custom, model, model.CreditCost))

	// Standard plans never consume credits.
	free := Resolve(catalog.FreePlanID, nil)
	assert.NoError(t, CheckCredits(free, model, 0))
}
