package entitlement

import (
	"errors"

	"nexus.chat/internal/catalog"
)

var (
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrRateLimited         = errors.New("rate limit reached")
)

// EffectivePlan is the fully resolved capability set for an account.
type EffectivePlan struct {
	ID               string
	Name             string
	AllowedModels    []string
	CodingCapability catalog.CodingCapability
	GodModeEligible  bool
	VaultEligible    bool
	MaxTokensOutput  int
	ImageLimit       int
	VoiceCapability  catalog.VoiceCapability
	CanExport        bool
	SecurityLevel    catalog.SecurityLevel
	IsCustom         bool
}

// customMaxTokens is the fixed output ceiling for enterprise-custom plans.
const customMaxTokens = 100000

// Resolve maps a plan id and optional enterprise config to the effective
// capability set. Unknown plan ids fall back to the free tier; the function
// never fails.
func Resolve(planID string, custom *catalog.CustomPlanConfig) EffectivePlan {
	if planID == catalog.EnterprisePlanID && custom != nil {
		name := "Enterprise Custom"
		if custom.TeamName != "" {
			name = custom.TeamName
		}
		return EffectivePlan{
			ID:               catalog.EnterprisePlanID,
			Name:             name,
			AllowedModels:    custom.AllowedModels,
			CodingCapability: catalog.NormalizeCoding(custom.CodingCapability),
			GodModeEligible:  true,
			VaultEligible:    custom.SecurityLevel == catalog.SecurityHigh || custom.SecurityLevel == catalog.SecurityAdvance,
			MaxTokensOutput:  customMaxTokens,
			ImageLimit:       catalog.ImageUnlimited,
			VoiceCapability:  catalog.VoiceNeural,
			CanExport:        true,
			SecurityLevel:    custom.SecurityLevel,
			IsCustom:         true,
		}
	}

	p := catalog.PlanByID(planID)
	security := catalog.SecurityLow
	if p.VaultEligible {
		security = catalog.SecurityHigh
	}
	return EffectivePlan{
		ID:               p.ID,
		Name:             p.Name,
		AllowedModels:    p.AllowedModels,
		CodingCapability: catalog.NormalizeCoding(p.CodingCapability),
		GodModeEligible:  p.GodModeEligible,
		VaultEligible:    p.VaultEligible,
		MaxTokensOutput:  p.MaxTokensOutput,
		ImageLimit:       p.ImageLimit,
		VoiceCapability:  p.VoiceCapability,
		CanExport:        p.CanExport,
		SecurityLevel:    security,
	}
}

// ModelsFor returns the models offered to the account, in catalog order. A
// custom plan with a company context gets the agent model prepended
// regardless of its allowed list.
func ModelsFor(ep EffectivePlan, custom *catalog.CustomPlanConfig) []catalog.AIModel {
	allowed := make(map[string]bool, len(ep.AllowedModels))
	for _, id := range ep.AllowedModels {
		allowed[id] = true
	}

	var models []catalog.AIModel
	if ep.IsCustom && custom != nil && custom.CompanyContext != "" {
		models = append(models, catalog.AgentModel)
	}
	for _, m := range catalog.Models {
		if allowed[m.ID] {
			models = append(models, m)
		}
	}
	return models
}

// DefaultModelID picks a model for new sessions: the agent if present, then
// the flagship, then the first offered model, then the catalog's first entry.
func DefaultModelID(models []catalog.AIModel) string {
	for _, m := range models {
		if m.ID == catalog.AgentModelID {
			return m.ID
		}
	}
	for _, m := range models {
		if m.ID == catalog.FlagshipModelID {
			return m.ID
		}
	}
	if len(models) > 0 {
		return models[0].ID
	}
	return catalog.Models[0].ID
}

// CheckCredits gates a request on a custom plan against the model's credit
// cost. Non-custom plans never consume credits.
func CheckCredits(ep EffectivePlan, model catalog.AIModel, credits int) error {
	if !ep.IsCustom {
		return nil
	}
	if credits < model.CreditCost {
		return ErrInsufficientCredits
	}
	return nil
}
