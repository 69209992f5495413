package catalog

import "time"

type CodingCapability string

const (
	CodingNone    CodingCapability = "none"
	CodingPartial CodingCapability = "partial"
	CodingHalf    CodingCapability = "half"
	CodingFull    CodingCapability = "full"
)

// NormalizeCoding folds the legacy "partial" value into "half". The catalog
// used both names for the same tier.
func NormalizeCoding(c CodingCapability) CodingCapability {
	if c == CodingPartial {
		return CodingHalf
	}
	return c
}

type SecurityLevel string

const (
	SecurityNone    SecurityLevel = "none"
	SecurityLow     SecurityLevel = "low"
	SecurityMedium  SecurityLevel = "medium"
	SecurityHigh    SecurityLevel = "high"
	SecurityAdvance SecurityLevel = "advance"
)

type VoiceCapability string

const (
	VoiceNone   VoiceCapability = "none"
	VoiceBasic  VoiceCapability = "basic"
	VoiceNeural VoiceCapability = "neural"
)

// ImageUnlimited marks a plan without an image-upload ceiling.
const ImageUnlimited = -1

const (
	FreePlanID       = "free"
	EnterprisePlanID = "enterprise-custom"
)

type Plan struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Price            float64          `json:"price"`
	Description      string           `json:"description"`
	AllowedModels    []string         `json:"allowed_models"`
	CodingCapability CodingCapability `json:"coding_capability"`
	TrialDuration    time.Duration    `json:"trial_duration,omitempty"`
	GodModeEligible  bool             `json:"god_mode_eligible"`
	VaultEligible    bool             `json:"vault_eligible"`
	MaxTokensOutput  int              `json:"max_tokens_output"`
	ImageLimit       int              `json:"image_limit"`
	VoiceCapability  VoiceCapability  `json:"voice_capability"`
	CanExport        bool             `json:"can_export"`
}

// CustomPlanConfig is the owner-authored enterprise plan override.
type CustomPlanConfig struct {
	AllowedModels    []string         `json:"allowedModels"`
	CodingCapability CodingCapability `json:"codingCapability"`
	TotalPrice       float64          `json:"totalPrice"`
	TeamName         string           `json:"teamName,omitempty"`
	RemoveBranding   bool             `json:"removeBranding"`
	SecurityLevel    SecurityLevel    `json:"securityLevel"`
	CompanyContext   string           `json:"companyContext,omitempty"`
}

var Plans = []Plan{
	{
		ID:               FreePlanID,
		Name:             "Free",
		Price:            0,
		Description:      "Entry access to the Nexus engine",
		AllowedModels:    []string{"nexus-0", "nexus-0-2"},
		CodingCapability: CodingNone,
		MaxTokensOutput:  2048,
		ImageLimit:       3,
		VoiceCapability:  VoiceNone,
	},
	{
		ID:               "go",
		Name:             "Go",
		Price:            4,
		Description:      "Faster responses, basic voice",
		AllowedModels:    []string{"nexus-0", "nexus-0-2", "nexus-1-flash"},
		CodingCapability: CodingNone,
		TrialDuration:    24 * time.Hour,
		MaxTokensOutput:  4096,
		ImageLimit:       10,
		VoiceCapability:  VoiceBasic,
	},
	{
		ID:               "plus",
		Name:             "Plus",
		Price:            9,
		Description:      "Balanced model access and chat export",
		AllowedModels:    []string{"nexus-0", "nexus-0-1", "nexus-0-2", "nexus-1-flash"},
		CodingCapability: CodingHalf,
		TrialDuration:    24 * time.Hour,
		MaxTokensOutput:  8192,
		ImageLimit:       25,
		VoiceCapability:  VoiceBasic,
		CanExport:        true,
	},
	{
		ID:               "pro",
		Name:             "Pro",
		Price:            17,
		Description:      "Vision analysis and standard coding",
		AllowedModels:    []string{"nexus-0", "nexus-0-1", "nexus-0-2", "nexus-1-flash", "nexus-vision"},
		CodingCapability: CodingHalf,
		TrialDuration:    3 * 24 * time.Hour,
		MaxTokensOutput:  8192,
		ImageLimit:       60,
		VoiceCapability:  VoiceBasic,
		CanExport:        true,
	},
	{
		ID:               "premium",
		Name:             "Premium",
		Price:            29,
		Description:      "Neural voice and follow-up suggestions",
		AllowedModels:    []string{"nexus-0", "nexus-0-1", "nexus-0-2", "nexus-1-flash", "nexus-vision", "nexus-coder"},
		CodingCapability: CodingFull,
		TrialDuration:    3 * 24 * time.Hour,
		MaxTokensOutput:  16384,
		ImageLimit:       120,
		VoiceCapability:  VoiceNeural,
		CanExport:        true,
	},
	{
		ID:               "pro-premium",
		Name:             "Pro Premium",
		Price:            45,
		Description:      "Vault sessions and the data link",
		AllowedModels:    []string{"nexus-0", "nexus-0-1", "nexus-0-2", "nexus-1-flash", "nexus-vision", "nexus-coder"},
		CodingCapability: CodingFull,
		TrialDuration:    7 * 24 * time.Hour,
		VaultEligible:    true,
		MaxTokensOutput:  16384,
		ImageLimit:       250,
		VoiceCapability:  VoiceNeural,
		CanExport:        true,
	},
	{
		ID:               "super-premium",
		Name:             "Super Premium",
		Price:            69,
		Description:      "God mode eligibility",
		AllowedModels:    []string{"nexus-0", "nexus-0-1", "nexus-0-2", "nexus-1-flash", "nexus-vision", "nexus-coder"},
		CodingCapability: CodingFull,
		TrialDuration:    7 * 24 * time.Hour,
		GodModeEligible:  true,
		VaultEligible:    true,
		MaxTokensOutput:  32768,
		ImageLimit:       500,
		VoiceCapability:  VoiceNeural,
		CanExport:        true,
	},
	{
		ID:               "max",
		Name:             "Max",
		Price:            99,
		Description:      "Unlimited images, every public model",
		AllowedModels:    []string{"nexus-0", "nexus-0-1", "nexus-0-2", "nexus-1-flash", "nexus-vision", "nexus-coder", "nexus-infinity"},
		CodingCapability: CodingFull,
		TrialDuration:    7 * 24 * time.Hour,
		GodModeEligible:  true,
		VaultEligible:    true,
		MaxTokensOutput:  32768,
		ImageLimit:       ImageUnlimited,
		VoiceCapability:  VoiceNeural,
		CanExport:        true,
	},
	{
		ID:               "super-max",
		Name:             "Super Max",
		Price:            149,
		Description:      "Raised output ceilings for heavy sessions",
		AllowedModels:    []string{"nexus-0", "nexus-0-1", "nexus-0-2", "nexus-1-flash", "nexus-vision", "nexus-coder", "nexus-infinity"},
		CodingCapability: CodingFull,
		GodModeEligible:  true,
		VaultEligible:    true,
		MaxTokensOutput:  65536,
		ImageLimit:       ImageUnlimited,
		VoiceCapability:  VoiceNeural,
		CanExport:        true,
	},
	{
		ID:               "full-max-premium",
		Name:             "Full Max Premium",
		Price:            199,
		Description:      "Everything, at the top ceiling",
		AllowedModels:    []string{"nexus-0", "nexus-0-1", "nexus-0-2", "nexus-1-flash", "nexus-vision", "nexus-coder", "nexus-infinity"},
		CodingCapability: CodingFull,
		GodModeEligible:  true,
		VaultEligible:    true,
		MaxTokensOutput:  100000,
		ImageLimit:       ImageUnlimited,
		VoiceCapability:  VoiceNeural,
		CanExport:        true,
	},
}

// PlanByID returns the catalog entry, or the free plan for unknown ids.
func PlanByID(id string) Plan {
	for _, p := range Plans {
		if p.ID == id {
			return p
		}
	}
	return Plans[0]
}

// KnownPlan reports whether id names a catalog plan or the enterprise marker.
func KnownPlan(id string) bool {
	if id == EnterprisePlanID {
		return true
	}
	for _, p := range Plans {
		if p.ID == id {
			return true
		}
	}
	return false
}
