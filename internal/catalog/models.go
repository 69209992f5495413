package catalog

type AIModel struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description"`
	UpstreamModel  string  `json:"upstream_model"`
	Tier           string  `json:"tier"`
	IsThinking     bool    `json:"is_thinking,omitempty"`
	CreditCost     int     `json:"credit_cost"`
	BuilderPrice   float64 `json:"builder_price"`
	SupportsVision bool    `json:"supports_vision,omitempty"`
	SupportsAudio  bool    `json:"supports_audio,omitempty"`
}

const (
	// AgentModelID is the synthetic model offered to enterprise accounts with
	// a company context. It is never part of the public catalog.
	AgentModelID = "nexus-agent"

	// FlagshipModelID is the default "balanced" model.
	FlagshipModelID = "nexus-0-1"

	// ThinkingModelID is the free tier's high-capability model, the only one
	// subject to the rolling rate limit.
	ThinkingModelID = "nexus-0-2"
)

var Models = []AIModel{
	{
		ID:            "nexus-0",
		Name:          "Nexus 0 Lite",
		Description:   "Fast general-purpose engine",
		UpstreamModel: "gemini-2.0-flash-lite",
		Tier:          "Standard",
		CreditCost:    1,
		BuilderPrice:  3,
	},
	{
		ID:             "nexus-0-1",
		Name:           "Nexus 0.1",
		Description:    "Balanced multimodal reasoning",
		UpstreamModel:  "gemini-2.5-flash",
		Tier:           "Standard",
		CreditCost:     2,
		BuilderPrice:   5,
		SupportsVision: true,
	},
	{
		ID:             "nexus-0-2",
		Name:           "Nexus 0.2 Thinking",
		Description:    "Deep reasoning with extended deliberation",
		UpstreamModel:  "gemini-2.5-pro",
		Tier:           "Advanced",
		IsThinking:     true,
		CreditCost:     5,
		BuilderPrice:   9,
		SupportsVision: true,
	},
	{
		ID:             "nexus-1-flash",
		Name:           "Nexus 1 Flash",
		Description:    "Low-latency streaming responses",
		UpstreamModel:  "gemini-2.0-flash",
		Tier:           "Standard",
		CreditCost:     1,
		BuilderPrice:   4,
		SupportsVision: true,
		SupportsAudio:  true,
	},
	{
		ID:             "nexus-vision",
		Name:           "Nexus Vision",
		Description:    "Image analysis specialist",
		UpstreamModel:  "gemini-2.5-flash",
		Tier:           "Advanced",
		CreditCost:     3,
		BuilderPrice:   6,
		SupportsVision: true,
	},
	{
		ID:            "nexus-coder",
		Name:          "Nexus Coder",
		Description:   "Code generation and review",
		UpstreamModel: "gemini-2.5-pro",
		Tier:          "Advanced",
		CreditCost:    4,
		BuilderPrice:  8,
	},
	{
		ID:             "nexus-infinity",
		Name:           "Nexus Infinity",
		Description:    "Top-tier context and reasoning",
		UpstreamModel:  "gemini-3-pro-preview",
		Tier:           "Ultimate",
		IsThinking:     true,
		CreditCost:     8,
		BuilderPrice:   15,
		SupportsVision: true,
		SupportsAudio:  true,
	},
}

// AgentModel is the dedicated enterprise endpoint presented when a custom
// plan carries a company context.
var AgentModel = AIModel{
	ID:             AgentModelID,
	Name:           "Enterprise Agent",
	Description:    "Dedicated website/context agent",
	UpstreamModel:  "gemini-3-pro-preview",
	Tier:           "Enterprise",
	CreditCost:     10,
	SupportsVision: true,
	SupportsAudio:  true,
}

// ModelByID looks up a catalog model; the agent model resolves too.
func ModelByID(id string) (AIModel, bool) {
	if id == AgentModelID {
		return AgentModel, true
	}
	for _, m := range Models {
		if m.ID == id {
			return m, true
		}
	}
	return AIModel{}, false
}
