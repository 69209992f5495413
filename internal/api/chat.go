package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"nexus.chat/internal/ai"
	"nexus.chat/internal/catalog"
	"nexus.chat/internal/chat"
	"nexus.chat/internal/entitlement"
)

type ChatHandler struct {
	registry *Registry
	provider ai.Provider
	limiter  *entitlement.RateLimiter
}

func NewChatHandler(registry *Registry, provider ai.Provider, limiter *entitlement.RateLimiter) *ChatHandler {
	return &ChatHandler{registry: registry, provider: provider, limiter: limiter}
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)
	writeJSON(w, http.StatusOK, map[string]any{"sessions": m.Sessions().Snapshot()})
}

type CreateSessionRequest struct {
	ModelID string `json:"modelId"`
	GodMode bool   `json:"godMode"`
}

func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)

	models := m.Models()
	modelID := req.ModelID
	if modelID == "" {
		modelID = entitlement.DefaultModelID(models)
	} else if !modelOffered(models, modelID) {
		http.Error(w, "Model not available on this plan", http.StatusForbidden)
		return
	}

	if req.GodMode && !m.Entitlement().GodModeEligible {
		http.Error(w, "God mode not available on this plan", http.StatusForbidden)
		return
	}

	session := m.Sessions().Create(modelID, req.GodMode)
	m.SaveSessions()
	writeJSON(w, http.StatusCreated, session)
}

func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)

	session, ok := m.Sessions().Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)

	if !m.Sessions().Delete(chi.URLParam(r, "id")) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	m.SaveSessions()
	w.WriteHeader(http.StatusNoContent)
}

type SetModelRequest struct {
	ModelID string `json:"modelId"`
}

func (h *ChatHandler) SetModel(w http.ResponseWriter, r *http.Request) {
	var req SetModelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)

	if !modelOffered(m.Models(), req.ModelID) {
		http.Error(w, "Model not available on this plan", http.StatusForbidden)
		return
	}
	if !m.Sessions().SetModel(chi.URLParam(r, "id"), req.ModelID) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	m.SaveSessions()
	w.WriteHeader(http.StatusNoContent)
}

type SetToneRequest struct {
	Tone chat.Tone `json:"tone"`
}

func (h *ChatHandler) SetTone(w http.ResponseWriter, r *http.Request) {
	var req SetToneRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)

	if req.Tone == chat.ToneGod && !m.Entitlement().GodModeEligible {
		http.Error(w, "God mode not available on this plan", http.StatusForbidden)
		return
	}
	if !m.Sessions().SetTone(chi.URLParam(r, "id"), req.Tone) {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	m.SaveSessions()
	w.WriteHeader(http.StatusNoContent)
}

type SendMessageRequest struct {
	Text        string            `json:"text"`
	Attachments []chat.Attachment `json:"attachments"`
}

// Send appends the user message and streams the model response as
// server-sent events. Entitlement violations abort before any state change.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Text == "" && len(req.Attachments) == 0 {
		http.Error(w, "Empty message", http.StatusBadRequest)
		return
	}

	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)
	sessionID := chi.URLParam(r, "id")

	session, ok := m.Sessions().Get(sessionID)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	images := 0
	for _, a := range req.Attachments {
		size := int64(base64.StdEncoding.DecodedLen(len(a.Data)))
		if err := chat.ValidateAttachment(a, size); err != nil {
			http.Error(w, "Invalid attachment", http.StatusBadRequest)
			return
		}
		if a.Type == "image" {
			images++
		}
	}

	ep := m.Entitlement()
	model, ok := catalog.ModelByID(session.ModelID)
	if !ok {
		http.Error(w, "Unknown model", http.StatusInternalServerError)
		return
	}

	limiterKey := "anon"
	if claims != nil {
		limiterKey = claims.UserID
	}
	if err := h.limiter.Allow(limiterKey, m.PlanID(), model.ID); err != nil {
		http.Error(w, "Rate limit reached for this model. Try again later.", http.StatusTooManyRequests)
		return
	}
	if err := entitlement.CheckCredits(ep, model, m.Credits()); err != nil {
		http.Error(w, "Insufficient credits", http.StatusPaymentRequired)
		return
	}
	if err := m.RecordImages(images); err != nil {
		http.Error(w, "Image upload limit reached for this plan", http.StatusForbidden)
		return
	}

	if _, ok := m.Sessions().AppendUserMessage(sessionID, req.Text, req.Attachments); !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	messageID, _ := m.Sessions().BeginModelMessage(sessionID)
	m.SaveSessions()

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	membership := m.Membership()
	companyContext := ""
	if membership.Config != nil {
		companyContext = membership.Config.CompanyContext
	}
	userName := ""
	if p := m.Profile(); p != nil {
		userName = p.Name
	}

	// The session can be deleted by a concurrent request between the append
	// and this refetch; streaming for a gone session just stops.
	session, ok = m.Sessions().Get(sessionID)
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	system := ai.BuildSystemInstruction(ai.SystemOptions{
		Plan:           ep,
		Tone:           session.Tone,
		GodMode:        session.IsGodModeSession || session.Tone == chat.ToneGod,
		CompanyContext: companyContext,
		VaultSession:   ep.VaultEligible,
		UserName:       userName,
	})

	var errStaleSession = errors.New("session no longer current")
	emit := func(text string) error {
		// Chunks are matched by session and message id; a deleted or
		// switched-away session drops them instead of misapplying.
		if !m.Sessions().AppendChunk(sessionID, messageID, text) {
			return errStaleSession
		}
		sendEvent(w, flusher, "chunk", map[string]string{"text": text})
		return nil
	}

	// The refreshed snapshot ends with the streaming placeholder; history is
	// everything before it, ending in the user's new message.
	history := session.Messages[:len(session.Messages)-1]

	usage, err := h.provider.StreamChat(r.Context(), ai.Request{
		UpstreamModel: model.UpstreamModel,
		System:        system,
		History:       history,
		MaxTokens:     ep.MaxTokensOutput,
		Thinking:      model.IsThinking,
	}, emit)
	if err != nil && !errors.Is(err, errStaleSession) {
		log.Warn().Err(err).Str("model", model.ID).Msg("chat: stream failed")
		sendEvent(w, flusher, "error", map[string]string{"message": "The model stream failed."})
	}

	suggestions := chat.SuggestionsForPlan(m.PlanID())
	m.Sessions().FinishModelMessage(sessionID, messageID, suggestions)
	m.SaveSessions()

	tokens := usage.Total()
	if tokens == 0 {
		tokens = chat.EstimateTokens(req.Text)
	}
	if ep.IsCustom {
		if err := m.DeductCredits(model.CreditCost); err != nil {
			log.Warn().Err(err).Msg("chat: credit deduction failed after stream")
		}
	}
	m.RecordUsage(model.ID, tokens, chat.EstimateCost(tokens))

	sendEvent(w, flusher, "done", map[string]any{
		"messageId":   messageID,
		"suggestions": suggestions,
		"tokens":      tokens,
	})
}

func sendEvent(w http.ResponseWriter, flusher http.Flusher, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	flusher.Flush()
}

func modelOffered(models []catalog.AIModel, id string) bool {
	for _, m := range models {
		if m.ID == id {
			return true
		}
	}
	return false
}
