package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"nexus.chat/internal/account"
	"nexus.chat/internal/catalog"
)

type AccountHandler struct {
	registry *Registry
}

func NewAccountHandler(registry *Registry) *AccountHandler {
	return &AccountHandler{registry: registry}
}

// State returns everything a client needs to render the account: profile,
// plan, entitlements, offered models, credits, trial and team standing, and
// any notices queued since the last poll.
func (h *AccountHandler) State(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)

	ep := m.Entitlement()
	membership := m.Membership()

	state := map[string]any{
		"planId":        m.PlanID(),
		"effectivePlan": ep,
		"models":        m.Models(),
		"credits":       m.Credits(),
		"imageCount":    m.ImageCount(),
		"analytics":     m.Analytics(),
		"role":          membership.Role,
	}
	if p := m.Profile(); p != nil {
		state["user"] = p
	}
	if expiry, active := m.TrialExpiry(); active {
		state["trialExpiry"] = expiry.UnixMilli()
	}
	if membership.Config != nil {
		state["enterpriseConfig"] = membership.Config
	}
	if len(membership.Members) > 0 {
		state["teamMembers"] = membership.Members
	}
	if notices := m.TakeNotices(); len(notices) > 0 {
		state["notices"] = notices
	}
	writeJSON(w, http.StatusOK, state)
}

type SetPlanRequest struct {
	PlanID string `json:"planId"`
}

func (h *AccountHandler) SetPlan(w http.ResponseWriter, r *http.Request) {
	var req SetPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)

	if err := m.SetPlan(req.PlanID); err != nil {
		http.Error(w, "Unknown plan", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"planId": m.PlanID()})
}

type StartTrialRequest struct {
	PlanID string `json:"planId"`
}

func (h *AccountHandler) StartTrial(w http.ResponseWriter, r *http.Request) {
	var req StartTrialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)

	switch err := m.StartTrial(req.PlanID); {
	case errors.Is(err, account.ErrTrialAlreadyUsed):
		http.Error(w, "Trial already used for this plan", http.StatusConflict)
	case errors.Is(err, account.ErrNoTrialOffered):
		http.Error(w, "Plan has no trial", http.StatusBadRequest)
	case err != nil:
		http.Error(w, "Could not start trial", http.StatusInternalServerError)
	default:
		expiry, _ := m.TrialExpiry()
		writeJSON(w, http.StatusOK, map[string]any{
			"planId":      m.PlanID(),
			"trialExpiry": expiry.UnixMilli(),
		})
	}
}

type RedeemRequest struct {
	Code string `json:"code"`
}

func (h *AccountHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)

	res, err := m.Redeem(req.Code)
	if err != nil {
		http.Error(w, "Invalid code", http.StatusBadRequest)
		return
	}
	if res.OpensBuilder {
		writeJSON(w, http.StatusOK, map[string]any{
			"opensBuilder": true,
			"basePrice":    catalog.BuilderBasePrice,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"planId": res.PlanID})
}

type CreditsRequest struct {
	Amount int `json:"amount"`
}

func (h *AccountHandler) AddCredits(w http.ResponseWriter, r *http.Request) {
	var req CreditsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Amount <= 0 {
		http.Error(w, "Invalid amount", http.StatusBadRequest)
		return
	}

	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)
	m.AddCredits(req.Amount)
	writeJSON(w, http.StatusOK, map[string]any{"credits": m.Credits()})
}

func (h *AccountHandler) Plans(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plans": catalog.Plans})
}
