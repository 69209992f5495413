package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"nexus.chat/internal/account"
	"nexus.chat/internal/catalog"
	"nexus.chat/internal/enterprise"
)

type EnterpriseHandler struct {
	registry *Registry
}

func NewEnterpriseHandler(registry *Registry) *EnterpriseHandler {
	return &EnterpriseHandler{registry: registry}
}

// Quote prices a builder configuration without activating it.
func (h *EnterpriseHandler) Quote(w http.ResponseWriter, r *http.Request) {
	var cfg catalog.CustomPlanConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	cfg.CodingCapability = catalog.NormalizeCoding(cfg.CodingCapability)
	writeJSON(w, http.StatusOK, map[string]any{
		"totalPrice": catalog.BuilderPrice(cfg),
		"seatPrice":  catalog.SeatPrice,
	})
}

type ActivateRequest struct {
	Config       catalog.CustomPlanConfig `json:"config"`
	PurchaseCode string                   `json:"purchaseCode"`
}

func (h *EnterpriseHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)

	if err := m.ActivateEnterprise(req.Config, req.PurchaseCode); err != nil {
		if errors.Is(err, account.ErrInvalidCode) {
			http.Error(w, "Invalid purchase code", http.StatusBadRequest)
			return
		}
		http.Error(w, "Activation failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"planId": m.PlanID(),
		"config": m.Membership().Config,
	})
}

func (h *EnterpriseHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var cfg catalog.CustomPlanConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)

	if err := m.UpdateEnterpriseConfig(cfg); err != nil {
		writeOwnerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"config": m.Membership().Config})
}

type MemberRequest struct {
	Email string `json:"email"`
}

func (h *EnterpriseHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req MemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)

	if err := m.AddTeamMember(req.Email); err != nil {
		writeOwnerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": m.Membership().Members})
}

func (h *EnterpriseHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	if email == "" {
		http.Error(w, "Missing member email", http.StatusBadRequest)
		return
	}

	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)

	if err := m.RemoveTeamMember(email); err != nil {
		writeOwnerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": m.Membership().Members})
}

// Cancel tears the team down. The client must send confirm=true; cancellation
// cascades to members on their next fetch.
func (h *EnterpriseHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		http.Error(w, "Cancellation requires confirmation", http.StatusBadRequest)
		return
	}

	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)

	if err := m.CancelEnterprise(); err != nil {
		writeOwnerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"planId": m.PlanID()})
}

func writeOwnerError(w http.ResponseWriter, err error) {
	if errors.Is(err, enterprise.ErrNotOwner) {
		http.Error(w, "Owner-only operation", http.StatusForbidden)
		return
	}
	http.Error(w, "Internal error", http.StatusInternalServerError)
}
