package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"nexus.chat/internal/export"
)

type ExportHandler struct {
	registry *Registry
	exports  *export.Service
}

func NewExportHandler(registry *Registry, exports *export.Service) *ExportHandler {
	return &ExportHandler{registry: registry, exports: exports}
}

func (h *ExportHandler) Export(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaims(r)
	m := h.registry.ManagerFor(r.Context(), claims)

	session, ok := m.Sessions().Get(chi.URLParam(r, "id"))
	if !ok {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}

	owner := "anonymous"
	if claims != nil {
		owner = claims.UserID
	}

	key, err := h.exports.Export(r.Context(), owner, session, m.Entitlement())
	if err != nil {
		if errors.Is(err, export.ErrNotAllowed) {
			http.Error(w, "Export not included in this plan", http.StatusForbidden)
			return
		}
		http.Error(w, "Export failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (h *ExportHandler) Download(w http.ResponseWriter, r *http.Request) {
	claims, _ := getClaims(r)

	owner := "anonymous"
	if claims != nil {
		owner = claims.UserID
	}

	key := chi.URLParam(r, "*")
	if key == "" || !strings.HasPrefix(key, owner+"/") {
		http.Error(w, "Archive not found", http.StatusNotFound)
		return
	}

	data, err := h.exports.Fetch(r.Context(), key)
	if err != nil {
		http.Error(w, "Archive not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "text/markdown")
	w.Write(data)
}
