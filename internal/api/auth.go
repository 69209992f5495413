package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"nexus.chat/internal/account"
	"nexus.chat/internal/auth"
	"nexus.chat/internal/cloudsync"
	"nexus.chat/internal/config"
)

type AuthHandler struct {
	cfg      *config.Config
	registry *Registry
	google   *auth.OAuthProvider
}

func NewAuthHandler(cfg *config.Config, registry *Registry) *AuthHandler {
	var google *auth.OAuthProvider
	if cfg.GoogleClientID != "" {
		google = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.OAuthRedirectURL)
	}
	return &AuthHandler{cfg: cfg, registry: registry, google: google}
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type AuthResponse struct {
	Token string                `json:"token"`
	User  cloudsync.UserProfile `json:"user"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		http.Error(w, "Missing email or password", http.StatusBadRequest)
		return
	}

	m := account.NewManager(h.registry.store, h.registry.sync, h.registry.opts...)
	profile, err := m.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, cloudsync.ErrInvalidCredentials) {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}
		http.Error(w, "Login failed", http.StatusBadGateway)
		return
	}

	h.issue(w, profile, m)
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" || req.Name == "" {
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	m := account.NewManager(h.registry.store, h.registry.sync, h.registry.opts...)
	profile, err := m.Signup(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		if errors.Is(err, cloudsync.ErrEmailAlreadyRegistered) {
			http.Error(w, "Email already registered", http.StatusConflict)
			return
		}
		http.Error(w, "Signup failed", http.StatusBadGateway)
		return
	}

	h.issue(w, profile, m)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := getClaims(r)
	if ok {
		h.registry.Drop(claims.UserID)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) issue(w http.ResponseWriter, profile cloudsync.UserProfile, m *account.Manager) {
	token, err := auth.GenerateToken(profile.ID, profile.Email, h.cfg.JWTSecret)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	h.registry.Bind(profile.ID, m)
	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: profile})
}

func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.Error(w, "Google sign-in not configured", http.StatusNotImplemented)
		return
	}
	state, err := auth.GenerateRandomToken(24)
	if err != nil {
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   300,
	})
	http.Redirect(w, r, h.google.GetAuthURL(state), http.StatusTemporaryRedirect)
}

// GoogleCallback finishes the flow. OAuth identities are keyed by the
// provider subject and never pass through the password table.
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.google == nil {
		http.Error(w, "Google sign-in not configured", http.StatusNotImplemented)
		return
	}

	cookie, err := r.Cookie("oauth_state")
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		http.Error(w, "Invalid OAuth state", http.StatusBadRequest)
		return
	}

	token, err := h.google.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		http.Error(w, "OAuth exchange failed", http.StatusBadGateway)
		return
	}
	info, err := h.google.GetUserInfo(r.Context(), token)
	if err != nil {
		http.Error(w, "Failed to fetch user info", http.StatusBadGateway)
		return
	}

	userID := "goog_" + info.ID
	m := account.NewManager(h.registry.store, h.registry.sync, h.registry.opts...)
	m.Resume(r.Context(), userID, info.Email)

	jwtToken, err := auth.GenerateToken(userID, cloudsync.NormalizeEmail(info.Email), h.cfg.JWTSecret)
	if err != nil {
		http.Error(w, "Failed to generate token", http.StatusInternalServerError)
		return
	}
	h.registry.Bind(userID, m)

	writeJSON(w, http.StatusOK, map[string]any{
		"token": jwtToken,
		"user": map[string]any{
			"id":    userID,
			"email": cloudsync.NormalizeEmail(info.Email),
			"name":  info.Name,
		},
	})
}
