// Package cloudsync abstracts authentication and per-user data persistence
// behind one contract. Three bindings exist: a managed auth+document backend,
// a relational backend, and a local simulation used whenever no backend is
// configured.
package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"nexus.chat/internal/catalog"
	"nexus.chat/internal/chat"
	"nexus.chat/internal/localstore"
)

var (
	ErrInvalidCredentials     = errors.New("invalid credentials")
	ErrEmailAlreadyRegistered = errors.New("email already registered")
	ErrBackendUnavailable     = errors.New("backend unavailable")
)

// HistorySize is the capacity of the rolling token-usage history.
const HistorySize = 24

type UserProfile struct {
	ID                string                    `json:"id"`
	Email             string                    `json:"email"`
	Name              string                    `json:"name"`
	PlanID            string                    `json:"planId"`
	AvatarURL         string                    `json:"avatarUrl,omitempty"`
	CreatedAt         int64                     `json:"createdAt"`
	EnterpriseConfig  *catalog.CustomPlanConfig `json:"enterpriseConfig,omitempty"`
	TeamMembers       []string                  `json:"teamMembers,omitempty"`
	IsEnterpriseOwner bool                      `json:"isEnterpriseOwner,omitempty"`
}

type UserAnalytics struct {
	TotalTokens   int            `json:"totalTokens"`
	TotalMessages int            `json:"totalMessages"`
	TotalCost     float64        `json:"totalCost"`
	ActiveChats   int            `json:"activeChats"`
	ModelUsage    map[string]int `json:"modelUsage"`
	History       []int          `json:"history"`
}

func DefaultAnalytics() UserAnalytics {
	return UserAnalytics{
		ModelUsage: map[string]int{},
		History:    []int{},
	}
}

// UserData is the fetched per-account snapshot. TrialExpiry is unix millis,
// zero when no trial is running; UsedTrials lists every plan whose trial the
// account has ever consumed.
type UserData struct {
	Analytics         UserAnalytics
	Sessions          []chat.Session
	Credits           int
	PlanID            string
	TrialExpiry       int64
	UsedTrials        []string
	ImageCount        int
	EnterpriseConfig  *catalog.CustomPlanConfig
	TeamMembers       []string
	IsEnterpriseOwner bool
}

// SavePayload is the metadata write. Sessions are deliberately absent;
// SaveSessions is the only call that may touch the stored session list.
// IsEnterpriseOwner nil means the owner signal was not resolved at save time;
// bindings must then preserve the stored enterprise config instead of
// overwriting it.
type SavePayload struct {
	Analytics         UserAnalytics
	Credits           int
	PlanID            string
	TrialExpiry       int64
	UsedTrials        []string
	ImageCount        int
	EnterpriseConfig  *catalog.CustomPlanConfig
	TeamMembers       []string
	IsEnterpriseOwner *bool
}

// Service is the uniform sync contract. Save calls log failures and never
// surface them; Fetch returns defaults when the backend misbehaves.
type Service interface {
	Login(ctx context.Context, email, password string) (UserProfile, error)
	Signup(ctx context.Context, email, password, name string) (UserProfile, error)
	FetchUserData(ctx context.Context, userID string) UserData
	SaveUserData(ctx context.Context, userID string, payload SavePayload)
	SaveSessions(ctx context.Context, userID string, sessions []chat.Session)

	// FindOwnerConfig resolves the owner whose member list contains the
	// given (normalized) email. Returns the owner's config and id, or nil
	// when no owner lists the email.
	FindOwnerConfig(ctx context.Context, email string) (*catalog.CustomPlanConfig, string)
}

// Config selects the binding once at startup.
type Config struct {
	FirebaseAPIKey    string
	FirebaseProjectID string
	MySQLDSN          string
}

// New picks the backend from configuration presence: managed document store,
// then relational store, then the local simulation.
func New(cfg Config, store *localstore.Store) Service {
	local := NewLocal(store)

	if cfg.FirebaseAPIKey != "" && cfg.FirebaseProjectID != "" {
		log.Info().Str("project", cfg.FirebaseProjectID).Msg("cloudsync: using managed document backend")
		return NewFirestore(cfg.FirebaseAPIKey, cfg.FirebaseProjectID, local)
	}

	if cfg.MySQLDSN != "" {
		svc, err := NewMySQL(cfg.MySQLDSN)
		if err != nil {
			log.Warn().Err(err).Msg("cloudsync: relational backend unavailable, falling back to local simulation")
			return local
		}
		log.Info().Msg("cloudsync: using relational backend")
		return svc
	}

	log.Warn().Msg("cloudsync: no backend configured, using local simulation")
	return local
}

// NormalizeEmail lowercases and trims an email before it is used as a lookup
// or uniqueness key. Every code path goes through this.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func avatarURL(seed string) string {
	return fmt.Sprintf("https://api.dicebear.com/7.x/avataaars/svg?seed=%s", seed)
}
