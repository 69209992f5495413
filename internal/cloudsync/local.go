package cloudsync

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"nexus.chat/internal/auth"
	"nexus.chat/internal/catalog"
	"nexus.chat/internal/chat"
	"nexus.chat/internal/localstore"
)

// localLatency keeps the local simulation asynchronous from the caller's
// point of view, matching the real backends.
const localLatency = 800 * time.Millisecond

type localUser struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	PasswordHash string `json:"passwordHash"`
	Name         string `json:"name"`
	PlanID       string `json:"planId"`
	CreatedAt    int64  `json:"createdAt"`
}

type localData struct {
	Analytics         json.RawMessage `json:"analytics,omitempty"`
	Sessions          json.RawMessage `json:"sessions,omitempty"`
	Credits           int             `json:"credits"`
	PlanID            string          `json:"planId,omitempty"`
	TrialExpiry       int64           `json:"trialExpiry,omitempty"`
	UsedTrials        []string        `json:"usedTrials,omitempty"`
	ImageCount        int             `json:"imageCount,omitempty"`
	Enterprise        json.RawMessage `json:"enterprise,omitempty"`
	IsEnterpriseOwner bool            `json:"isEnterpriseOwner,omitempty"`
}

// Local simulates the sync backend on top of the keyed local store.
type Local struct {
	store   *localstore.Store
	latency time.Duration
}

func NewLocal(store *localstore.Store) *Local {
	return &Local{store: store, latency: localLatency}
}

// NewLocalWithLatency exists for tests and embedded use.
func NewLocalWithLatency(store *localstore.Store, latency time.Duration) *Local {
	return &Local{store: store, latency: latency}
}

func (l *Local) sleep(ctx context.Context) {
	if l.latency <= 0 {
		return
	}
	select {
	case <-time.After(l.latency):
	case <-ctx.Done():
	}
}

func (l *Local) users() []localUser {
	raw, ok := l.store.Get(localstore.KeyUsers)
	if !ok {
		return nil
	}
	var users []localUser
	if err := json.Unmarshal([]byte(raw), &users); err != nil {
		return nil
	}
	return users
}

func (l *Local) saveUsers(users []localUser) {
	if err := l.store.Set(localstore.KeyUsers, encodeJSON(users)); err != nil {
		log.Warn().Err(err).Msg("local sync: save users failed")
	}
}

func (l *Local) Login(ctx context.Context, email, password string) (UserProfile, error) {
	l.sleep(ctx)
	email = NormalizeEmail(email)

	for _, u := range l.users() {
		if NormalizeEmail(u.Email) == email && auth.CheckPassword(password, u.PasswordHash) {
			return l.profile(u), nil
		}
	}
	return UserProfile{}, ErrInvalidCredentials
}

func (l *Local) Signup(ctx context.Context, email, password, name string) (UserProfile, error) {
	l.sleep(ctx)
	email = NormalizeEmail(email)

	users := l.users()
	for _, u := range users {
		if NormalizeEmail(u.Email) == email {
			return UserProfile{}, ErrEmailAlreadyRegistered
		}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return UserProfile{}, err
	}

	u := localUser{
		ID:           "usr_" + uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         name,
		PlanID:       catalog.FreePlanID,
		CreatedAt:    time.Now().UnixMilli(),
	}
	l.saveUsers(append(users, u))
	return l.profile(u), nil
}

func (l *Local) profile(u localUser) UserProfile {
	return UserProfile{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		PlanID:    u.PlanID,
		AvatarURL: avatarURL(u.Name),
		CreatedAt: u.CreatedAt,
	}
}

func (l *Local) data(userID string) localData {
	var d localData
	if raw, ok := l.store.Get(localstore.KeyDataPrefix + userID); ok {
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			d = localData{}
		}
	}
	return d
}

func (l *Local) putData(userID string, d localData) {
	if err := l.store.Set(localstore.KeyDataPrefix+userID, encodeJSON(d)); err != nil {
		log.Warn().Err(err).Msg("local sync: save data failed")
	}
}

func (l *Local) FetchUserData(ctx context.Context, userID string) UserData {
	l.sleep(ctx)

	d := l.data(userID)
	ent := decodeEnterprise(d.Enterprise)

	planID := d.PlanID
	if planID == "" {
		planID = catalog.FreePlanID
	}

	return UserData{
		Analytics:         decodeAnalytics(d.Analytics),
		Sessions:          decodeSessions(d.Sessions),
		Credits:           d.Credits,
		PlanID:            planID,
		TrialExpiry:       d.TrialExpiry,
		UsedTrials:        d.UsedTrials,
		ImageCount:        d.ImageCount,
		EnterpriseConfig:  ent.Config,
		TeamMembers:       ent.Members,
		IsEnterpriseOwner: d.IsEnterpriseOwner,
	}
}

func (l *Local) SaveUserData(ctx context.Context, userID string, payload SavePayload) {
	l.sleep(ctx)

	d := l.data(userID)
	d.Analytics = json.RawMessage(encodeJSON(payload.Analytics))
	d.Credits = payload.Credits
	d.PlanID = payload.PlanID
	d.TrialExpiry = payload.TrialExpiry
	d.UsedTrials = payload.UsedTrials
	d.ImageCount = payload.ImageCount

	if payload.IsEnterpriseOwner != nil {
		d.IsEnterpriseOwner = *payload.IsEnterpriseOwner
		d.Enterprise = json.RawMessage(encodeJSON(enterpriseBlob{
			Config:  payload.EnterpriseConfig,
			Members: payload.TeamMembers,
		}))
	}
	// Owner signal unresolved: keep whatever enterprise blob is stored.

	l.putData(userID, d)
}

func (l *Local) SaveSessions(ctx context.Context, userID string, sessions []chat.Session) {
	l.sleep(ctx)

	d := l.data(userID)
	d.Sessions = json.RawMessage(encodeJSON(sessions))
	l.putData(userID, d)
}

func (l *Local) FindOwnerConfig(ctx context.Context, email string) (*catalog.CustomPlanConfig, string) {
	l.sleep(ctx)
	email = NormalizeEmail(email)

	for _, key := range l.store.Keys(localstore.KeyDataPrefix) {
		raw, ok := l.store.Get(key)
		if !ok {
			continue
		}
		var d localData
		if err := json.Unmarshal([]byte(raw), &d); err != nil {
			continue
		}
		ent := decodeEnterprise(d.Enterprise)
		if ent.Config == nil {
			continue
		}
		for _, member := range ent.Members {
			if NormalizeEmail(member) == email {
				return ent.Config, key[len(localstore.KeyDataPrefix):]
			}
		}
	}
	return nil, ""
}
