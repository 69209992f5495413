// Package account owns the mutable state of one signed-in-or-anonymous
// session: plan, trial, credits, analytics, enterprise standing and the chat
// session list. All persistence goes through it; anonymous state lands in the
// local store synchronously, authenticated state is pushed to the sync
// backend fire-and-forget.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"nexus.chat/internal/catalog"
	"nexus.chat/internal/chat"
	"nexus.chat/internal/cloudsync"
	"nexus.chat/internal/enterprise"
	"nexus.chat/internal/entitlement"
	"nexus.chat/internal/localstore"
)

var (
	ErrInvalidCode       = errors.New("invalid code")
	ErrTrialAlreadyUsed  = errors.New("trial already used for this plan")
	ErrNoTrialOffered    = errors.New("plan has no trial")
	ErrUnknownPlan       = errors.New("unknown plan")
	ErrImageLimitReached = errors.New("image limit reached for this plan")
)

// Manager is safe for concurrent use. One Manager serves one account (or one
// anonymous browser-equivalent session); a registry above it maps auth
// subjects to managers.
type Manager struct {
	store    *localstore.Store
	sync     cloudsync.Service
	resolver *enterprise.Resolver

	now      func() time.Time
	onNotice func(string)

	noticeMu sync.Mutex
	pending  []string

	mu          sync.Mutex
	profile     *cloudsync.UserProfile
	membership  enterprise.Membership
	planID      string
	trialExpiry time.Time
	usedTrials  map[string]bool
	credits     int
	imageCount  int
	custom      *catalog.CustomPlanConfig
	analytics   cloudsync.UserAnalytics
	sessions    *chat.List

	saves sync.WaitGroup
}

type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithNoticeFunc receives user-facing notices (trial expiry, seat billing).
func WithNoticeFunc(fn func(string)) Option {
	return func(m *Manager) { m.onNotice = fn }
}

func NewManager(store *localstore.Store, svc cloudsync.Service, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		sync:     svc,
		resolver: enterprise.NewResolver(svc),
		now:      time.Now,
		onNotice: func(string) {},
	}
	for _, opt := range opts {
		opt(m)
	}
	m.loadAnonymous()
	return m
}

// Wait blocks until queued background saves finish. Used at shutdown and in
// tests.
func (m *Manager) Wait() {
	m.saves.Wait()
}

func (m *Manager) notice(msg string) {
	m.noticeMu.Lock()
	m.pending = append(m.pending, msg)
	m.noticeMu.Unlock()
	m.onNotice(msg)
}

// TakeNotices drains the queued user-facing notices. The account state
// endpoint delivers them to the client on its next poll.
func (m *Manager) TakeNotices() []string {
	m.noticeMu.Lock()
	defer m.noticeMu.Unlock()
	out := m.pending
	m.pending = nil
	return out
}

// --- anonymous local state ---

func (m *Manager) loadAnonymous() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.profile = nil
	m.membership = enterprise.Membership{Role: enterprise.RoleNone}
	m.planID = catalog.FreePlanID
	m.trialExpiry = time.Time{}
	m.usedTrials = map[string]bool{}
	m.credits = 0
	m.imageCount = 0
	m.custom = nil
	m.analytics = cloudsync.DefaultAnalytics()
	m.sessions = chat.NewList()

	if v, ok := m.store.Get(localstore.KeyPlan); ok && catalog.KnownPlan(v) {
		m.planID = v
	}
	if v, ok := m.store.Get(localstore.KeyTrialExpiry); ok {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			m.trialExpiry = time.UnixMilli(ms)
		}
	}
	if v, ok := m.store.Get(localstore.KeyUsedTrials); ok {
		var used []string
		if json.Unmarshal([]byte(v), &used) == nil {
			for _, id := range used {
				m.usedTrials[id] = true
			}
		}
	}
	if v, ok := m.store.Get(localstore.KeyCredits); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			m.credits = n
		}
	}
	if v, ok := m.store.Get(localstore.KeyImageCount); ok {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			m.imageCount = n
		}
	}
	if v, ok := m.store.Get(localstore.KeyCustomPlan); ok {
		var cfg catalog.CustomPlanConfig
		if json.Unmarshal([]byte(v), &cfg) == nil {
			m.custom = &cfg
			if m.planID == catalog.EnterprisePlanID {
				m.membership = enterprise.Membership{Role: enterprise.RoleOwner, Config: m.custom}
			}
		}
	}
	if v, ok := m.store.Get(localstore.KeySessions); ok {
		var sessions []chat.Session
		if json.Unmarshal([]byte(v), &sessions) == nil {
			m.sessions.Replace(sessions)
		}
	}
}

// persistLocked writes the current state. Callers hold m.mu.
func (m *Manager) persistLocked() {
	if m.profile == nil {
		m.persistAnonymousLocked()
		return
	}

	var trialExpiry int64
	if !m.trialExpiry.IsZero() {
		trialExpiry = m.trialExpiry.UnixMilli()
	}
	used := make([]string, 0, len(m.usedTrials))
	for id := range m.usedTrials {
		used = append(used, id)
	}
	sort.Strings(used)

	payload := cloudsync.SavePayload{
		Analytics:        m.analytics,
		Credits:          m.credits,
		PlanID:           m.planID,
		TrialExpiry:      trialExpiry,
		UsedTrials:       used,
		ImageCount:       m.imageCount,
		EnterpriseConfig: m.membership.Config,
		TeamMembers:      m.membership.Members,
	}
	enterprise.SanitizePayload(m.membership.Role, &payload)

	userID := m.profile.ID
	m.saves.Add(1)
	go func() {
		defer m.saves.Done()
		m.sync.SaveUserData(context.Background(), userID, payload)
	}()
}

func (m *Manager) persistAnonymousLocked() {
	set := func(key, value string) {
		if err := m.store.Set(key, value); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("account: local persist failed")
		}
	}

	set(localstore.KeyPlan, m.planID)
	set(localstore.KeyCredits, strconv.Itoa(m.credits))
	set(localstore.KeyImageCount, strconv.Itoa(m.imageCount))

	if m.trialExpiry.IsZero() {
		m.store.Delete(localstore.KeyTrialExpiry)
	} else {
		set(localstore.KeyTrialExpiry, strconv.FormatInt(m.trialExpiry.UnixMilli(), 10))
	}

	used := make([]string, 0, len(m.usedTrials))
	for id := range m.usedTrials {
		used = append(used, id)
	}
	raw, _ := json.Marshal(used)
	set(localstore.KeyUsedTrials, string(raw))

	if m.custom == nil {
		m.store.Delete(localstore.KeyCustomPlan)
	} else {
		raw, _ := json.Marshal(m.custom)
		set(localstore.KeyCustomPlan, string(raw))
	}
}

// --- auth lifecycle ---

// Login authenticates and then replaces the session state wholesale with the
// account's remote data. Anonymous local state stays on disk untouched and
// comes back on logout.
func (m *Manager) Login(ctx context.Context, email, password string) (cloudsync.UserProfile, error) {
	profile, err := m.sync.Login(ctx, email, password)
	if err != nil {
		return cloudsync.UserProfile{}, err
	}
	m.adopt(ctx, profile)
	return profile, nil
}

func (m *Manager) Signup(ctx context.Context, email, password, name string) (cloudsync.UserProfile, error) {
	profile, err := m.sync.Signup(ctx, email, password, name)
	if err != nil {
		return cloudsync.UserProfile{}, err
	}
	m.adopt(ctx, profile)
	return profile, nil
}

// Resume rebuilds authenticated state from a still-valid token, for when the
// in-memory session did not survive but the credential did.
func (m *Manager) Resume(ctx context.Context, userID, email string) {
	m.adopt(ctx, cloudsync.UserProfile{
		ID:     userID,
		Email:  cloudsync.NormalizeEmail(email),
		Name:   email,
		PlanID: catalog.FreePlanID,
	})
}

func (m *Manager) adopt(ctx context.Context, profile cloudsync.UserProfile) {
	data := m.sync.FetchUserData(ctx, profile.ID)
	membership := m.resolver.Resolve(ctx, profile.Email, data)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.profile = &profile
	m.membership = membership
	m.planID = data.PlanID
	if membership.Role == enterprise.RoleOwner || membership.Role == enterprise.RoleMember {
		m.planID = catalog.EnterprisePlanID
	}
	m.trialExpiry = time.Time{}
	if data.TrialExpiry > 0 {
		m.trialExpiry = time.UnixMilli(data.TrialExpiry)
	}
	m.usedTrials = map[string]bool{}
	for _, id := range data.UsedTrials {
		m.usedTrials[id] = true
	}
	m.credits = data.Credits
	m.imageCount = data.ImageCount
	m.custom = membership.Config
	m.analytics = data.Analytics
	m.sessions = chat.NewList()
	m.sessions.Replace(data.Sessions)
}

// Logout drops the remote state and restores whatever the anonymous local
// store holds.
func (m *Manager) Logout() {
	m.Wait()
	m.loadAnonymous()
}

func (m *Manager) Profile() *cloudsync.UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profile == nil {
		return nil
	}
	p := *m.profile
	return &p
}

// --- plan, trial, redemption ---

func (m *Manager) PlanID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.planID
}

func (m *Manager) SetPlan(planID string) error {
	if !catalog.KnownPlan(planID) {
		return ErrUnknownPlan
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.planID = planID
	m.trialExpiry = time.Time{}
	m.persistLocked()
	return nil
}

// StartTrial activates a time-boxed trial. A plan's trial can be used once
// per account, ever; expiry does not re-arm it.
func (m *Manager) StartTrial(planID string) error {
	plan := catalog.PlanByID(planID)
	if plan.ID != planID || plan.TrialDuration == 0 {
		return ErrNoTrialOffered
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.usedTrials[planID] {
		return ErrTrialAlreadyUsed
	}
	m.usedTrials[planID] = true
	m.planID = planID
	m.trialExpiry = m.now().Add(plan.TrialDuration)
	m.persistLocked()
	return nil
}

func (m *Manager) TrialExpiry() (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.trialExpiry, !m.trialExpiry.IsZero()
}

// ExpireTrial reverts an elapsed trial to the free plan. The expiry job calls
// this periodically; it reports whether a reversion happened.
func (m *Manager) ExpireTrial() bool {
	m.mu.Lock()
	if m.trialExpiry.IsZero() || m.now().Before(m.trialExpiry) {
		m.mu.Unlock()
		return false
	}
	expired := m.planID
	m.planID = catalog.FreePlanID
	m.trialExpiry = time.Time{}
	m.persistLocked()
	m.mu.Unlock()

	m.notice("Your " + catalog.PlanByID(expired).Name + " trial has ended.")
	return true
}

// RedeemResult reports what a recognized code did.
type RedeemResult struct {
	PlanID       string
	OpensBuilder bool
}

// Redeem resolves an access code. Plan codes clear any running trial and set
// the plan directly; the reserved builder code opens the enterprise
// configuration flow without touching state.
func (m *Manager) Redeem(code string) (RedeemResult, error) {
	code = strings.TrimSpace(code)

	if code == catalog.EnterpriseBuilderCode {
		return RedeemResult{OpensBuilder: true}, nil
	}

	planID, ok := catalog.RedeemCodes[code]
	if !ok {
		return RedeemResult{}, ErrInvalidCode
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.planID = planID
	m.trialExpiry = time.Time{}
	m.persistLocked()
	return RedeemResult{PlanID: planID}, nil
}

// --- credits ---

func (m *Manager) Credits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.credits
}

func (m *Manager) AddCredits(amount int) {
	if amount <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credits += amount
	m.persistLocked()
}

// DeductCredits rejects a deduction that would take the balance negative; the
// stored balance is untouched in that case.
func (m *Manager) DeductCredits(amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if amount > m.credits {
		return entitlement.ErrInsufficientCredits
	}
	m.credits -= amount
	m.persistLocked()
	return nil
}

// RecordImages counts newly uploaded images against the plan's lifetime
// ceiling. The count never resets; unlimited plans skip the gate.
func (m *Manager) RecordImages(n int) error {
	if n <= 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ep := entitlement.Resolve(m.planID, m.membership.Config)
	if ep.ImageLimit != catalog.ImageUnlimited && m.imageCount+n > ep.ImageLimit {
		return ErrImageLimitReached
	}
	m.imageCount += n
	m.persistLocked()
	return nil
}

func (m *Manager) ImageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.imageCount
}

// --- analytics ---

// RecordUsage folds one completed exchange into the analytics counters and
// the rolling history ring.
func (m *Manager) RecordUsage(modelID string, tokens int, cost float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.analytics.TotalTokens += tokens
	m.analytics.TotalMessages++
	m.analytics.TotalCost += cost
	m.analytics.ActiveChats = len(m.sessions.Snapshot())
	if m.analytics.ModelUsage == nil {
		m.analytics.ModelUsage = map[string]int{}
	}
	m.analytics.ModelUsage[modelID]++

	m.analytics.History = append(m.analytics.History, tokens)
	if len(m.analytics.History) > cloudsync.HistorySize {
		m.analytics.History = m.analytics.History[len(m.analytics.History)-cloudsync.HistorySize:]
	}
	m.persistLocked()
}

func (m *Manager) Analytics() cloudsync.UserAnalytics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.analytics
}

// --- sessions ---

func (m *Manager) Sessions() *chat.List {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions
}

// SaveSessions persists the session list through the narrow sessions-only
// path, never the metadata path.
func (m *Manager) SaveSessions() {
	m.mu.Lock()
	snapshot := m.sessions.Snapshot()
	profile := m.profile
	m.mu.Unlock()

	if profile == nil {
		raw, _ := json.Marshal(snapshot)
		if err := m.store.Set(localstore.KeySessions, string(raw)); err != nil {
			log.Warn().Err(err).Msg("account: local session save failed")
		}
		return
	}

	userID := profile.ID
	m.saves.Add(1)
	go func() {
		defer m.saves.Done()
		m.sync.SaveSessions(context.Background(), userID, snapshot)
	}()
}

// --- enterprise ---

func (m *Manager) Membership() enterprise.Membership {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.membership
}

// ActivateEnterprise turns a builder configuration into the live plan. The
// purchase code must match the configuration's computed total. First
// activation marks the account as owner.
func (m *Manager) ActivateEnterprise(cfg catalog.CustomPlanConfig, purchaseCode string) error {
	cfg.CodingCapability = catalog.NormalizeCoding(cfg.CodingCapability)
	cfg.TotalPrice = catalog.BuilderPrice(cfg)

	if strings.TrimSpace(purchaseCode) != catalog.PurchaseCode(cfg.TotalPrice) {
		return ErrInvalidCode
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.custom = &cfg
	m.planID = catalog.EnterprisePlanID
	m.trialExpiry = time.Time{}
	m.membership = enterprise.Membership{
		Role:    enterprise.RoleOwner,
		Config:  m.custom,
		Members: m.membership.Members,
	}
	m.persistLocked()
	return nil
}

// UpdateEnterpriseConfig replaces the owner's config wholesale.
func (m *Manager) UpdateEnterpriseConfig(cfg catalog.CustomPlanConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.membership.Role != enterprise.RoleOwner {
		return enterprise.ErrNotOwner
	}
	cfg.CodingCapability = catalog.NormalizeCoding(cfg.CodingCapability)
	cfg.TotalPrice = catalog.BuilderPrice(cfg)
	m.custom = &cfg
	m.membership.Config = m.custom
	m.persistLocked()
	return nil
}

func (m *Manager) AddTeamMember(email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.membership.Role != enterprise.RoleOwner {
		return enterprise.ErrNotOwner
	}
	members, added := enterprise.AddMember(m.membership.Members, email)
	if !added {
		return nil
	}
	m.membership.Members = members
	m.persistLocked()
	m.notice("Seat added: $" + strconv.FormatFloat(catalog.SeatPrice, 'f', 2, 64) + "/month")
	return nil
}

func (m *Manager) RemoveTeamMember(email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.membership.Role != enterprise.RoleOwner {
		return enterprise.ErrNotOwner
	}
	members, removed := enterprise.RemoveMember(m.membership.Members, email)
	if !removed {
		return nil
	}
	m.membership.Members = members
	m.persistLocked()
	return nil
}

// CancelEnterprise tears the team down: config, members and owner flag are
// cleared and the plan reverts to free. Members lose their inherited config
// on their next fetch.
func (m *Manager) CancelEnterprise() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.membership.Role != enterprise.RoleOwner {
		return enterprise.ErrNotOwner
	}
	m.custom = nil
	m.membership = enterprise.Membership{Role: enterprise.RoleNone}
	m.planID = catalog.FreePlanID
	m.persistLocked()
	return nil
}

// --- entitlement view ---

// Entitlement resolves the current effective capability set.
func (m *Manager) Entitlement() entitlement.EffectivePlan {
	m.mu.Lock()
	defer m.mu.Unlock()
	return entitlement.Resolve(m.planID, m.membership.Config)
}

// Models lists the models currently offered to this account.
func (m *Manager) Models() []catalog.AIModel {
	m.mu.Lock()
	defer m.mu.Unlock()
	ep := entitlement.Resolve(m.planID, m.membership.Config)
	return entitlement.ModelsFor(ep, m.membership.Config)
}
