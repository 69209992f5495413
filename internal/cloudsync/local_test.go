package cloudsync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus.chat/internal/catalog"
	"nexus.chat/internal/chat"
	"nexus.chat/internal/localstore"
)

func newTestLocal(t *testing.T) *Local {
	t.Helper()
	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	return NewLocalWithLatency(store, 0)
}

func boolPtr(b bool) *bool { return &b }

func TestLocalSignupAndLogin(t *testing.T) {
	svc := newTestLocal(t)
	ctx := context.Background()

	p, err := svc.Signup(ctx, "  Alice@Example.COM ", "hunter22", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", p.Email)
	assert.Equal(t, catalog.FreePlanID, p.PlanID)
	assert.NotEmpty(t, p.ID)

	_, err = svc.Signup(ctx, "ALICE@example.com", "other", "Imposter")
	assert.ErrorIs(t, err, ErrEmailAlreadyRegistered)

	got, err := svc.Login(ctx, "alice@EXAMPLE.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)

	_, err = svc.Login(ctx, "alice@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Login(ctx, "nobody@example.com", "hunter22")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLocalSaveFetchRoundTrip(t *testing.T) {
	svc := newTestLocal(t)
	ctx := context.Background()

	analytics := UserAnalytics{
		TotalTokens:   1200,
		TotalMessages: 7,
		TotalCost:     0.0006,
		ActiveChats:   2,
		ModelUsage:    map[string]int{"nexus-0-1": 7},
		History:       []int{100, 200, 900},
	}
	svc.SaveUserData(ctx, "u1", SavePayload{
		Analytics:         analytics,
		Credits:           55,
		PlanID:            "pro",
		TrialExpiry:       1735689600000,
		UsedTrials:        []string{"premium", "pro"},
		ImageCount:        4,
		IsEnterpriseOwner: boolPtr(false),
	})

	got := svc.FetchUserData(ctx, "u1")
	assert.Equal(t, analytics, got.Analytics)
	assert.Equal(t, 55, got.Credits)
	assert.Equal(t, "pro", got.PlanID)
	assert.Equal(t, int64(1735689600000), got.TrialExpiry)
	assert.Equal(t, []string{"premium", "pro"}, got.UsedTrials)
	assert.Equal(t, 4, got.ImageCount)
	assert.False(t, got.IsEnterpriseOwner)
}

func TestLocalFetchUnknownUserDefaults(t *testing.T) {
	svc := newTestLocal(t)

	got := svc.FetchUserData(context.Background(), "missing")
	assert.Equal(t, catalog.FreePlanID, got.PlanID)
	assert.Zero(t, got.Credits)
	assert.Empty(t, got.Sessions)
	assert.NotNil(t, got.Analytics.ModelUsage)
}

func TestLocalSessionsSavedSeparately(t *testing.T) {
	svc := newTestLocal(t)
	ctx := context.Background()

	svc.SaveUserData(ctx, "u1", SavePayload{PlanID: "plus", Credits: 10})

	sessions := []chat.Session{chat.NewSession("nexus-0-1", false)}
	svc.SaveSessions(ctx, "u1", sessions)

	// A later metadata save must not clobber the stored sessions.
	svc.SaveUserData(ctx, "u1", SavePayload{PlanID: "plus", Credits: 9})

	got := svc.FetchUserData(ctx, "u1")
	require.Len(t, got.Sessions, 1)
	assert.Equal(t, sessions[0].ID, got.Sessions[0].ID)
	assert.Equal(t, 9, got.Credits)
}

func TestLocalPreservesEnterpriseWhenOwnerSignalUnresolved(t *testing.T) {
	svc := newTestLocal(t)
	ctx := context.Background()

	cfg := &catalog.CustomPlanConfig{
		TeamName:      "Acme",
		AllowedModels: []string{"nexus-0"},
		TotalPrice:    85,
	}
	svc.SaveUserData(ctx, "owner", SavePayload{
		PlanID:            catalog.EnterprisePlanID,
		EnterpriseConfig:  cfg,
		TeamMembers:       []string{"member@acme.com"},
		IsEnterpriseOwner: boolPtr(true),
	})

	// Owner flag nil: the stored config and members must survive.
	svc.SaveUserData(ctx, "owner", SavePayload{
		PlanID:  catalog.EnterprisePlanID,
		Credits: 3,
	})

	got := svc.FetchUserData(ctx, "owner")
	require.NotNil(t, got.EnterpriseConfig)
	assert.Equal(t, "Acme", got.EnterpriseConfig.TeamName)
	assert.Equal(t, []string{"member@acme.com"}, got.TeamMembers)
	assert.True(t, got.IsEnterpriseOwner)
	assert.Equal(t, 3, got.Credits)
}

func TestLocalFindOwnerConfig(t *testing.T) {
	svc := newTestLocal(t)
	ctx := context.Background()

	cfg := &catalog.CustomPlanConfig{TeamName: "Acme", TotalPrice: 85}
	svc.SaveUserData(ctx, "owner-1", SavePayload{
		PlanID:            catalog.EnterprisePlanID,
		EnterpriseConfig:  cfg,
		TeamMembers:       []string{"Member@Acme.com"},
		IsEnterpriseOwner: boolPtr(true),
	})

	found, ownerID := svc.FindOwnerConfig(ctx, "member@ACME.com")
	require.NotNil(t, found)
	assert.Equal(t, "Acme", found.TeamName)
	assert.Equal(t, "owner-1", ownerID)

	none, _ := svc.FindOwnerConfig(ctx, "stranger@acme.com")
	assert.Nil(t, none)
}
