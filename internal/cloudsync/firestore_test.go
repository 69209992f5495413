package cloudsync

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus.chat/internal/catalog"
	"nexus.chat/internal/localstore"
)

func newTestFirestore(t *testing.T, handler http.Handler) *Firestore {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	f := NewFirestore("test-key", "p1", NewLocalWithLatency(store, 0))
	f.identityURL = srv.URL
	f.firestoreURL = srv.URL
	return f
}

func TestFirestoreOwnerQueryCarriesCallerToken(t *testing.T) {
	ctx := context.Background()
	var queryAuth string

	mux := http.NewServeMux()
	mux.HandleFunc("/accounts:signInWithPassword", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"localId": "u1", "idToken": "tok-123", "email": "dev@acme.com",
		})
	})
	mux.HandleFunc("/projects/p1/databases/(default)/documents:runQuery", func(w http.ResponseWriter, r *http.Request) {
		queryAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]map[string]any{{
			"document": map[string]any{
				"name": "projects/p1/databases/(default)/documents/users/owner-1",
				"fields": map[string]any{
					"enterprise": map[string]any{
						"stringValue": encodeJSON(enterpriseBlob{
							Config:  &catalog.CustomPlanConfig{TeamName: "Acme"},
							Members: []string{"Dev@Acme.com"},
						}),
					},
				},
			},
		}})
	})

	f := newTestFirestore(t, mux)
	_, err := f.Login(ctx, "dev@acme.com", "hunter22")
	require.NoError(t, err)

	cfg, ownerID := f.FindOwnerConfig(ctx, "dev@acme.com")
	require.NotNil(t, cfg)
	assert.Equal(t, "Acme", cfg.TeamName)
	assert.Equal(t, "owner-1", ownerID)
	assert.Equal(t, "Bearer tok-123", queryAuth, "owner lookup must run with the caller's credential")
}

func TestFirestoreSaveWritesTrialFields(t *testing.T) {
	ctx := context.Background()
	var mask []string
	var fields map[string]map[string]json.RawMessage

	mux := http.NewServeMux()
	mux.HandleFunc("/projects/p1/databases/(default)/documents/users/u1", func(w http.ResponseWriter, r *http.Request) {
		mask = r.URL.Query()["updateMask.fieldPaths"]
		var body struct {
			Fields map[string]map[string]json.RawMessage `json:"fields"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		fields = body.Fields
		w.Write([]byte("{}"))
	})

	f := newTestFirestore(t, mux)
	f.SaveUserData(ctx, "u1", SavePayload{
		PlanID:      "pro",
		TrialExpiry: 1735689600000,
		UsedTrials:  []string{"pro"},
		ImageCount:  2,
	})

	assert.Contains(t, mask, "trialExpiry")
	assert.Contains(t, mask, "usedTrials")
	assert.Contains(t, mask, "imageCount")
	assert.NotContains(t, mask, "enterprise", "unresolved owner signal keeps enterprise out of the mask")
	assert.NotContains(t, mask, "sessions")

	got := docFields(fields)
	assert.Equal(t, int64(1735689600000), got.integer("trialExpiry"))
	used, ok := got.str("usedTrials")
	require.True(t, ok)
	assert.Equal(t, []string{"pro"}, decodeStringList([]byte(used)))
}
