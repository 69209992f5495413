package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nexus.chat/internal/ai"
	"nexus.chat/internal/catalog"
	"nexus.chat/internal/chat"
	"nexus.chat/internal/cloudsync"
	"nexus.chat/internal/config"
	"nexus.chat/internal/export"
	"nexus.chat/internal/localstore"
	"nexus.chat/internal/storage"
)

func newTestServer(t *testing.T) *httptest.Server {
	return newTestServerWithProvider(t, ai.NewSimProviderWithDelay(0))
}

func newTestServerWithProvider(t *testing.T, provider ai.Provider) *httptest.Server {
	t.Helper()

	store, err := localstore.Open(t.TempDir())
	require.NoError(t, err)
	syncSvc := cloudsync.NewLocalWithLatency(store, 0)

	objects, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	cfg := &config.Config{ServerPort: "0", JWTSecret: "test-secret"}
	registry := NewRegistry(store, syncSvc)
	router := NewRouter(cfg, registry, provider, export.NewService(objects, nil))

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, token string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestAnonymousStateAndPlanChange(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, "GET", srv.URL+"/api/account/state", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state map[string]any
	decode(t, resp, &state)
	assert.Equal(t, "free", state["planId"])
	assert.Nil(t, state["user"])

	resp = doJSON(t, "PUT", srv.URL+"/api/account/plan", map[string]string{"planId": "plus"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "PUT", srv.URL+"/api/account/plan", map[string]string{"planId": "nope"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestSignupLoginFlow(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/auth/signup", SignupRequest{
		Email: "alice@example.com", Password: "hunter22", Name: "Alice",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var signed AuthResponse
	decode(t, resp, &signed)
	require.NotEmpty(t, signed.Token)
	assert.Equal(t, "alice@example.com", signed.User.Email)

	resp = doJSON(t, "POST", srv.URL+"/api/auth/signup", SignupRequest{
		Email: "alice@example.com", Password: "x", Name: "Imposter",
	}, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/api/auth/login", LoginRequest{
		Email: "alice@example.com", Password: "wrong",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/api/auth/login", LoginRequest{
		Email: "ALICE@example.com", Password: "hunter22",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var logged AuthResponse
	decode(t, resp, &logged)
	assert.Equal(t, signed.User.ID, logged.User.ID)

	resp = doJSON(t, "GET", srv.URL+"/api/account/state", nil, logged.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state map[string]any
	decode(t, resp, &state)
	require.NotNil(t, state["user"])
}

func TestRedeemEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/account/redeem", RedeemRequest{Code: "garbage"}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/api/account/redeem", RedeemRequest{Code: "2637"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	decode(t, resp, &out)
	assert.Equal(t, "premium", out["planId"])

	resp = doJSON(t, "POST", srv.URL+"/api/account/redeem", RedeemRequest{Code: catalog.EnterpriseBuilderCode}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var builder map[string]any
	decode(t, resp, &builder)
	assert.Equal(t, true, builder["opensBuilder"])
}

func TestChatSessionLifecycleAndStreaming(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/chat/sessions", CreateSessionRequest{}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var session chat.Session
	decode(t, resp, &session)
	assert.Equal(t, "New Chat", session.Title)
	assert.NotEmpty(t, session.ModelID)

	resp = doJSON(t, "POST", srv.URL+"/api/chat/sessions/"+session.ID+"/messages", SendMessageRequest{
		Text: "Hello there",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := new(strings.Builder)
	buf := make([]byte, 4096)
	for {
		n, err := resp.Body.Read(buf)
		body.Write(buf[:n])
		if err != nil {
			break
		}
	}
	resp.Body.Close()
	assert.Contains(t, body.String(), "event: chunk")
	assert.Contains(t, body.String(), "event: done")

	resp = doJSON(t, "GET", srv.URL+"/api/chat/sessions/"+session.ID, nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var after chat.Session
	decode(t, resp, &after)
	require.Len(t, after.Messages, 2)
	assert.Equal(t, chat.RoleModel, after.Messages[1].Role)
	assert.False(t, after.Messages[1].IsStreaming)
	assert.Equal(t, "Hello there", after.Title)

	resp = doJSON(t, "DELETE", srv.URL+"/api/chat/sessions/"+session.ID, nil, "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp.Body.Close()
}

// hookProvider runs a callback before streaming, letting tests interleave
// another request with an in-flight send.
type hookProvider struct {
	beforeStream func()
}

func (p *hookProvider) Name() string { return "hook" }

func (p *hookProvider) StreamChat(ctx context.Context, req ai.Request, emit func(string) error) (ai.Usage, error) {
	if p.beforeStream != nil {
		p.beforeStream()
	}
	for _, word := range strings.SplitAfter("still streaming after that", " ") {
		if err := emit(word); err != nil {
			return ai.Usage{}, err
		}
	}
	return ai.Usage{}, nil
}

func TestSendSurvivesSessionDeletionMidStream(t *testing.T) {
	provider := &hookProvider{}
	srv := newTestServerWithProvider(t, provider)

	resp := doJSON(t, "POST", srv.URL+"/api/chat/sessions", CreateSessionRequest{}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var session chat.Session
	decode(t, resp, &session)

	provider.beforeStream = func() {
		del := doJSON(t, "DELETE", srv.URL+"/api/chat/sessions/"+session.ID, nil, "")
		assert.Equal(t, http.StatusNoContent, del.StatusCode)
		del.Body.Close()
	}

	resp = doJSON(t, "POST", srv.URL+"/api/chat/sessions/"+session.ID+"/messages", SendMessageRequest{
		Text: "hello",
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "event: chunk", "chunks for a deleted session are dropped")
	assert.Contains(t, string(raw), "event: done")

	resp = doJSON(t, "GET", srv.URL+"/api/chat/sessions/"+session.ID, nil, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestImageUploadCeiling(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/chat/sessions", CreateSessionRequest{}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var session chat.Session
	decode(t, resp, &session)

	img := chat.Attachment{Type: "image", Data: "aGVsbG8=", MimeType: "image/png"}
	send := func(n int) *http.Response {
		atts := make([]chat.Attachment, n)
		for i := range atts {
			atts[i] = img
		}
		return doJSON(t, "POST", srv.URL+"/api/chat/sessions/"+session.ID+"/messages", SendMessageRequest{
			Text: "look at these", Attachments: atts,
		}, "")
	}

	// The free plan allows three images in total.
	resp = send(3)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	resp = send(1)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/api/account/state", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state map[string]any
	decode(t, resp, &state)
	assert.Equal(t, float64(3), state["imageCount"])
}

func TestStateDeliversQueuedNotices(t *testing.T) {
	srv := newTestServer(t)

	cfg := catalog.CustomPlanConfig{AllowedModels: []string{"nexus-0"}, TeamName: "Acme"}
	resp := doJSON(t, "POST", srv.URL+"/api/enterprise/activate", ActivateRequest{
		Config: cfg, PurchaseCode: catalog.PurchaseCode(catalog.BuilderPrice(cfg)),
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/api/enterprise/members", MemberRequest{Email: "dev@acme.com"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "GET", srv.URL+"/api/account/state", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var state map[string]any
	decode(t, resp, &state)
	notices, _ := state["notices"].([]any)
	require.Len(t, notices, 1)
	assert.Contains(t, notices[0].(string), "Seat added")

	// Delivered once, then gone.
	resp = doJSON(t, "GET", srv.URL+"/api/account/state", nil, "")
	var again map[string]any
	decode(t, resp, &again)
	assert.Nil(t, again["notices"])
}

func TestModelGatingByPlan(t *testing.T) {
	srv := newTestServer(t)

	// nexus-infinity needs the max tier; the free plan must be refused.
	resp := doJSON(t, "POST", srv.URL+"/api/chat/sessions", CreateSessionRequest{ModelID: "nexus-infinity"}, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/api/account/redeem", RedeemRequest{Code: "736"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/api/chat/sessions", CreateSessionRequest{ModelID: "nexus-infinity"}, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func TestGodModeGating(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/chat/sessions", CreateSessionRequest{GodMode: true}, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/api/account/redeem", RedeemRequest{Code: "637"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/api/chat/sessions", CreateSessionRequest{GodMode: true}, "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()
}

func TestExportGating(t *testing.T) {
	srv := newTestServer(t)

	resp := doJSON(t, "POST", srv.URL+"/api/chat/sessions", CreateSessionRequest{}, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var session chat.Session
	decode(t, resp, &session)

	resp = doJSON(t, "POST", srv.URL+"/api/chat/sessions/"+session.ID+"/export", nil, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/api/account/redeem", RedeemRequest{Code: "4263"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/api/chat/sessions/"+session.ID+"/export", nil, "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out map[string]string
	decode(t, resp, &out)
	require.NotEmpty(t, out["key"])

	resp = doJSON(t, "GET", srv.URL+"/api/exports/"+out["key"], nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()
}

func TestEnterpriseQuoteAndActivation(t *testing.T) {
	srv := newTestServer(t)

	cfg := catalog.CustomPlanConfig{
		AllowedModels:    []string{"nexus-0"},
		CodingCapability: catalog.CodingHalf,
		TeamName:         "Acme",
		SecurityLevel:    catalog.SecurityHigh,
	}

	resp := doJSON(t, "POST", srv.URL+"/api/enterprise/quote", cfg, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var quote map[string]float64
	decode(t, resp, &quote)
	assert.Equal(t, catalog.BuilderPrice(cfg), quote["totalPrice"])

	resp = doJSON(t, "POST", srv.URL+"/api/enterprise/activate", ActivateRequest{
		Config: cfg, PurchaseCode: "EEE142637EEE0",
	}, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/api/enterprise/activate", ActivateRequest{
		Config: cfg, PurchaseCode: catalog.PurchaseCode(quote["totalPrice"]),
	}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "POST", srv.URL+"/api/enterprise/members", MemberRequest{Email: "Dev@Acme.com"}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var members map[string][]string
	decode(t, resp, &members)
	assert.Equal(t, []string{"dev@acme.com"}, members["members"])

	// Cancellation needs explicit confirmation.
	resp = doJSON(t, "DELETE", srv.URL+"/api/enterprise/", nil, "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, "DELETE", srv.URL+"/api/enterprise/?confirm=true", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cancelled map[string]any
	decode(t, resp, &cancelled)
	assert.Equal(t, "free", cancelled["planId"])
}
