package cloudsync

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"nexus.chat/internal/catalog"
	"nexus.chat/internal/chat"
)

const (
	identityEndpoint  = "https://identitytoolkit.googleapis.com/v1"
	firestoreEndpoint = "https://firestore.googleapis.com/v1"
)

// Firestore binds auth to the Firebase identity REST API and persistence to
// Firestore documents. Structured fields (analytics, sessions, enterprise)
// are stored JSON-encoded inside string fields, which is why every read goes
// through the flexible codec.
//
// When the project turns out to be misconfigured the binding downgrades to
// the embedded local simulation for the remainder of the process.
type Firestore struct {
	apiKey       string
	projectID    string
	identityURL  string
	firestoreURL string
	client       *http.Client
	local        *Local

	mu        sync.Mutex
	tokens    map[string]string
	lastToken string
	degraded  bool
}

func NewFirestore(apiKey, projectID string, local *Local) *Firestore {
	return &Firestore{
		apiKey:       apiKey,
		projectID:    projectID,
		identityURL:  identityEndpoint,
		firestoreURL: firestoreEndpoint,
		client:       &http.Client{Timeout: 15 * time.Second},
		local:        local,
		tokens:       map[string]string{},
	}
}

func (f *Firestore) isDegraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *Firestore) degrade(reason error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.degraded {
		return
	}
	f.degraded = true
	log.Error().Err(reason).Msg("firestore sync: project misconfigured, switching to local simulation")
}

func (f *Firestore) token(userID string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tokens[userID]
}

// callerToken is the most recently issued id token. The owner lookup runs as
// part of a login, so this is the logging-in user's own credential.
func (f *Firestore) callerToken() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastToken
}

type identityResponse struct {
	LocalID string `json:"localId"`
	IDToken string `json:"idToken"`
	Email   string `json:"email"`
	Error   *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (f *Firestore) identityCall(ctx context.Context, action string, payload map[string]any) (identityResponse, error) {
	body, _ := json.Marshal(payload)
	endpoint := fmt.Sprintf("%s/accounts:%s?key=%s", f.identityURL, action, url.QueryEscape(f.apiKey))

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return identityResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return identityResponse{}, ErrBackendUnavailable
	}
	defer resp.Body.Close()

	var out identityResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return identityResponse{}, ErrBackendUnavailable
	}
	return out, nil
}

func (f *Firestore) Login(ctx context.Context, email, password string) (UserProfile, error) {
	if f.isDegraded() {
		return f.local.Login(ctx, email, password)
	}
	email = NormalizeEmail(email)

	res, err := f.identityCall(ctx, "signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return UserProfile{}, err
	}
	if res.Error != nil {
		switch res.Error.Message {
		case "EMAIL_NOT_FOUND", "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
			return UserProfile{}, ErrInvalidCredentials
		case "API_KEY_INVALID", "CONFIGURATION_NOT_FOUND", "PROJECT_DISABLED":
			f.degrade(fmt.Errorf("identity api: %s", res.Error.Message))
			return f.local.Login(ctx, email, password)
		default:
			log.Warn().Str("code", res.Error.Message).Msg("firestore sync: login rejected")
			return UserProfile{}, ErrInvalidCredentials
		}
	}

	f.mu.Lock()
	f.tokens[res.LocalID] = res.IDToken
	f.lastToken = res.IDToken
	f.mu.Unlock()

	profile := f.fetchProfile(ctx, res.LocalID)
	if profile.ID == "" {
		profile = UserProfile{
			ID:        res.LocalID,
			Email:     res.Email,
			Name:      res.Email,
			PlanID:    catalog.FreePlanID,
			AvatarURL: avatarURL(res.Email),
			CreatedAt: time.Now().UnixMilli(),
		}
	}
	return profile, nil
}

func (f *Firestore) Signup(ctx context.Context, email, password, name string) (UserProfile, error) {
	if f.isDegraded() {
		return f.local.Signup(ctx, email, password, name)
	}
	email = NormalizeEmail(email)

	res, err := f.identityCall(ctx, "signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	})
	if err != nil {
		return UserProfile{}, err
	}
	if res.Error != nil {
		switch res.Error.Message {
		case "EMAIL_EXISTS":
			return UserProfile{}, ErrEmailAlreadyRegistered
		case "API_KEY_INVALID", "CONFIGURATION_NOT_FOUND", "PROJECT_DISABLED":
			f.degrade(fmt.Errorf("identity api: %s", res.Error.Message))
			return f.local.Signup(ctx, email, password, name)
		default:
			log.Warn().Str("code", res.Error.Message).Msg("firestore sync: signup rejected")
			return UserProfile{}, ErrBackendUnavailable
		}
	}

	f.mu.Lock()
	f.tokens[res.LocalID] = res.IDToken
	f.lastToken = res.IDToken
	f.mu.Unlock()

	profile := UserProfile{
		ID:        res.LocalID,
		Email:     email,
		Name:      name,
		PlanID:    catalog.FreePlanID,
		AvatarURL: avatarURL(name),
		CreatedAt: time.Now().UnixMilli(),
	}
	f.writeDoc(ctx, profile.ID, map[string]any{
		"email":     stringField(profile.Email),
		"name":      stringField(profile.Name),
		"planId":    stringField(profile.PlanID),
		"avatarUrl": stringField(profile.AvatarURL),
		"createdAt": integerField(profile.CreatedAt),
		"analytics": stringField(encodeJSON(DefaultAnalytics())),
		"credits":   integerField(0),
		"sessions":  stringField("[]"),
	}, nil)
	return profile, nil
}

func (f *Firestore) FetchUserData(ctx context.Context, userID string) UserData {
	out := UserData{
		Analytics: DefaultAnalytics(),
		Sessions:  []chat.Session{},
		PlanID:    catalog.FreePlanID,
	}
	if f.isDegraded() {
		return f.local.FetchUserData(ctx, userID)
	}

	doc, err := f.readDoc(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("firestore sync: fetch failed, using defaults")
		return out
	}

	if v, ok := doc.str("planId"); ok && v != "" {
		out.PlanID = v
	}
	if v, ok := doc.str("analytics"); ok {
		out.Analytics = decodeAnalytics([]byte(v))
	}
	if v, ok := doc.str("sessions"); ok {
		out.Sessions = decodeSessions([]byte(v))
	}
	if v, ok := doc.str("enterprise"); ok {
		ent := decodeEnterprise([]byte(v))
		out.EnterpriseConfig = ent.Config
		out.TeamMembers = ent.Members
	}
	out.Credits = int(doc.integer("credits"))
	out.TrialExpiry = doc.integer("trialExpiry")
	if v, ok := doc.str("usedTrials"); ok {
		out.UsedTrials = decodeStringList([]byte(v))
	}
	out.ImageCount = int(doc.integer("imageCount"))
	out.IsEnterpriseOwner = doc.boolean("isEnterpriseOwner")
	return out
}

func (f *Firestore) SaveUserData(ctx context.Context, userID string, payload SavePayload) {
	if f.isDegraded() {
		f.local.SaveUserData(ctx, userID, payload)
		return
	}

	fields := map[string]any{
		"planId":      stringField(payload.PlanID),
		"analytics":   stringField(encodeJSON(payload.Analytics)),
		"credits":     integerField(int64(payload.Credits)),
		"trialExpiry": integerField(payload.TrialExpiry),
		"usedTrials":  stringField(encodeJSON(payload.UsedTrials)),
		"imageCount":  integerField(int64(payload.ImageCount)),
	}
	mask := []string{"planId", "analytics", "credits", "trialExpiry", "usedTrials", "imageCount"}

	// Without a resolved owner signal the enterprise field stays out of the
	// update mask so the stored config survives the write.
	if payload.IsEnterpriseOwner != nil {
		fields["enterprise"] = stringField(encodeJSON(enterpriseBlob{
			Config:  payload.EnterpriseConfig,
			Members: payload.TeamMembers,
		}))
		fields["isEnterpriseOwner"] = booleanField(*payload.IsEnterpriseOwner)
		mask = append(mask, "enterprise", "isEnterpriseOwner")
	}

	f.writeDoc(ctx, userID, fields, mask)
}

func (f *Firestore) SaveSessions(ctx context.Context, userID string, sessions []chat.Session) {
	if f.isDegraded() {
		f.local.SaveSessions(ctx, userID, sessions)
		return
	}
	f.writeDoc(ctx, userID, map[string]any{
		"sessions": stringField(encodeJSON(sessions)),
	}, []string{"sessions"})
}

func (f *Firestore) FindOwnerConfig(ctx context.Context, email string) (*catalog.CustomPlanConfig, string) {
	if f.isDegraded() {
		return f.local.FindOwnerConfig(ctx, email)
	}
	email = NormalizeEmail(email)

	query := map[string]any{
		"structuredQuery": map[string]any{
			"from": []map[string]any{{"collectionId": "users"}},
			"where": map[string]any{
				"fieldFilter": map[string]any{
					"field": map[string]string{"fieldPath": "isEnterpriseOwner"},
					"op":    "EQUAL",
					"value": map[string]bool{"booleanValue": true},
				},
			},
		},
	}
	body, _ := json.Marshal(query)
	endpoint := fmt.Sprintf("%s/projects/%s/databases/(default)/documents:runQuery",
		f.firestoreURL, f.projectID)

	req, err := http.NewRequestWithContext(ctx, "POST", endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, ""
	}
	req.Header.Set("Content-Type", "application/json")
	if token := f.callerToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("firestore sync: owner query failed")
		return nil, ""
	}
	defer resp.Body.Close()

	var rows []struct {
		Document *struct {
			Name   string    `json:"name"`
			Fields docFields `json:"fields"`
		} `json:"document"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, ""
	}

	for _, row := range rows {
		if row.Document == nil {
			continue
		}
		raw, ok := row.Document.Fields.str("enterprise")
		if !ok {
			continue
		}
		ent := decodeEnterprise([]byte(raw))
		if ent.Config == nil {
			continue
		}
		for _, member := range ent.Members {
			if NormalizeEmail(member) == email {
				return ent.Config, docID(row.Document.Name)
			}
		}
	}
	return nil, ""
}

// --- Firestore document plumbing ---

// docFields maps a field name to its typed Firestore value wrapper,
// e.g. {"planId": {"stringValue": "pro"}}.
type docFields map[string]map[string]json.RawMessage

func (d docFields) str(name string) (string, bool) {
	wrapper, ok := d[name]
	if !ok {
		return "", false
	}
	raw, ok := wrapper["stringValue"]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}

func (d docFields) integer(name string) int64 {
	wrapper, ok := d[name]
	if !ok {
		return 0
	}
	// Firestore serializes integerValue as a decimal string.
	raw, ok := wrapper["integerValue"]
	if !ok {
		return 0
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var n int64
		if json.Unmarshal(raw, &n) == nil {
			return n
		}
		return 0
	}
	var n int64
	fmt.Sscanf(s, "%d", &n)
	return n
}

func (d docFields) boolean(name string) bool {
	wrapper, ok := d[name]
	if !ok {
		return false
	}
	raw, ok := wrapper["booleanValue"]
	if !ok {
		return false
	}
	var b bool
	json.Unmarshal(raw, &b)
	return b
}

func stringField(v string) map[string]string { return map[string]string{"stringValue": v} }
func booleanField(v bool) map[string]bool    { return map[string]bool{"booleanValue": v} }
func integerField(v int64) map[string]string {
	return map[string]string{"integerValue": fmt.Sprintf("%d", v)}
}

func (f *Firestore) docURL(userID string) string {
	return fmt.Sprintf("%s/projects/%s/databases/(default)/documents/users/%s",
		f.firestoreURL, f.projectID, url.PathEscape(userID))
}

func (f *Firestore) readDoc(ctx context.Context, userID string) (docFields, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", f.docURL(userID), nil)
	if err != nil {
		return nil, err
	}
	if token := f.token(userID); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, ErrBackendUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return docFields{}, nil
	}
	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("firestore read: %s", string(body))
	}

	var doc struct {
		Fields docFields `json:"fields"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, err
	}
	if doc.Fields == nil {
		doc.Fields = docFields{}
	}
	return doc.Fields, nil
}

// writeDoc patches the user document. A nil mask replaces the whole document;
// otherwise only the named fields are written.
func (f *Firestore) writeDoc(ctx context.Context, userID string, fields map[string]any, mask []string) {
	endpoint := f.docURL(userID)
	if len(mask) > 0 {
		q := url.Values{}
		for _, field := range mask {
			q.Add("updateMask.fieldPaths", field)
		}
		endpoint += "?" + q.Encode()
	}

	body, _ := json.Marshal(map[string]any{"fields": fields})
	req, err := http.NewRequestWithContext(ctx, "PATCH", endpoint, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if token := f.token(userID); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("firestore sync: write failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		body, _ := io.ReadAll(resp.Body)
		log.Warn().Int("status", resp.StatusCode).Str("body", string(body)).Msg("firestore sync: write rejected")
	}
}

func (f *Firestore) fetchProfile(ctx context.Context, userID string) UserProfile {
	doc, err := f.readDoc(ctx, userID)
	if err != nil || len(doc) == 0 {
		return UserProfile{}
	}

	var p UserProfile
	p.ID = userID
	p.Email, _ = doc.str("email")
	p.Name, _ = doc.str("name")
	p.PlanID, _ = doc.str("planId")
	p.AvatarURL, _ = doc.str("avatarUrl")
	p.CreatedAt = doc.integer("createdAt")
	if p.PlanID == "" {
		p.PlanID = catalog.FreePlanID
	}
	if raw, ok := doc.str("enterprise"); ok {
		ent := decodeEnterprise([]byte(raw))
		p.EnterpriseConfig = ent.Config
		p.TeamMembers = ent.Members
	}
	p.IsEnterpriseOwner = doc.boolean("isEnterpriseOwner")
	if p.Email == "" {
		return UserProfile{}
	}
	return p
}

func docID(name string) string {
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '/' {
			return name[i+1:]
		}
	}
	return name
}
