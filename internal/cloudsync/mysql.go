package cloudsync

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"nexus.chat/internal/auth"
	"nexus.chat/internal/catalog"
	"nexus.chat/internal/chat"
)

// MySQL is the relational binding: a users table keyed by opaque id with a
// unique normalized email, and a per-user data row with JSON columns.
type MySQL struct {
	db *sql.DB
}

func NewMySQL(dsn string) (*MySQL, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, err
	}

	m := &MySQL{db: db}
	if err := m.initSchema(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MySQL) Close() error {
	return m.db.Close()
}

func (m *MySQL) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id VARCHAR(64) PRIMARY KEY,
			email VARCHAR(255) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			name VARCHAR(255) NOT NULL,
			plan_id VARCHAR(64) DEFAULT 'free',
			created_at BIGINT NOT NULL,
			avatar_url TEXT,
			INDEX idx_email (email)
		)`,
		`CREATE TABLE IF NOT EXISTS user_data (
			user_id VARCHAR(64) PRIMARY KEY,
			analytics JSON,
			credits INT DEFAULT 0,
			sessions JSON,
			enterprise JSON,
			is_enterprise_owner BOOLEAN DEFAULT FALSE,
			trial_expiry BIGINT DEFAULT 0,
			used_trials JSON,
			image_count INT DEFAULT 0
		)`,
	}

	for _, stmt := range statements {
		if _, err := m.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (m *MySQL) Login(ctx context.Context, email, password string) (UserProfile, error) {
	email = NormalizeEmail(email)

	var p UserProfile
	var hash string
	var avatar sql.NullString
	err := m.db.QueryRowContext(ctx,
		"SELECT id, email, password_hash, name, plan_id, created_at, avatar_url FROM users WHERE email = ?",
		email,
	).Scan(&p.ID, &p.Email, &hash, &p.Name, &p.PlanID, &p.CreatedAt, &avatar)

	if err == sql.ErrNoRows {
		return UserProfile{}, ErrInvalidCredentials
	}
	if err != nil {
		log.Error().Err(err).Msg("mysql sync: login query failed")
		return UserProfile{}, ErrBackendUnavailable
	}
	if !auth.CheckPassword(password, hash) {
		return UserProfile{}, ErrInvalidCredentials
	}

	p.AvatarURL = avatar.String
	return p, nil
}

func (m *MySQL) Signup(ctx context.Context, email, password, name string) (UserProfile, error) {
	email = NormalizeEmail(email)

	hash, err := auth.HashPassword(password)
	if err != nil {
		return UserProfile{}, err
	}

	p := UserProfile{
		ID:        "usr_" + uuid.NewString(),
		Email:     email,
		Name:      name,
		PlanID:    catalog.FreePlanID,
		AvatarURL: avatarURL(name),
		CreatedAt: time.Now().UnixMilli(),
	}

	_, err = m.db.ExecContext(ctx,
		"INSERT INTO users (id, email, password_hash, name, plan_id, created_at, avatar_url) VALUES (?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.Email, hash, p.Name, p.PlanID, p.CreatedAt, p.AvatarURL,
	)
	if err != nil {
		if strings.Contains(err.Error(), "Duplicate") {
			return UserProfile{}, ErrEmailAlreadyRegistered
		}
		log.Error().Err(err).Msg("mysql sync: signup insert failed")
		return UserProfile{}, ErrBackendUnavailable
	}

	_, err = m.db.ExecContext(ctx,
		"INSERT INTO user_data (user_id, analytics, credits, sessions, enterprise) VALUES (?, ?, 0, ?, ?)",
		p.ID, encodeJSON(DefaultAnalytics()), "[]", encodeJSON(enterpriseBlob{}),
	)
	if err != nil {
		log.Warn().Err(err).Str("user", p.ID).Msg("mysql sync: seed user_data failed")
	}

	return p, nil
}

func (m *MySQL) FetchUserData(ctx context.Context, userID string) UserData {
	out := UserData{
		Analytics: DefaultAnalytics(),
		Sessions:  []chat.Session{},
		PlanID:    catalog.FreePlanID,
	}

	var planID sql.NullString
	if err := m.db.QueryRowContext(ctx, "SELECT plan_id FROM users WHERE id = ?", userID).Scan(&planID); err == nil && planID.Valid {
		out.PlanID = planID.String
	}

	var analytics, sessions, enterprise, usedTrials sql.NullString
	var credits, imageCount int
	var trialExpiry int64
	var isOwner bool
	err := m.db.QueryRowContext(ctx,
		"SELECT analytics, credits, sessions, enterprise, is_enterprise_owner, trial_expiry, used_trials, image_count FROM user_data WHERE user_id = ?",
		userID,
	).Scan(&analytics, &credits, &sessions, &enterprise, &isOwner, &trialExpiry, &usedTrials, &imageCount)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Warn().Err(err).Str("user", userID).Msg("mysql sync: fetch failed, using defaults")
		}
		return out
	}

	out.Analytics = decodeAnalytics([]byte(analytics.String))
	out.Sessions = decodeSessions([]byte(sessions.String))
	out.Credits = credits
	out.TrialExpiry = trialExpiry
	out.UsedTrials = decodeStringList([]byte(usedTrials.String))
	out.ImageCount = imageCount
	ent := decodeEnterprise([]byte(enterprise.String))
	out.EnterpriseConfig = ent.Config
	out.TeamMembers = ent.Members
	out.IsEnterpriseOwner = isOwner
	return out
}

func (m *MySQL) SaveUserData(ctx context.Context, userID string, payload SavePayload) {
	if _, err := m.db.ExecContext(ctx, "UPDATE users SET plan_id = ? WHERE id = ?", payload.PlanID, userID); err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("mysql sync: plan update failed")
	}

	// The upsert never touches the sessions column; SaveSessions owns it.
	if payload.IsEnterpriseOwner != nil {
		enterprise := encodeJSON(enterpriseBlob{Config: payload.EnterpriseConfig, Members: payload.TeamMembers})
		_, err := m.db.ExecContext(ctx, `
			INSERT INTO user_data (user_id, analytics, credits, sessions, enterprise, is_enterprise_owner, trial_expiry, used_trials, image_count)
			VALUES (?, ?, ?, '[]', ?, ?, ?, ?, ?)
			ON DUPLICATE KEY UPDATE
				analytics = VALUES(analytics),
				credits = VALUES(credits),
				enterprise = VALUES(enterprise),
				is_enterprise_owner = VALUES(is_enterprise_owner),
				trial_expiry = VALUES(trial_expiry),
				used_trials = VALUES(used_trials),
				image_count = VALUES(image_count)
		`, userID, encodeJSON(payload.Analytics), payload.Credits, enterprise, *payload.IsEnterpriseOwner,
			payload.TrialExpiry, encodeJSON(payload.UsedTrials), payload.ImageCount)
		if err != nil {
			log.Warn().Err(err).Str("user", userID).Msg("mysql sync: save failed")
		}
		return
	}

	// Owner signal unresolved at save time: leave the stored enterprise blob
	// untouched rather than risk deleting an owner's config.
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO user_data (user_id, analytics, credits, sessions, enterprise, trial_expiry, used_trials, image_count)
		VALUES (?, ?, ?, '[]', ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			analytics = VALUES(analytics),
			credits = VALUES(credits),
			trial_expiry = VALUES(trial_expiry),
			used_trials = VALUES(used_trials),
			image_count = VALUES(image_count)
	`, userID, encodeJSON(payload.Analytics), payload.Credits, encodeJSON(enterpriseBlob{}),
		payload.TrialExpiry, encodeJSON(payload.UsedTrials), payload.ImageCount)
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("mysql sync: save failed")
	}
}

func (m *MySQL) SaveSessions(ctx context.Context, userID string, sessions []chat.Session) {
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO user_data (user_id, analytics, credits, sessions, enterprise)
		VALUES (?, ?, 0, ?, ?)
		ON DUPLICATE KEY UPDATE sessions = VALUES(sessions)
	`, userID, encodeJSON(DefaultAnalytics()), encodeJSON(sessions), encodeJSON(enterpriseBlob{}))
	if err != nil {
		log.Warn().Err(err).Str("user", userID).Msg("mysql sync: session save failed")
	}
}

func (m *MySQL) FindOwnerConfig(ctx context.Context, email string) (*catalog.CustomPlanConfig, string) {
	email = NormalizeEmail(email)

	rows, err := m.db.QueryContext(ctx,
		"SELECT user_id, enterprise FROM user_data WHERE enterprise IS NOT NULL AND is_enterprise_owner = TRUE",
	)
	if err != nil {
		log.Warn().Err(err).Msg("mysql sync: owner lookup failed")
		return nil, ""
	}
	defer rows.Close()

	for rows.Next() {
		var ownerID string
		var enterprise sql.NullString
		if err := rows.Scan(&ownerID, &enterprise); err != nil {
			continue
		}
		ent := decodeEnterprise([]byte(enterprise.String))
		if ent.Config == nil {
			continue
		}
		for _, member := range ent.Members {
			if NormalizeEmail(member) == email {
				return ent.Config, ownerID
			}
		}
	}
	return nil, ""
}
