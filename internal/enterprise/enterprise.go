// Package enterprise derives team roles and manages the owner-authored plan
// configuration. Role is never stored: an account is Owner when its own record
// carries a config, Member when some owner's member list contains its email,
// and None otherwise.
package enterprise

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"nexus.chat/internal/catalog"
	"nexus.chat/internal/cloudsync"
)

var ErrNotOwner = errors.New("enterprise: not the team owner")

type Role string

const (
	RoleNone   Role = "none"
	RoleMember Role = "member"
	RoleOwner  Role = "owner"
)

// Membership is the resolved enterprise standing of one account.
// Config is authoritative for an Owner and inherited read-only for a Member.
type Membership struct {
	Role    Role
	Config  *catalog.CustomPlanConfig
	Members []string
	OwnerID string
}

type Resolver struct {
	svc cloudsync.Service
}

func NewResolver(svc cloudsync.Service) *Resolver {
	return &Resolver{svc: svc}
}

// Resolve classifies the account from its freshly fetched data. The reverse
// lookup runs only when the account holds no config of its own.
func (r *Resolver) Resolve(ctx context.Context, email string, data cloudsync.UserData) Membership {
	if data.EnterpriseConfig != nil {
		return Membership{
			Role:    RoleOwner,
			Config:  data.EnterpriseConfig,
			Members: data.TeamMembers,
		}
	}

	cfg, ownerID := r.svc.FindOwnerConfig(ctx, email)
	if cfg != nil {
		return Membership{Role: RoleMember, Config: cfg, OwnerID: ownerID}
	}
	return Membership{Role: RoleNone}
}

// AddMember appends a normalized email to the list. Adding an existing member
// is a no-op; the second return reports whether the list changed. Each new
// seat is billed at the flat per-seat rate.
func AddMember(members []string, email string) ([]string, bool) {
	email = cloudsync.NormalizeEmail(email)
	if email == "" {
		return members, false
	}
	for _, m := range members {
		if cloudsync.NormalizeEmail(m) == email {
			return members, false
		}
	}
	log.Info().Str("member", email).Float64("seatPrice", catalog.SeatPrice).Msg("enterprise: seat added")
	return append(members, email), true
}

func RemoveMember(members []string, email string) ([]string, bool) {
	email = cloudsync.NormalizeEmail(email)
	out := members[:0:0]
	removed := false
	for _, m := range members {
		if cloudsync.NormalizeEmail(m) == email {
			removed = true
			continue
		}
		out = append(out, m)
	}
	return out, removed
}

// SanitizePayload enforces the persistence invariant: only an Owner may write
// a config or member list into its own record. For every other role the
// payload's enterprise fields are forced empty, so a Member can never come
// back as a false Owner on a later fetch.
func SanitizePayload(role Role, payload *cloudsync.SavePayload) {
	isOwner := role == RoleOwner
	payload.IsEnterpriseOwner = &isOwner
	if !isOwner {
		payload.EnterpriseConfig = nil
		payload.TeamMembers = nil
	}
}
