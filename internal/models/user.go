package models

import (
	"strings"
	"time"
)

// Role is the closed set of actor roles. Handlers and services compare
// against these constants only, never against raw strings from a token.
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleMentor Role = "mentor"
	RoleMentee Role = "mentee"
)

func ParseRole(value string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(value))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleMentor:
		return RoleMentor, true
	case RoleMentee:
		return RoleMentee, true
	default:
		return "", false
	}
}

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleMentor || r == RoleMentee
}

func (r Role) IsAdmin() bool  { return r == RoleAdmin }
func (r Role) IsMentor() bool { return r == RoleMentor }
func (r Role) IsMentee() bool { return r == RoleMentee }

// Actor is the authenticated capability attached to a request by the auth
// middleware. It is the only identity handlers ever see.
type Actor struct {
	ID   int64
	Role Role
}

func (a Actor) IsParticipant(session *Session) bool {
	if session == nil {
		return false
	}
	switch a.Role {
	case RoleMentor:
		return session.MentorID == a.ID
	case RoleMentee:
		return session.MenteeID == a.ID
	case RoleAdmin:
		return true
	default:
		return false
	}
}

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

const (
	VerificationPending  = "pending"
	VerificationVerified = "verified"
	VerificationRejected = "rejected"
)

type MentorProfile struct {
	ID                 int64     `json:"id"`
	UserID             int64     `json:"user_id"`
	VerificationStatus string    `json:"verification_status"`
	HourlyRate         *float64  `json:"hourly_rate"`
	Headline           *string   `json:"headline"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (p *MentorProfile) IsVerified() bool {
	return p != nil && p.VerificationStatus == VerificationVerified
}
