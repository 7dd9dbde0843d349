package entity

import (
	"strings"
	"time"
)

// NormalizeEmail is the canonical form used for storage and lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Account is the aggregate root of the auth domain, one per registered email.
// PasswordHash holds a bcrypt hash. An empty code string and a zero expiry mean
// the slot holds no active code.
type Account struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	IsVerified   bool

	VerificationCode          string
	VerificationCodeExpiresAt time.Time

	ResetPasswordCode          string
	ResetPasswordCodeExpiresAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CodeSlot is one of the two one-time code slots on an Account.
type CodeSlot uint8

const (
	SlotVerification CodeSlot = iota + 1
	SlotResetPassword
)

func (s CodeSlot) String() string {
	switch s {
	case SlotVerification:
		return "verification"
	case SlotResetPassword:
		return "reset_password"
	default:
		return "unknown"
	}
}

// Code returns the stored code and deadline of slot.
func (a *Account) Code(slot CodeSlot) (string, time.Time) {
	switch slot {
	case SlotVerification:
		return a.VerificationCode, a.VerificationCodeExpiresAt
	case SlotResetPassword:
		return a.ResetPasswordCode, a.ResetPasswordCodeExpiresAt
	}
	return "", time.Time{}
}

// Profile is the public view of an account.
type Profile struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	IsVerified bool   `json:"isVerified"`
}

func (a *Account) Profile() Profile {
	return Profile{Name: a.Name, Email: a.Email, IsVerified: a.IsVerified}
}
