package models

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const (
	PlanFree = "free"
	PlanPro  = "pro"
)

const (
	SubscriptionStatusNone       = "none"
	SubscriptionStatusFree       = "free"
	SubscriptionStatusActive     = "active"
	SubscriptionStatusTrialing   = "trialing"
	SubscriptionStatusPastDue    = "past_due"
	SubscriptionStatusCanceled   = "canceled"
	SubscriptionStatusIncomplete = "incomplete"
)

// Account is the durable per-user record. Email is the natural key,
// case-normalized via NormalizeEmail before every lookup or insert.
// Balance is mutated exclusively through the ledger package's conditional
// updates; no caller reads-then-writes it.
type Account struct {
	ID                      uint       `gorm:"primaryKey" json:"id"`
	Email                   string     `gorm:"uniqueIndex;type:varchar(200)" json:"email" validate:"required,email,min=5,max=200"`
	Plan                    string     `gorm:"type:varchar(50);default:'free'" json:"plan" validate:"oneof=free pro"`
	Balance                 int64      `gorm:"not null;default:0" json:"balance"`
	MonthlyAllowance        int64      `gorm:"not null;default:0" json:"monthly_allowance"`
	LastReset               *time.Time `gorm:"type:timestamp;default:null" json:"last_reset,omitempty"`
	SubscriptionStatus      string     `gorm:"type:varchar(32);not null;default:'none';index" json:"subscription_status"`
	ProviderCustomerRef     string     `gorm:"type:varchar(191);default:'';index" json:"-"`
	ProviderSubscriptionRef string     `gorm:"type:varchar(191);default:''" json:"-"`
	CurrentPeriodEnd        *time.Time `gorm:"type:timestamp;default:null" json:"current_period_end,omitempty"`
	EmailVerifiedAt         *time.Time `gorm:"type:timestamp;default:null" json:"email_verified_at,omitempty"`
	VerifyCodeHash          string     `gorm:"type:char(64);default:''" json:"-"`
	VerifyCodeExpiresAt     *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	VerifyAttempts          int        `gorm:"not null;default:0" json:"-"`
	TrialCreditsGrantedAt   *time.Time `gorm:"type:timestamp;default:null" json:"trial_credits_granted_at,omitempty"`
	PINHash                 string     `gorm:"column:pin_hash;type:text" json:"-"`
	CreatedAt               time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (a *Account) Validate() error {
	v := validator.New()

	return v.Struct(a)
}

// NormalizeEmail lowercases and trims an identity so every code path keys
// accounts the same way.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsVerified reports whether the account completed email verification.
func (a *Account) IsVerified() bool {
	return a.EmailVerifiedAt != nil
}

// HasPIN reports whether a secondary-auth PIN is configured.
func (a *Account) HasPIN() bool {
	return a != nil && a.PINHash != ""
}

// SetPIN hashes and stores a new PIN on the struct. Callers persist via the
// repository afterwards.
func (a *Account) SetPIN(pin string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PINHash = string(hash)
	return nil
}

// CheckPIN verifies a candidate PIN against the stored hash.
func (a *Account) CheckPIN(pin string) bool {
	if a.PINHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(a.PINHash), []byte(pin)) == nil
}
