package entitlements

import (
	"strings"

	"github.com/fieldnotes-app/fieldnotes/app/models"
)

type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
)

const (
	// ProMonthlyCredits is the quota a pro account is set to at checkout and
	// restored to on each cycle renewal.
	ProMonthlyCredits = 30

	// TrialCredits is the one-time grant unlocked by email verification.
	TrialCredits = 3
)

// NormalizePlan maps arbitrary input to a known plan, defaulting to free.
func NormalizePlan(plan string) Plan {
	switch strings.ToLower(strings.TrimSpace(plan)) {
	case string(PlanPro):
		return PlanPro
	default:
		return PlanFree
	}
}

// MonthlyCredits returns the monthly allowance for a plan.
func MonthlyCredits(plan Plan) int64 {
	switch plan {
	case PlanPro:
		return ProMonthlyCredits
	default:
		return 0
	}
}

// IsEntitlingStatus reports whether a subscription status keeps paid
// entitlements alive. Grants are never driven by status alone; this feeds
// display and the one documented fallback grant on first activation.
func IsEntitlingStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case models.SubscriptionStatusActive, models.SubscriptionStatusTrialing:
		return true
	default:
		return false
	}
}
