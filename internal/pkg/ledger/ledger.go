package ledger

import (
	"errors"
	"time"

	"github.com/fieldnotes-app/fieldnotes/app/models"
	"gorm.io/gorm"
)

var (
	ErrAccountNotFound = errors.New("ledger: account not found")
	ErrInvalidAmount   = errors.New("ledger: amount must be positive")
)

// Ledger performs every balance mutation as a single conditional UPDATE
// evaluated by the database. Callers never read-then-write a balance; the
// WHERE clause is the concurrency control, so balance can never go negative
// and the trial grant fires at most once regardless of how many processes
// race on the same account.
type Ledger struct {
	db *gorm.DB
}

// New creates a ledger from a GORM DB handle.
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Spend decrements balance by amount iff balance >= amount. It returns
// whether the decrement happened. A store error fails closed (false, err):
// no credit is deducted and the caller must not proceed.
func (l *Ledger) Spend(email string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	tx := l.db.Model(&models.Account{}).
		Where("email = ? AND balance >= ?", models.NormalizeEmail(email), amount).
		UpdateColumn("balance", gorm.Expr("balance - ?", amount))
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// Grant increments balance by amount. There is no upper bound; plan upgrades
// may stack. Returns ErrAccountNotFound when no row matched so callers cannot
// mistake a lost grant for success.
func (l *Ledger) Grant(email string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	tx := l.db.Model(&models.Account{}).
		Where("email = ?", models.NormalizeEmail(email)).
		UpdateColumn("balance", gorm.Expr("balance + ?", amount))
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// SetAllowance sets balance AND monthly allowance to quota and stamps
// last_reset. It is a set, not an add, so a duplicate checkout delivery
// converges to the same state instead of double-crediting.
func (l *Ledger) SetAllowance(email string, quota int64) error {
	if quota < 0 {
		return ErrInvalidAmount
	}
	now := time.Now().UTC()
	tx := l.db.Model(&models.Account{}).
		Where("email = ?", models.NormalizeEmail(email)).
		UpdateColumns(map[string]interface{}{
			"balance":           quota,
			"monthly_allowance": quota,
			"last_reset":        &now,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ApplyRenewal sets balance back to the stored monthly allowance and stamps
// last_reset. Triggered only by cycle-renewal invoices; applying it twice is
// harmless because it sets to a constant.
func (l *Ledger) ApplyRenewal(email string) error {
	now := time.Now().UTC()
	tx := l.db.Model(&models.Account{}).
		Where("email = ?", models.NormalizeEmail(email)).
		UpdateColumns(map[string]interface{}{
			"balance":    gorm.Expr("monthly_allowance"),
			"last_reset": &now,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ResetIfDue applies the periodic allowance reset when last_reset predates
// the current calendar month (UTC). No-op for accounts without an allowance
// or already reset this period. Returns whether a reset happened.
func (l *Ledger) ResetIfDue(email string, now time.Time) (bool, error) {
	periodStart := time.Date(now.UTC().Year(), now.UTC().Month(), 1, 0, 0, 0, 0, time.UTC)
	stamp := now.UTC()
	tx := l.db.Model(&models.Account{}).
		Where("email = ? AND monthly_allowance > 0 AND (last_reset IS NULL OR last_reset < ?)",
			models.NormalizeEmail(email), periodStart).
		UpdateColumns(map[string]interface{}{
			"balance":    gorm.Expr("monthly_allowance"),
			"last_reset": &stamp,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// GrantTrialOnce raises balance to at least amount and stamps
// trial_credits_granted_at, but only while that stamp is unset. The NULL
// check in the WHERE clause is the sole guard, so duplicate calls (retried
// verification, double submit) produce exactly one grant.
func (l *Ledger) GrantTrialOnce(email string, amount int64) (bool, error) {
	if amount <= 0 {
		return false, ErrInvalidAmount
	}
	now := time.Now().UTC()
	tx := l.db.Model(&models.Account{}).
		Where("email = ? AND trial_credits_granted_at IS NULL", models.NormalizeEmail(email)).
		UpdateColumns(map[string]interface{}{
			"balance":                  gorm.Expr("CASE WHEN balance > ? THEN balance ELSE ? END", amount, amount),
			"trial_credits_granted_at": &now,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// Balance returns the current balance for an account.
func (l *Ledger) Balance(email string) (int64, error) {
	var account models.Account
	err := l.db.Select("balance").
		Where("email = ?", models.NormalizeEmail(email)).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return account.Balance, nil
}
