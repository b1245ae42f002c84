package verification

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/fieldnotes-app/fieldnotes/app/models"
	"gorm.io/gorm"
)

const (
	CodeLength  = 6
	CodeTTL     = 15 * time.Minute
	MaxAttempts = 8
)

var (
	ErrAccountNotFound = errors.New("verification: account not found")
	ErrAlreadyVerified = errors.New("verification: email already verified")
	ErrTooManyAttempts = errors.New("verification: too many attempts")
	ErrNoActiveCode    = errors.New("verification: no active code")
	ErrExpired         = errors.New("verification: code expired")
	ErrIncorrectCode   = errors.New("verification: incorrect code")
)

// Flow issues and checks short-lived one-time numeric codes. Only the
// SHA-256 hash of a code is stored; issuing a new code overwrites any
// previous one and resets the attempt counter.
type Flow struct {
	db *gorm.DB
}

// New creates a verification flow from a GORM DB handle.
func New(db *gorm.DB) *Flow {
	return &Flow{db: db}
}

// IssueCode generates a fresh code for an unverified account, stores its hash
// and expiry, and returns the plaintext for delivery by the mail collaborator.
// The plaintext is never persisted.
func (f *Flow) IssueCode(email string) (string, error) {
	account, err := f.getAccount(email)
	if err != nil {
		return "", err
	}
	if account.IsVerified() {
		return "", ErrAlreadyVerified
	}

	code, err := generateCode(CodeLength)
	if err != nil {
		return "", err
	}
	expiresAt := time.Now().UTC().Add(CodeTTL)

	tx := f.db.Model(&models.Account{}).
		Where("email = ?", account.Email).
		UpdateColumns(map[string]interface{}{
			"verify_code_hash":       hashCode(code),
			"verify_code_expires_at": &expiresAt,
			"verify_attempts":        0,
		})
	if tx.Error != nil {
		return "", tx.Error
	}
	if tx.RowsAffected == 0 {
		return "", ErrAccountNotFound
	}
	return code, nil
}

// CheckCode validates a candidate against the stored code. A nil return means
// the code matched; the caller is then responsible for MarkVerified followed
// by the idempotent trial grant. A hash mismatch burns one attempt.
func (f *Flow) CheckCode(email, candidate string) error {
	account, err := f.getAccount(email)
	if err != nil {
		return err
	}

	switch {
	case account.IsVerified():
		return ErrAlreadyVerified
	case account.VerifyAttempts >= MaxAttempts:
		return ErrTooManyAttempts
	case account.VerifyCodeHash == "" || account.VerifyCodeExpiresAt == nil:
		return ErrNoActiveCode
	case time.Now().After(*account.VerifyCodeExpiresAt):
		return ErrExpired
	}

	if subtle.ConstantTimeCompare([]byte(hashCode(candidate)), []byte(account.VerifyCodeHash)) != 1 {
		// the cap lives in the WHERE clause so racing wrong submissions
		// cannot burn attempts past the ceiling on a stale snapshot
		tx := f.db.Model(&models.Account{}).
			Where("email = ? AND verify_attempts < ?", account.Email, MaxAttempts).
			UpdateColumn("verify_attempts", gorm.Expr("verify_attempts + 1"))
		if tx.Error != nil {
			return tx.Error
		}
		if tx.RowsAffected == 0 {
			return ErrTooManyAttempts
		}
		return ErrIncorrectCode
	}
	return nil
}

// MarkVerified stamps email_verified_at and clears the code fields so the
// consumed code cannot be replayed.
func (f *Flow) MarkVerified(email string) error {
	now := time.Now().UTC()
	tx := f.db.Model(&models.Account{}).
		Where("email = ?", models.NormalizeEmail(email)).
		UpdateColumns(map[string]interface{}{
			"email_verified_at":      &now,
			"verify_code_hash":       "",
			"verify_code_expires_at": nil,
			"verify_attempts":        0,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (f *Flow) getAccount(email string) (*models.Account, error) {
	var account models.Account
	err := f.db.Where("email = ?", models.NormalizeEmail(email)).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

func hashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

func generateCode(length int) (string, error) {
	max := big.NewInt(1)
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n), nil
}
