package repository

import (
	"strings"

	"github.com/fieldnotes-app/fieldnotes/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// accountRepository implements the AccountRepository interface
type accountRepository struct {
	db *gorm.DB
}

// NewAccountRepository creates a new account repository instance
func NewAccountRepository(db *gorm.DB) AccountRepository {
	return &accountRepository{db: db}
}

// Create creates a new account in the database
func (r *accountRepository) Create(account *models.Account) error {
	account.Email = models.NormalizeEmail(account.Email)
	return r.db.Create(account).Error
}

// GetByEmail retrieves an account by its normalized email address
func (r *accountRepository) GetByEmail(email string) (*models.Account, error) {
	normalized := models.NormalizeEmail(email)
	if normalized == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var account models.Account
	err := r.db.Where("email = ?", normalized).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetOrCreateByEmail inserts the account if absent and returns the stored row.
// The insert relies on the unique email index so concurrent first-sight
// requests cannot create two rows.
func (r *accountRepository) GetOrCreateByEmail(email string) (*models.Account, error) {
	normalized := models.NormalizeEmail(email)
	if normalized == "" {
		return nil, gorm.ErrRecordNotFound
	}

	account := &models.Account{
		Email:              normalized,
		Plan:               models.PlanFree,
		SubscriptionStatus: models.SubscriptionStatusNone,
	}
	if err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(account).Error; err != nil {
		return nil, err
	}

	var stored models.Account
	if err := r.db.Where("email = ?", normalized).First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// GetByProviderCustomerRef resolves a payment-provider customer id to its account
func (r *accountRepository) GetByProviderCustomerRef(customerRef string) (*models.Account, error) {
	ref := strings.TrimSpace(customerRef)
	if ref == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var account models.Account
	err := r.db.Where("provider_customer_ref = ?", ref).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// Update saves changed account fields
func (r *accountRepository) Update(account *models.Account) error {
	return r.db.Save(account).Error
}

// Count returns the total number of accounts
func (r *accountRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Account{}).Count(&count).Error
	return count, err
}

// List returns accounts with pagination
func (r *accountRepository) List(offset, limit int) ([]models.Account, error) {
	var accounts []models.Account
	err := r.db.Offset(offset).Limit(limit).Order("created_at DESC").Find(&accounts).Error
	return accounts, err
}
