package repository

import (
	"github.com/fieldnotes-app/fieldnotes/app/models"
	"gorm.io/gorm"
)

// AccountRepository defines the interface for account-related database
// operations. Balance mutations are NOT part of this interface; they go
// through the ledger package's atomic conditional updates.
type AccountRepository interface {
	Create(account *models.Account) error
	GetByEmail(email string) (*models.Account, error)
	// GetOrCreateByEmail creates the account on first sight of an identity
	// (insert-if-absent) and returns the stored row either way.
	GetOrCreateByEmail(email string) (*models.Account, error)
	GetByProviderCustomerRef(customerRef string) (*models.Account, error)
	Update(account *models.Account) error
	Count() (int64, error)
	List(offset, limit int) ([]models.Account, error)
}

// Repositories bundles every repository backed by one DB handle.
type Repositories struct {
	Account AccountRepository
}

// NewRepositories creates all repository instances from a DB handle.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Account: NewAccountRepository(db),
	}
}
