package repository

import (
	"testing"

	"github.com/fieldnotes-app/fieldnotes/app/models"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepository(t *testing.T) AccountRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(&models.Account{}))
	return NewAccountRepository(db)
}

func TestGetOrCreateByEmail(t *testing.T) {
	repo := newTestRepository(t)

	first, err := repo.GetOrCreateByEmail("User@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", first.Email)
	assert.Equal(t, models.PlanFree, first.Plan)
	assert.Equal(t, models.SubscriptionStatusNone, first.SubscriptionStatus)

	// the second call returns the same row, not a fresh one
	second, err := repo.GetOrCreateByEmail("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestGetOrCreateByEmailRejectsEmpty(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetOrCreateByEmail("   ")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGetByEmail(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Create(&models.Account{Email: "User@Example.com", Plan: models.PlanFree}))

	account, err := repo.GetByEmail("  USER@example.COM ")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", account.Email)

	_, err = repo.GetByEmail("missing@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGetByProviderCustomerRef(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Create(&models.Account{
		Email:               "user@example.com",
		Plan:                models.PlanPro,
		ProviderCustomerRef: "cus_1",
	}))

	account, err := repo.GetByProviderCustomerRef("cus_1")
	require.NoError(t, err)
	assert.Equal(t, "user@example.com", account.Email)

	_, err = repo.GetByProviderCustomerRef("")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repo.GetByProviderCustomerRef("cus_unknown")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestUpdate(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Create(&models.Account{Email: "user@example.com", Plan: models.PlanFree}))
	account, err := repo.GetByEmail("user@example.com")
	require.NoError(t, err)

	account.Plan = models.PlanPro
	require.NoError(t, repo.Update(account))

	reloaded, err := repo.GetByEmail("user@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, reloaded.Plan)
}

func TestList(t *testing.T) {
	repo := newTestRepository(t)

	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		require.NoError(t, repo.Create(&models.Account{Email: email, Plan: models.PlanFree}))
	}

	accounts, err := repo.List(0, 2)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)

	accounts, err = repo.List(2, 2)
	require.NoError(t, err)
	assert.Len(t, accounts, 1)
}
