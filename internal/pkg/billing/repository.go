package billing

import (
	"strings"
	"time"

	"github.com/fieldnotes-app/fieldnotes/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository provides the DB operations used by the billing service. Account
// writes here touch linkage/status/plan columns only; balance mutations stay
// in the ledger package.
type Repository interface {
	CreateEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error)
	MarkEventProcessed(id uint) error
	MarkEventFailed(id uint, processingError string) error
	GetOrCreateAccount(email string) (*models.Account, error)
	GetAccountByCustomerRef(customerRef string) (*models.Account, error)
	UpdateAccountLink(email, customerRef, subscriptionRef, plan, status string) error
	UpdateSubscriptionState(email, status, customerRef, subscriptionRef string, periodEnd *time.Time) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a billing repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) CreateEventIfNotExists(event *models.WebhookEvent) (bool, *models.WebhookEvent, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "provider"},
			{Name: "provider_event_id"},
		},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.WebhookEvent
	if err := r.db.Where("provider = ? AND provider_event_id = ?", event.Provider, event.ProviderEventID).
		First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

func (r *gormRepository) MarkEventProcessed(id uint) error {
	now := time.Now()
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"processed_at":     &now,
			"processing_error": "",
		}).Error
}

// MarkEventFailed records the error but leaves processed_at unset so the
// provider's retried delivery attempts the side effect again.
func (r *gormRepository) MarkEventFailed(id uint, processingError string) error {
	return r.db.Model(&models.WebhookEvent{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"processing_error": processingError,
		}).Error
}

func (r *gormRepository) GetOrCreateAccount(email string) (*models.Account, error) {
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

func (r *gormRepository) GetAccountByCustomerRef(customerRef string) (*models.Account, error) {
	ref := strings.TrimSpace(customerRef)
	if ref == "" {
		return nil, gorm.ErrRecordNotFound
	}
	var account models.Account
	if err := r.db.Where("provider_customer_ref = ?", ref).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// UpdateAccountLink persists provider linkage and plan. Status is written
// only when the caller supplies one; it always mirrors what the provider
// reported, never an assumption of this method.
func (r *gormRepository) UpdateAccountLink(email, customerRef, subscriptionRef, plan, status string) error {
	updates := map[string]interface{}{}
	if status != "" {
		updates["subscription_status"] = status
	}
	if ref := strings.TrimSpace(customerRef); ref != "" {
		updates["provider_customer_ref"] = ref
	}
	if ref := strings.TrimSpace(subscriptionRef); ref != "" {
		updates["provider_subscription_ref"] = ref
	}
	if plan != "" {
		updates["plan"] = plan
	}
	return r.db.Model(&models.Account{}).
		Where("email = ?", models.NormalizeEmail(email)).
		Updates(updates).Error
}

func (r *gormRepository) UpdateSubscriptionState(email, status, customerRef, subscriptionRef string, periodEnd *time.Time) error {
	updates := map[string]interface{}{
		"subscription_status": status,
	}
	if ref := strings.TrimSpace(customerRef); ref != "" {
		updates["provider_customer_ref"] = ref
	}
	if ref := strings.TrimSpace(subscriptionRef); ref != "" {
		updates["provider_subscription_ref"] = ref
	}
	if periodEnd != nil {
		updates["current_period_end"] = periodEnd
	}
	return r.db.Model(&models.Account{}).
		Where("email = ?", models.NormalizeEmail(email)).
		Updates(updates).Error
}
