package billing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"

	"github.com/fieldnotes-app/fieldnotes/app/models"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/entitlements"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/ledger"
	"gorm.io/gorm"
)

const ProviderStripe = "stripe"

// ErrUnresolvedSubject marks events whose payload carries no resolvable
// account identity. They are acknowledged as processed because a redelivery
// of the same payload can never succeed.
var ErrUnresolvedSubject = errors.New("billing: event subject could not be resolved to an account")

// EventResult reports what HandleEvent did with a delivery.
type EventResult struct {
	Event     *models.WebhookEvent
	Duplicate bool
	Ignored   bool
}

// Service is the webhook ingestion pipeline: durable receipt logging,
// idempotent dispatch and the subscription state machine. Credits are granted
// only on checkout completion and cycle renewal; pure status transitions never
// touch the balance (with the one first-activation fallback below).
type Service struct {
	repo   Repository
	ledger *ledger.Ledger
}

// NewService creates a billing service from injected collaborators.
func NewService(repo Repository, l *ledger.Ledger) *Service {
	return &Service{repo: repo, ledger: l}
}

// NewServiceFromDB creates a billing service from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB) *Service {
	return NewService(NewRepository(db), ledger.New(db))
}

// HandleEvent processes one authenticated webhook delivery. The caller has
// already verified the signature against the raw payload. The event is logged
// before any side effect runs; an existing log row only short-circuits when
// its side effects completed, so a crash mid-processing is retried by the
// next delivery.
func (s *Service) HandleEvent(ctx context.Context, rawPayload []byte) (*EventResult, error) {
	_ = ctx
	event, err := ParseStripeEvent(rawPayload)
	if err != nil {
		return nil, fmt.Errorf("parse stripe event: %w", err)
	}

	eventID := event.EventID
	if eventID == "" {
		sum := sha256.Sum256(rawPayload)
		eventID = "hash:" + hex.EncodeToString(sum[:])
	}

	created, stored, err := s.repo.CreateEventIfNotExists(&models.WebhookEvent{
		Provider:        ProviderStripe,
		ProviderEventID: eventID,
		EventType:       event.Type,
		SubjectEmail:    event.Email,
		PayloadJSON:     string(rawPayload),
	})
	if err != nil {
		return nil, fmt.Errorf("log webhook receipt: %w", err)
	}
	if !created && stored.Processed() {
		return &EventResult{Event: stored, Duplicate: true}, nil
	}

	ignored, applyErr := s.apply(event)
	if applyErr != nil {
		if errors.Is(applyErr, ErrUnresolvedSubject) {
			// Retrying an unresolvable payload can never succeed.
			if err := s.repo.MarkEventProcessed(stored.ID); err != nil {
				return nil, err
			}
			log.Printf("billing: event %s (%s) ignored: %v", eventID, event.Type, applyErr)
			return &EventResult{Event: stored, Ignored: true}, nil
		}
		if err := s.repo.MarkEventFailed(stored.ID, applyErr.Error()); err != nil {
			log.Printf("billing: failed to record processing error for event %s: %v", eventID, err)
		}
		return &EventResult{Event: stored}, applyErr
	}

	if err := s.repo.MarkEventProcessed(stored.ID); err != nil {
		return nil, err
	}
	return &EventResult{Event: stored, Ignored: ignored}, nil
}

// apply dispatches the event to its transition group. The bool result
// reports whether the event was a recognized no-op.
func (s *Service) apply(event *StripeEvent) (bool, error) {
	switch {
	case event.Type == EventCheckoutCompleted:
		return false, s.applyCheckoutCompleted(event)
	case event.IsSubscriptionEvent():
		return false, s.applySubscriptionChange(event)
	case event.Type == EventInvoicePaymentSuccess || event.Type == EventInvoicePaid:
		return s.applyInvoicePayment(event)
	default:
		return true, nil
	}
}

// applyCheckoutCompleted links the provider refs and SETS the account to its
// paid allowance. Because the grant is a set to a constant, a duplicate
// delivery converges instead of double-crediting.
func (s *Service) applyCheckoutCompleted(event *StripeEvent) error {
	if event.Email == "" {
		return fmt.Errorf("%w: checkout session %s carries no email", ErrUnresolvedSubject, event.ObjectID)
	}
	account, err := s.repo.GetOrCreateAccount(event.Email)
	if err != nil {
		return fmt.Errorf("resolve account %s: %w", event.Email, err)
	}
	if err := s.repo.UpdateAccountLink(account.Email, event.CustomerRef, event.SubscriptionRef, models.PlanPro, models.SubscriptionStatusActive); err != nil {
		return fmt.Errorf("link provider refs for %s: %w", account.Email, err)
	}
	if err := s.ledger.SetAllowance(account.Email, entitlements.ProMonthlyCredits); err != nil {
		return fmt.Errorf("set paid allowance for %s: %w", account.Email, err)
	}
	return nil
}

// applySubscriptionChange updates status and provider linkage only. Status
// can flap (past_due then active within one period) without a new invoice,
// so it must never drive grants — except the documented fallback: a
// subscription entering active/trialing on an account that never got its
// allowance configured (checkout event missed) is granted the paid allowance
// once.
func (s *Service) applySubscriptionChange(event *StripeEvent) error {
	account, err := s.resolveAccount(event)
	if err != nil {
		return err
	}

	status := SubscriptionStatusToAccountStatus(event.Status)
	if err := s.repo.UpdateSubscriptionState(account.Email, status, event.CustomerRef, event.SubscriptionRef, event.CurrentPeriodEnd); err != nil {
		return fmt.Errorf("update subscription state for %s: %w", account.Email, err)
	}

	if entitlements.IsEntitlingStatus(status) && account.MonthlyAllowance == 0 {
		log.Printf("billing: first activation for %s arrived without checkout event, applying allowance fallback", account.Email)
		// status was just written above from the provider event; pass none
		// here so a trialing activation is not flattened to active
		if err := s.repo.UpdateAccountLink(account.Email, event.CustomerRef, event.SubscriptionRef, models.PlanPro, ""); err != nil {
			return fmt.Errorf("fallback link for %s: %w", account.Email, err)
		}
		if err := s.ledger.SetAllowance(account.Email, entitlements.ProMonthlyCredits); err != nil {
			return fmt.Errorf("fallback allowance for %s: %w", account.Email, err)
		}
	}
	return nil
}

// applyInvoicePayment resets the balance to the monthly allowance, but only
// for cycle renewals. The first invoice of a new subscription
// (billing_reason=subscription_create) is excluded: checkout completion
// already granted the allowance, and crediting here again would double-pay a
// new subscriber.
func (s *Service) applyInvoicePayment(event *StripeEvent) (bool, error) {
	if event.BillingReason != BillingReasonCycleRenewal {
		log.Printf("billing: invoice %s with billing_reason=%q leaves balance untouched", event.ObjectID, event.BillingReason)
		return true, nil
	}
	account, err := s.resolveAccount(event)
	if err != nil {
		return false, err
	}
	if err := s.ledger.ApplyRenewal(account.Email); err != nil {
		return false, fmt.Errorf("apply renewal for %s: %w", account.Email, err)
	}
	return false, nil
}

func (s *Service) resolveAccount(event *StripeEvent) (*models.Account, error) {
	if event.Email != "" {
		account, err := s.repo.GetOrCreateAccount(event.Email)
		if err != nil {
			return nil, fmt.Errorf("resolve account %s: %w", event.Email, err)
		}
		return account, nil
	}
	account, err := s.repo.GetAccountByCustomerRef(event.CustomerRef)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: no email metadata and customer %q is not linked", ErrUnresolvedSubject, event.CustomerRef)
		}
		return nil, fmt.Errorf("lookup by customer ref %s: %w", event.CustomerRef, err)
	}
	return account, nil
}
