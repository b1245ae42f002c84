package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fieldnotes-app/fieldnotes/app/models"
	"github.com/fieldnotes-app/fieldnotes/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

// Webhook event types this service reacts to. Everything else is logged and
// acknowledged without side effects.
const (
	EventCheckoutCompleted          = "checkout.session.completed"
	EventInvoicePaymentSuccess      = "invoice.payment_succeeded"
	EventInvoicePaid                = "invoice.paid"
	subscriptionEventPrefix         = "customer.subscription."
	BillingReasonCycleRenewal       = "subscription_cycle"
	BillingReasonSubscriptionCreate = "subscription_create"
)

// StripeClient covers the two outbound calls this service makes: creating a
// checkout session and creating a customer portal session.
type StripeClient struct {
	SecretKey      string
	MonthlyPriceID string
	AppBaseURL     string

	APIBaseURL string

	HTTPClient *http.Client
}

// NewStripeClientFromEnv builds a client from environment configuration.
func NewStripeClientFromEnv() *StripeClient {
	return &StripeClient{
		SecretKey:      strings.TrimSpace(env.GetEnv("STRIPE_SECRET_KEY", "")),
		MonthlyPriceID: strings.TrimSpace(env.GetEnv("STRIPE_PRICE_ID_MONTHLY", "")),
		AppBaseURL:     strings.TrimRight(env.GetEnv("APP_BASE_URL", ""), "/"),
		APIBaseURL:     strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL)),
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCheckoutSession creates a subscription-mode checkout session for the
// given identity and returns the redirect URL. The email is attached as
// metadata on both the session and the subscription so webhook deliveries can
// be resolved back to the account.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, email string) (string, error) {
	if strings.TrimSpace(c.SecretKey) == "" {
		return "", errors.New("STRIPE_SECRET_KEY is not configured")
	}
	if strings.TrimSpace(c.MonthlyPriceID) == "" {
		return "", errors.New("STRIPE_PRICE_ID_MONTHLY is not configured")
	}
	normalized := models.NormalizeEmail(email)
	if normalized == "" {
		return "", errors.New("email is required")
	}

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("customer_email", normalized)
	form.Set("line_items[0][price]", c.MonthlyPriceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", c.AppBaseURL+"/?success=1&session_id={CHECKOUT_SESSION_ID}")
	form.Set("cancel_url", c.AppBaseURL+"/?canceled=1")
	form.Set("metadata[email]", normalized)
	form.Set("subscription_data[metadata][email]", normalized)

	return c.postSessionForm(ctx, "/checkout/sessions", form)
}

// CreatePortalSession creates a customer portal session for an already-linked
// provider customer and returns the redirect URL.
func (c *StripeClient) CreatePortalSession(ctx context.Context, customerRef string) (string, error) {
	if strings.TrimSpace(c.SecretKey) == "" {
		return "", errors.New("STRIPE_SECRET_KEY is not configured")
	}
	ref := strings.TrimSpace(customerRef)
	if ref == "" {
		return "", errors.New("customer ref is required")
	}

	form := url.Values{}
	form.Set("customer", ref)
	form.Set("return_url", c.AppBaseURL+"/")

	return c.postSessionForm(ctx, "/billing_portal/sessions", form)
}

func (c *StripeClient) postSessionForm(ctx context.Context, path string, form url.Values) (string, error) {
	endpoint := strings.TrimRight(c.APIBaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("stripe session request failed: status=%d body=%s", resp.StatusCode, string(body))
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", errors.New("stripe session response missing url")
	}
	return out.URL, nil
}

// StripeEvent is the decoded webhook envelope plus the payload fields the
// state machine dispatches on.
type StripeEvent struct {
	EventID string
	Type    string

	// Object fields; which ones are populated depends on the event type.
	ObjectID         string
	CustomerRef      string
	SubscriptionRef  string
	Status           string
	CurrentPeriodEnd *time.Time
	BillingReason    string
	Email            string
}

// IsSubscriptionEvent reports whether the event is a customer.subscription.*
// status change.
func (e *StripeEvent) IsSubscriptionEvent() bool {
	return strings.HasPrefix(e.Type, subscriptionEventPrefix)
}

// ParseStripeEvent decodes a raw webhook payload into the fields the handler
// needs. The subject email is resolved from the object metadata first, then
// from invoice subscription_details metadata, then from customer_email.
func ParseStripeEvent(payload []byte) (*StripeEvent, error) {
	type metadata struct {
		Email string `json:"email"`
	}
	type rawObject struct {
		ID                  string   `json:"id"`
		Customer            string   `json:"customer"`
		Subscription        string   `json:"subscription"`
		Status              string   `json:"status"`
		CustomerEmail       string   `json:"customer_email"`
		BillingReason       string   `json:"billing_reason"`
		CurrentPeriodEnd    int64    `json:"current_period_end"`
		Metadata            metadata `json:"metadata"`
		SubscriptionDetails struct {
			Metadata metadata `json:"metadata"`
		} `json:"subscription_details"`
	}
	type rawEvent struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object rawObject `json:"object"`
		} `json:"data"`
	}

	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.Type) == "" {
		return nil, errors.New("stripe event payload missing type")
	}

	obj := raw.Data.Object
	out := &StripeEvent{
		EventID:       strings.TrimSpace(raw.ID),
		Type:          strings.TrimSpace(raw.Type),
		ObjectID:      strings.TrimSpace(obj.ID),
		CustomerRef:   strings.TrimSpace(obj.Customer),
		Status:        strings.ToLower(strings.TrimSpace(obj.Status)),
		BillingReason: strings.ToLower(strings.TrimSpace(obj.BillingReason)),
	}

	out.SubscriptionRef = strings.TrimSpace(obj.Subscription)
	if out.SubscriptionRef == "" && out.IsSubscriptionEvent() {
		// On subscription events the object itself is the subscription.
		out.SubscriptionRef = out.ObjectID
	}
	if obj.CurrentPeriodEnd > 0 {
		t := time.Unix(obj.CurrentPeriodEnd, 0).UTC()
		out.CurrentPeriodEnd = &t
	}

	for _, candidate := range []string{
		obj.Metadata.Email,
		obj.SubscriptionDetails.Metadata.Email,
		obj.CustomerEmail,
	} {
		if email := models.NormalizeEmail(candidate); email != "" {
			out.Email = email
			break
		}
	}
	return out, nil
}

// SubscriptionStatusToAccountStatus maps a provider subscription status onto
// the account state machine's vocabulary.
func SubscriptionStatusToAccountStatus(status string) string {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "active":
		return models.SubscriptionStatusActive
	case "trialing":
		return models.SubscriptionStatusTrialing
	case "past_due", "unpaid":
		return models.SubscriptionStatusPastDue
	case "canceled":
		return models.SubscriptionStatusCanceled
	case "incomplete", "incomplete_expired":
		return models.SubscriptionStatusIncomplete
	default:
		return models.SubscriptionStatusIncomplete
	}
}
