package billing

import (
	"testing"
	"time"

	"github.com/fieldnotes-app/fieldnotes/app/models"
)

func TestParseStripeEventCheckout(t *testing.T) {
	payload := []byte(`{
		"id": "evt_1",
		"type": "checkout.session.completed",
		"data": {"object": {
			"id": "cs_123",
			"customer": "cus_9",
			"subscription": "sub_7",
			"customer_email": "Fallback@Example.com",
			"metadata": {"email": "User@Example.COM"}
		}}
	}`)

	event, err := ParseStripeEvent(payload)
	if err != nil {
		t.Fatalf("ParseStripeEvent error: %v", err)
	}
	if event.EventID != "evt_1" || event.Type != EventCheckoutCompleted {
		t.Fatalf("unexpected envelope: %+v", event)
	}
	if event.CustomerRef != "cus_9" || event.SubscriptionRef != "sub_7" {
		t.Fatalf("unexpected refs: %+v", event)
	}
	if event.Email != "user@example.com" {
		t.Fatalf("email = %q, want metadata email to win and be normalized", event.Email)
	}
}

func TestParseStripeEventEmailFallbackChain(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{
			name:    "subscription_details metadata",
			payload: `{"id":"evt_2","type":"invoice.paid","data":{"object":{"subscription_details":{"metadata":{"email":"sub@example.com"}},"customer_email":"cust@example.com"}}}`,
			want:    "sub@example.com",
		},
		{
			name:    "customer_email last",
			payload: `{"id":"evt_3","type":"invoice.paid","data":{"object":{"customer_email":"cust@example.com"}}}`,
			want:    "cust@example.com",
		},
		{
			name:    "no identity",
			payload: `{"id":"evt_4","type":"invoice.paid","data":{"object":{}}}`,
			want:    "",
		},
	}

	for _, tt := range tests {
		event, err := ParseStripeEvent([]byte(tt.payload))
		if err != nil {
			t.Fatalf("%s: ParseStripeEvent error: %v", tt.name, err)
		}
		if event.Email != tt.want {
			t.Fatalf("%s: email = %q, want %q", tt.name, event.Email, tt.want)
		}
	}
}

func TestParseStripeEventSubscriptionObject(t *testing.T) {
	payload := []byte(`{
		"id": "evt_5",
		"type": "customer.subscription.updated",
		"data": {"object": {
			"id": "sub_42",
			"customer": "cus_9",
			"status": "Past_Due",
			"current_period_end": 1767225600
		}}
	}`)

	event, err := ParseStripeEvent(payload)
	if err != nil {
		t.Fatalf("ParseStripeEvent error: %v", err)
	}
	if !event.IsSubscriptionEvent() {
		t.Fatalf("expected a subscription event")
	}
	if event.SubscriptionRef != "sub_42" {
		t.Fatalf("SubscriptionRef = %q, want the object id", event.SubscriptionRef)
	}
	if event.Status != "past_due" {
		t.Fatalf("status = %q, want lowercased past_due", event.Status)
	}
	if event.CurrentPeriodEnd == nil || !event.CurrentPeriodEnd.Equal(time.Unix(1767225600, 0)) {
		t.Fatalf("unexpected CurrentPeriodEnd: %v", event.CurrentPeriodEnd)
	}
}

func TestParseStripeEventRejectsMissingType(t *testing.T) {
	if _, err := ParseStripeEvent([]byte(`{"id":"evt_6"}`)); err == nil {
		t.Fatalf("expected an error for a payload without a type")
	}
	if _, err := ParseStripeEvent([]byte(`not json`)); err == nil {
		t.Fatalf("expected an error for malformed JSON")
	}
}

func TestSubscriptionStatusToAccountStatus(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "active", want: models.SubscriptionStatusActive},
		{in: "TRIALING", want: models.SubscriptionStatusTrialing},
		{in: "past_due", want: models.SubscriptionStatusPastDue},
		{in: "unpaid", want: models.SubscriptionStatusPastDue},
		{in: "canceled", want: models.SubscriptionStatusCanceled},
		{in: "incomplete", want: models.SubscriptionStatusIncomplete},
		{in: "incomplete_expired", want: models.SubscriptionStatusIncomplete},
		{in: "something_new", want: models.SubscriptionStatusIncomplete},
	}

	for _, tt := range tests {
		if got := SubscriptionStatusToAccountStatus(tt.in); got != tt.want {
			t.Fatalf("SubscriptionStatusToAccountStatus(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
