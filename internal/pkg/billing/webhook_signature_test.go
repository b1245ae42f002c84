package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"
)

func signPayload(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", ts)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyStripeWebhookSignature(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"invoice.paid"}`)
	secret := "whsec_test"
	now := time.Now()
	ts := now.Unix()
	sig := signPayload(payload, secret, ts)

	tests := []struct {
		name   string
		header string
		secret string
		want   bool
	}{
		{
			name:   "valid",
			header: fmt.Sprintf("t=%d,v1=%s", ts, sig),
			secret: secret,
			want:   true,
		},
		{
			name:   "valid with extra schemes",
			header: fmt.Sprintf("t=%d,v0=deadbeef,v1=%s", ts, sig),
			secret: secret,
			want:   true,
		},
		{
			name:   "multiple v1, one matches",
			header: fmt.Sprintf("t=%d,v1=%s,v1=%s", ts, hex.EncodeToString(make([]byte, 32)), sig),
			secret: secret,
			want:   true,
		},
		{
			name:   "wrong secret",
			header: fmt.Sprintf("t=%d,v1=%s", ts, sig),
			secret: "whsec_other",
			want:   false,
		},
		{
			name:   "tampered payload signature",
			header: fmt.Sprintf("t=%d,v1=%s", ts, signPayload([]byte(`{"id":"evt_2"}`), secret, ts)),
			secret: secret,
			want:   false,
		},
		{
			name:   "stale timestamp",
			header: fmt.Sprintf("t=%d,v1=%s", ts-600, signPayload(payload, secret, ts-600)),
			secret: secret,
			want:   false,
		},
		{
			name:   "empty header",
			header: "",
			secret: secret,
			want:   false,
		},
		{
			name:   "missing timestamp",
			header: fmt.Sprintf("v1=%s", sig),
			secret: secret,
			want:   false,
		},
		{
			name:   "missing signature",
			header: fmt.Sprintf("t=%d", ts),
			secret: secret,
			want:   false,
		},
		{
			name:   "garbage header",
			header: "not-a-signature",
			secret: secret,
			want:   false,
		},
		{
			name:   "empty secret",
			header: fmt.Sprintf("t=%d,v1=%s", ts, sig),
			secret: "",
			want:   false,
		},
	}

	for _, tt := range tests {
		if got := VerifyStripeWebhookSignature(payload, tt.header, tt.secret, now); got != tt.want {
			t.Fatalf("%s: VerifyStripeWebhookSignature = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestVerifyStripeWebhookSignatureTimestampWithinTolerance(t *testing.T) {
	payload := []byte(`{}`)
	secret := "whsec_test"
	now := time.Now()

	ts := now.Add(-4 * time.Minute).Unix()
	header := fmt.Sprintf("t=%d,v1=%s", ts, signPayload(payload, secret, ts))
	if !VerifyStripeWebhookSignature(payload, header, secret, now) {
		t.Fatalf("expected a signature inside the tolerance window to verify")
	}
}
