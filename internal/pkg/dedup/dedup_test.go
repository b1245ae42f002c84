package dedup

import (
	"context"
	"testing"
	"time"
)

func TestFingerprint(t *testing.T) {
	a := Fingerprint("user@example.com", "narrative", "client")
	b := Fingerprint("  USER@Example.com ", "narrative", "client")
	if a != b {
		t.Fatalf("expected identity normalization to produce equal fingerprints")
	}

	if Fingerprint("user@example.com", "narrative") == Fingerprint("user@example.com", "other") {
		t.Fatalf("expected different params to produce different fingerprints")
	}

	// parameter boundaries matter: ("ab","c") != ("a","bc")
	if Fingerprint("user@example.com", "ab", "c") == Fingerprint("user@example.com", "a", "bc") {
		t.Fatalf("expected parameter boundaries to be part of the fingerprint")
	}
}

func TestShouldRejectWithinCooldown(t *testing.T) {
	g := New(nil, time.Minute)
	ctx := context.Background()
	now := time.Now()
	fp := Fingerprint("user@example.com", "narrative")

	if g.ShouldReject(ctx, "user@example.com", fp, now) {
		t.Fatalf("first request must pass")
	}
	if !g.ShouldReject(ctx, "user@example.com", fp, now.Add(time.Second)) {
		t.Fatalf("identical request within cooldown must be rejected")
	}
	if g.ShouldReject(ctx, "user@example.com", fp, now.Add(2*time.Minute)) {
		t.Fatalf("identical request after cooldown must pass")
	}
}

func TestShouldRejectDifferentFingerprintPasses(t *testing.T) {
	g := New(nil, time.Minute)
	ctx := context.Background()
	now := time.Now()

	if g.ShouldReject(ctx, "user@example.com", Fingerprint("user@example.com", "a"), now) {
		t.Fatalf("first request must pass")
	}
	if g.ShouldReject(ctx, "user@example.com", Fingerprint("user@example.com", "b"), now) {
		t.Fatalf("a changed request from the same identity must pass")
	}
}

func TestShouldRejectIsPerIdentity(t *testing.T) {
	g := New(nil, time.Minute)
	ctx := context.Background()
	now := time.Now()

	fpA := Fingerprint("a@example.com", "narrative")
	fpB := Fingerprint("b@example.com", "narrative")

	if g.ShouldReject(ctx, "a@example.com", fpA, now) {
		t.Fatalf("first request must pass")
	}
	if g.ShouldReject(ctx, "b@example.com", fpB, now) {
		t.Fatalf("a different identity must not share the window")
	}
}

func TestNewDefaultsCooldown(t *testing.T) {
	g := New(nil, 0)
	if g.cooldown != DefaultCooldown {
		t.Fatalf("cooldown = %v, want %v", g.cooldown, DefaultCooldown)
	}
}
