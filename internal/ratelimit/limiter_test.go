package ratelimit

import (
	"context"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// Limiter Tests
// =============================================================================

func TestNewLimiter(t *testing.T) {
	tests := []struct {
		name      string
		rps       float64
		burst     int
		wantRate  rate.Limit
		wantBurst int
	}{
		{"limited", 10, 5, 10, 5},
		{"zero rate is unlimited", 0, 1, rate.Inf, 1},
		{"negative rate is unlimited", -1, 1, rate.Inf, 1},
		{"burst clamped", 2, 0, 2, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLimiter(tt.rps, tt.burst)
			if l.defaultRate != tt.wantRate {
				t.Errorf("defaultRate = %v, want %v", l.defaultRate, tt.wantRate)
			}
			if l.defaultBurst != tt.wantBurst {
				t.Errorf("defaultBurst = %d, want %d", l.defaultBurst, tt.wantBurst)
			}
		})
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	l := NewLimiter(0, 1)
	if !l.Unlimited() {
		t.Error("zero rate should be unlimited")
	}
	for i := 0; i < 100; i++ {
		if !l.Allow() {
			t.Fatalf("Allow() denied request %d on an unlimited limiter", i)
		}
	}

	l.SetDomainDelay(time.Millisecond)
	if l.Unlimited() {
		t.Error("a domain delay makes the limiter limited")
	}
}

func TestLimiter_Allow_Burst(t *testing.T) {
	l := NewLimiter(1, 3)

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Errorf("Allow() should return true for burst request %d", i+1)
		}
	}
	if l.Allow() {
		t.Error("Allow() should return false after burst exhausted")
	}
}

func TestLimiter_Wait_ContextCancelled(t *testing.T) {
	l := NewLimiter(0.1, 1)
	l.Allow()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := l.Wait(ctx); err == nil {
		t.Error("Wait() should return error for cancelled context")
	}
}

func TestLimiter_WaitDomain(t *testing.T) {
	l := NewLimiter(1000, 10)
	ctx := context.Background()

	if err := l.WaitDomain(ctx, "example.com"); err != nil {
		t.Errorf("WaitDomain() error = %v", err)
	}
	if err := l.WaitDomain(ctx, "cdn.example.net"); err != nil {
		t.Errorf("WaitDomain() error = %v", err)
	}

	if got := l.Stats().DomainCount; got != 2 {
		t.Errorf("DomainCount = %d, want 2", got)
	}
}

func TestLimiter_WaitDomain_WithDelay(t *testing.T) {
	l := NewLimiter(1000, 10)
	l.SetDomainDelay(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	l.WaitDomain(ctx, "example.com")
	l.WaitDomain(ctx, "example.com")

	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("second request to the same host waited %v, want >= 50ms", elapsed)
	}
}

func TestLimiter_WaitDomain_DelayCancelled(t *testing.T) {
	l := NewLimiter(0, 1)
	l.SetDomainDelay(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := l.WaitDomain(ctx, "example.com"); err != nil {
		t.Fatalf("first WaitDomain() error = %v", err)
	}
	if err := l.WaitDomain(ctx, "example.com"); err == nil {
		t.Error("WaitDomain() should stop when the context expires")
	}
}

func TestLimiter_SetRate(t *testing.T) {
	l := NewLimiter(10, 5)
	l.SetRate(0, 0)

	stats := l.Stats()
	if stats.DefaultRate != float64(rate.Inf) {
		t.Errorf("DefaultRate = %v, want Inf", stats.DefaultRate)
	}
	if stats.DefaultBurst != 5 {
		t.Errorf("DefaultBurst = %d, want 5 to be kept", stats.DefaultBurst)
	}
}
