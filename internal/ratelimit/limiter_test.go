package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/codewheel/toolgate/internal/config"
	"github.com/codewheel/toolgate/internal/policy"
)

// testLimiter builds a limiter with fixed settings and a controllable clock.
func testLimiter(rl config.RateLimiting) (*Limiter, *time.Time) {
	s := config.DefaultSettings()
	s.RateLimiting = rl
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	l := New(func() config.Settings { return s })
	l.now = func() time.Time { return now }
	return l, &now
}

func TestCheckAndCharge_DeniesFourthCallInWindow(t *testing.T) {
	l, _ := testLimiter(config.RateLimiting{
		Enabled:            true,
		MaxWritesPerMinute: 3,
		MaxWritesPerHour:   1000,
	})

	for i := 0; i < 3; i++ {
		if d := l.CheckAndCharge("caller-1", OpClassWrite); !d.Allowed {
			t.Fatalf("call %d should be allowed, got %s", i+1, d.Code)
		}
	}
	d := l.CheckAndCharge("caller-1", OpClassWrite)
	if d.Allowed {
		t.Fatal("4th call in window should be denied")
	}
	if d.Code != policy.CodeRateLimitExceeded {
		t.Errorf("expected RATE_LIMIT_EXCEEDED, got %s", d.Code)
	}
	if d.RetryAfter <= 0 || d.RetryAfter > 60 {
		t.Errorf("retry_after should be within (0, 60], got %d", d.RetryAfter)
	}
}

func TestCheckAndCharge_WindowRollRestoresAllowance(t *testing.T) {
	l, now := testLimiter(config.RateLimiting{
		Enabled:            true,
		MaxWritesPerMinute: 1,
		MaxWritesPerHour:   1000,
	})

	if d := l.CheckAndCharge("caller-1", OpClassWrite); !d.Allowed {
		t.Fatalf("1st call should be allowed, got %s", d.Code)
	}
	if d := l.CheckAndCharge("caller-1", OpClassWrite); d.Allowed {
		t.Fatal("2nd call should be denied")
	}

	*now = now.Add(61 * time.Second)
	if d := l.CheckAndCharge("caller-1", OpClassWrite); !d.Allowed {
		t.Errorf("call after window elapse should be allowed with a reset counter, got %s", d.Code)
	}
}

func TestCheckAndCharge_DenialCommitsNoCharge(t *testing.T) {
	// deletes_per_hour is exhausted, so the call must be denied without
	// consuming any of the write quotas.
	l, _ := testLimiter(config.RateLimiting{
		Enabled:            true,
		MaxWritesPerMinute: 10,
		MaxWritesPerHour:   10,
		MaxDeletesPerHour:  1,
	})

	if d := l.CheckAndCharge("caller-1", OpClassDelete); !d.Allowed {
		t.Fatalf("1st delete should be allowed, got %s", d.Code)
	}
	if d := l.CheckAndCharge("caller-1", OpClassDelete); d.Allowed {
		t.Fatal("2nd delete should be denied")
	}

	for _, cu := range l.Status("caller-1") {
		switch cu.Class {
		case ClassWritesPerMinute, ClassWritesPerHour:
			if cu.Used != 1 {
				t.Errorf("%s: denied call must not charge, expected 1 got %d", cu.Class, cu.Used)
			}
		case ClassDeletesPerHour:
			if cu.Used != 1 {
				t.Errorf("%s: expected 1 got %d", cu.Class, cu.Used)
			}
		}
	}
}

func TestCheckAndCharge_DeleteConsumesWriteQuotas(t *testing.T) {
	l, _ := testLimiter(config.RateLimiting{
		Enabled:            true,
		MaxWritesPerMinute: 2,
		MaxWritesPerHour:   100,
		MaxDeletesPerHour:  100,
	})

	if d := l.CheckAndCharge("caller-1", OpClassDelete); !d.Allowed {
		t.Fatalf("delete should be allowed, got %s", d.Code)
	}
	if d := l.CheckAndCharge("caller-1", OpClassWrite); !d.Allowed {
		t.Fatalf("write should be allowed, got %s", d.Code)
	}
	// The delete and the write both consumed writes_per_minute.
	if d := l.CheckAndCharge("caller-1", OpClassWrite); d.Allowed {
		t.Error("3rd chargeable call should exceed writes_per_minute=2")
	}
}

func TestCheckAndCharge_StructureBucket(t *testing.T) {
	l, _ := testLimiter(config.RateLimiting{
		Enabled:                    true,
		MaxWritesPerMinute:         100,
		MaxWritesPerHour:           100,
		MaxStructureChangesPerHour: 1,
	})

	if d := l.CheckAndCharge("caller-1", OpClassStructure); !d.Allowed {
		t.Fatalf("1st structure change should be allowed, got %s", d.Code)
	}
	d := l.CheckAndCharge("caller-1", OpClassStructure)
	if d.Allowed {
		t.Fatal("2nd structure change should be denied")
	}
	// Plain writes are still fine; only the structure bucket is exhausted.
	if d := l.CheckAndCharge("caller-1", OpClassWrite); !d.Allowed {
		t.Errorf("plain write should still be allowed, got %s", d.Code)
	}
}

func TestCheckAndCharge_DisabledShortCircuits(t *testing.T) {
	l, _ := testLimiter(config.RateLimiting{Enabled: false, MaxWritesPerMinute: 1})
	for i := 0; i < 10; i++ {
		if d := l.CheckAndCharge("caller-1", OpClassWrite); !d.Allowed {
			t.Fatalf("disabled limiter must always allow, got %s", d.Code)
		}
	}
}

func TestCheckAndCharge_CallersAreIndependent(t *testing.T) {
	l, _ := testLimiter(config.RateLimiting{
		Enabled:            true,
		MaxWritesPerMinute: 1,
		MaxWritesPerHour:   100,
	})

	if d := l.CheckAndCharge("caller-1", OpClassWrite); !d.Allowed {
		t.Fatalf("caller-1 should be allowed, got %s", d.Code)
	}
	if d := l.CheckAndCharge("caller-2", OpClassWrite); !d.Allowed {
		t.Errorf("caller-2 has its own counters, got %s", d.Code)
	}
}

func TestCheckAndCharge_NonPositiveLimitUnlimited(t *testing.T) {
	l, _ := testLimiter(config.RateLimiting{
		Enabled:            true,
		MaxWritesPerMinute: 0,
		MaxWritesPerHour:   0,
	})
	for i := 0; i < 50; i++ {
		if d := l.CheckAndCharge("caller-1", OpClassWrite); !d.Allowed {
			t.Fatalf("zero limit means unlimited, got %s", d.Code)
		}
	}
}

func TestStatus_DoesNotCharge(t *testing.T) {
	l, _ := testLimiter(config.RateLimiting{
		Enabled:            true,
		MaxWritesPerMinute: 5,
		MaxWritesPerHour:   100,
	})

	l.CheckAndCharge("caller-1", OpClassWrite)
	before := l.Status("caller-1")
	after := l.Status("caller-1")
	for i := range before {
		if before[i].Used != after[i].Used {
			t.Errorf("%s: status query must not charge", before[i].Class)
		}
	}
}

func TestReset_ClearsCounters(t *testing.T) {
	l, _ := testLimiter(config.RateLimiting{
		Enabled:            true,
		MaxWritesPerMinute: 1,
		MaxWritesPerHour:   100,
	})

	l.CheckAndCharge("caller-1", OpClassWrite)
	if d := l.CheckAndCharge("caller-1", OpClassWrite); d.Allowed {
		t.Fatal("2nd call should be denied before reset")
	}
	l.Reset("caller-1")
	if d := l.CheckAndCharge("caller-1", OpClassWrite); !d.Allowed {
		t.Errorf("call after reset should be allowed, got %s", d.Code)
	}
}

func TestCheckAndCharge_ConcurrentCallsNeverExceedLimit(t *testing.T) {
	l, _ := testLimiter(config.RateLimiting{
		Enabled:            true,
		MaxWritesPerMinute: 10,
		MaxWritesPerHour:   1000,
	})

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d := l.CheckAndCharge("caller-1", OpClassWrite); d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 10 {
		t.Errorf("expected exactly 10 allowed calls under concurrency, got %d", allowed)
	}
}
