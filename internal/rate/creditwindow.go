package rate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Checker-Finance/screener/internal/metrics"
)

// CreditConfig defines the rolling credit budget enforced against the
// market-data provider: at most Budget credits may be spent within any single
// Window.
type CreditConfig struct {
	Budget int
	Window time.Duration
}

// CreditWindow is a fixed-window credit budget. Before a request of cost c is
// issued, Reserve blocks until the current window can absorb it. This is
// cooperative self-throttling: the provider bills per sub-query, and staying
// under the budget avoids server-side throttling entirely.
//
// The window is mutex-guarded so a CreditWindow can be shared by concurrent
// pipeline runs.
type CreditWindow struct {
	mu          sync.Mutex
	budget      int
	window      time.Duration
	windowStart time.Time
	used        int

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewCreditWindow creates a credit window limiter.
func NewCreditWindow(cfg CreditConfig) *CreditWindow {
	cw := &CreditWindow{
		budget: cfg.Budget,
		window: cfg.Window,
		now:    time.Now,
		sleep:  sleepCtx,
	}
	cw.windowStart = cw.now()
	return cw
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Reserve blocks until cost credits fit in the current window, then records
// them as spent. It returns an error if cost can never fit, or if the context
// is canceled while waiting.
func (w *CreditWindow) Reserve(ctx context.Context, cost int) error {
	if cost <= 0 {
		return nil
	}
	if cost > w.budget {
		return fmt.Errorf("request cost %d exceeds window budget %d", cost, w.budget)
	}

	for {
		w.mu.Lock()
		now := w.now()
		if now.Sub(w.windowStart) >= w.window {
			w.windowStart = now
			w.used = 0
		}
		if w.used+cost <= w.budget {
			w.used += cost
			w.mu.Unlock()
			return nil
		}
		wait := w.window - now.Sub(w.windowStart)
		w.mu.Unlock()

		if err := w.sleep(ctx, wait); err != nil {
			return err
		}
		metrics.CreditWaitSeconds.Add(wait.Seconds())
	}
}

// SetClock overrides the time source and sleep function. Tests use this to
// advance the window deterministically instead of sleeping.
func (w *CreditWindow) SetClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.now = now
	w.sleep = sleep
	w.windowStart = now()
}

// Used returns the credits spent in the current window.
func (w *CreditWindow) Used() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.now().Sub(w.windowStart) >= w.window {
		return 0
	}
	return w.used
}
