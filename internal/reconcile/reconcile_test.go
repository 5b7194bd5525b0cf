package reconcile

import (
	"context"
	"testing"
	"time"

	"pricetracker/internal/models"
)

type fakeAppender struct {
	appended []*models.PriceObservation
	err      error
}

func (f *fakeAppender) Append(_ context.Context, obs *models.PriceObservation) error {
	if f.err != nil {
		return f.err
	}
	f.appended = append(f.appended, obs)
	return nil
}

func obs(price float64, available bool) *models.PriceObservation {
	return &models.PriceObservation{
		ProductURL:  "https://shop.example.com/widget",
		Name:        "Widget",
		Price:       price,
		Currency:    "USD",
		IsAvailable: available,
		Timestamp:   time.Now().UTC(),
	}
}

func TestReconcile_DropThreshold(t *testing.T) {
	tests := []struct {
		name       string
		priorPrice float64
		freshPrice float64
		wantDrop   bool
		wantFrac   float64
	}{
		{"six percent drop qualifies", 100, 94, true, 0.06},
		{"four percent drop does not", 100, 96, false, 0},
		{"exactly five percent qualifies", 100, 95, true, 0.05},
		{"price increase never qualifies", 100, 120, false, 0},
		{"unchanged price", 100, 100, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			appender := &fakeAppender{}
			engine := NewEngine(appender, 0.05)

			result, err := engine.Reconcile(context.Background(), obs(tt.priorPrice, true), obs(tt.freshPrice, true))
			if err != nil {
				t.Fatalf("Reconcile failed: %v", err)
			}

			if len(appender.appended) != 1 {
				t.Fatalf("expected exactly one append, got %d", len(appender.appended))
			}

			if tt.wantDrop {
				if result.Drop == nil {
					t.Fatal("expected a drop, got none")
				}
				if result.Drop.Fraction < tt.wantFrac-1e-9 || result.Drop.Fraction > tt.wantFrac+1e-9 {
					t.Errorf("expected fraction %v, got %v", tt.wantFrac, result.Drop.Fraction)
				}
				if result.Drop.OldPrice != tt.priorPrice || result.Drop.NewPrice != tt.freshPrice {
					t.Errorf("drop prices wrong: %+v", result.Drop)
				}
			} else if result.Drop != nil {
				t.Errorf("expected no drop, got %+v", result.Drop)
			}
		})
	}
}

func TestReconcile_UnavailableCarriesForwardPrice(t *testing.T) {
	appender := &fakeAppender{}
	engine := NewEngine(appender, 0.05)

	fresh := obs(5, false) // unavailable listing with a bogus scraped price
	result, err := engine.Reconcile(context.Background(), obs(100, true), fresh)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	if len(appender.appended) != 1 {
		t.Fatalf("expected one append, got %d", len(appender.appended))
	}
	if appender.appended[0].Price != 100 {
		t.Errorf("expected carried-forward price 100, got %v", appender.appended[0].Price)
	}
	if result.Drop != nil {
		t.Errorf("unavailable product must never produce a drop, got %+v", result.Drop)
	}
}

func TestReconcile_ZeroPriorPriceGuard(t *testing.T) {
	appender := &fakeAppender{}
	engine := NewEngine(appender, 0.05)

	prior := obs(100, true)
	prior.Price = 0

	result, err := engine.Reconcile(context.Background(), prior, obs(1, true))
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if result.Drop != nil {
		t.Errorf("zero prior price must disable the drop check, got %+v", result.Drop)
	}
}

func TestReconcile_RequiresPrior(t *testing.T) {
	engine := NewEngine(&fakeAppender{}, 0.05)
	if _, err := engine.Reconcile(context.Background(), nil, obs(10, true)); err == nil {
		t.Fatal("expected an error without a prior observation")
	}
}

func TestReconcile_AppendErrorPropagates(t *testing.T) {
	appender := &fakeAppender{err: context.DeadlineExceeded}
	engine := NewEngine(appender, 0.05)

	if _, err := engine.Reconcile(context.Background(), obs(100, true), obs(90, true)); err == nil {
		t.Fatal("expected append error to propagate")
	}
}

func TestNewEngine_DefaultThreshold(t *testing.T) {
	appender := &fakeAppender{}
	engine := NewEngine(appender, 0)

	result, err := engine.Reconcile(context.Background(), obs(100, true), obs(94, true))
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if result.Drop == nil {
		t.Error("default threshold should classify a 6% drop")
	}
}
