package sweep

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pricetracker/internal/models"
	"pricetracker/internal/reconcile"
	"pricetracker/internal/services/mailer"
	"pricetracker/internal/services/scraper"
	"pricetracker/internal/store"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeExtractor struct {
	prices  map[string]float64
	failing map[string]bool
}

func (f *fakeExtractor) Fetch(_ context.Context, url string) (*scraper.Observation, error) {
	if f.failing[url] {
		return nil, &scraper.ExtractionError{Kind: scraper.FailureBackend, Msg: "scrape blocked"}
	}
	return &scraper.Observation{
		URL:         url,
		Name:        "Product " + url,
		Price:       f.prices[url],
		Currency:    "USD",
		IsAvailable: true,
		Timestamp:   time.Now().UTC(),
	}, nil
}

type fakeNotifier struct {
	events     []mailer.DropEvent
	recipients [][]string
}

func (f *fakeNotifier) Notify(_ context.Context, event mailer.DropEvent, recipients []string) []mailer.Outcome {
	f.events = append(f.events, event)
	f.recipients = append(f.recipients, recipients)
	outcomes := make([]mailer.Outcome, len(recipients))
	for i, r := range recipients {
		outcomes[i] = mailer.Outcome{Recipient: r, Status: "success"}
	}
	return outcomes
}

type env struct {
	db        *gorm.DB
	registry  *store.Registry
	history   *store.HistoryStore
	extractor *fakeExtractor
	notifier  *fakeNotifier
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}, &models.TrackedProduct{}, &models.PriceObservation{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return &env{
		db:        db,
		registry:  store.NewRegistry(db),
		history:   store.NewHistoryStore(db),
		extractor: &fakeExtractor{prices: map[string]float64{}, failing: map[string]bool{}},
		notifier:  &fakeNotifier{},
	}
}

func (e *env) controller() *Controller {
	engine := reconcile.NewEngine(e.history, 0.05)
	return NewController(e.registry, e.history, engine, e.extractor, e.notifier, nil, time.Second, nil)
}

func (e *env) addTracked(t *testing.T, url, user, email string, baseline float64) {
	t.Helper()
	ctx := context.Background()
	if _, err := e.registry.Track(ctx, url, user, email); err != nil {
		t.Fatal(err)
	}
	err := e.history.Append(ctx, &models.PriceObservation{
		ProductURL:  url,
		Name:        "Product " + url,
		Price:       baseline,
		Currency:    "USD",
		IsAvailable: true,
		Timestamp:   time.Now().UTC().Add(-time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRun_PerProductIsolation(t *testing.T) {
	e := newEnv(t)

	urls := []string{
		"https://shop.example.com/one",
		"https://shop.example.com/two",
		"https://shop.example.com/three",
	}
	for _, url := range urls {
		e.addTracked(t, url, "user-1", "one@example.com", 100)
		e.extractor.prices[url] = 100
	}
	e.extractor.failing[urls[1]] = true

	report, err := e.controller().Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if report.Processed != 3 {
		t.Fatalf("expected 3 processed, got %d", report.Processed)
	}

	statuses := map[string]string{}
	for _, r := range report.Results {
		statuses[r.URL] = r.Status
	}
	if statuses[urls[0]] != "success" || statuses[urls[2]] != "success" {
		t.Errorf("surrounding products must succeed: %v", statuses)
	}
	if statuses[urls[1]] != "error" {
		t.Errorf("failing product must be reported as error: %v", statuses)
	}

	// Exactly two new observations: one per successful product.
	var total int64
	e.db.Model(&models.PriceObservation{}).Count(&total)
	if total != 5 { // 3 baselines + 2 new
		t.Errorf("expected 5 observations (3 baselines + 2 new), got %d", total)
	}
}

func TestRun_DropTriggersNotification(t *testing.T) {
	e := newEnv(t)
	url := "https://shop.example.com/widget"
	e.addTracked(t, url, "user-a", "a@example.com", 100)
	if _, err := e.registry.Track(context.Background(), url, "user-b", "b@example.com"); err != nil {
		t.Fatal(err)
	}
	e.extractor.prices[url] = 94

	report, err := e.controller().Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Status != "success" {
		t.Fatalf("unexpected report: %+v", report)
	}

	if len(e.notifier.events) != 1 {
		t.Fatalf("expected one drop event, got %d", len(e.notifier.events))
	}
	drop := e.notifier.events[0]
	if drop.OldPrice != 100 || drop.NewPrice != 94 {
		t.Errorf("wrong drop prices: %+v", drop)
	}
	if len(e.notifier.recipients[0]) != 2 {
		t.Errorf("expected both trackers alerted, got %v", e.notifier.recipients[0])
	}
}

func TestRun_NoDropNoNotification(t *testing.T) {
	e := newEnv(t)
	url := "https://shop.example.com/widget"
	e.addTracked(t, url, "user-1", "one@example.com", 100)
	e.extractor.prices[url] = 96

	if _, err := e.controller().Run(context.Background()); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(e.notifier.events) != 0 {
		t.Errorf("4%% drop must not alert, got %+v", e.notifier.events)
	}

	// The observation is still appended.
	history, err := e.history.History(context.Background(), url)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Errorf("expected 2 observations, got %d", len(history))
	}
}

func TestRun_SkipsProductsWithoutBaseline(t *testing.T) {
	e := newEnv(t)
	url := "https://shop.example.com/fresh"
	if _, err := e.registry.Track(context.Background(), url, "user-1", "one@example.com"); err != nil {
		t.Fatal(err)
	}

	report, err := e.controller().Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Processed != 0 || len(report.Results) != 0 {
		t.Errorf("baseline-less product must be skipped: %+v", report)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	e := newEnv(t)
	e.addTracked(t, "https://shop.example.com/widget", "user-1", "one@example.com", 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := e.controller().Run(ctx)
	if err != nil {
		t.Fatalf("Run must not error on cancellation: %v", err)
	}
	if report.Processed != 0 {
		t.Errorf("cancelled sweep must not process products, got %d", report.Processed)
	}
}
