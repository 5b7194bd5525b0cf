package sweep

import (
	"context"
	"fmt"
	"log"
	"time"

	"pricetracker/internal/models"
	"pricetracker/internal/reconcile"
	"pricetracker/internal/services/mailer"
	"pricetracker/internal/services/scraper"
	"pricetracker/internal/store"
)

// Extractor is the slice of the scraping client the sweep needs.
type Extractor interface {
	Fetch(ctx context.Context, url string) (*scraper.Observation, error)
}

// Notifier dispatches one drop event to a set of recipients.
type Notifier interface {
	Notify(ctx context.Context, event mailer.DropEvent, recipients []string) []mailer.Outcome
}

// ProductResult is one product's outcome within a sweep report.
type ProductResult struct {
	URL     string `json:"url"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Report aggregates a full sweep for operational visibility.
type Report struct {
	Message   string          `json:"message"`
	Processed int             `json:"processed"`
	Results   []ProductResult `json:"results"`
}

// Controller walks every tracked product once: extract, reconcile, and
// notify on qualifying drops. Products are independent; one failure never
// aborts the sweep. The controller owns no scheduling — callers invoke Run
// periodically.
type Controller struct {
	registry       *store.Registry
	history        *store.HistoryStore
	engine         *reconcile.Engine
	extractor      Extractor
	notifier       Notifier
	hub            *Hub
	productTimeout time.Duration
	logger         *log.Logger
}

func NewController(
	registry *store.Registry,
	history *store.HistoryStore,
	engine *reconcile.Engine,
	extractor Extractor,
	notifier Notifier,
	hub *Hub,
	productTimeout time.Duration,
	logger *log.Logger,
) *Controller {
	if productTimeout <= 0 {
		productTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		registry:       registry,
		history:        history,
		engine:         engine,
		extractor:      extractor,
		notifier:       notifier,
		hub:            hub,
		productTimeout: productTimeout,
		logger:         logger,
	}
}

// Run executes one sweep. It only errors when the product list itself cannot
// be read; everything per-product becomes a report entry instead.
func (c *Controller) Run(ctx context.Context) (*Report, error) {
	products, err := c.registry.AllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tracked products: %w", err)
	}

	report := &Report{Message: "Price check completed"}

	for _, product := range products {
		select {
		case <-ctx.Done():
			report.Message = "Price check cancelled"
			return report, nil
		default:
		}

		result := c.processProduct(ctx, product)
		if result == nil {
			continue
		}
		report.Processed++
		report.Results = append(report.Results, *result)
		c.hub.Publish(result)
	}

	c.logger.Printf("sweep: processed %d products", report.Processed)
	return report, nil
}

// processProduct runs one product through the pipeline under its own
// timeout. A nil return means the product was skipped (no baseline yet).
func (c *Controller) processProduct(ctx context.Context, product models.Product) *ProductResult {
	ctx, cancel := context.WithTimeout(ctx, c.productTimeout)
	defer cancel()

	prior, err := c.history.Latest(ctx, product.URL)
	if err != nil {
		return &ProductResult{URL: product.URL, Status: "error", Message: err.Error()}
	}
	if prior == nil {
		// No baseline yet; the add-product path stores the first
		// observation, so this product only just appeared.
		c.logger.Printf("sweep: no history for %s, skipping", product.URL)
		return nil
	}

	fresh, err := c.extractor.Fetch(ctx, product.URL)
	if err != nil {
		c.logger.Printf("sweep: extraction failed for %s: %v", product.URL, err)
		return &ProductResult{URL: product.URL, Status: "error", Message: err.Error()}
	}

	// Product identity was canonicalized at add time; the observation is
	// stored under the tracked URL even if the backend followed a redirect
	// this cycle.
	obs := &models.PriceObservation{
		ProductURL:   product.URL,
		Name:         fresh.Name,
		Price:        fresh.Price,
		Currency:     fresh.Currency,
		IsAvailable:  fresh.IsAvailable,
		MainImageURL: fresh.MainImageURL,
		Timestamp:    fresh.Timestamp,
	}

	result, err := c.engine.Reconcile(ctx, prior, obs)
	if err != nil {
		c.logger.Printf("sweep: reconcile failed for %s: %v", product.URL, err)
		return &ProductResult{URL: product.URL, Status: "error", Message: err.Error()}
	}

	if result.Drop != nil {
		c.dispatchAlerts(ctx, product.URL, obs, result.Drop)
	}

	return &ProductResult{
		URL:     product.URL,
		Status:  "success",
		Message: fmt.Sprintf("Added new price entry for %s", obs.Name),
	}
}

func (c *Controller) dispatchAlerts(ctx context.Context, productURL string, obs *models.PriceObservation, drop *reconcile.Drop) {
	recipients, err := c.registry.RecipientsFor(ctx, productURL)
	if err != nil {
		c.logger.Printf("sweep: listing recipients for %s failed: %v", productURL, err)
		return
	}
	if len(recipients) == 0 {
		return
	}

	outcomes := c.notifier.Notify(ctx, mailer.DropEvent{
		ProductName:  obs.Name,
		OldPrice:     drop.OldPrice,
		NewPrice:     drop.NewPrice,
		URL:          productURL,
		Currency:     obs.Currency,
		MainImageURL: obs.MainImageURL,
	}, recipients)

	for _, outcome := range outcomes {
		if outcome.Status != "success" {
			c.logger.Printf("sweep: alert to %s for %s failed: %s", outcome.Recipient, productURL, outcome.Message)
		}
	}
}
