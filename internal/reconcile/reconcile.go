package reconcile

import (
	"context"
	"fmt"

	"pricetracker/internal/models"
)

// DefaultThreshold is the fraction the price must fall before a drop is
// alertable.
const DefaultThreshold = 0.05

// Appender is the slice of the history store the engine needs.
type Appender interface {
	Append(ctx context.Context, obs *models.PriceObservation) error
}

// Drop describes a qualifying price decrease.
type Drop struct {
	OldPrice float64
	NewPrice float64
	Fraction float64
}

// Result is the outcome of one reconciliation cycle. Drop is nil when the
// cycle did not qualify for alerting.
type Result struct {
	Observation *models.PriceObservation
	Drop        *Drop
}

// Engine decides, for one tracked product and one fresh observation, what to
// persist and whether anyone should hear about it.
type Engine struct {
	history   Appender
	threshold float64
}

func NewEngine(history Appender, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{history: history, threshold: threshold}
}

// Reconcile persists the fresh observation and classifies the price change
// against the prior latest observation.
//
// An unavailable listing's scraped price is untrustworthy: the last known
// price is carried forward into the stored row, and no drop is evaluated.
// Drops are one-directional; increases and sub-threshold decreases are
// never alertable. A prior price of zero disables the check entirely.
func (e *Engine) Reconcile(ctx context.Context, prior *models.PriceObservation, fresh *models.PriceObservation) (*Result, error) {
	if prior == nil {
		return nil, fmt.Errorf("reconcile requires a prior observation; first-ever scrapes are stored directly")
	}

	if !fresh.IsAvailable {
		fresh.Price = prior.Price
	}

	if err := e.history.Append(ctx, fresh); err != nil {
		return nil, fmt.Errorf("append observation for %s: %w", fresh.ProductURL, err)
	}

	result := &Result{Observation: fresh}

	if !fresh.IsAvailable || prior.Price <= 0 {
		return result, nil
	}

	drop := (prior.Price - fresh.Price) / prior.Price
	if drop >= e.threshold {
		result.Drop = &Drop{
			OldPrice: prior.Price,
			NewPrice: fresh.Price,
			Fraction: drop,
		}
	}
	return result, nil
}
