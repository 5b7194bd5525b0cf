package store

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"pricetracker/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryStore owns the PriceObservation lifecycle. Observations are
// create-only; nothing here updates or deletes individual rows.
type HistoryStore struct {
	db *gorm.DB
}

func NewHistoryStore(db *gorm.DB) *HistoryStore {
	return &HistoryStore{db: db}
}

// Append validates and inserts one observation. Each row gets its own uuid,
// so two appends in the same process tick never collide.
func (s *HistoryStore) Append(ctx context.Context, obs *models.PriceObservation) error {
	if err := validateObservation(obs); err != nil {
		return err
	}
	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	return s.db.WithContext(ctx).Create(obs).Error
}

// History returns all observations for a product, newest first. A product
// unknown to the store yields ErrNotFound; a known product always has at
// least one observation because creation is paired with the first append.
func (s *HistoryStore) History(ctx context.Context, productURL string) ([]models.PriceObservation, error) {
	var product models.Product
	err := s.db.WithContext(ctx).First(&product, "url = ?", productURL).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var history []models.PriceObservation
	err = s.db.WithContext(ctx).
		Where("product_url = ?", productURL).
		Order("timestamp DESC").
		Find(&history).Error
	if err != nil {
		return nil, err
	}
	return history, nil
}

// Latest returns the newest observation for a product, or nil when the
// product has no history.
func (s *HistoryStore) Latest(ctx context.Context, productURL string) (*models.PriceObservation, error) {
	var obs models.PriceObservation
	err := s.db.WithContext(ctx).
		Where("product_url = ?", productURL).
		Order("timestamp DESC").
		First(&obs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &obs, nil
}

func validateObservation(obs *models.PriceObservation) error {
	if strings.TrimSpace(obs.ProductURL) == "" {
		return &ValidationError{Field: "product_url", Reason: "required"}
	}
	if strings.TrimSpace(obs.Name) == "" {
		return &ValidationError{Field: "name", Reason: "required"}
	}
	if obs.Price <= 0 {
		return &ValidationError{Field: "price", Reason: "must be positive"}
	}
	if strings.TrimSpace(obs.Currency) == "" {
		return &ValidationError{Field: "currency", Reason: "required"}
	}
	if obs.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Reason: "required"}
	}
	if obs.MainImageURL != nil {
		u, err := url.Parse(*obs.MainImageURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return &ValidationError{Field: "main_image_url", Reason: "must be a valid URL or null"}
		}
	}
	return nil
}
