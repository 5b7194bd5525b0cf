package models

import (
	"time"
)

// Product represents a distinct trackable item, identified by its canonical
// URL as reported by the extraction backend.
type Product struct {
	URL       string    `json:"url" gorm:"primaryKey;size:512"`
	CreatedAt time.Time `json:"created_at"`

	Observations []PriceObservation `json:"-" gorm:"foreignKey:ProductURL;references:URL;constraint:OnDelete:CASCADE"`
	Trackers     []TrackedProduct   `json:"-" gorm:"foreignKey:ProductURL;references:URL;constraint:OnDelete:CASCADE"`
}

// TrackedProduct links a user to a product they monitor. Unique per
// (user, product); removal of the last tracker removes the product.
type TrackedProduct struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	UserID     string    `json:"user_id" gorm:"size:64;not null;uniqueIndex:idx_user_product"`
	UserEmail  string    `json:"user_email" gorm:"size:255"`
	ProductURL string    `json:"product_url" gorm:"size:512;not null;uniqueIndex:idx_user_product"`
	CreatedAt  time.Time `json:"created_at"`
}

// PriceObservation is one immutable scrape result. Rows are append-only; the
// ordered sequence per product is the price history.
type PriceObservation struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	ProductURL   string    `json:"product_url" gorm:"size:512;not null;index:idx_product_timestamp"`
	Name         string    `json:"name" gorm:"not null"`
	Price        float64   `json:"price" gorm:"not null"`
	Currency     string    `json:"currency" gorm:"size:8;not null"`
	IsAvailable  bool      `json:"is_available" gorm:"default:true"`
	MainImageURL *string   `json:"main_image_url"`
	Timestamp    time.Time `json:"timestamp" gorm:"not null;index:idx_product_timestamp"`
	CreatedAt    time.Time `json:"created_at"`
}

// ProductSummary is the dashboard-facing view of a tracked product.
type ProductSummary struct {
	URL          string     `json:"url"`
	LatestPrice  *float64   `json:"latest_price"`
	LatestName   *string    `json:"latest_name"`
	Currency     *string    `json:"currency"`
	IsAvailable  bool       `json:"is_available"`
	MainImageURL *string    `json:"main_image_url"`
	TrackedSince *time.Time `json:"tracked_since"`
}
