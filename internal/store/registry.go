package store

import (
	"context"
	"errors"

	"pricetracker/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Registry owns the TrackedProduct lifecycle, including the conditional
// deletion of products nobody tracks anymore. All compound mutations run
// inside a database transaction so the reference-count invariant holds under
// concurrent track/untrack calls.
type Registry struct {
	db *gorm.DB
}

func NewRegistry(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// Track ensures the product row exists and the (user, product) relationship
// exists, atomically. Tracking an already-tracked product returns the
// existing relationship without error.
func (r *Registry) Track(ctx context.Context, productURL, userID, userEmail string) (*models.TrackedProduct, error) {
	var tracked models.TrackedProduct
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		product := models.Product{URL: productURL}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&product).Error; err != nil {
			return err
		}

		err := tx.Where("user_id = ? AND product_url = ?", userID, productURL).First(&tracked).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tracked = models.TrackedProduct{
				UserID:     userID,
				UserEmail:  userEmail,
				ProductURL: productURL,
			}
			return tx.Create(&tracked).Error
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &tracked, nil
}

// Untrack removes the relationship and reports whether it existed. When the
// last tracker goes, the product and its history go with it; the delete,
// the remaining-tracker count and the conditional product delete share one
// transaction so a concurrent Track cannot interleave between them.
func (r *Registry) Untrack(ctx context.Context, productURL, userID string) (bool, error) {
	removed := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND product_url = ?", userID, productURL).
			Delete(&models.TrackedProduct{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		removed = true

		var remaining int64
		if err := tx.Model(&models.TrackedProduct{}).
			Where("product_url = ?", productURL).
			Count(&remaining).Error; err != nil {
			return err
		}
		if remaining > 0 {
			return nil
		}

		if err := tx.Where("product_url = ?", productURL).
			Delete(&models.PriceObservation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Product{URL: productURL}).Error
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// ListForUser returns the user's tracking relationships, oldest first.
func (r *Registry) ListForUser(ctx context.Context, userID string) ([]models.TrackedProduct, error) {
	var tracked []models.TrackedProduct
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&tracked).Error
	if err != nil {
		return nil, err
	}
	return tracked, nil
}

// AllProducts returns every tracked product, for the sweep.
func (r *Registry) AllProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	if err := r.db.WithContext(ctx).Find(&products).Error; err != nil {
		return nil, err
	}
	return products, nil
}

// RecipientsFor returns the distinct alert recipients for a product.
func (r *Registry) RecipientsFor(ctx context.Context, productURL string) ([]string, error) {
	var emails []string
	err := r.db.WithContext(ctx).
		Model(&models.TrackedProduct{}).
		Where("product_url = ? AND user_email <> ''", productURL).
		Distinct().
		Pluck("user_email", &emails).Error
	if err != nil {
		return nil, err
	}
	return emails, nil
}
