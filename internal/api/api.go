package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"net/mail"
	"strconv"
	"time"

	"pricetracker/internal/cache"
	"pricetracker/internal/models"
	"pricetracker/internal/services/mailer"
	"pricetracker/internal/services/scraper"
	"pricetracker/internal/store"
	"pricetracker/internal/sweep"

	"github.com/gin-gonic/gin"
)

// Extractor is the scraping capability the handlers depend on.
type Extractor interface {
	Fetch(ctx context.Context, url string) (*scraper.Observation, error)
}

// AlertSender delivers a single price alert.
type AlertSender interface {
	SendPriceAlert(ctx context.Context, event mailer.DropEvent, recipient string) error
}

// Sweeper runs one full price-check pass.
type Sweeper interface {
	Run(ctx context.Context) (*sweep.Report, error)
}

// Deps are the constructed collaborators injected at process start.
type Deps struct {
	Registry  *store.Registry
	History   *store.HistoryStore
	Extractor Extractor
	Alerts    AlertSender
	Sweeper   Sweeper
	Cache     *cache.Cache
	JWTSecret string
}

type APIHandler struct {
	registry  *store.Registry
	history   *store.HistoryStore
	extractor Extractor
	alerts    AlertSender
	sweeper   Sweeper
	cache     *cache.Cache
}

func SetupRoutes(r *gin.RouterGroup, deps Deps) *APIHandler {
	handler := &APIHandler{
		registry:  deps.Registry,
		history:   deps.History,
		extractor: deps.Extractor,
		alerts:    deps.Alerts,
		sweeper:   deps.Sweeper,
		cache:     deps.Cache,
	}

	auth := RequireAuth(deps.JWTSecret)

	products := r.Group("/products")
	{
		products.POST("", auth, handler.TrackProduct)
		products.GET("", auth, handler.ListProducts)
		products.DELETE("", auth, handler.UntrackProduct)
		products.POST("/delete", auth, handler.UntrackProduct)
		products.POST("/details", auth, handler.ProductDetails)
		products.POST("/price-history", auth, handler.PriceHistory)
		products.GET("/export", auth, handler.ExportHistory)

		// Invoked by the external scheduler, not by users.
		products.POST("/check-prices", handler.CheckPrices)
	}

	notifications := r.Group("/notifications")
	{
		notifications.POST("/send-price-alert", handler.SendPriceAlert)
	}

	return handler
}

type productRequest struct {
	URL string `json:"url"`
}

// TrackProduct scrapes the URL once, registers the tracking relationship
// under the backend's canonical URL and stores the baseline observation.
func (h *APIHandler) TrackProduct(c *gin.Context) {
	userID := c.GetString("user_id")
	userEmail := c.GetString("user_email")

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Validation error"})
		return
	}
	if !isValidProductURL(req.URL) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Validation error", "details": "url must be a valid http(s) URL"})
		return
	}

	ctx := c.Request.Context()

	obs, err := h.extractor.Fetch(ctx, req.URL)
	if err != nil {
		log.Printf("TrackProduct: extraction failed for %s: %v", req.URL, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": err.Error()})
		return
	}

	tracked, err := h.registry.Track(ctx, obs.URL, userID, userEmail)
	if err != nil {
		log.Printf("TrackProduct: registry.Track error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
		return
	}

	record := observationModel(obs, obs.URL)
	if err := h.history.Append(ctx, record); err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Validation error", "details": verr.Error()})
			return
		}
		log.Printf("TrackProduct: history.Append error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
		return
	}

	h.cache.InvalidateUser(ctx, userID)

	c.JSON(http.StatusCreated, models.ProductSummary{
		URL:          obs.URL,
		LatestPrice:  &record.Price,
		LatestName:   &record.Name,
		Currency:     &record.Currency,
		IsAvailable:  record.IsAvailable,
		MainImageURL: record.MainImageURL,
		TrackedSince: &tracked.CreatedAt,
	})
}

// ListProducts returns the caller's tracked products with their latest
// observations, served from the cache when possible.
func (h *APIHandler) ListProducts(c *gin.Context) {
	userID := c.GetString("user_id")
	ctx := c.Request.Context()

	var summaries []models.ProductSummary
	if h.cache.GetProducts(ctx, userID, &summaries) {
		c.JSON(http.StatusOK, summaries)
		return
	}

	tracked, err := h.registry.ListForUser(ctx, userID)
	if err != nil {
		log.Printf("ListProducts: registry.ListForUser error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
		return
	}

	summaries = make([]models.ProductSummary, 0, len(tracked))
	for i := range tracked {
		t := tracked[i]
		latest, err := h.history.Latest(ctx, t.ProductURL)
		if err != nil {
			log.Printf("ListProducts: history.Latest error for %s: %v", t.ProductURL, err)
			c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
			return
		}
		summaries = append(summaries, summarize(t.ProductURL, latest, &t.CreatedAt))
	}

	h.cache.SetProducts(ctx, userID, summaries)
	c.JSON(http.StatusOK, summaries)
}

// UntrackProduct removes the caller's tracking relationship. The last
// tracker leaving takes the product and its history with it.
func (h *APIHandler) UntrackProduct(c *gin.Context) {
	userID := c.GetString("user_id")

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Validation error"})
		return
	}

	ctx := c.Request.Context()
	removed, err := h.registry.Untrack(ctx, req.URL, userID)
	if err != nil {
		log.Printf("UntrackProduct: registry.Untrack error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
		return
	}

	h.cache.InvalidateUser(ctx, userID)
	c.Status(http.StatusNoContent)
}

// ProductDetails returns a product summary plus its full history.
func (h *APIHandler) ProductDetails(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Validation error"})
		return
	}

	history, err := h.history.History(c.Request.Context(), req.URL)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		log.Printf("ProductDetails: history error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
		return
	}

	var latest *models.PriceObservation
	if len(history) > 0 {
		latest = &history[0]
	}

	c.JSON(http.StatusOK, gin.H{
		"product":       summarize(req.URL, latest, nil),
		"price_history": history,
	})
}

// PriceHistory returns the paginated observation log, newest first.
func (h *APIHandler) PriceHistory(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Validation error"})
		return
	}

	limit := 0
	offset := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Validation error", "details": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if raw := c.Query("offset"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Validation error", "details": "offset must be a non-negative integer"})
			return
		}
		offset = n
	}

	history, err := h.history.History(c.Request.Context(), req.URL)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "Product not found"})
			return
		}
		log.Printf("PriceHistory: history error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Internal Server Error"})
		return
	}

	items := history
	if limit > 0 {
		if offset >= len(items) {
			items = []models.PriceObservation{}
		} else {
			end := offset + limit
			if end > len(items) {
				end = len(items)
			}
			items = items[offset:end]
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"total": len(history),
		"items": items,
	})
}

// CheckPrices runs one sweep over all tracked products. Per-product failures
// become report entries; only a failure to iterate the product list is a
// server error.
func (h *APIHandler) CheckPrices(c *gin.Context) {
	report, err := h.sweeper.Run(c.Request.Context())
	if err != nil {
		log.Printf("CheckPrices: sweep error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.cache.InvalidateAll(c.Request.Context())
	c.JSON(http.StatusOK, report)
}

type priceAlertRequest struct {
	ProductName    string  `json:"productName"`
	OldPrice       float64 `json:"oldPrice"`
	NewPrice       float64 `json:"newPrice"`
	URL            string  `json:"url"`
	RecipientEmail string  `json:"recipientEmail"`
	Currency       string  `json:"currency"`
	MainImageURL   *string `json:"mainImageUrl"`
}

func (r *priceAlertRequest) validate() string {
	switch {
	case r.ProductName == "":
		return "productName is required"
	case r.OldPrice <= 0:
		return "oldPrice must be positive"
	case r.NewPrice <= 0:
		return "newPrice must be positive"
	case !isValidProductURL(r.URL):
		return "url must be a valid http(s) URL"
	}
	if _, err := mail.ParseAddress(r.RecipientEmail); err != nil {
		return "recipientEmail must be a valid email address"
	}
	if r.MainImageURL != nil && !isValidProductURL(*r.MainImageURL) {
		return "mainImageUrl must be a valid URL"
	}
	return ""
}

// SendPriceAlert delivers one alert email. Internal surface used by the
// presentation layer and operational tooling.
func (h *APIHandler) SendPriceAlert(c *gin.Context) {
	var req priceAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Validation error"})
		return
	}
	if detail := req.validate(); detail != "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"message": "Validation error", "details": detail})
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	event := mailer.DropEvent{
		ProductName:  req.ProductName,
		OldPrice:     req.OldPrice,
		NewPrice:     req.NewPrice,
		URL:          req.URL,
		Currency:     req.Currency,
		MainImageURL: req.MainImageURL,
	}

	if err := h.alerts.SendPriceAlert(c.Request.Context(), event, req.RecipientEmail); err != nil {
		log.Printf("SendPriceAlert: delivery to %s failed: %v", req.RecipientEmail, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"message": "Failed to send email", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Price alert sent successfully",
		"details": gin.H{
			"recipientEmail":      req.RecipientEmail,
			"productName":         req.ProductName,
			"priceDropPercentage": event.DropPercent(),
		},
	})
}

func observationModel(obs *scraper.Observation, productURL string) *models.PriceObservation {
	return &models.PriceObservation{
		ProductURL:   productURL,
		Name:         obs.Name,
		Price:        obs.Price,
		Currency:     obs.Currency,
		IsAvailable:  obs.IsAvailable,
		MainImageURL: obs.MainImageURL,
		Timestamp:    obs.Timestamp,
	}
}

func summarize(url string, latest *models.PriceObservation, trackedSince *time.Time) models.ProductSummary {
	summary := models.ProductSummary{
		URL:          url,
		IsAvailable:  true,
		TrackedSince: trackedSince,
	}
	if latest != nil {
		summary.LatestPrice = &latest.Price
		summary.LatestName = &latest.Name
		summary.Currency = &latest.Currency
		summary.IsAvailable = latest.IsAvailable
		summary.MainImageURL = latest.MainImageURL
	}
	return summary
}
