package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// Observation is the normalized output of one extraction. URL is the source
// URL the backend reports after redirects, which callers use as the
// product's canonical identity.
type Observation struct {
	URL          string
	Name         string
	Price        float64
	Currency     string
	IsAvailable  bool
	MainImageURL *string
	Timestamp    time.Time
}

// FailureKind classifies what went wrong during extraction.
type FailureKind int

const (
	// FailureTransport covers network errors and non-2xx responses.
	FailureTransport FailureKind = iota
	// FailureBackend means the backend reported success=false.
	FailureBackend
	// FailureNoData means the backend reported success but returned no
	// usable extract.
	FailureNoData
)

func (k FailureKind) String() string {
	switch k {
	case FailureBackend:
		return "backend failure"
	case FailureNoData:
		return "no usable data"
	default:
		return "transport error"
	}
}

// ExtractionError signals a failed extraction. The adapter never retries;
// that is the caller's call.
type ExtractionError struct {
	Kind FailureKind
	Msg  string
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed (%s): %s", e.Kind, e.Msg)
}

// Client wraps a Firecrawl-compatible scrape API.
type Client struct {
	baseURL string
	http    *resty.Client
}

func NewClient(baseURL, apiKey string) *Client {
	client := resty.New()
	client.SetTimeout(60 * time.Second)
	client.SetHeader("Authorization", "Bearer "+apiKey)
	client.SetHeader("Content-Type", "application/json")

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    client,
	}
}

type extractSchema struct {
	Name         string  `json:"name"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
	MainImageURL *string `json:"main_image_url"`
	IsAvailable  *bool   `json:"is_available"`
}

type scrapeRequest struct {
	URL     string        `json:"url"`
	Formats []string      `json:"formats"`
	Extract scrapeExtract `json:"extract"`
}

type scrapeExtract struct {
	Schema map[string]interface{} `json:"schema"`
}

type scrapeResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    *struct {
		Extract  *extractSchema `json:"extract"`
		Metadata struct {
			SourceURL string `json:"sourceURL"`
		} `json:"metadata"`
	} `json:"data"`
}

// productSchema describes the fields the backend should extract.
var productSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"name":           map[string]interface{}{"type": "string", "description": "The product name/title"},
		"price":          map[string]interface{}{"type": "number", "description": "The current price of the product"},
		"currency":       map[string]interface{}{"type": "string", "description": "Currency code (USD, EUR, etc)"},
		"main_image_url": map[string]interface{}{"type": "string", "description": "The URL of the main image of the product"},
		"is_available":   map[string]interface{}{"type": "boolean", "description": "Whether the product is currently available"},
	},
	"required": []string{"name", "price", "currency"},
}

// Fetch scrapes one product page and normalizes the result. Failures come
// back as *ExtractionError distinguishing transport, backend and empty-data
// cases.
func (c *Client) Fetch(ctx context.Context, productURL string) (*Observation, error) {
	var result scrapeResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(scrapeRequest{
			URL:     productURL,
			Formats: []string{"extract"},
			Extract: scrapeExtract{Schema: productSchema},
		}).
		SetResult(&result).
		SetError(&result).
		Post(c.baseURL + "/v1/scrape")
	if err != nil {
		return nil, &ExtractionError{Kind: FailureTransport, Msg: err.Error()}
	}
	if resp.IsError() {
		msg := result.Error
		if msg == "" {
			msg = resp.Status()
		}
		return nil, &ExtractionError{Kind: FailureTransport, Msg: msg}
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "backend reported failure"
		}
		return nil, &ExtractionError{Kind: FailureBackend, Msg: msg}
	}
	if result.Data == nil || result.Data.Extract == nil || result.Data.Extract.Name == "" {
		return nil, &ExtractionError{Kind: FailureNoData, Msg: "backend returned no usable product data"}
	}

	extract := result.Data.Extract

	// The backend may omit availability; it defaults to true.
	available := true
	if extract.IsAvailable != nil {
		available = *extract.IsAvailable
	}

	canonical := result.Data.Metadata.SourceURL
	if canonical == "" {
		canonical = productURL
	}

	return &Observation{
		URL:          canonical,
		Name:         extract.Name,
		Price:        extract.Price,
		Currency:     extract.Currency,
		IsAvailable:  available,
		MainImageURL: extract.MainImageURL,
		Timestamp:    time.Now().UTC(),
	}, nil
}
