package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// DropEvent carries everything a price alert needs.
type DropEvent struct {
	ProductName  string
	OldPrice     float64
	NewPrice     float64
	URL          string
	Currency     string
	MainImageURL *string
}

// DropPercent is the drop expressed as a percentage of the old price.
func (e DropEvent) DropPercent() float64 {
	return (e.OldPrice - e.NewPrice) / e.OldPrice * 100
}

// Outcome is the per-recipient result of a dispatch. One recipient failing
// never blocks the others.
type Outcome struct {
	Recipient string `json:"recipient"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// DeliveryError signals that the delivery backend rejected a send.
type DeliveryError struct {
	Msg string
}

func (e *DeliveryError) Error() string {
	return "delivery failed: " + e.Msg
}

// Mailer sends price drop alerts through a Resend-compatible email API.
type Mailer struct {
	baseURL string
	from    string
	http    *resty.Client
}

func New(baseURL, apiKey, from string) *Mailer {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("Authorization", "Bearer "+apiKey)
	client.SetHeader("Content-Type", "application/json")

	return &Mailer{
		baseURL: strings.TrimRight(baseURL, "/"),
		from:    from,
		http:    client,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type sendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

// SendPriceAlert delivers one alert to one recipient.
func (m *Mailer) SendPriceAlert(ctx context.Context, event DropEvent, recipient string) error {
	html, err := renderAlert(event)
	if err != nil {
		return fmt.Errorf("render alert email: %w", err)
	}

	var result sendResponse
	resp, err := m.http.R().
		SetContext(ctx).
		SetBody(sendRequest{
			From:    fmt.Sprintf("Price Tracker <%s>", m.from),
			To:      []string{recipient},
			Subject: fmt.Sprintf("Price Drop Alert: %s (-%.1f%%)", event.ProductName, event.DropPercent()),
			HTML:    html,
		}).
		SetResult(&result).
		SetError(&result).
		Post(m.baseURL + "/emails")
	if err != nil {
		return &DeliveryError{Msg: err.Error()}
	}
	if resp.IsError() {
		msg := result.Message
		if msg == "" {
			msg = resp.Status()
		}
		return &DeliveryError{Msg: msg}
	}
	return nil
}

// Notify fans one drop event out to every recipient independently and
// collects per-recipient outcomes. No retries.
func (m *Mailer) Notify(ctx context.Context, event DropEvent, recipients []string) []Outcome {
	outcomes := make([]Outcome, 0, len(recipients))
	for _, recipient := range recipients {
		if err := m.SendPriceAlert(ctx, event, recipient); err != nil {
			log.Printf("mailer: failed to alert %s about %s: %v", recipient, event.ProductName, err)
			outcomes = append(outcomes, Outcome{Recipient: recipient, Status: "error", Message: err.Error()})
			continue
		}
		outcomes = append(outcomes, Outcome{Recipient: recipient, Status: "success"})
	}
	return outcomes
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"INR": "₹",
	"JPY": "¥",
	"CNY": "¥",
}

// FormatPrice renders a price with its currency symbol, falling back to the
// bare code for currencies without a common symbol.
func FormatPrice(price float64, currency string) string {
	code := strings.ToUpper(currency)
	if symbol, ok := currencySymbols[code]; ok {
		return fmt.Sprintf("%s%.2f", symbol, price)
	}
	return fmt.Sprintf("%s %.2f", code, price)
}

var alertTemplate = template.Must(template.New("price-alert").Parse(`<!DOCTYPE html>
<html lang="en">
<body style="font-family: Arial, sans-serif; margin: 0; padding: 0;">
  <table width="100%" style="max-width: 600px; margin: 20px auto; background-color: #ffffff; border-radius: 12px; border: 1px solid #e2e8f0;">
    <tr>
      <td style="background-color: #1e3a8a; padding: 30px 15px; text-align: center; border-top-left-radius: 12px; border-top-right-radius: 12px;">
        <h1 style="margin: 0; color: #ffffff; font-size: 28px;">Price Drop Alert!</h1>
      </td>
    </tr>
    <tr>
      <td style="padding: 30px 20px;">
        <h2 style="font-size: 24px; color: #1a202c; margin-bottom: 20px; text-align: center;">{{.ProductName}}</h2>
        {{if .ImageURL}}<p style="text-align: center;"><img src="{{.ImageURL}}" alt="{{.ProductName}}" style="max-width: 240px; border-radius: 8px;"/></p>{{end}}
        <div style="background-color: #f7fafc; border: 2px solid #e2e8f0; border-radius: 12px; padding: 24px; text-align: center;">
          <span style="background-color: #fef2f2; color: #dc2626; font-size: 24px; font-weight: 700; padding: 8px 16px; border-radius: 8px; display: inline-block;">-{{.DropPercent}}% Off!</span>
          <span style="display: block; color: #64748b; text-decoration: line-through; font-size: 18px; margin: 16px 0 8px;">{{.OldPrice}}</span>
          <span style="display: block; color: #0f172a; font-size: 32px; font-weight: 800;">{{.NewPrice}}</span>
          <a href="{{.URL}}" style="display: inline-block; background-color: #2563eb; color: #ffffff; text-decoration: none; padding: 14px 32px; border-radius: 8px; font-size: 16px; font-weight: 600; margin-top: 20px;">View Deal</a>
        </div>
      </td>
    </tr>
    <tr>
      <td style="padding: 20px; background-color: #f8fafc; text-align: center; font-size: 14px; color: #718096;">
        <p style="margin: 0;">This is an automated price alert. Prices and availability are subject to change.</p>
      </td>
    </tr>
  </table>
</body>
</html>`))

func renderAlert(event DropEvent) (string, error) {
	data := struct {
		ProductName string
		OldPrice    string
		NewPrice    string
		DropPercent string
		URL         string
		ImageURL    string
	}{
		ProductName: event.ProductName,
		OldPrice:    FormatPrice(event.OldPrice, event.Currency),
		NewPrice:    FormatPrice(event.NewPrice, event.Currency),
		DropPercent: fmt.Sprintf("%.1f", event.DropPercent()),
		URL:         event.URL,
	}
	if event.MainImageURL != nil {
		data.ImageURL = *event.MainImageURL
	}

	var buf bytes.Buffer
	if err := alertTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
