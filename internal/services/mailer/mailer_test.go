package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func event() DropEvent {
	img := "https://img.example.com/widget.jpg"
	return DropEvent{
		ProductName:  "Widget Deluxe",
		OldPrice:     100,
		NewPrice:     94,
		URL:          "https://shop.example.com/widget",
		Currency:     "USD",
		MainImageURL: &img,
	}
}

func TestSendPriceAlert(t *testing.T) {
	var got sendRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/emails" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Write([]byte(`{"id": "email-1"}`))
	}))
	defer ts.Close()

	m := New(ts.URL, "test-key", "alerts@example.com")
	if err := m.SendPriceAlert(context.Background(), event(), "user@example.com"); err != nil {
		t.Fatalf("SendPriceAlert failed: %v", err)
	}

	if len(got.To) != 1 || got.To[0] != "user@example.com" {
		t.Errorf("wrong recipients: %v", got.To)
	}
	if got.Subject != "Price Drop Alert: Widget Deluxe (-6.0%)" {
		t.Errorf("wrong subject: %q", got.Subject)
	}
	if !strings.Contains(got.From, "alerts@example.com") {
		t.Errorf("wrong from: %q", got.From)
	}
	for _, want := range []string{"Widget Deluxe", "$100.00", "$94.00", "https://shop.example.com/widget", "https://img.example.com/widget.jpg"} {
		if !strings.Contains(got.HTML, want) {
			t.Errorf("email body missing %q", want)
		}
	}
}

func TestNotify_PerRecipientIndependence(t *testing.T) {
	calls := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req sendRequest
		json.NewDecoder(r.Body).Decode(&req)
		// Second recipient is rejected; the others go through.
		if len(req.To) == 1 && req.To[0] == "bad@example.com" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"message": "invalid recipient"}`))
			return
		}
		w.Write([]byte(`{"id": "ok"}`))
	}))
	defer ts.Close()

	m := New(ts.URL, "test-key", "alerts@example.com")
	outcomes := m.Notify(context.Background(), event(), []string{
		"a@example.com", "bad@example.com", "c@example.com",
	})

	if calls != 3 {
		t.Fatalf("expected 3 delivery attempts, got %d", calls)
	}
	if len(outcomes) != 3 {
		t.Fatalf("expected 3 outcomes, got %d", len(outcomes))
	}
	if outcomes[0].Status != "success" || outcomes[2].Status != "success" {
		t.Errorf("first and third must succeed: %+v", outcomes)
	}
	if outcomes[1].Status != "error" {
		t.Errorf("second must fail: %+v", outcomes[1])
	}
	if outcomes[1].Recipient != "bad@example.com" {
		t.Errorf("failure attributed to wrong recipient: %+v", outcomes[1])
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		price    float64
		currency string
		want     string
	}{
		{49.99, "USD", "$49.99"},
		{49.99, "usd", "$49.99"},
		{120, "EUR", "€120.00"},
		{1500, "INR", "₹1500.00"},
		{33.5, "CHF", "CHF 33.50"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.price, tt.currency); got != tt.want {
			t.Errorf("FormatPrice(%v, %q) = %q, want %q", tt.price, tt.currency, got, tt.want)
		}
	}
}

func TestDropPercent(t *testing.T) {
	e := DropEvent{OldPrice: 200, NewPrice: 150}
	if got := e.DropPercent(); got != 25 {
		t.Errorf("DropPercent = %v, want 25", got)
	}
}
