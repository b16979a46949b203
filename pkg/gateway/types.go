package gateway

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Payment is the normalized view of a gateway payment resource.
type Payment struct {
	ID                string
	Status            enums.GatewayStatus
	RawStatus         string
	StatusDetail      string
	ExternalReference string
	TransactionAmount decimal.Decimal
	CurrencyID        string
	DateCreated       *time.Time
	DateApproved      *time.Time
}

type apiPayment struct {
	ID                json.Number     `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	CurrencyID        string          `json:"currency_id"`
	DateCreated       *time.Time      `json:"date_created"`
	DateApproved      *time.Time      `json:"date_approved"`
}

func (p apiPayment) normalize() Payment {
	status, _ := enums.ParseGatewayStatus(p.Status)
	return Payment{
		ID:                p.ID.String(),
		Status:            status,
		RawStatus:         p.Status,
		StatusDetail:      p.StatusDetail,
		ExternalReference: p.ExternalReference,
		TransactionAmount: p.TransactionAmount,
		CurrencyID:        p.CurrencyID,
		DateCreated:       p.DateCreated,
		DateApproved:      p.DateApproved,
	}
}

// PreferenceItem is a single checkout line sent to the hosted checkout.
type PreferenceItem struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Quantity   int         `json:"quantity"`
	UnitPrice  json.Number `json:"unit_price"`
	CurrencyID string      `json:"currency_id,omitempty"`
}

// BackURLs are the browser redirect targets after checkout.
type BackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

// PreferencePayer identifies the buyer on the hosted checkout.
type PreferencePayer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// PreferenceRequest is the payload for creating a hosted checkout preference.
type PreferenceRequest struct {
	Items             []PreferenceItem `json:"items"`
	Payer             *PreferencePayer `json:"payer,omitempty"`
	ExternalReference string           `json:"external_reference"`
	NotificationURL   string           `json:"notification_url,omitempty"`
	BackURLs          *BackURLs        `json:"back_urls,omitempty"`
	AutoReturn        string           `json:"auto_return,omitempty"`
}

// Preference is the created hosted checkout session.
type Preference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

// UnitPriceFromCents formats an integer cents amount as the decimal amount the gateway expects.
func UnitPriceFromCents(cents int64) json.Number {
	return json.Number(decimal.New(cents, -2).StringFixed(2))
}
