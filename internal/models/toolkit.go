package models

import "time"

// Purchase statuses
const (
	PurchasePending = "pending"
	PurchasePaid    = "paid"
	PurchaseExpired = "expired"
)

// Toolkit is a paid course or resource bundle
type Toolkit struct {
	ID            string    `json:"id"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	PriceCents    int64     `json:"price_cents"`
	Currency      string    `json:"currency"`
	DodoProductID string    `json:"-"`
	Published     bool      `json:"published"`
	Owned         bool      `json:"owned"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// ToolkitInput is the admin request body for create/update
type ToolkitInput struct {
	Slug          string `json:"slug" yaml:"slug"`
	Title         string `json:"title" yaml:"title"`
	Description   string `json:"description" yaml:"description"`
	PriceCents    int64  `json:"price_cents" yaml:"price_cents"`
	Currency      string `json:"currency" yaml:"currency"`
	DodoProductID string `json:"dodo_product_id" yaml:"dodo_product_id"`
	Published     bool   `json:"published" yaml:"published"`
}

// Purchase records a toolkit checkout and its payment outcome
type Purchase struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	ToolkitID         string    `json:"toolkit_id"`
	CheckoutSessionID string    `json:"checkout_session_id"`
	Status            string    `json:"status"`
	PaymentID         string    `json:"payment_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}
