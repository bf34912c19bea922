package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"pathfinder/internal/database"
	"pathfinder/internal/models"

	"github.com/dodopayments/dodopayments-go"
	"github.com/dodopayments/dodopayments-go/option"
)

// WebhookEvent is a verified payment webhook
type WebhookEvent struct {
	ID   string                 `json:"id"`
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

// CheckoutResponse represents the response for checkout creation
type CheckoutResponse struct {
	CheckoutURL string `json:"checkout_url"`
	SessionID   string `json:"session_id"`
}

// PaymentService sells toolkits through DodoPayments
type PaymentService struct {
	client        *dodopayments.Client
	webhookSecret string
	baseURL       string
	db            *database.DB
	users         *UserService
	toolkits      *ToolkitService
}

// NewPaymentService creates a new payment service. Without an API key the
// service still verifies legacy-signed webhooks but cannot start checkouts.
func NewPaymentService(
	apiKey, webhookSecret, environment, baseURL string,
	db *database.DB,
	users *UserService,
	toolkits *ToolkitService,
) *PaymentService {
	var client *dodopayments.Client
	if apiKey != "" {
		var envOpt option.RequestOption
		if environment == "live" {
			envOpt = option.WithEnvironmentLiveMode()
		} else {
			envOpt = option.WithEnvironmentTestMode()
		}

		client = dodopayments.NewClient(
			option.WithBearerToken(apiKey),
			envOpt,
		)
		log.Println("✅ DodoPayments client initialized")
	} else {
		log.Println("⚠️  DodoPayments API key not provided, toolkit checkout disabled")
	}

	return &PaymentService{
		client:        client,
		webhookSecret: webhookSecret,
		baseURL:       strings.TrimRight(baseURL, "/"),
		db:            db,
		users:         users,
		toolkits:      toolkits,
	}
}

// Enabled reports whether checkouts can be created
func (s *PaymentService) Enabled() bool {
	return s.client != nil
}

// CreateCheckout starts a checkout for a published toolkit the user does not own
func (s *PaymentService) CreateCheckout(ctx context.Context, session *models.Session, slug string) (*CheckoutResponse, error) {
	toolkit, err := s.toolkits.GetBySlug(ctx, slug, session.UserID)
	if err != nil {
		return nil, err
	}
	if !toolkit.Published {
		return nil, ErrNotFound
	}
	if toolkit.Owned {
		return nil, fmt.Errorf("toolkit purchase %w", ErrAlreadyExists)
	}
	if toolkit.DodoProductID == "" {
		return nil, fmt.Errorf("%w: toolkit has no product configured", ErrInvalidInput)
	}
	if s.client == nil {
		return nil, ErrPaymentsDisabled
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		return nil, err
	}

	customerID := user.DodoCustomerID
	if customerID == "" {
		customerName := user.Email
		if at := strings.Index(customerName, "@"); at > 0 {
			customerName = customerName[:at]
		}

		customer, err := s.client.Customers.New(ctx, dodopayments.CustomerNewParams{
			Email: dodopayments.F(user.Email),
			Name:  dodopayments.F(customerName),
			Metadata: dodopayments.F(map[string]string{
				"user_id": user.ID,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create customer: %w", err)
		}
		customerID = customer.CustomerID

		if err := s.users.SetDodoCustomerID(ctx, user.ID, customerID); err != nil {
			log.Printf("⚠️  [PAYMENT] Failed to store customer id for %s: %v", user.ID, err)
		}
	}

	checkout, err := s.client.CheckoutSessions.New(ctx, dodopayments.CheckoutSessionNewParams{
		CheckoutSessionRequest: dodopayments.CheckoutSessionRequestParam{
			ProductCart: dodopayments.F([]dodopayments.CheckoutSessionRequestProductCartParam{{
				ProductID: dodopayments.F(toolkit.DodoProductID),
				Quantity:  dodopayments.F(int64(1)),
			}}),
			ReturnURL: dodopayments.F(fmt.Sprintf("%s/toolkits/%s?checkout=success", s.baseURL, toolkit.Slug)),
			Customer: dodopayments.F[dodopayments.CustomerRequestUnionParam](dodopayments.AttachExistingCustomerParam{
				CustomerID: dodopayments.F(customerID),
			}),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	if _, err := s.toolkits.CreatePurchase(ctx, user.ID, toolkit.ID, checkout.SessionID); err != nil {
		return nil, err
	}

	GetMetrics().RecordCheckout()
	log.Printf("💳 [PAYMENT] Checkout %s created for toolkit %s by %s", checkout.SessionID, toolkit.Slug, user.ID)

	return &CheckoutResponse{
		CheckoutURL: checkout.CheckoutURL,
		SessionID:   checkout.SessionID,
	}, nil
}

// VerifyWebhook verifies a hex HMAC-SHA256 signature over payload
func (s *PaymentService) VerifyWebhook(payload []byte, signature string) error {
	if s.webhookSecret == "" {
		return fmt.Errorf("webhook secret not configured")
	}

	mac := hmac.New(sha256.New, []byte(s.webhookSecret))
	mac.Write(payload)
	expectedSig := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expectedSig)) {
		return fmt.Errorf("invalid webhook signature")
	}

	return nil
}

// VerifyAndParseWebhook verifies and parses webhook using DodoPayments SDK
// DodoPayments uses Standard Webhooks format with headers:
// - webhook-id: unique message ID
// - webhook-signature: v1,<base64_signature>
// - webhook-timestamp: unix timestamp
func (s *PaymentService) VerifyAndParseWebhook(payload []byte, headers http.Header) (*WebhookEvent, error) {
	if s.client != nil && s.webhookSecret != "" {
		event, err := s.client.Webhooks.Unwrap(payload, headers, option.WithWebhookKey(s.webhookSecret))
		if err != nil {
			return nil, fmt.Errorf("webhook verification failed: %w", err)
		}

		webhookEvent := convertSDKEvent(event)
		if id := headers.Get("Webhook-Id"); id != "" {
			webhookEvent.ID = id
		}
		return webhookEvent, nil
	}

	// Fallback: legacy HMAC verification when the SDK is not configured
	signature := headers.Get("Webhook-Signature")
	if signature == "" {
		signature = headers.Get("Dodo-Signature")
	}
	if signature == "" {
		return nil, fmt.Errorf("missing webhook signature header")
	}

	if err := s.VerifyWebhook(payload, signature); err != nil {
		return nil, err
	}

	var event WebhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if event.ID == "" || event.Type == "" {
		return nil, fmt.Errorf("webhook payload missing id or type")
	}
	if event.Data == nil {
		event.Data = map[string]interface{}{}
	}

	return &event, nil
}

func convertSDKEvent(event *dodopayments.UnwrapWebhookEvent) *WebhookEvent {
	webhookEvent := &WebhookEvent{
		Type: string(event.Type),
		Data: map[string]interface{}{},
	}

	switch e := event.AsUnion().(type) {
	case dodopayments.PaymentSucceededWebhookEvent:
		webhookEvent.ID = e.Data.PaymentID
		webhookEvent.Data = map[string]interface{}{
			"payment_id":  e.Data.PaymentID,
			"customer_id": e.Data.Customer.CustomerID,
		}
	case dodopayments.PaymentFailedWebhookEvent:
		webhookEvent.ID = e.Data.PaymentID
		webhookEvent.Data = map[string]interface{}{
			"payment_id": e.Data.PaymentID,
		}
	default:
		webhookEvent.ID = fmt.Sprintf("evt_%d", time.Now().UnixNano())
	}

	return webhookEvent
}

// HandleWebhookEvent applies a verified event once. Duplicate deliveries
// return duplicate=true and change nothing.
func (s *PaymentService) HandleWebhookEvent(ctx context.Context, event *WebhookEvent) (duplicate bool, err error) {
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO webhook_events (id, type, received_at) VALUES (?, ?, ?)",
		event.ID, event.Type, utcNow(),
	)
	if database.IsUniqueViolation(err) {
		log.Printf("⚠️  Webhook event %s already processed, skipping", event.ID)
		GetMetrics().RecordWebhook(event.Type, "duplicate")
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to record webhook event: %w", err)
	}

	switch event.Type {
	case "payment.succeeded":
		err = s.handlePaymentSucceeded(ctx, event)
	case "payment.failed":
		log.Printf("⚠️  [PAYMENT] Payment %v failed", event.Data["payment_id"])
	default:
		log.Printf("⚠️  Unhandled webhook event type: %s", event.Type)
	}

	if err != nil {
		// Forget the event so the provider's retry is processed
		if _, delErr := s.db.ExecContext(ctx, "DELETE FROM webhook_events WHERE id = ?", event.ID); delErr != nil {
			log.Printf("⚠️  Failed to release webhook event %s: %v", event.ID, delErr)
		}
		GetMetrics().RecordWebhook(event.Type, "error")
		return false, err
	}

	GetMetrics().RecordWebhook(event.Type, "processed")
	return false, nil
}

func (s *PaymentService) handlePaymentSucceeded(ctx context.Context, event *WebhookEvent) error {
	paymentID, _ := event.Data["payment_id"].(string)
	sessionID, _ := event.Data["checkout_session_id"].(string)
	customerID, _ := event.Data["customer_id"].(string)

	if sessionID != "" {
		n, err := s.toolkits.MarkPaidBySession(ctx, sessionID, paymentID)
		if err != nil {
			return err
		}
		if n > 0 {
			GetMetrics().RecordPurchaseCompleted(int(n))
			log.Printf("✅ [PAYMENT] Purchase for checkout %s paid (%s)", sessionID, paymentID)
			return nil
		}
	}

	user, err := s.users.GetByDodoCustomerID(ctx, customerID)
	if errors.Is(err, ErrNotFound) {
		log.Printf("⚠️  [PAYMENT] Payment %s has no matching user (customer %q)", paymentID, customerID)
		return nil
	}
	if err != nil {
		return err
	}

	n, err := s.toolkits.MarkOldestPendingPaid(ctx, user.ID, paymentID)
	if err != nil {
		return err
	}
	if n == 0 {
		log.Printf("⚠️  [PAYMENT] Payment %s for user %s matched no pending purchase", paymentID, user.ID)
		return nil
	}

	GetMetrics().RecordPurchaseCompleted(int(n))
	log.Printf("✅ [PAYMENT] Purchase for user %s paid (%s)", user.ID, paymentID)
	return nil
}
