// Package stripe provides integration with the Stripe payment service,
// handling one-off checkouts, Connect accounts and webhook events.
package stripe

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/internal"
	stripeapi "github.com/stripe/stripe-go/v82"
	"go.vocdoni.io/dvote/log"
)

const (
	defaultListLimit = 25
	maxListLimit     = 100
)

// Gateway is the part of the Stripe API used by the service.
type Gateway interface {
	ValidateWebhookEvent(payload []byte, signatureHeader string) (*stripeapi.Event, error)
	CreateCheckoutSession(ctx context.Context, params *CheckoutParams) (*stripeapi.CheckoutSession, error)
	ListPaymentIntents(ctx context.Context, limit int64, startingAfter string) (*PaymentIntentPage, error)
	GetAccount(ctx context.Context, accountID string) (*stripeapi.Account, error)
	CreateConnectAccount(ctx context.Context, email, country string) (*stripeapi.Account, error)
	CreateAccountLink(ctx context.Context, accountID, returnURL, refreshURL string) (*stripeapi.AccountLink, error)
	Ping(ctx context.Context) error
}

// PaymentStorage is the storage used by the service, implemented by
// db.PostgresStorage.
type PaymentStorage interface {
	CreatePayment(ctx context.Context, p *db.Payment) error
	UpdatePaymentStatus(ctx context.Context, id, status string, upd db.PaymentUpdate) (*db.Payment, error)
	UpdatePaymentStatusBySession(ctx context.Context, sessionID, status string, upd db.PaymentUpdate) (*db.Payment, error)
	UpdatePaymentStatusByIntent(ctx context.Context, intentID, status string, upd db.PaymentUpdate) (*db.Payment, error)
	UpsertConnectAccount(ctx context.Context, a *db.ConnectAccount) error
}

// Service provides the main business logic for Stripe operations
type Service struct {
	gateway     Gateway
	db          PaymentStorage
	events      EventStore
	lockManager *internal.LockManager
	config      *Config
}

// NewService creates a new Stripe service. A nil gateway uses the real Stripe
// client and a nil event store keeps processed events in memory.
func NewService(config *Config, storage PaymentStorage, gateway Gateway, events EventStore) (*Service, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if storage == nil {
		return nil, fmt.Errorf("database is required")
	}
	if gateway == nil {
		gateway = NewClient(config)
	}
	if events == nil {
		events = NewMemoryEventStore(config.EventTTL)
	}
	return &Service{
		gateway:     gateway,
		db:          storage,
		events:      events,
		lockManager: internal.NewLockManager(),
		config:      config,
	}, nil
}

// Close releases the event store.
func (s *Service) Close() error {
	return s.events.Close()
}

// Ping checks the Stripe API with the configured key.
func (s *Service) Ping(ctx context.Context) error {
	return s.gateway.Ping(ctx)
}

// CheckoutRequest is the input of CreateCheckout.
type CheckoutRequest struct {
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
	ProductName   string `json:"product_name"`
	CustomerEmail string `json:"customer_email,omitempty"`
	SuccessURL    string `json:"success_url"`
	CancelURL     string `json:"cancel_url"`
}

// CheckoutResult is returned once the session and its pending payment exist.
type CheckoutResult struct {
	URL       string `json:"url"`
	SessionID string `json:"session_id"`
	PaymentID string `json:"payment_id"`
}

// ConnectOnboarding is the account created for a seller and the link where
// it completes its onboarding.
type ConnectOnboarding struct {
	AccountID string `json:"account_id"`
	URL       string `json:"url"`
}

// ConnectStatus is the mirrored state of a Connect account.
type ConnectStatus struct {
	db.ConnectAccount
	OnboardingComplete bool `json:"onboarding_complete"`
}

// CreateCheckout opens a checkout session for a single amount and stores the
// matching pending payment.
func (s *Service) CreateCheckout(ctx context.Context, req *CheckoutRequest) (*CheckoutResult, error) {
	if err := validateCheckout(req); err != nil {
		return nil, err
	}
	paymentID := uuid.NewString()
	session, err := s.gateway.CreateCheckoutSession(ctx, &CheckoutParams{
		PaymentID:     paymentID,
		AmountCents:   req.AmountCents,
		Currency:      req.Currency,
		ProductName:   req.ProductName,
		CustomerEmail: req.CustomerEmail,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
	})
	if err != nil {
		return nil, err
	}
	payment := &db.Payment{
		ID:              paymentID,
		Provider:        db.ProviderStripe,
		Status:          db.PaymentPending,
		AmountCents:     req.AmountCents,
		Currency:        req.Currency,
		CustomerEmail:   req.CustomerEmail,
		StripeSessionID: session.ID,
		Description:     req.ProductName,
	}
	if err := s.db.CreatePayment(ctx, payment); err != nil {
		return nil, NewStripeError(CodeStorageFailed, "failed to store pending payment", err)
	}
	log.Infow("stripe checkout session created", "session", session.ID, "payment", payment.ID,
		"amount", internal.FormatCents(req.AmountCents, req.Currency))
	return &CheckoutResult{URL: session.URL, SessionID: session.ID, PaymentID: payment.ID}, nil
}

func validateCheckout(req *CheckoutRequest) error {
	switch {
	case req == nil:
		return NewStripeError(CodeInvalidRequest, "missing checkout request", nil)
	case req.AmountCents <= 0:
		return NewStripeError(CodeInvalidRequest, "amount_cents must be positive", nil)
	case len(req.Currency) != 3:
		return NewStripeError(CodeInvalidRequest, "currency must be an ISO 4217 code", nil)
	case strings.TrimSpace(req.ProductName) == "":
		return NewStripeError(CodeInvalidRequest, "product_name is required", nil)
	case req.CustomerEmail != "" && !internal.ValidEmail(req.CustomerEmail):
		return NewStripeError(CodeInvalidRequest, "invalid customer_email", nil)
	}
	for _, u := range []string{req.SuccessURL, req.CancelURL} {
		if !validRedirectURL(u) {
			return NewStripeError(CodeInvalidRequest, fmt.Sprintf("invalid redirect url %q", u), nil)
		}
	}
	return nil
}

func validRedirectURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "https" || u.Scheme == "http") && u.Host != ""
}

// ListPayments returns one page of payment intents straight from Stripe.
func (s *Service) ListPayments(ctx context.Context, limit int, startingAfter string) (*PaymentIntentPage, error) {
	limit = internal.ClampLimit(limit, defaultListLimit, maxListLimit)
	return s.gateway.ListPaymentIntents(ctx, int64(limit), startingAfter)
}

// CheckConnectStatus fetches a Connect account from Stripe and refreshes its
// mirrored row.
func (s *Service) CheckConnectStatus(ctx context.Context, accountID string) (*ConnectStatus, error) {
	if !strings.HasPrefix(accountID, "acct_") {
		return nil, NewStripeError(CodeInvalidRequest, "account_id must be a Stripe account id", nil)
	}
	acct, err := s.gateway.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	mirror := connectAccountFromStripe(acct)
	unlock := s.lockManager.Lock(mirror.AccountID)
	defer unlock()
	if err := s.db.UpsertConnectAccount(ctx, mirror); err != nil {
		return nil, NewStripeError(CodeStorageFailed, "failed to store connect account", err)
	}
	return &ConnectStatus{ConnectAccount: *mirror, OnboardingComplete: mirror.OnboardingComplete()}, nil
}

// CreateConnectAccount creates an Express account and its onboarding link.
func (s *Service) CreateConnectAccount(ctx context.Context, email, country, returnURL, refreshURL string,
) (*ConnectOnboarding, error) {
	if !internal.ValidEmail(email) {
		return nil, NewStripeError(CodeInvalidRequest, "invalid email", nil)
	}
	if country != "" && len(country) != 2 {
		return nil, NewStripeError(CodeInvalidRequest, "country must be an ISO 3166-1 alpha-2 code", nil)
	}
	if !validRedirectURL(returnURL) || !validRedirectURL(refreshURL) {
		return nil, NewStripeError(CodeInvalidRequest, "return_url and refresh_url must be absolute urls", nil)
	}
	acct, err := s.gateway.CreateConnectAccount(ctx, email, country)
	if err != nil {
		return nil, err
	}
	if err := s.db.UpsertConnectAccount(ctx, connectAccountFromStripe(acct)); err != nil {
		log.Warnw("failed to mirror new connect account", "account", acct.ID, "error", err)
	}
	link, err := s.gateway.CreateAccountLink(ctx, acct.ID, returnURL, refreshURL)
	if err != nil {
		return nil, err
	}
	log.Infow("stripe connect account created", "account", acct.ID, "country", acct.Country)
	return &ConnectOnboarding{AccountID: acct.ID, URL: link.URL}, nil
}

func connectAccountFromStripe(acct *stripeapi.Account) *db.ConnectAccount {
	return &db.ConnectAccount{
		AccountID:        acct.ID,
		Email:            acct.Email,
		Country:          acct.Country,
		ChargesEnabled:   acct.ChargesEnabled,
		PayoutsEnabled:   acct.PayoutsEnabled,
		DetailsSubmitted: acct.DetailsSubmitted,
	}
}
