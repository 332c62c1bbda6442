package stripe

import (
	"context"
	"strings"

	stripeapi "github.com/stripe/stripe-go/v82"
	stripeaccount "github.com/stripe/stripe-go/v82/account"
	stripeaccountlink "github.com/stripe/stripe-go/v82/accountlink"
	stripebalance "github.com/stripe/stripe-go/v82/balance"
	stripecheckoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	stripepaymentintent "github.com/stripe/stripe-go/v82/paymentintent"
	stripewebhook "github.com/stripe/stripe-go/v82/webhook"
)

// Metadata keys set on checkout sessions and payment intents.
const (
	MetadataPaymentID = "payment_id"
	MetadataSource    = "source"
	metadataSource    = "dashboard"
)

// Client wraps the Stripe API client with additional functionality
type Client struct {
	config *Config
}

// NewClient creates a new Stripe client with the given configuration
func NewClient(config *Config) *Client {
	stripeapi.Key = config.APIKey
	return &Client{config: config}
}

// CheckoutParams holds parameters for creating a one-off payment checkout
// session with inline price data.
type CheckoutParams struct {
	PaymentID     string
	AmountCents   int64
	Currency      string
	ProductName   string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// PaymentIntentSummary is the subset of a payment intent exposed to the
// dashboard.
type PaymentIntentSummary struct {
	ID            string `json:"id"`
	Amount        int64  `json:"amount"`
	Currency      string `json:"currency"`
	Status        string `json:"status"`
	Created       int64  `json:"created"`
	CustomerEmail string `json:"customer_email,omitempty"`
	Description   string `json:"description,omitempty"`
}

// PaymentIntentPage is one page of payment intents.
type PaymentIntentPage struct {
	Data    []PaymentIntentSummary `json:"data"`
	HasMore bool                   `json:"has_more"`
}

// ValidateWebhookEvent validates and parses a webhook event
func (c *Client) ValidateWebhookEvent(payload []byte, signatureHeader string) (*stripeapi.Event, error) {
	if c.config.WebhookSecret == "" {
		return nil, NewStripeError(CodeInvalidConfiguration, "webhook secret is not configured", nil)
	}
	event, err := stripewebhook.ConstructEventWithOptions(payload, signatureHeader, c.config.WebhookSecret,
		stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, NewStripeError(CodeWebhookValidation, "webhook signature validation failed", err)
	}
	return &event, nil
}

// CreateCheckoutSession creates a checkout session in payment mode for a
// single line item. The local payment id travels in the session and payment
// intent metadata so webhook events can be correlated.
// API description https://docs.stripe.com/api/checkout/sessions
func (*Client) CreateCheckoutSession(ctx context.Context, params *CheckoutParams) (*stripeapi.CheckoutSession, error) {
	metadata := map[string]string{
		MetadataPaymentID: params.PaymentID,
		MetadataSource:    metadataSource,
	}
	checkoutParams := &stripeapi.CheckoutSessionParams{
		Mode: stripeapi.String(string(stripeapi.CheckoutSessionModePayment)),
		LineItems: []*stripeapi.CheckoutSessionLineItemParams{
			{
				PriceData: &stripeapi.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripeapi.String(strings.ToLower(params.Currency)),
					UnitAmount: stripeapi.Int64(params.AmountCents),
					ProductData: &stripeapi.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripeapi.String(params.ProductName),
					},
				},
				Quantity: stripeapi.Int64(1),
			},
		},
		SuccessURL: stripeapi.String(params.SuccessURL),
		CancelURL:  stripeapi.String(params.CancelURL),
		PaymentIntentData: &stripeapi.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	checkoutParams.Context = ctx
	for k, v := range metadata {
		checkoutParams.AddMetadata(k, v)
	}
	if params.CustomerEmail != "" {
		checkoutParams.CustomerEmail = stripeapi.String(params.CustomerEmail)
	}

	session, err := stripecheckoutsession.New(checkoutParams)
	if err != nil {
		return nil, NewStripeError(CodeAPICallFailed, "failed to create checkout session", err)
	}
	return session, nil
}

// ListPaymentIntents returns one page of payment intents, newest first.
func (*Client) ListPaymentIntents(ctx context.Context, limit int64, startingAfter string) (*PaymentIntentPage, error) {
	params := &stripeapi.PaymentIntentListParams{}
	params.Context = ctx
	params.Limit = stripeapi.Int64(limit)
	params.Single = true
	if startingAfter != "" {
		params.StartingAfter = stripeapi.String(startingAfter)
	}
	params.AddExpand("data.customer")

	iter := stripepaymentintent.List(params)
	page := &PaymentIntentPage{Data: []PaymentIntentSummary{}}
	for iter.Next() {
		pi := iter.PaymentIntent()
		summary := PaymentIntentSummary{
			ID:            pi.ID,
			Amount:        pi.Amount,
			Currency:      string(pi.Currency),
			Status:        string(pi.Status),
			Created:       pi.Created,
			CustomerEmail: pi.ReceiptEmail,
			Description:   pi.Description,
		}
		if summary.CustomerEmail == "" && pi.Customer != nil {
			summary.CustomerEmail = pi.Customer.Email
		}
		page.Data = append(page.Data, summary)
	}
	if err := iter.Err(); err != nil {
		return nil, NewStripeError(CodeAPICallFailed, "failed to list payment intents", err)
	}
	if meta := iter.PaymentIntentList(); meta != nil {
		page.HasMore = meta.HasMore
	}
	return page, nil
}

// GetAccount retrieves a Connect account by id.
func (*Client) GetAccount(ctx context.Context, accountID string) (*stripeapi.Account, error) {
	params := &stripeapi.AccountParams{}
	params.Context = ctx
	acct, err := stripeaccount.GetByID(accountID, params)
	if err != nil {
		if IsNotFound(err) {
			return nil, NewStripeError(CodeAccountNotFound, "connect account not found", err)
		}
		return nil, NewStripeError(CodeAPICallFailed, "failed to get connect account", err)
	}
	return acct, nil
}

// CreateConnectAccount creates an Express Connect account able to take card
// payments and receive transfers.
func (c *Client) CreateConnectAccount(ctx context.Context, email, country string) (*stripeapi.Account, error) {
	if country == "" {
		country = c.config.ConnectCountry
	}
	params := &stripeapi.AccountParams{
		Type:    stripeapi.String(string(stripeapi.AccountTypeExpress)),
		Country: stripeapi.String(strings.ToUpper(country)),
		Email:   stripeapi.String(email),
		Capabilities: &stripeapi.AccountCapabilitiesParams{
			CardPayments: &stripeapi.AccountCapabilitiesCardPaymentsParams{Requested: stripeapi.Bool(true)},
			Transfers:    &stripeapi.AccountCapabilitiesTransfersParams{Requested: stripeapi.Bool(true)},
		},
	}
	params.Context = ctx
	acct, err := stripeaccount.New(params)
	if err != nil {
		return nil, NewStripeError(CodeAPICallFailed, "failed to create connect account", err)
	}
	return acct, nil
}

// CreateAccountLink creates the onboarding link of a Connect account.
func (*Client) CreateAccountLink(ctx context.Context, accountID, returnURL, refreshURL string) (*stripeapi.AccountLink, error) {
	params := &stripeapi.AccountLinkParams{
		Account:    stripeapi.String(accountID),
		ReturnURL:  stripeapi.String(returnURL),
		RefreshURL: stripeapi.String(refreshURL),
		Type:       stripeapi.String("account_onboarding"),
	}
	params.Context = ctx
	link, err := stripeaccountlink.New(params)
	if err != nil {
		return nil, NewStripeError(CodeAPICallFailed, "failed to create account link", err)
	}
	return link, nil
}

// Ping checks the API key against the balance endpoint.
func (*Client) Ping(ctx context.Context) error {
	params := &stripeapi.BalanceParams{}
	params.Context = ctx
	if _, err := stripebalance.Get(params); err != nil {
		return NewStripeError(CodeAPICallFailed, "stripe balance check failed", err)
	}
	return nil
}
