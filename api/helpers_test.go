package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/go-chi/jwtauth/v5"
	"github.com/google/uuid"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/api/apicommon"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/stripe"
	stripeapi "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const (
	testSecret        = "super-secret"
	testWebhookSecret = "whsec_test_secret"
)

// testServer starts the API router behind an httptest server.
func testServer(c *qt.C, conf *Config) *httptest.Server {
	conf.Secret = testSecret
	srv := httptest.NewServer(New(conf).Router())
	c.Cleanup(srv.Close)
	return srv
}

// testToken signs a token for the subject with the optional role.
func testToken(c *qt.C, subject, role string) string {
	claims := map[string]any{"exp": time.Now().Add(time.Hour).Unix()}
	if subject != "" {
		claims["sub"] = subject
	}
	if role != "" {
		claims["role"] = role
	}
	_, token, err := jwtauth.New("HS256", []byte(testSecret), nil).Encode(claims)
	c.Assert(err, qt.IsNil)
	return token
}

func adminToken(c *qt.C) string {
	return testToken(c, "ops-service", apicommon.RoleServiceRole)
}

func userToken(c *qt.C) string {
	return testToken(c, "user@example.com", "")
}

// request sends body, JSON encoded unless it is already a byte slice, and
// returns the status and the raw response.
func request(c *qt.C, srv *httptest.Server, method, path, token string, body any) (int, []byte) {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case []byte:
		reader = bytes.NewReader(b)
	default:
		data, err := json.Marshal(b)
		c.Assert(err, qt.IsNil)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, srv.URL+path, reader)
	c.Assert(err, qt.IsNil)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	c.Assert(err, qt.IsNil)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	c.Assert(err, qt.IsNil)
	return resp.StatusCode, data
}

// callFunction posts a function envelope.
func callFunction(c *qt.C, srv *httptest.Server, token, name string, body map[string]any) (int, []byte) {
	if body == nil {
		body = map[string]any{}
	}
	return request(c, srv, http.MethodPost, "/functions/"+name, token, body)
}

// errorCode decodes the code of an error response.
func errorCode(c *qt.C, data []byte) int {
	var resp struct {
		Code int `json:"code"`
	}
	c.Assert(json.Unmarshal(data, &resp), qt.IsNil, qt.Commentf("body %s", data))
	return resp.Code
}

func decode[T any](c *qt.C, data []byte) *T {
	out := new(T)
	c.Assert(json.Unmarshal(data, out), qt.IsNil, qt.Commentf("body %s", data))
	return out
}

// fakeGateway validates webhooks with the real client and answers every
// Stripe API call locally.
type fakeGateway struct {
	*stripe.Client
	mu       sync.Mutex
	sessions int
}

func (f *fakeGateway) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutParams,
) (*stripeapi.CheckoutSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions++
	id := fmt.Sprintf("cs_test_%d", f.sessions)
	return &stripeapi.CheckoutSession{
		ID:       id,
		URL:      "https://checkout.stripe.com/c/pay/" + id,
		Metadata: map[string]string{stripe.MetadataPaymentID: params.PaymentID},
	}, nil
}

func (*fakeGateway) ListPaymentIntents(_ context.Context, limit int64, _ string) (*stripe.PaymentIntentPage, error) {
	page := &stripe.PaymentIntentPage{HasMore: true}
	for i := int64(0); i < limit; i++ {
		page.Data = append(page.Data, stripe.PaymentIntentSummary{ID: fmt.Sprintf("pi_%d", i), Status: "succeeded"})
	}
	return page, nil
}

func (*fakeGateway) GetAccount(_ context.Context, accountID string) (*stripeapi.Account, error) {
	if accountID == "acct_missing" {
		return nil, stripe.NewStripeError(stripe.CodeAccountNotFound, "connect account not found", nil)
	}
	return &stripeapi.Account{
		ID:               accountID,
		Email:            "seller@example.com",
		Country:          "ES",
		ChargesEnabled:   true,
		PayoutsEnabled:   true,
		DetailsSubmitted: true,
	}, nil
}

func (*fakeGateway) CreateConnectAccount(_ context.Context, email, country string) (*stripeapi.Account, error) {
	return &stripeapi.Account{ID: "acct_new", Email: email, Country: country}, nil
}

func (*fakeGateway) CreateAccountLink(_ context.Context, accountID, _, _ string) (*stripeapi.AccountLink, error) {
	return &stripeapi.AccountLink{URL: "https://connect.stripe.com/setup/e/" + accountID}, nil
}

func (*fakeGateway) Ping(context.Context) error { return nil }

// memoryPayments keeps payments in memory with the uniqueness rules of the
// payments table.
type memoryPayments struct {
	mu       sync.Mutex
	payments map[string]*db.Payment
	failing  bool
}

func newMemoryPayments() *memoryPayments {
	return &memoryPayments{payments: map[string]*db.Payment{}}
}

func (m *memoryPayments) CreatePayment(_ context.Context, p *db.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return fmt.Errorf("connection refused")
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	for _, existing := range m.payments {
		if existing.ID == p.ID ||
			(p.StripeSessionID != "" && existing.StripeSessionID == p.StripeSessionID) ||
			(p.TxHash != "" && existing.TxHash == p.TxHash) {
			return db.ErrAlreadyExists
		}
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *memoryPayments) update(match func(*db.Payment) bool, status string, upd db.PaymentUpdate,
) (*db.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return nil, fmt.Errorf("connection refused")
	}
	for _, p := range m.payments {
		if !match(p) {
			continue
		}
		if !db.CanTransitionPayment(p.Status, status) {
			return nil, db.ErrInvalidTransition
		}
		p.Status = status
		if upd.PaymentIntentID != "" {
			p.StripePaymentIntentID = upd.PaymentIntentID
		}
		if upd.CustomerEmail != "" {
			p.CustomerEmail = upd.CustomerEmail
		}
		cp := *p
		return &cp, nil
	}
	return nil, db.ErrNotFound
}

func (m *memoryPayments) UpdatePaymentStatus(_ context.Context, id, status string, upd db.PaymentUpdate,
) (*db.Payment, error) {
	return m.update(func(p *db.Payment) bool { return p.ID == id }, status, upd)
}

func (m *memoryPayments) UpdatePaymentStatusBySession(_ context.Context, sessionID, status string,
	upd db.PaymentUpdate,
) (*db.Payment, error) {
	return m.update(func(p *db.Payment) bool { return p.StripeSessionID == sessionID }, status, upd)
}

func (m *memoryPayments) UpdatePaymentStatusByIntent(_ context.Context, intentID, status string,
	upd db.PaymentUpdate,
) (*db.Payment, error) {
	return m.update(func(p *db.Payment) bool { return p.StripePaymentIntentID == intentID }, status, upd)
}

func (*memoryPayments) UpsertConnectAccount(context.Context, *db.ConnectAccount) error { return nil }

func (m *memoryPayments) get(id string) db.Payment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.payments[id]
}

func (m *memoryPayments) setFailing(failing bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failing = failing
}

// testStripe builds a Stripe service over the fake gateway.
func testStripe(c *qt.C, storage stripe.PaymentStorage) *stripe.Service {
	cfg, err := stripe.NewConfig("sk_test_123", testWebhookSecret)
	c.Assert(err, qt.IsNil)
	svc, err := stripe.NewService(cfg, storage, &fakeGateway{Client: stripe.NewClient(cfg)}, nil)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { _ = svc.Close() })
	return svc
}

// signedEvent builds a webhook payload and its Stripe-Signature header.
func signedEvent(id string, eventType stripeapi.EventType, object string) ([]byte, string) {
	payload := []byte(fmt.Sprintf(`{"id":%q,"object":"event","api_version":"2025-04-30.basil","type":%q,"data":{"object":%s}}`,
		id, eventType, object))
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    testWebhookSecret,
		Timestamp: time.Now(),
	})
	return signed.Payload, signed.Header
}
