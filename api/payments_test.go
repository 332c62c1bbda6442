package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/dashboard"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/errors"
)

const (
	testTxHash = "0x88df016429689c079f3b2f6ad39fa052532c56795b733da78a91ebe6a713944b"
	testFrom   = "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed"
	testTo     = "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359"
)

// fakeMetrics serves the dashboard from memory.
type fakeMetrics struct {
	mu       sync.Mutex
	payments []db.Payment
	filter   db.PaymentFilter
	summary  int64
}

func (f *fakeMetrics) PaymentSummary(context.Context, time.Time) (*db.PaymentSummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.summary++
	return &db.PaymentSummary{TotalCount: f.summary}, nil
}

func (*fakeMetrics) AgentStats(context.Context, time.Time) (*db.AgentStats, error) {
	return &db.AgentStats{Total: 3}, nil
}

func (*fakeMetrics) LatestSnapshot(context.Context, int) ([]db.DemandSnapshot, error) {
	return nil, db.ErrNotFound
}

func (*fakeMetrics) LatestAudit(context.Context) (*db.SystemAudit, error) {
	return nil, db.ErrNotFound
}

func (f *fakeMetrics) ListPayments(_ context.Context, filter db.PaymentFilter) ([]db.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter = filter
	return f.payments, nil
}

func (f *fakeMetrics) Payment(_ context.Context, id string) (*db.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.payments {
		if f.payments[i].ID == id {
			p := f.payments[i]
			return &p, nil
		}
	}
	return nil, db.ErrNotFound
}

func (f *fakeMetrics) lastFilter() db.PaymentFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter
}

func cryptoBody() map[string]any {
	return map[string]any{
		"tx_hash":      testTxHash,
		"from":         testFrom,
		"to":           testTo,
		"token":        "usdc",
		"network":      "Polygon",
		"token_amount": "25.50",
		"amount_cents": 2550,
	}
}

func TestCryptoPayment(t *testing.T) {
	c := qt.New(t)
	payments := newMemoryPayments()
	metrics := &fakeMetrics{}
	dash := dashboard.New(metrics, time.Minute)
	srv := testServer(c, &Config{Payments: payments, Dashboard: dash})

	c.Run("requires authentication", func(c *qt.C) {
		status, _ := request(c, srv, http.MethodPost, cryptoPaymentsEndpoint, "", cryptoBody())
		c.Assert(status, qt.Equals, http.StatusUnauthorized)
	})

	c.Run("records the payment", func(c *qt.C) {
		// warm the cache so the insert has something to invalidate
		_, err := dash.Metrics(context.Background(), false)
		c.Assert(err, qt.IsNil)

		status, body := request(c, srv, http.MethodPost, cryptoPaymentsEndpoint, userToken(c), cryptoBody())
		c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body %s", body))
		payment := decode[db.Payment](c, body)
		c.Assert(payment.ID, qt.Not(qt.Equals), "")
		c.Assert(payment.Provider, qt.Equals, db.ProviderCrypto)
		c.Assert(payment.Status, qt.Equals, db.PaymentSucceeded)
		c.Assert(payment.Currency, qt.Equals, "usd")
		c.Assert(payment.Token, qt.Equals, "USDC")
		c.Assert(payment.Network, qt.Equals, "polygon")
		c.Assert(payment.TokenAmount, qt.Equals, "25.5")
		c.Assert(payment.TxHash, qt.Equals, testTxHash)
		c.Assert(payment.WalletAddress, qt.Equals, testFrom)

		m, err := dash.Metrics(context.Background(), false)
		c.Assert(err, qt.IsNil)
		c.Assert(m.Cached, qt.IsFalse)
	})

	c.Run("duplicate transaction", func(c *qt.C) {
		body := cryptoBody()
		body["tx_hash"] = "0x" + strings.ToUpper(testTxHash[2:])
		status, resp := request(c, srv, http.MethodPost, cryptoPaymentsEndpoint, userToken(c), body)
		c.Assert(status, qt.Equals, http.StatusConflict)
		c.Assert(errorCode(c, resp), qt.Equals, errors.ErrDuplicateConflict.Code)
	})

	c.Run("invalid transaction hash", func(c *qt.C) {
		body := cryptoBody()
		body["tx_hash"] = "0x1234"
		status, resp := request(c, srv, http.MethodPost, cryptoPaymentsEndpoint, userToken(c), body)
		c.Assert(status, qt.Equals, http.StatusBadRequest)
		c.Assert(errorCode(c, resp), qt.Equals, errors.ErrInvalidData.Code)
	})

	c.Run("same sender and receiver", func(c *qt.C) {
		body := cryptoBody()
		body["tx_hash"] = "0x" + strings.Repeat("ab", 32)
		body["to"] = strings.ToLower(testFrom)
		status, resp := request(c, srv, http.MethodPost, cryptoPaymentsEndpoint, userToken(c), body)
		c.Assert(status, qt.Equals, http.StatusBadRequest)
		c.Assert(errorCode(c, resp), qt.Equals, errors.ErrInvalidWallet.Code)
	})

	c.Run("storage failure", func(c *qt.C) {
		payments.setFailing(true)
		defer payments.setFailing(false)
		body := cryptoBody()
		body["tx_hash"] = "0x" + strings.Repeat("cd", 32)
		status, resp := request(c, srv, http.MethodPost, cryptoPaymentsEndpoint, userToken(c), body)
		c.Assert(status, qt.Equals, http.StatusInternalServerError)
		c.Assert(errorCode(c, resp), qt.Equals, errors.ErrInternalStorageError.Code)
	})

	c.Run("stablecoin without fiat amount", func(c *qt.C) {
		body := cryptoBody()
		body["tx_hash"] = "0x" + strings.Repeat("ef", 32)
		delete(body, "amount_cents")
		status, resp := request(c, srv, http.MethodPost, cryptoPaymentsEndpoint, userToken(c), body)
		c.Assert(status, qt.Equals, http.StatusOK, qt.Commentf("body %s", resp))
		c.Assert(decode[db.Payment](c, resp).AmountCents, qt.Equals, int64(2550))

		body["tx_hash"] = "0x" + strings.Repeat("12", 32)
		body["token"] = "weth"
		status, resp = request(c, srv, http.MethodPost, cryptoPaymentsEndpoint, userToken(c), body)
		c.Assert(status, qt.Equals, http.StatusBadRequest)
		c.Assert(errorCode(c, resp), qt.Equals, errors.ErrInvalidPaymentData.Code)
	})

	c.Run("stablecoin amount without a valid fiat value", func(c *qt.C) {
		for i, amount := range []string{"100000000000000000000", "0.001"} {
			body := cryptoBody()
			body["tx_hash"] = "0x" + strings.Repeat(fmt.Sprintf("%02d", 30+i), 32)
			body["token_amount"] = amount
			delete(body, "amount_cents")
			status, resp := request(c, srv, http.MethodPost, cryptoPaymentsEndpoint, userToken(c), body)
			c.Assert(status, qt.Equals, http.StatusBadRequest, qt.Commentf("amount %s", amount))
			c.Assert(errorCode(c, resp), qt.Equals, errors.ErrInvalidPaymentData.Code)
		}
	})

	c.Run("body that is not JSON", func(c *qt.C) {
		req, err := http.NewRequest(http.MethodPost, srv.URL+cryptoPaymentsEndpoint, strings.NewReader("tx=0x1"))
		c.Assert(err, qt.IsNil)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Authorization", "Bearer "+userToken(c))
		resp, err := http.DefaultClient.Do(req)
		c.Assert(err, qt.IsNil)
		c.Assert(resp.Body.Close(), qt.IsNil)
		c.Assert(resp.StatusCode, qt.Equals, http.StatusBadRequest)
	})
}

func TestDashboardEndpoints(t *testing.T) {
	c := qt.New(t)
	metrics := &fakeMetrics{payments: []db.Payment{{ID: "p1", Status: db.PaymentSucceeded}}}
	srv := testServer(c, &Config{Dashboard: dashboard.New(metrics, time.Minute)})

	c.Run("metrics are cached", func(c *qt.C) {
		status, body := request(c, srv, http.MethodGet, dashboardMetricsEndpoint, userToken(c), nil)
		c.Assert(status, qt.Equals, http.StatusOK)
		m := decode[dashboard.Metrics](c, body)
		c.Assert(m.Cached, qt.IsFalse)
		c.Assert(m.Agents.Total, qt.Equals, int64(3))
		c.Assert(m.Demand, qt.HasLen, 0)

		_, body = request(c, srv, http.MethodGet, dashboardMetricsEndpoint, userToken(c), nil)
		c.Assert(decode[dashboard.Metrics](c, body).Cached, qt.IsTrue)

		_, body = request(c, srv, http.MethodGet, dashboardMetricsEndpoint+"?fresh=true", userToken(c), nil)
		c.Assert(decode[dashboard.Metrics](c, body).Cached, qt.IsFalse)

		status, body = request(c, srv, http.MethodGet, dashboardMetricsEndpoint+"?fresh=maybe", userToken(c), nil)
		c.Assert(status, qt.Equals, http.StatusBadRequest)
		c.Assert(errorCode(c, body), qt.Equals, errors.ErrMalformedURLParam.Code)
	})

	c.Run("payments", func(c *qt.C) {
		status, body := request(c, srv, http.MethodGet,
			dashboardPaymentsEndpoint+"?limit=9999&status=succeeded&provider=stripe", userToken(c), nil)
		c.Assert(status, qt.Equals, http.StatusOK)
		c.Assert(metrics.lastFilter(), qt.DeepEquals, db.PaymentFilter{
			Limit:    500,
			Status:   db.PaymentSucceeded,
			Provider: db.ProviderStripe,
		})
		resp := decode[struct {
			Payments []db.Payment `json:"payments"`
		}](c, body)
		c.Assert(resp.Payments, qt.HasLen, 1)

		status, _ = request(c, srv, http.MethodGet, dashboardPaymentsEndpoint, userToken(c), nil)
		c.Assert(status, qt.Equals, http.StatusOK)
		c.Assert(metrics.lastFilter().Limit, qt.Equals, 50)

		status, body = request(c, srv, http.MethodGet, dashboardPaymentsEndpoint+"?limit=-1", userToken(c), nil)
		c.Assert(status, qt.Equals, http.StatusBadRequest)
		c.Assert(errorCode(c, body), qt.Equals, errors.ErrMalformedURLParam.Code)

		status, body = request(c, srv, http.MethodGet, dashboardPaymentsEndpoint+"?status=lost", userToken(c), nil)
		c.Assert(status, qt.Equals, http.StatusBadRequest)
		c.Assert(errorCode(c, body), qt.Equals, errors.ErrMalformedURLParam.Code)
	})

	c.Run("single payment", func(c *qt.C) {
		status, body := request(c, srv, http.MethodGet, dashboardPaymentsEndpoint+"/p1", userToken(c), nil)
		c.Assert(status, qt.Equals, http.StatusOK)
		c.Assert(decode[db.Payment](c, body).ID, qt.Equals, "p1")

		status, body = request(c, srv, http.MethodGet, dashboardPaymentsEndpoint+"/p2", userToken(c), nil)
		c.Assert(status, qt.Equals, http.StatusNotFound)
		c.Assert(errorCode(c, body), qt.Equals, errors.ErrPaymentNotFound.Code)
	})

	c.Run("requires authentication", func(c *qt.C) {
		status, _ := request(c, srv, http.MethodGet, dashboardMetricsEndpoint, "", nil)
		c.Assert(status, qt.Equals, http.StatusUnauthorized)
	})
}
