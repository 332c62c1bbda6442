package api

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/api/apicommon"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/errors"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/internal"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/stripe"
	"go.vocdoni.io/dvote/log"
)

// MaxBodyBytes limits the size of webhook payloads.
const MaxBodyBytes = int64(65536) //revive:disable:unexported-naming

// stripeError translates the errors of the Stripe service into coded errors.
func stripeError(err error) error {
	var stripeErr *stripe.StripeError
	if !stderrors.As(err, &stripeErr) {
		if stripe.IsNotFound(err) {
			return errors.ErrAccountNotFound.WithErr(err)
		}
		return errors.ErrStripeError.WithErr(err)
	}
	switch {
	case stripeErr.Code == stripe.CodeInvalidRequest:
		return errors.ErrInvalidPaymentData.With(stripeErr.Message)
	case stripeErr.Code == stripe.CodeAccountNotFound, stripe.IsNotFound(err):
		return errors.ErrAccountNotFound.WithErr(err)
	case stripeErr.Code == stripe.CodePaymentNotFound:
		return errors.ErrPaymentNotFound.WithErr(err)
	case stripeErr.Code == stripe.CodeInvalidConfiguration:
		return errors.ErrStripeNotConfigured.With(stripeErr.Message)
	default:
		return errors.ErrStripeError.WithErr(err)
	}
}

// stripeWebhookHandler godoc
//
//	@Summary		Handle Stripe webhook events
//	@Description	Process incoming webhook events from Stripe. Checkout sessions, failed payment intents,
//	@Description	refunds and Connect account updates are applied once per event id. Events that cannot
//	@Description	be matched to a stored payment are acknowledged so Stripe does not retry them.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			body	body		string	true	"Stripe webhook payload"
//	@Success		200		{string}	string	"OK"
//	@Failure		400		{string}	string	"Bad Request"
//	@Failure		500		{string}	string	"Internal Server Error"
//	@Failure		503		{string}	string	"Payments not configured"
//	@Router			/functions/stripe-webhook [post]
func (a *API) stripeWebhookHandler(w http.ResponseWriter, r *http.Request) {
	if a.stripe == nil {
		log.Warnw("stripe webhook: Stripe service not available")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		log.Warnw("stripe webhook: error reading request body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	signatureHeader := r.Header.Get("Stripe-Signature")
	if signatureHeader == "" {
		log.Warnw("stripe webhook: missing Stripe-Signature header")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := a.stripe.HandleWebhookEvent(r.Context(), payload, signatureHeader); err != nil {
		var stripeErr *stripe.StripeError
		if !stderrors.As(err, &stripeErr) {
			log.Errorw(err, "stripe webhook: failed to process event")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		switch stripeErr.Code {
		case stripe.CodeInvalidConfiguration:
			// answered with 503 so Stripe keeps the event until the secret is set
			log.Errorw(err, "stripe webhook: service misconfigured")
			w.WriteHeader(http.StatusServiceUnavailable)
		case stripe.CodeWebhookValidation, stripe.CodeInvalidEvent:
			log.Warnw("stripe webhook: rejected event", "error", err)
			w.WriteHeader(http.StatusBadRequest)
		case stripe.CodePaymentNotFound, stripe.CodeAccountNotFound,
			stripe.CodeInvalidTransition, stripe.CodeEventAlreadyProcessed:
			// business errors that a retry would not fix
			log.Infow("stripe webhook: event acknowledged without changes", "error", err)
			w.WriteHeader(http.StatusOK)
		default:
			if !stripe.IsRetryableError(err) {
				log.Warnw("stripe webhook: event failed permanently, acknowledging", "error", err)
				w.WriteHeader(http.StatusOK)
				return
			}
			log.Errorw(err, "stripe webhook: failed to process event")
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}
	apicommon.HTTPWriteOK(w)
}

func (a *API) createCheckout(ctx context.Context, c *call) (any, error) {
	if a.stripe == nil {
		return nil, errors.ErrStripeNotConfigured
	}
	req := &stripe.CheckoutRequest{}
	if err := c.decode(req); err != nil {
		return nil, err
	}
	if req.CustomerEmail == "" && c.caller.Role == apicommon.RoleAuthenticated && internal.ValidEmail(c.caller.Subject) {
		req.CustomerEmail = c.caller.Subject
	}
	result, err := a.stripe.CreateCheckout(ctx, req)
	if err != nil {
		return nil, stripeError(err)
	}
	return result, nil
}

func (a *API) checkConnectStatus(ctx context.Context, c *call) (any, error) {
	if a.stripe == nil {
		return nil, errors.ErrStripeNotConfigured
	}
	req := &apicommon.ConnectStatusRequest{}
	if err := c.decode(req); err != nil {
		return nil, err
	}
	status, err := a.stripe.CheckConnectStatus(ctx, req.AccountID)
	if err != nil {
		return nil, stripeError(err)
	}
	return status, nil
}

func (a *API) listStripePayments(ctx context.Context, c *call) (any, error) {
	if a.stripe == nil {
		return nil, errors.ErrStripeNotConfigured
	}
	req := &apicommon.ListStripePaymentsRequest{}
	if err := c.decode(req); err != nil {
		return nil, err
	}
	page, err := a.stripe.ListPayments(ctx, req.Limit, req.StartingAfter)
	if err != nil {
		return nil, stripeError(err)
	}
	return page, nil
}

func (a *API) createConnectAccount(ctx context.Context, c *call) (any, error) {
	if a.stripe == nil {
		return nil, errors.ErrStripeNotConfigured
	}
	req := &apicommon.CreateConnectAccountRequest{}
	if err := c.decode(req); err != nil {
		return nil, err
	}
	onboarding, err := a.stripe.CreateConnectAccount(ctx, req.Email, req.Country, req.ReturnURL, req.RefreshURL)
	if err != nil {
		return nil, stripeError(err)
	}
	return onboarding, nil
}
