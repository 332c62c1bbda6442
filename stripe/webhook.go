package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/db"
	stripeapi "github.com/stripe/stripe-go/v82"
	"go.vocdoni.io/dvote/log"
)

// PaymentEventInfo is what a payment related event tells about the local
// payment it refers to.
type PaymentEventInfo struct {
	SessionID       string
	PaymentIntentID string
	PaymentID       string
	Status          string
	CustomerEmail   string
	FailureReason   string
}

// HandleWebhookEvent processes a webhook event with idempotency. Events that
// fail are not marked as processed so Stripe delivers them again.
func (s *Service) HandleWebhookEvent(ctx context.Context, payload []byte, signatureHeader string) error {
	// Validate and parse the event
	event, err := s.gateway.ValidateWebhookEvent(payload, signatureHeader)
	if err != nil {
		return err
	}

	// concurrent deliveries of one event are handled once
	unlock := s.lockManager.Lock("event:" + event.ID)
	defer unlock()

	processed, err := s.events.EventExists(ctx, event.ID)
	if err != nil {
		return NewStripeError(CodeStorageFailed, "failed to check processed events", err)
	}
	if processed {
		log.Debugf("stripe webhook: event %s already processed, skipping", event.ID)
		return nil
	}

	if err := s.HandleEvent(ctx, event); err != nil {
		return err
	}

	if err := s.events.MarkProcessed(ctx, event.ID); err != nil {
		log.Warnw("stripe webhook: failed to mark event as processed", "event", event.ID, "error", err)
	}
	return nil
}

// HandleEvent dispatches an already validated event by type. Unknown types
// are acknowledged without doing anything.
func (s *Service) HandleEvent(ctx context.Context, event *stripeapi.Event) error {
	switch event.Type {
	case stripeapi.EventTypeCheckoutSessionCompleted,
		stripeapi.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripeapi.EventTypeCheckoutSessionAsyncPaymentFailed,
		stripeapi.EventTypeCheckoutSessionExpired:
		info, err := parseCheckoutSessionFromEvent(event)
		if err != nil {
			return err
		}
		return s.applyPaymentStatus(ctx, info)
	case stripeapi.EventTypePaymentIntentPaymentFailed:
		info, err := parsePaymentIntentFromEvent(event)
		if err != nil {
			return err
		}
		return s.applyPaymentStatus(ctx, info)
	case stripeapi.EventTypeChargeRefunded:
		info, err := parseChargeFromEvent(event)
		if err != nil {
			return err
		}
		if info == nil {
			log.Debugf("stripe webhook: partial refund in event %s, payment left untouched", event.ID)
			return nil
		}
		return s.applyPaymentStatus(ctx, info)
	case stripeapi.EventTypeAccountUpdated:
		return s.handleAccountUpdate(ctx, event)
	default:
		log.Debugf("stripe webhook: received unhandled event type %s (id %s)", event.Type, event.ID)
		return nil
	}
}

// applyPaymentStatus moves the local payment to the status carried by the
// event. The payment is looked up by checkout session, then by payment
// intent and finally by the payment id stored in the metadata.
func (s *Service) applyPaymentStatus(ctx context.Context, info *PaymentEventInfo) error {
	key := info.SessionID
	if key == "" {
		key = info.PaymentIntentID
	}
	unlock := s.lockManager.Lock(key)
	defer unlock()

	upd := db.PaymentUpdate{
		PaymentIntentID: info.PaymentIntentID,
		CustomerEmail:   info.CustomerEmail,
		FailureReason:   info.FailureReason,
	}
	var payment *db.Payment
	err := db.ErrNotFound
	if info.SessionID != "" {
		payment, err = s.db.UpdatePaymentStatusBySession(ctx, info.SessionID, info.Status, upd)
	}
	if errors.Is(err, db.ErrNotFound) && info.PaymentIntentID != "" {
		payment, err = s.db.UpdatePaymentStatusByIntent(ctx, info.PaymentIntentID, info.Status, upd)
	}
	if errors.Is(err, db.ErrNotFound) && info.PaymentID != "" {
		payment, err = s.db.UpdatePaymentStatus(ctx, info.PaymentID, info.Status, upd)
	}
	switch {
	case errors.Is(err, db.ErrNotFound):
		return NewStripeError(CodePaymentNotFound,
			fmt.Sprintf("no payment for session %q intent %q", info.SessionID, info.PaymentIntentID), err)
	case errors.Is(err, db.ErrInvalidTransition):
		return NewStripeError(CodeInvalidTransition, "payment status change rejected", err)
	case err != nil:
		return NewStripeError(CodeStorageFailed, "failed to update payment", err)
	}
	log.Infow("stripe webhook: payment updated", "payment", payment.ID, "status", payment.Status,
		"session", info.SessionID, "intent", info.PaymentIntentID)
	return nil
}

// handleAccountUpdate mirrors the state of a Connect account
func (s *Service) handleAccountUpdate(ctx context.Context, event *stripeapi.Event) error {
	var acct stripeapi.Account
	if err := json.Unmarshal(event.Data.Raw, &acct); err != nil {
		return NewStripeError(CodeInvalidEvent, "failed to parse account from event", err)
	}
	if acct.ID == "" {
		return NewStripeError(CodeInvalidEvent, "account event without id", nil)
	}
	unlock := s.lockManager.Lock(acct.ID)
	defer unlock()

	mirror := connectAccountFromStripe(&acct)
	if err := s.db.UpsertConnectAccount(ctx, mirror); err != nil {
		return NewStripeError(CodeStorageFailed, "failed to store connect account", err)
	}
	log.Infow("stripe webhook: connect account updated", "account", acct.ID,
		"onboardingComplete", mirror.OnboardingComplete())
	return nil
}

// parseCheckoutSessionFromEvent extracts the payment outcome of a checkout
// session event. A completed session whose payment is still being processed
// stays pending until the async outcome arrives.
func parseCheckoutSessionFromEvent(event *stripeapi.Event) (*PaymentEventInfo, error) {
	var session stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, NewStripeError(CodeInvalidEvent, "failed to parse checkout session from event", err)
	}
	if session.ID == "" {
		return nil, NewStripeError(CodeInvalidEvent, "checkout session event without id", nil)
	}
	info := &PaymentEventInfo{
		SessionID: session.ID,
		PaymentID: session.Metadata[MetadataPaymentID],
	}
	if session.PaymentIntent != nil {
		info.PaymentIntentID = session.PaymentIntent.ID
	}
	if session.CustomerDetails != nil {
		info.CustomerEmail = session.CustomerDetails.Email
	}
	if info.CustomerEmail == "" {
		info.CustomerEmail = session.CustomerEmail
	}

	switch event.Type {
	case stripeapi.EventTypeCheckoutSessionExpired:
		info.Status = db.PaymentExpired
	case stripeapi.EventTypeCheckoutSessionAsyncPaymentFailed:
		info.Status = db.PaymentFailed
		info.FailureReason = "async payment failed"
	case stripeapi.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		info.Status = db.PaymentSucceeded
	default:
		if session.PaymentStatus == stripeapi.CheckoutSessionPaymentStatusUnpaid {
			info.Status = db.PaymentPending
		} else {
			info.Status = db.PaymentSucceeded
		}
	}
	return info, nil
}

// parsePaymentIntentFromEvent extracts a failed payment intent
func parsePaymentIntentFromEvent(event *stripeapi.Event) (*PaymentEventInfo, error) {
	var intent stripeapi.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return nil, NewStripeError(CodeInvalidEvent, "failed to parse payment intent from event", err)
	}
	if intent.ID == "" {
		return nil, NewStripeError(CodeInvalidEvent, "payment intent event without id", nil)
	}
	info := &PaymentEventInfo{
		PaymentIntentID: intent.ID,
		PaymentID:       intent.Metadata[MetadataPaymentID],
		Status:          db.PaymentFailed,
		CustomerEmail:   intent.ReceiptEmail,
		FailureReason:   "payment failed",
	}
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		info.FailureReason = intent.LastPaymentError.Msg
	}
	return info, nil
}

// parseChargeFromEvent extracts a refunded charge. It returns nil when the
// charge was only partially refunded.
func parseChargeFromEvent(event *stripeapi.Event) (*PaymentEventInfo, error) {
	var charge stripeapi.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return nil, NewStripeError(CodeInvalidEvent, "failed to parse charge from event", err)
	}
	if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
		return nil, NewStripeError(CodeInvalidEvent, "refunded charge without payment intent", nil)
	}
	if !charge.Refunded {
		return nil, nil
	}
	return &PaymentEventInfo{
		PaymentIntentID: charge.PaymentIntent.ID,
		PaymentID:       charge.Metadata[MetadataPaymentID],
		Status:          db.PaymentRefunded,
	}, nil
}
