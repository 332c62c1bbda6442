// Package twilio sends SMS notifications through the Twilio REST API.
package twilio

import (
	"context"
	"fmt"

	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/internal"
	"github.com/jrsmidia8602-ctrl/remix-of-pixel-perfect-sub001/notifications"
	t "github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

// maxSMSLength keeps alerts within a few concatenated segments.
const maxSMSLength = 640

// TwilioConfig represents the configuration for the Twilio SMS service. It
// contains the account SID, the auth token and the number from which the SMS
// will be sent.
type TwilioConfig struct {
	AccountSid string
	AuthToken  string
	FromNumber string
}

// TwilioSMS is the implementation of the NotificationService interface for the
// Twilio SMS service.
type TwilioSMS struct {
	config *TwilioConfig
	client *t.RestClient
}

// New initializes the Twilio REST client with the account credentials.
// Read more here: https://www.twilio.com/docs/messaging/quickstart/go
func (tsms *TwilioSMS) New(rawConfig any) error {
	config, ok := rawConfig.(*TwilioConfig)
	if !ok {
		return fmt.Errorf("invalid Twilio configuration")
	}
	if config.AccountSid == "" || config.AuthToken == "" {
		return fmt.Errorf("twilio account SID and auth token are required")
	}
	from, err := internal.SanitizeAndVerifyPhoneNumber(config.FromNumber)
	if err != nil {
		return fmt.Errorf("invalid twilio sender number: %w", err)
	}
	tsms.config = &TwilioConfig{AccountSid: config.AccountSid, AuthToken: config.AuthToken, FromNumber: from}
	tsms.client = t.NewRestClientWithParams(t.ClientParams{
		Username: config.AccountSid,
		Password: config.AuthToken,
	})
	return nil
}

// SendNotification sends the plain body of the notification as an SMS. It
// returns when the message is accepted by Twilio or the context is done.
func (tsms *TwilioSMS) SendNotification(ctx context.Context, notification *notifications.Notification) error {
	to, err := internal.SanitizeAndVerifyPhoneNumber(notification.ToNumber)
	if err != nil {
		return fmt.Errorf("invalid recipient number: %w", err)
	}
	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(tsms.config.FromNumber)
	params.SetBody(smsBody(notification))

	errCh := make(chan error, 1)
	go func() {
		_, err := tsms.client.Api.CreateMessage(params)
		errCh <- err
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

// smsBody prefers the plain body, falls back to the subject and truncates
// the result.
func smsBody(n *notifications.Notification) string {
	body := n.PlainBody
	if body == "" {
		body = n.Subject
	}
	if r := []rune(body); len(r) > maxSMSLength {
		body = string(r[:maxSMSLength-3]) + "..."
	}
	return body
}
