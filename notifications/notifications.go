// Package notifications defines the alert messages sent by the service and
// the transports able to deliver them.
package notifications

import (
	"context"
	"errors"
	"fmt"
)

// Notification is one message to a single recipient. Email transports use
// the address, subject and both bodies. SMS transports use the number and
// the plain body.
type Notification struct {
	ToName    string
	ToAddress string
	ToNumber  string
	Subject   string
	Body      string
	PlainBody string
}

// NotificationService is a transport able to deliver notifications.
type NotificationService interface {
	New(conf any) error
	SendNotification(context.Context, *Notification) error
}

// Dispatcher delivers the same notification by email and SMS to the
// configured operator contacts. Missing transports or contacts are skipped.
type Dispatcher struct {
	Mail  NotificationService
	SMS   NotificationService
	Email string
	Phone string
}

// Enabled reports whether at least one channel can deliver.
func (d *Dispatcher) Enabled() bool {
	return d != nil && ((d.Mail != nil && d.Email != "") || (d.SMS != nil && d.Phone != ""))
}

// Send delivers n through every configured channel and returns the joined
// errors of the channels that failed.
func (d *Dispatcher) Send(ctx context.Context, n *Notification) error {
	if !d.Enabled() {
		return nil
	}
	var errs []error
	if d.Mail != nil && d.Email != "" {
		mail := *n
		mail.ToAddress = d.Email
		if err := d.Mail.SendNotification(ctx, &mail); err != nil {
			errs = append(errs, fmt.Errorf("email: %w", err))
		}
	}
	if d.SMS != nil && d.Phone != "" {
		sms := *n
		sms.ToNumber = d.Phone
		sms.Body = n.PlainBody
		if err := d.SMS.SendNotification(ctx, &sms); err != nil {
			errs = append(errs, fmt.Errorf("sms: %w", err))
		}
	}
	return errors.Join(errs...)
}
