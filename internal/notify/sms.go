// Package notify sends customer notifications for reservation events.
package notify

import (
	"fmt"
	"time"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/sirawit8921/massage-shop-reservation/internal/queue"
)

// MessageSender delivers one text message.
type MessageSender interface {
	Send(to, body string) error
}

// TwilioSender sends SMS through the Twilio REST API.
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioSender returns nil when any credential is missing, so callers
// can treat SMS as optional.
func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	if accountSID == "" || authToken == "" || from == "" {
		return nil
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client, from: from}
}

func (t *TwilioSender) Send(to, body string) error {
	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(t.from)
	params.SetBody(body)

	if _, err := t.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}

// SMSNotifier turns reservation events into confirmation texts.
type SMSNotifier struct {
	sender MessageSender
	loc    *time.Location
	window time.Duration
}

// NewSMSNotifier formats times in loc (UTC when nil) and quotes window as
// the check-in allowance.
func NewSMSNotifier(sender MessageSender, loc *time.Location, window time.Duration) *SMSNotifier {
	if loc == nil {
		loc = time.UTC
	}
	return &SMSNotifier{sender: sender, loc: loc, window: window}
}

// Notify sends the confirmation for ev to ev.Phone.
func (n *SMSNotifier) Notify(ev queue.ReservationEvent) error {
	if ev.Phone == "" {
		return nil
	}
	return n.sender.Send(ev.Phone, ConfirmationText(ev, n.loc, n.window))
}

// ConfirmationText is the body of the booking confirmation SMS.
func ConfirmationText(ev queue.ReservationEvent, loc *time.Location, window time.Duration) string {
	when := ev.Datetime
	if t, err := time.Parse(time.RFC3339, ev.Datetime); err == nil {
		when = t.In(loc).Format("Mon 02 Jan 2006 15:04")
	}
	msg := fmt.Sprintf("Hi %s, your reservation at %s on %s is confirmed.", ev.Name, ev.VenueName, when)
	if ev.Service != "" {
		msg += " Service: " + ev.Service + "."
	}
	return msg + fmt.Sprintf(" Check in on site within %d minutes of your slot. Ref %s", int(window/time.Minute), ev.ReservationID)
}
