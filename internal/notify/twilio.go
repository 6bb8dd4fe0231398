package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioNotifier sends reminder messages over the Twilio WhatsApp channel.
type TwilioNotifier struct {
	client *twilio.RestClient
	from   string
}

func NewTwilioNotifier(accountSID string, authToken string, fromNumber string) *TwilioNotifier {
	return &TwilioNotifier{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: accountSID,
			Password: authToken,
		}),
		from: fromNumber,
	}
}

func (t *TwilioNotifier) Send(_ context.Context, msg Message) (Delivery, error) {
	phone := strings.TrimSpace(msg.Phone)
	if phone == "" {
		return Delivery{}, fmt.Errorf("empty recipient phone")
	}

	body := msg.Body
	if msg.Title != "" {
		body = "*" + msg.Title + "*\n" + body
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(whatsappAddr(phone))
	params.SetFrom(whatsappAddr(t.from))
	params.SetBody(body)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return Delivery{}, fmt.Errorf("twilio send to %s: %w", phone, err)
	}

	delivery := Delivery{}
	if resp.Sid != nil {
		delivery.ExternalMessageID = *resp.Sid
	}
	return delivery, nil
}

func whatsappAddr(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}
