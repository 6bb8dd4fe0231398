// Package notify defines the outbound messaging contract for reminders.
// Retry and backoff policy live with the caller: a failed send leaves the
// reminder unsent so the next dispatch run picks it up again.
package notify

import (
	"context"
	"log"

	"tokokasbon/backend/internal/xid"
)

type Message struct {
	Phone string
	Title string
	Body  string
}

type Delivery struct {
	ExternalMessageID string
}

type Notifier interface {
	Send(ctx context.Context, msg Message) (Delivery, error)
}

// LogNotifier writes messages to the process log instead of a real channel.
// Used in dev mode when no Twilio credentials are configured.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, msg Message) (Delivery, error) {
	id := xid.New("dryrun")
	log.Printf("[notify] DRY-RUN to=%s title=%q body=%q id=%s", msg.Phone, msg.Title, msg.Body, id)
	return Delivery{ExternalMessageID: id}, nil
}
