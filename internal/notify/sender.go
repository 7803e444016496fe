// Package notify pops up on-screen messages on a MythTV frontend.
package notify

import (
	"context"
	"log"
	"net/url"

	"mythtv_control/internal/mythtv"
)

const (
	// DefaultTitle is shown when the caller gives no title
	DefaultTitle = "Home Assistant"
	// DefaultOrigin is a single space so MythTV shows no origin line
	DefaultOrigin = " "
)

// Poster is the part of the API client used to deliver notifications
type Poster interface {
	Post(ctx context.Context, endpoint string, form url.Values) (mythtv.Response, error)
}

// Sender delivers notifications to one frontend
type Sender struct {
	client Poster
	origin string
}

// NewSender creates a sender posting through client. An empty origin uses
// DefaultOrigin.
func NewSender(client Poster, origin string) *Sender {
	if origin == "" {
		origin = DefaultOrigin
	}
	return &Sender{client: client, origin: origin}
}

// Send shows message on the frontend. Delivery is best effort: failures are
// logged and never retried.
func (s *Sender) Send(ctx context.Context, message, title string) {
	if title == "" {
		title = DefaultTitle
	}
	form := url.Values{
		"Message":     {title},
		"Description": {message},
		"Origin":      {s.origin},
		"Progress":    {"-1"},
	}

	if _, err := s.client.Post(ctx, "Frontend/SendNotification", form); err != nil {
		log.Printf("MythTV: Failed to send notification: %v", err)
		return
	}
	mythtv.Debugf("MythTV: Sent notification %q", title)
}
