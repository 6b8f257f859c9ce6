package connectors

import (
	"bytes"
	"context"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"

	"posimport/internal"
)

const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
)

type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}

// MessageFromRaw fills the message headers from the raw RFC 822 bytes. fallbackID and
// fallbackTime are used when the message carries no Message-ID or Date header.
func MessageFromRaw(provider, fallbackID string, fallbackTime time.Time, raw []byte) internal.FetchedMailMessage {
	msg := internal.FetchedMailMessage{Provider: provider, MessageID: fallbackID, Raw: raw}
	if fallbackTime.IsZero() {
		fallbackTime = time.Now()
	}
	msg.ReceivedAt = fallbackTime.UTC().Format(time.RFC3339)

	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return msg
	}
	msg.Subject = env.GetHeader("Subject")
	msg.From = env.GetHeader("From")
	if id := strings.Trim(strings.TrimSpace(env.GetHeader("Message-Id")), "<>"); id != "" {
		msg.MessageID = id
	}
	if date, err := mail.ParseDate(env.GetHeader("Date")); err == nil {
		msg.ReceivedAt = date.UTC().Format(time.RFC3339)
	}
	return msg
}
