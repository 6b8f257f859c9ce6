package imap

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"

	"github.com/emersion/go-imap"
	imapclient "github.com/emersion/go-imap/client"
	"github.com/rotisserie/eris"

	"posimport/internal"
	"posimport/internal/config"
	"posimport/internal/connectors"
)

type Connector struct {
	host     string
	port     int
	secure   bool
	user     string
	password string
	markSeen bool
}

func NewConnector(cfg config.Config) (*Connector, error) {
	for _, req := range [][2]string{
		{"IMAP_HOST", cfg.IMAPHost},
		{"IMAP_USER", cfg.IMAPUser},
		{"IMAP_PASSWORD", cfg.IMAPPassword},
	} {
		if err := cfg.Require(req[0], req[1]); err != nil {
			return nil, err
		}
	}

	return &Connector{
		host:     cfg.IMAPHost,
		port:     cfg.IMAPPort,
		secure:   cfg.IMAPSecure,
		user:     cfg.IMAPUser,
		password: cfg.IMAPPassword,
		markSeen: cfg.IMAPMarkSeen,
	}, nil
}

func (c *Connector) dial() (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)
	if c.secure {
		return imapclient.DialTLS(addr, &tls.Config{ServerName: c.host})
	}
	return imapclient.Dial(addr)
}

// FetchInbox returns up to max of the newest unseen messages in the mailbox.
func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	client, err := c.dial()
	if err != nil {
		return nil, eris.Wrapf(err, "dial imap %s", c.host)
	}
	defer client.Logout()

	if err := client.Login(c.user, c.password); err != nil {
		return nil, eris.Wrap(err, "imap login")
	}
	if _, err := client.Select(label, false); err != nil {
		return nil, eris.Wrapf(err, "select mailbox %s", label)
	}

	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	ids, err := client.Search(criteria)
	if err != nil {
		return nil, eris.Wrap(err, "search unseen")
	}
	if len(ids) == 0 {
		return nil, nil
	}
	if max > 0 && len(ids) > max {
		ids = ids[len(ids)-max:]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(ids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchInternalDate, imap.FetchUid, section.FetchItem()}
	messages := make(chan *imap.Message, len(ids))
	fetchDone := make(chan error, 1)
	go func() { fetchDone <- client.Fetch(seqset, items, messages) }()

	out := make([]internal.FetchedMailMessage, 0, len(ids))
	seen := new(imap.SeqSet)
	for msg := range messages {
		if msg == nil {
			continue
		}
		body := msg.GetBody(section)
		if body == nil {
			continue
		}
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, eris.Wrapf(err, "read message uid %d", msg.Uid)
		}
		out = append(out, connectors.MessageFromRaw(connectors.ProviderIMAP, fmt.Sprintf("imap-%d", msg.Uid), msg.InternalDate, raw))
		seen.AddNum(msg.SeqNum)
	}
	if err := <-fetchDone; err != nil {
		return nil, eris.Wrap(err, "fetch messages")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if c.markSeen && !seen.Empty() {
		flags := []interface{}{imap.SeenFlag}
		if err := client.Store(seen, imap.FormatFlagsOp(imap.AddFlags, true), flags, nil); err != nil {
			return nil, eris.Wrap(err, "mark seen")
		}
	}
	return out, nil
}
