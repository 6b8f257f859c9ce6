package gmail

import (
	"context"
	"encoding/base64"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"posimport/internal"
	"posimport/internal/config"
	"posimport/internal/connectors"
)

// importQuery narrows the listing to messages that can carry a customer list.
const importQuery = "has:attachment OR subject:(customer OR customers OR contacts OR wateja)"

type Connector struct {
	service *gmail.Service
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	for _, req := range [][2]string{
		{"GMAIL_CLIENT_ID", cfg.GmailClientID},
		{"GMAIL_CLIENT_SECRET", cfg.GmailClientSecret},
		{"GMAIL_REFRESH_TOKEN", cfg.GmailRefreshToken},
	} {
		if err := cfg.Require(req[0], req[1]); err != nil {
			return nil, err
		}
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GmailClientID,
		ClientSecret: cfg.GmailClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.GmailRedirectURI,
		Scopes:       []string{gmail.GmailReadonlyScope},
	}

	tokenSource := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.GmailRefreshToken})
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, eris.Wrap(err, "create gmail service")
	}
	return &Connector{service: svc}, nil
}

func (c *Connector) FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error) {
	listResp, err := c.service.Users.Messages.List("me").
		LabelIds(label).
		Q(importQuery).
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, eris.Wrapf(err, "list gmail label %s", label)
	}

	out := make([]internal.FetchedMailMessage, 0, len(listResp.Messages))
	for _, ref := range listResp.Messages {
		if ref.Id == "" {
			continue
		}
		msg, err := c.service.Users.Messages.Get("me", ref.Id).Format("raw").Context(ctx).Do()
		if err != nil {
			return nil, eris.Wrapf(err, "get gmail message %s", ref.Id)
		}
		if msg.Raw == "" {
			continue
		}
		raw, err := decodeBase64URL(msg.Raw)
		if err != nil {
			return nil, err
		}

		var received time.Time
		if msg.InternalDate > 0 {
			received = time.UnixMilli(msg.InternalDate)
		}
		out = append(out, connectors.MessageFromRaw(connectors.ProviderGmail, ref.Id, received, raw))
	}
	return out, nil
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err != nil {
		return nil, eris.Wrap(err, "decode gmail raw payload")
	}
	return decoded, nil
}
