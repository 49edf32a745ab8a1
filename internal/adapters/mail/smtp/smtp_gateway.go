package smtp

import (
	"context"
	"fmt"

	"github.com/nordfeed/identity-service/internal/domain/identity/notify"
	"github.com/nordfeed/identity-service/internal/infra/config"
	gomail "github.com/wneessen/go-mail"
)

const inviteSubject = "Invitation to newsfeed"

type SMTPGateway struct {
	client *gomail.Client
	from   string
}

var _ notify.Gateway = (*SMTPGateway)(nil)

func NewSMTPGateway(cfg *config.Config) (*SMTPGateway, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.SMTPPort),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUsername),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}

	client, err := gomail.NewClient(cfg.SMTPHost, opts...)
	if err != nil {
		return nil, err
	}

	return &SMTPGateway{client: client, from: cfg.MailFrom}, nil
}

// SendInvite blocks until the SMTP dialog finishes or ctx expires; the
// workflow's answer to the caller is gated on this result.
func (g *SMTPGateway) SendInvite(ctx context.Context, email, link string) error {
	msg := gomail.NewMsg()
	if err := msg.From(g.from); err != nil {
		return err
	}
	if err := msg.To(email); err != nil {
		return err
	}
	msg.Subject(inviteSubject)
	msg.SetBodyString(gomail.TypeTextPlain, fmt.Sprintf(
		"Click this link to register: %s\nThe link is valid for 15 minutes.", link,
	))

	return g.client.DialAndSendWithContext(ctx, msg)
}
