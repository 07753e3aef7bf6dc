package alerts

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikoksr/notify"
	"github.com/nikoksr/notify/service/mail"

	"github.com/zonewatch/zonewatch/pkg/types"
)

// MailConfig holds SMTP delivery settings.
type MailConfig struct {
	Host     string
	Port     int
	From     string
	To       []string
	Username string
	Password string
}

// serviceFunc builds the delivery service for one send.
type serviceFunc func() (notify.Notifier, error)

// deliver sends subject and body through a freshly built service.
// Services are not reused: the notify services keep receivers across
// AddReceivers calls.
func deliver(ctx context.Context, build serviceFunc, subject, body string) error {
	svc, err := build()
	if err != nil {
		return err
	}
	nt := notify.New()
	nt.UseServices(svc)
	return nt.Send(ctx, subject, body)
}

// Mail sends each notification as an e-mail whose subject is the message.
type Mail struct {
	cfg MailConfig

	service serviceFunc
}

// NewMail returns a mail presenter delivering over SMTP.
func NewMail(cfg MailConfig) *Mail {
	m := &Mail{cfg: cfg}
	m.service = m.smtpService
	return m
}

func (m *Mail) Name() string { return "mail" }

func (m *Mail) Present(ctx context.Context, n types.Notification) error {
	body := fmt.Sprintf(
		"%s\n\nAlert type: %s\nZone: %s\nReceived: %s\nID: %s",
		n.Message,
		n.AlertType,
		n.ZoneName,
		n.ReceivedAt.UTC().Format("2006-01-02 15:04:05 UTC"),
		n.ID,
	)

	if err := deliver(ctx, m.service, n.Message, body); err != nil {
		return fmt.Errorf("mail: send to %s: %w", strings.Join(m.cfg.To, ","), err)
	}
	return nil
}

func (m *Mail) smtpService() (notify.Notifier, error) {
	svc := mail.New(m.cfg.From, fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port))
	if m.cfg.Username != "" {
		svc.AuthenticateSMTP("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	svc.AddReceivers(m.cfg.To...)
	return svc, nil
}
