package newsroom

import (
	"context"
	"fmt"
	"time"

	mail "gopkg.in/gomail.v2"

	"github.com/quietmind/newsroom/email"
)

// Dispatcher sends a newsletter to every active subscriber and records a
// per-recipient email log entry.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Newsletter) error
}

// MessageSender delivers a single prepared message. The production
// implementation dials SMTP per message; tests substitute their own.
type MessageSender interface {
	Send(m *mail.Message) error
}

type smtpSender struct {
	dialer *mail.Dialer
}

func (s *smtpSender) Send(m *mail.Message) error {
	return s.dialer.DialAndSend(m)
}

// Mailer dispatches newsletters over SMTP. Each recipient gets an email log
// row: sent on success, failed on error. Individual failures do not abort the
// batch; the whole dispatch only fails when no recipients could be loaded or
// the batch could not start.
type Mailer struct {
	store    *Store
	cfg      SMTPConfig
	siteName string
	siteURL  string
	sender   MessageSender
}

// NewMailer creates an SMTP-backed dispatcher.
func NewMailer(store *Store, cfg SMTPConfig, siteName, siteURL string) *Mailer {
	d := mail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	return &Mailer{
		store:    store,
		cfg:      cfg,
		siteName: siteName,
		siteURL:  siteURL,
		sender:   &smtpSender{dialer: d},
	}
}

// Dispatch sends the newsletter to all active subscribers. There is no
// idempotency guard: a resend produces a fresh batch of log entries for every
// subscriber, which the dashboard sums undifferentiated.
func (m *Mailer) Dispatch(ctx context.Context, n Newsletter) error {
	if m.cfg.Host == "" {
		return fmt.Errorf("smtp is not configured")
	}
	subs, err := m.store.ListActiveSubscribers()
	if err != nil {
		return fmt.Errorf("load subscribers: %w", err)
	}

	for _, sub := range subs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		token, err := newToken()
		if err != nil {
			return err
		}
		status := EmailStatusSent
		if err := m.sendOne(n, sub, token); err != nil {
			status = EmailStatusFailed
		}
		logEntry := &EmailLog{
			NewsletterID: n.ID,
			Recipient:    sub.Email,
			Status:       status,
			Token:        token,
			CreatedAt:    time.Now().UTC(),
		}
		if err := m.store.InsertEmailLog(logEntry); err != nil {
			return fmt.Errorf("log send to %s: %w", sub.Email, err)
		}
	}
	return nil
}

func (m *Mailer) sendOne(n Newsletter, sub Subscriber, token string) error {
	body, err := email.Render(email.Message{
		SiteName:       m.siteName,
		SiteURL:        m.siteURL,
		Title:          n.Title,
		Excerpt:        n.Excerpt,
		Content:        n.Content,
		Category:       n.Category,
		OpenPixelURL:   BuildURL(m.siteURL, "t", "open", token),
		UnsubscribeURL: BuildURL(m.siteURL, "unsubscribe", sub.Token),
	})
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetAddressHeader("From", m.cfg.From, m.siteName)
	msg.SetHeader("To", sub.Email)
	msg.SetHeader("Subject", n.Title)
	msg.SetBody("text/html", body)
	return m.sender.Send(msg)
}
