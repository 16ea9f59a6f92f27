package mailer

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

const (
	sendGridHost     = "https://api.sendgrid.com"
	sendGridEndpoint = "/v3/mail/send"
)

type SendGrid struct {
	key  string
	from *sgmail.Email
}

func NewSendGrid(key, appName, from string) *SendGrid {
	return &SendGrid{key: key, from: sgmail.NewEmail(appName, from)}
}

func (s *SendGrid) Send(ctx context.Context, msg Message) error {
	p := sgmail.NewPersonalization()
	p.Subject = msg.Subject
	p.AddTos(sgmail.NewEmail("", msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))

	req := sendgrid.GetRequest(s.key, sendGridEndpoint, sendGridHost)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.MakeRequestWithContext(ctx, req)
	if err != nil {
		return fmt.Errorf("sendgrid: %w", err)
	}
	if res.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("sendgrid: status %d: %s", res.StatusCode, res.Body)
	}
	return nil
}

// SMTP sends through a plain-auth relay. Credentials come from configuration only.
type SMTP struct {
	addr string
	host string
	auth smtp.Auth
	from string
}

func NewSMTP(host string, port int, user, password, from string) *SMTP {
	if port == 0 {
		port = 587
	}
	var auth smtp.Auth
	if user != "" {
		auth = smtp.PlainAuth("", user, password, host)
	}
	return &SMTP{addr: net.JoinHostPort(host, strconv.Itoa(port)), host: host, auth: auth, from: from}
}

func (s *SMTP) Send(ctx context.Context, msg Message) error {
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		s.from, msg.To, msg.Subject, strings.ReplaceAll(msg.Text, "\n", "\r\n"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- smtp.SendMail(s.addr, s.auth, s.from, []string{msg.To}, []byte(body))
	}()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("smtp: %w", ctx.Err())
	}
}

// Log only records the message. Used in development.
type Log struct {
	log *zerolog.Logger
}

func NewLog(log *zerolog.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Send(_ context.Context, msg Message) error {
	l.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg(msg.Text)
	return nil
}
