package mailer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Message struct {
	To      string
	Subject string
	Text    string
}

// Sender delivers one message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Mailer queues messages for delivery. Failures are logged and never returned.
type Mailer interface {
	Send(ctx context.Context, msg Message)
}

type Config struct {
	Transport string // sendgrid, smtp or log
	AppName   string
	From      string

	SendGridKey string

	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	Timeout time.Duration
}

// New picks the transport named in cfg. Unknown or unconfigured transports fall back to logging.
func New(cfg Config, log *zerolog.Logger) *Async {
	var s Sender
	switch strings.ToLower(cfg.Transport) {
	case "sendgrid":
		if cfg.SendGridKey != "" {
			s = NewSendGrid(cfg.SendGridKey, cfg.AppName, cfg.From)
		}
	case "smtp":
		if cfg.SMTPHost != "" {
			s = NewSMTP(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.From)
		}
	}
	if s == nil {
		if cfg.Transport != "" && cfg.Transport != "log" {
			log.Warn().Str("transport", cfg.Transport).Msg("mail transport not configured, falling back to log")
		}
		s = NewLog(log)
	}
	return NewAsync(s, cfg.AppName, cfg.Timeout, log)
}

// Async sends each message on its own goroutine.
type Async struct {
	sender     Sender
	subjPrefix string
	timeout    time.Duration
	log        *zerolog.Logger
	wg         sync.WaitGroup
}

func NewAsync(s Sender, appName string, timeout time.Duration, log *zerolog.Logger) *Async {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	prefix := ""
	if appName != "" {
		prefix = "[" + appName + "] "
	}
	return &Async{sender: s, subjPrefix: prefix, timeout: timeout, log: log}
}

func (a *Async) Send(ctx context.Context, msg Message) {
	if msg.To == "" {
		return
	}
	msg.Subject = a.subjPrefix + msg.Subject
	// the request context is usually gone by the time the mail goes out
	sendCtx := context.WithoutCancel(ctx)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		cctx, cancel := context.WithTimeout(sendCtx, a.timeout)
		defer cancel()

		if err := a.sender.Send(cctx, msg); err != nil {
			a.log.Warn().Err(err).Str("to", msg.To).Str("subject", msg.Subject).Msg("failed to send email")
			return
		}
		a.log.Info().Str("to", msg.To).Str("subject", msg.Subject).Msg("email sent")
	}()
}

// Wait blocks until queued messages are delivered or ctx ends.
func (a *Async) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("mail queue not drained: %w", ctx.Err())
	}
}
