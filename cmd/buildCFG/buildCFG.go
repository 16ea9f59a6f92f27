package buildCFG

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/dbpg"

	"eventhub/internal/auth"
	"eventhub/internal/mailer"
	"eventhub/internal/payment/zarinpal"
	"eventhub/internal/rabbit"
	"eventhub/internal/reconciler"
	"eventhub/internal/service"
)

// Source is satisfied by both *config.Config and *viper.Viper.
type Source interface {
	GetString(key string) string
	GetInt(key string) int
	GetBool(key string) bool
}

type ServerConfig struct {
	Port            string
	ShutdownTimeout time.Duration
	ReadTimeout     time.Duration
	CORSOrigins     []string
}

type MediaConfig struct {
	Root string
	URL  string
}

func str(src Source, key, def string) string {
	if v := strings.TrimSpace(src.GetString(key)); v != "" {
		return v
	}
	return def
}

func num(src Source, key string, def int) int {
	if v := src.GetInt(key); v > 0 {
		return v
	}
	return def
}

func dur(src Source, key string, def time.Duration, log *zerolog.Logger) time.Duration {
	raw := strings.TrimSpace(src.GetString(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		log.Warn().Str("key", key).Str("value", raw).Dur("default", def).Msg("invalid duration in config, using default")
		return def
	}
	return d
}

func list(src Source, key string) []string {
	var out []string
	for _, part := range strings.Split(src.GetString(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func BuildServerConfig(src Source, log *zerolog.Logger) ServerConfig {
	cfg := ServerConfig{
		Port:            str(src, "server.port", "8000"),
		ShutdownTimeout: dur(src, "server.shutdown_timeout", 10*time.Second, log),
		ReadTimeout:     dur(src, "server.read_timeout", 15*time.Second, log),
		CORSOrigins:     list(src, "server.cors_origins"),
	}
	log.Info().Str("port", cfg.Port).Msg("server config loaded")
	return cfg
}

func BuildDBConfig(src Source, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	master := str(src, "postgres.master_dsn", "")
	if master == "" {
		return "", nil, nil, fmt.Errorf("postgres.master_dsn is required")
	}
	opts := &dbpg.Options{
		MaxOpenConns:    num(src, "postgres.max_open_conns", 20),
		MaxIdleConns:    num(src, "postgres.max_idle_conns", 5),
		ConnMaxLifetime: dur(src, "postgres.conn_max_lifetime", 30*time.Minute, log),
	}
	slaves := list(src, "postgres.slave_dsns")
	log.Info().Int("slaves", len(slaves)).Int("max_open_conns", opts.MaxOpenConns).Msg("database config loaded")
	return master, slaves, opts, nil
}

func BuildRabbitConfig(src Source, log *zerolog.Logger) (rabbit.Config, error) {
	cfg := rabbit.Config{
		URL:      str(src, "rabbitmq.url", ""),
		Exchange: str(src, "rabbitmq.exchange", "payment_timeouts"),
		Queue:    str(src, "rabbitmq.queue", "payment_timeout_checks"),
		Prefetch: num(src, "rabbitmq.prefetch", 10),
	}
	if cfg.URL == "" {
		return cfg, fmt.Errorf("rabbitmq.url is required")
	}
	log.Info().Str("exchange", cfg.Exchange).Str("queue", cfg.Queue).Msg("rabbitmq config loaded")
	return cfg, nil
}

func BuildAuthConfig(src Source, log *zerolog.Logger) (auth.TokenConfig, error) {
	cfg := auth.TokenConfig{
		Secret:        str(src, "auth.jwt_secret", ""),
		Issuer:        str(src, "auth.issuer", "eventhub"),
		AccessTTL:     dur(src, "auth.access_ttl", 30*time.Minute, log),
		RefreshTTL:    dur(src, "auth.refresh_ttl", 7*24*time.Hour, log),
		RefreshWindow: dur(src, "auth.refresh_window", 30*24*time.Hour, log),
	}
	if len(cfg.Secret) < 16 {
		return cfg, fmt.Errorf("auth.jwt_secret must be at least 16 characters")
	}
	return cfg, nil
}

func BuildPaymentConfig(src Source, log *zerolog.Logger) zarinpal.Config {
	cfg := zarinpal.Config{
		MerchantID:  str(src, "payment.merchant_id", ""),
		CallbackURL: str(src, "payment.callback_url", ""),
		Sandbox:     src.GetBool("payment.sandbox"),
		BaseURL:     str(src, "payment.base_url", ""),
		Timeout:     dur(src, "payment.timeout", 15*time.Second, log),
	}
	if cfg.MerchantID == "" {
		log.Warn().Msg("payment.merchant_id is empty, gateway requests will be rejected")
	}
	if cfg.CallbackURL == "" {
		log.Warn().Msg("payment.callback_url is empty, payments cannot be started")
	}
	return cfg
}

func BuildMailConfig(src Source, log *zerolog.Logger) mailer.Config {
	cfg := mailer.Config{
		Transport:    str(src, "mail.transport", "log"),
		AppName:      str(src, "mail.app_name", "EventHub"),
		From:         str(src, "mail.from", "no-reply@eventhub.local"),
		SendGridKey:  str(src, "mail.sendgrid_key", ""),
		SMTPHost:     str(src, "mail.smtp_host", ""),
		SMTPPort:     num(src, "mail.smtp_port", 587),
		SMTPUser:     str(src, "mail.smtp_user", ""),
		SMTPPassword: str(src, "mail.smtp_password", ""),
		Timeout:      dur(src, "mail.timeout", 20*time.Second, log),
	}
	log.Info().Str("transport", cfg.Transport).Msg("mail config loaded")
	return cfg
}

func BuildReconcilerConfig(src Source, log *zerolog.Logger) reconciler.Config {
	return reconciler.Config{
		FrontendBaseURL: str(src, "frontend.base_url", "http://localhost:3000"),
		SuccessPath:     str(src, "frontend.payment_success_path", "/payment/success"),
		FailurePath:     str(src, "frontend.payment_failure_path", "/payment/failure"),
		PaymentTimeout:  dur(src, "reconciler.payment_timeout", 31*time.Minute, log),
		StaleAfter:      dur(src, "reconciler.stale_after", 35*time.Minute, log),
		Interval:        dur(src, "reconciler.interval", 10*time.Minute, log),
		LockTTL:         dur(src, "reconciler.lock_ttl", 9*time.Minute, log),
	}
}

func BuildMediaConfig(src Source) MediaConfig {
	return MediaConfig{
		Root: str(src, "media.root", "./media"),
		URL:  str(src, "media.url", "/media"),
	}
}

func BuildServiceConfig(src Source, log *zerolog.Logger) service.Config {
	return service.Config{
		VerificationTTL: dur(src, "service.verification_ttl", 10*time.Minute, log),
		PublicBaseURL:   str(src, "service.public_base_url", "http://localhost:8000"),
		MaxUploadBytes:  int64(num(src, "service.max_upload_mb", 5)) << 20,
	}
}
