package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/sync/errgroup"

	"eventhub/cmd/buildCFG"
	"eventhub/internal/api/api"
	"eventhub/internal/auth"
	rabbitReader "eventhub/internal/consumerWorker"
	"eventhub/internal/mailer"
	"eventhub/internal/payment/zarinpal"
	"eventhub/internal/rabbit"
	"eventhub/internal/reconciler"
	"eventhub/internal/repo"
	"eventhub/internal/service"
	"eventhub/internal/storage"
)

func main() {
	zlog.Init()
	log := zlog.Logger

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}
	envPath := ""
	if _, err := os.Stat(".env"); err == nil {
		envPath = ".env"
	}
	cfg := config.New()
	if err := cfg.Load(configPath, envPath, ""); err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("failed to load configuration")
	}
	serverCfg := buildCFG.BuildServerConfig(cfg, &log)

	masterDSN, slaveDSNs, poolOptions, err := buildCFG.BuildDBConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build DB config")
	}
	db, err := dbpg.New(masterDSN, slaveDSNs, poolOptions)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to DB")
	}
	if err := waitForDB(db, 15, 2*time.Second); err != nil {
		log.Fatal().Err(err).Msg("DB is not reachable")
	}
	log.Info().Msg("Database connected successfully")

	repository, err := repo.NewRepository(db, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize repository")
	}
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatal().Err(err).Msg("cannot get working directory")
	}
	if err := repository.MigrateUp(filepath.Join(cwd, "migrations/postgres")); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	rabbitCfg, err := buildCFG.BuildRabbitConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load RabbitMQ config")
	}
	rmq, err := rabbit.NewRabbit(rabbitCfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	authCfg, err := buildCFG.BuildAuthConfig(cfg, &log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load auth config")
	}
	tokens := auth.NewTokenManager(authCfg)

	mail := mailer.New(buildCFG.BuildMailConfig(cfg, &log), &log)
	gateway := zarinpal.New(buildCFG.BuildPaymentConfig(cfg, &log))
	rec := reconciler.New(repository, gateway, rmq, mail, buildCFG.BuildReconcilerConfig(cfg, &log), &log)

	svcCfg := buildCFG.BuildServiceConfig(cfg, &log)
	media := buildCFG.BuildMediaConfig(cfg)
	files, err := storage.NewLocal(media.Root, strings.TrimRight(svcCfg.PublicBaseURL, "/")+media.URL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to prepare media storage")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reader := rabbitReader.NewReader(rmq, rec, &log)
	reader.Start(ctx)
	scheduler := reconciler.NewScheduler(rec)
	scheduler.Start(ctx)

	serviceInstance := service.NewService(repository, rec, tokens, mail, files, svcCfg, &log)
	app := api.NewRouters(&api.Routers{
		Service:     serviceInstance,
		Tokens:      tokens,
		Users:       repository,
		Logger:      &log,
		CORSOrigins: serverCfg.CORSOrigins,
		MediaURL:    media.URL,
		MediaRoot:   media.Root,
	})

	srv := &http.Server{
		Addr:              ":" + serverCfg.Port,
		Handler:           app,
		ReadHeaderTimeout: serverCfg.ReadTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Msgf("Starting server on %s", serverCfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Initiating shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
	}

	reader.Stop()
	scheduler.Stop()

	mailCtx, cancel := context.WithTimeout(context.Background(), serverCfg.ShutdownTimeout)
	defer cancel()
	if err := mail.Wait(mailCtx); err != nil {
		log.Warn().Err(err).Msg("pending emails were not delivered")
	}
	log.Info().Msg("Shutdown complete")
}

func waitForDB(db *dbpg.DB, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), delay)
		err = db.Master.PingContext(ctx)
		cancel()
		if err == nil {
			return nil
		}
		zlog.Logger.Warn().Err(err).Int("attempt", i+1).Msg("waiting for database")
		time.Sleep(delay)
	}
	return err
}
