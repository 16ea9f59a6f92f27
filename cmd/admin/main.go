package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/zlog"
	"golang.org/x/term"

	"eventhub/cmd/buildCFG"
	"eventhub/internal/mailer"
	"eventhub/internal/payment/zarinpal"
	"eventhub/internal/rabbit"
	"eventhub/internal/reconciler"
	"eventhub/internal/repo"
)

func main() {
	zlog.Init()
	if err := newRootCmd(openDeps).Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the server's config file, then .env.<ENV> if present, then the environment.
// POSTGRES_MASTER_DSN overrides postgres.master_dsn.
func loadConfig(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault("migrations_dir", "migrations/postgres")

	if _, err := os.Stat(path); err == nil {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	env := strings.ToLower(os.Getenv("ENV"))
	if env == "" {
		env = "dev"
	}
	dotEnv := filepath.Join(filepath.Dir(path), ".env."+env)
	if _, err := os.Stat(dotEnv); err == nil {
		if err := godotenv.Load(dotEnv); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", dotEnv, err)
		}
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func openDeps(v *viper.Viper) (*commandLine, error) {
	log := zlog.Logger
	master, slaves, opts, err := buildCFG.BuildDBConfig(v, &log)
	if err != nil {
		return nil, err
	}
	db, err := dbpg.New(master, slaves, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to DB: %w", err)
	}
	repository, err := repo.NewRepository(db, &log)
	if err != nil {
		db.Master.Close()
		return nil, err
	}

	cli := &commandLine{
		users:         repository,
		migrator:      repository,
		migrationsDir: v.GetString("migrations_dir"),
		readPassword:  term.ReadPassword,
		close:         func() { db.Master.Close() },
	}
	cli.reconcile = func(ctx context.Context) (*reconciler.Report, error) {
		rabbitCfg, err := buildCFG.BuildRabbitConfig(v, &log)
		if err != nil {
			return nil, err
		}
		rmq, err := rabbit.NewRabbit(rabbitCfg, &log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		defer rmq.Close()

		mail := mailer.New(buildCFG.BuildMailConfig(v, &log), &log)
		gateway := zarinpal.New(buildCFG.BuildPaymentConfig(v, &log))
		rec := reconciler.New(repository, gateway, rmq, mail, buildCFG.BuildReconcilerConfig(v, &log), &log)

		rep, err := rec.RunOnce(ctx)
		if werr := mail.Wait(ctx); werr != nil {
			log.Warn().Err(werr).Msg("pending emails were not delivered")
		}
		return rep, err
	}
	return cli, nil
}
