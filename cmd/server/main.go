package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/petcuddles/pet-cuddles/internal/gateway"
	"github.com/petcuddles/pet-cuddles/internal/gateway/middleware"
	"github.com/petcuddles/pet-cuddles/internal/modules/alerts"
	"github.com/petcuddles/pet-cuddles/internal/modules/inbox"
	"github.com/petcuddles/pet-cuddles/internal/modules/notification"
	"github.com/petcuddles/pet-cuddles/internal/modules/notification/infrastructure/mq"
	"github.com/petcuddles/pet-cuddles/internal/shared/infrastructure/config"
	"github.com/petcuddles/pet-cuddles/internal/shared/infrastructure/database"
	"github.com/petcuddles/pet-cuddles/internal/shared/logger"
	"github.com/petcuddles/pet-cuddles/pkg/migration"
)

// options are the command-line flags. Without -migrate the server starts.
type options struct {
	migrate      string
	forceVersion int
}

func parseFlags(args []string) (options, error) {
	var o options
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.StringVar(&o.migrate, "migrate", "", "run a migration command (up, down, force, version) and exit")
	fs.IntVar(&o.forceVersion, "force-version", -1, "version recorded by -migrate=force")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.migrate == migration.CommandForce && o.forceVersion < 0 {
		return o, errors.New("-migrate=force needs -force-version")
	}
	return o, nil
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log, err := logger.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	if opts.migrate != "" {
		runner := migration.NewRunner(cfg.Migrations.Path, cfg.Database.URL(), log)
		if err := runner.Run(opts.migrate, opts.forceVersion); err != nil {
			log.Fatal("Migration failed", zap.String("command", opts.migrate), zap.Error(err))
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("Server stopped", zap.Error(err))
	}
}

// modules groups everything the router needs
type modules struct {
	notification *notification.Module
	alerts       *alerts.Module
	inbox        *inbox.Module
}

func (m modules) shutdown() {
	m.inbox.Shutdown()
	m.notification.Shutdown()
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	log.Info("Connecting to database...")
	db, err := database.NewPostgresDB(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	log.Info("Database connected")

	if !cfg.Migrations.Skip {
		if err := migration.NewRunner(cfg.Migrations.Path, cfg.Database.URL(), log).EnsureLatest(); err != nil {
			return err
		}
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb, err = database.NewRedis(cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	mods := newModules(cfg, db, rdb, log)
	defer mods.shutdown()

	mods.notification.StartRelay(ctx)

	if cfg.RabbitMQ.URL != "" {
		consumer, err := mq.NewConsumer(cfg.RabbitMQ.URL, cfg.RabbitMQ.Queue, cfg.RabbitMQ.RoutingKey, log)
		if err != nil {
			return err
		}
		defer consumer.Close()
		consumer.SetHandler(mods.notification.AlertFeedHandler())
		go func() {
			if err := consumer.Consume(ctx); err != nil {
				log.Error("Alert feed consumer stopped", zap.Error(err))
			}
		}()
	}

	server := gateway.NewServer(cfg.Server.Port, buildHandler(cfg, mods), log)
	return server.Run(ctx)
}

func newModules(cfg config.Config, db *sqlx.DB, rdb *redis.Client, log *zap.Logger) modules {
	notificationModule := notification.NewModule(db, rdb, log)
	return modules{
		notification: notificationModule,
		alerts:       alerts.NewModule(notificationModule.Service(), log),
		inbox: inbox.NewModule(inbox.Config{
			UpstreamURL:  cfg.Inbox.UpstreamURL,
			FetchTimeout: cfg.Inbox.FetchTimeout,
			PollInterval: cfg.Inbox.PollInterval,
		}, log),
	}
}

func buildHandler(cfg config.Config, mods modules) http.Handler {
	mux := gateway.SetupRoutes(gateway.RouterConfig{
		AuthMiddleware:      middleware.NewAuthMiddleware(cfg.JWT.Secret),
		NotificationHandler: mods.notification.HTTPHandler(),
		AlertsHandler:       mods.alerts.HTTPHandler(),
		InboxHandler:        mods.inbox.HTTPHandler(),
	})
	return middleware.PrometheusMiddleware(middleware.CORSMiddleware(mux, cfg.Server.AllowedOrigins))
}
