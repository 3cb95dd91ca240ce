package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/swagatgroup/swagatodisha-sub003/app/metrics"
	"github.com/swagatgroup/swagatodisha-sub003/app/notify"
	"github.com/swagatgroup/swagatodisha-sub003/app/query"
	"github.com/swagatgroup/swagatodisha-sub003/app/repo"
	"github.com/swagatgroup/swagatodisha-sub003/app/service"
	"github.com/swagatgroup/swagatodisha-sub003/app/session"
	"github.com/swagatgroup/swagatodisha-sub003/app/workflow"
	"github.com/swagatgroup/swagatodisha-sub003/config"
	"github.com/swagatgroup/swagatodisha-sub003/db"
	"github.com/swagatgroup/swagatodisha-sub003/helper"
	"github.com/swagatgroup/swagatodisha-sub003/route"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := config.Logger(env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, env, log); err != nil {
		log.Fatal().Stack().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, env config.EnvConfig, log zerolog.Logger) error {
	loc, err := env.Location()
	if err != nil {
		return err
	}
	m := metrics.New()

	mongoClient, mongoDB, err := db.ConnectMongo(ctx, env, log)
	if err != nil {
		return err
	}
	defer mongoClient.Disconnect(context.Background())

	applications := repo.NewMongoApplicationRepo(mongoDB, env.StoreTimeout)
	if err := applications.EnsureIndexes(ctx); err != nil {
		return err
	}

	pg, err := db.ConnectPostgres(env, log)
	if err != nil {
		return err
	}
	var users repo.UserRepository = repo.NewMemUserRepo()
	if pg != nil {
		users = repo.NewUserRepo(pg)
	}

	sinks := []notify.Sink{notify.NewLogSink(log)}
	if env.SendgridAPIKey != "" {
		sinks = append(sinks, notify.NewEmailSink(env.SendgridAPIKey, env.MailFromName, env.MailFrom, env.AppName).WithSubmitters(users))
	}
	dispatcher := notify.NewDispatcher(log, m, sinks...)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	var publisher notify.Publisher
	switch env.NotifyBackend {
	case "redis":
		rdb, err := db.ConnectRedis(ctx, env, log)
		if err != nil {
			return err
		}
		defer rdb.Close()
		q := notify.NewRedisQueue(rdb, env.RedisQueueKey, dispatcher, log)
		go q.Run(workerCtx)
		publisher = q
	default:
		q := notify.NewChannelQueue(env.NotifyQueueSize, dispatcher, log)
		q.Start(workerCtx)
		defer q.Close()
		publisher = q
	}

	sessions := session.NewResolver(loc)
	engine := workflow.New(applications, publisher, log, workflow.WithMetrics(m), workflow.WithUsers(users))
	queries := query.New(applications, sessions, log)
	tokens := helper.NewTokenIssuer(env.JWTSecret, env.JWTTTL)
	responder := service.NewResponder(log, env.Production())

	app := config.NewApp(env, log)
	route.SetupRoutes(app, route.Services{
		Auth:         service.NewAuthService(users, tokens, responder),
		Applications: service.NewApplicationService(engine, responder),
		Verification: service.NewVerificationService(engine, queries, responder),
		Staff:        service.NewStaffService(queries, sessions, responder),
		Tokens:       tokens,
		Metrics:      m,
	})

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("port", env.AppPort).Msg("server listening")
		errc <- app.Listen(":" + env.AppPort)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}
