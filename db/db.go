package db

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/swagatgroup/swagatodisha-sub003/config"
)

const connectTimeout = 10 * time.Second

// ConnectPostgres opens the user directory. An empty DSN disables it.
func ConnectPostgres(env config.EnvConfig, log zerolog.Logger) (*gorm.DB, error) {
	if env.DBDSN == "" {
		log.Warn().Msg("DB_DSN not set, user directory disabled")
		return nil, nil
	}

	pg, err := gorm.Open(postgres.Open(env.DBDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, errors.Wrap(err, "connecting to PostgreSQL")
	}

	log.Info().Msg("Connected to PostgreSQL successfully")
	return pg, nil
}

func ConnectMongo(ctx context.Context, env config.EnvConfig, log zerolog.Logger) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(env.MongoURI).SetTimeout(env.StoreTimeout))
	if err != nil {
		return nil, nil, errors.Wrap(err, "connecting to MongoDB")
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, errors.Wrap(err, "pinging MongoDB")
	}

	log.Info().Str("database", env.MongoDB).Msg("Connected to MongoDB successfully")
	return client, client.Database(env.MongoDB), nil
}

func ConnectRedis(ctx context.Context, env config.EnvConfig, log zerolog.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     env.RedisAddr,
		Password: env.RedisPassword,
	})

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "connecting to Redis")
	}

	log.Info().Str("addr", env.RedisAddr).Msg("Connected to Redis successfully")
	return client, nil
}
