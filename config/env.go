package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type EnvConfig struct {
	AppPort string `envconfig:"APP_PORT" default:"3000"`
	AppEnv  string `envconfig:"APP_ENV" default:"development"`
	AppName string `envconfig:"APP_NAME" default:"Swagat Admissions"`

	DBDSN    string `envconfig:"DB_DSN"`
	MongoURI string `envconfig:"MONGO_URI" default:"mongodb://localhost:27017"`
	MongoDB  string `envconfig:"MONGO_DB_NAME" default:"admissions"`

	JWTSecret string        `envconfig:"JWT_SECRET" required:"true"`
	JWTTTL    time.Duration `envconfig:"JWT_TTL" default:"24h"`

	LogLevel        Level         `envconfig:"LOG_LEVEL" default:"info"`
	SessionTimezone string        `envconfig:"SESSION_TIMEZONE" default:"UTC"`
	StoreTimeout    time.Duration `envconfig:"STORE_TIMEOUT" default:"10s"`

	NotifyBackend   string `envconfig:"NOTIFY_BACKEND" default:"memory"`
	NotifyQueueSize int    `envconfig:"NOTIFY_QUEUE_SIZE" default:"1024"`
	RedisAddr       string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword   string `envconfig:"REDIS_PASSWORD"`
	RedisQueueKey   string `envconfig:"REDIS_QUEUE_KEY" default:"admissions:notifications"`

	SendgridAPIKey string `envconfig:"SENDGRID_API_KEY"`
	MailFrom       string `envconfig:"MAIL_FROM" default:"admissions@swagatodisha.com"`
	MailFromName   string `envconfig:"MAIL_FROM_NAME" default:"Swagat Admissions"`
}

func (e EnvConfig) Production() bool {
	return e.AppEnv == "production"
}

// Location is the time zone academic sessions are resolved in.
func (e EnvConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(e.SessionTimezone)
	return loc, errors.Wrapf(err, "loading SESSION_TIMEZONE %q", e.SessionTimezone)
}

// Level decodes LOG_LEVEL into a zerolog level.
type Level zerolog.Level

func (l *Level) Decode(value string) error {
	level, err := zerolog.ParseLevel(value)
	if err != nil {
		return err
	}
	*l = Level(level)
	return nil
}

// LoadEnv reads .env when present and then the process environment.
func LoadEnv() (EnvConfig, error) {
	var env EnvConfig
	_ = godotenv.Load()
	err := envconfig.Process("", &env)
	return env, errors.Wrap(err, "loading configuration")
}
