package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App     AppConfig
	Service ServiceConfig
	DB      DBConfig
	Redis   RedisConfig
	JWT     JWTConfig
	Session SessionConfig
	Carts   CartsConfig
	GCP     GCPConfig
	PubSub  PubSubConfig
	Flags   FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"ESTANQUILLO_APP_ENV" required:"true"`
	Port         string `envconfig:"ESTANQUILLO_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"ESTANQUILLO_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"ESTANQUILLO_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"ESTANQUILLO_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"ESTANQUILLO_DB_DSN"`
	Driver string `envconfig:"ESTANQUILLO_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"ESTANQUILLO_DB_HOST"`
	LegacyPort     int    `envconfig:"ESTANQUILLO_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"ESTANQUILLO_DB_USER"`
	LegacyPassword string `envconfig:"ESTANQUILLO_DB_PASSWORD"`
	LegacyName     string `envconfig:"ESTANQUILLO_DB_NAME"`
	LegacySSLMode  string `envconfig:"ESTANQUILLO_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"ESTANQUILLO_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"ESTANQUILLO_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"ESTANQUILLO_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"ESTANQUILLO_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"ESTANQUILLO_REDIS_URL" required:"true"`
	Address      string        `envconfig:"ESTANQUILLO_REDIS_ADDR"`
	Password     string        `envconfig:"ESTANQUILLO_REDIS_PASSWORD"`
	DB           int           `envconfig:"ESTANQUILLO_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"ESTANQUILLO_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"ESTANQUILLO_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"ESTANQUILLO_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"ESTANQUILLO_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"ESTANQUILLO_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"ESTANQUILLO_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"ESTANQUILLO_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"ESTANQUILLO_JWT_EXPIRATION_MINUTES" default:"480"`
}

// SessionConfig tunes the price-edit authorization lifecycle.
type SessionConfig struct {
	TTL            time.Duration `envconfig:"ESTANQUILLO_SESSION_TTL" default:"5m"`
	SweepInterval  time.Duration `envconfig:"ESTANQUILLO_SESSION_SWEEP_INTERVAL" default:"30s"`
	LegacyLifetime time.Duration `envconfig:"ESTANQUILLO_SESSION_LEGACY_LIFETIME" default:"10m"`
}

// CartsConfig bounds how many carts a device may keep open at once.
type CartsConfig struct {
	CompactCap int `envconfig:"ESTANQUILLO_CARTS_COMPACT_CAP" default:"5"`
	FullCap    int `envconfig:"ESTANQUILLO_CARTS_FULL_CAP" default:"10"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"ESTANQUILLO_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"ESTANQUILLO_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"ESTANQUILLO_GOOGLE_APPLICATION_CREDENTIALS"`
}

type PubSubConfig struct {
	SessionTopic        string `envconfig:"ESTANQUILLO_PUBSUB_SESSION_TOPIC"`
	SessionSubscription string `envconfig:"ESTANQUILLO_PUBSUB_SESSION_SUBSCRIPTION"`
}

// Enabled reports whether the cross-instance notification bridge is configured.
func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.SessionTopic) != "" && strings.TrimSpace(p.SessionSubscription) != ""
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"ESTANQUILLO_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"ESTANQUILLO_AUTO_MIGRATE" default:"false"`
}

// Cap returns the cart list bound for the given device profile string.
func (c CartsConfig) Cap(profile string) int {
	if strings.EqualFold(strings.TrimSpace(profile), "compact") {
		return c.CompactCap
	}
	return c.FullCap
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}

	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
