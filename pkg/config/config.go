package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App       AppConfig
	Service   ServiceConfig
	DB        DBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Worker    WorkerConfig
	Fraud     FraudConfig
	OTP       OTPConfig
	Eventing  EventingConfig
	GCP       GCPConfig
	Outbox    OutboxConfig
	Cron      CronConfig
	Metrics   MetricsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Eventing.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"BANKMS_APP_ENV" required:"true"`
	Port         string   `envconfig:"BANKMS_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"BANKMS_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"BANKMS_LOG_WARN_STACK" default:"false"`
	AutoMigrate  bool     `envconfig:"BANKMS_AUTO_MIGRATE" default:"false"`
	CORSOrigins  []string `envconfig:"BANKMS_CORS_ORIGINS" default:"http://localhost:3000"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"BANKMS_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"BANKMS_DB_DSN"`
	Driver string `envconfig:"BANKMS_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"BANKMS_DB_HOST"`
	Port     int    `envconfig:"BANKMS_DB_PORT" default:"5432"`
	User     string `envconfig:"BANKMS_DB_USER"`
	Password string `envconfig:"BANKMS_DB_PASSWORD"`
	Name     string `envconfig:"BANKMS_DB_NAME"`
	SSLMode  string `envconfig:"BANKMS_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"BANKMS_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"BANKMS_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"BANKMS_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"BANKMS_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"BANKMS_DB_SLOW_QUERY" default:"250ms"`
}

// IsSQLite reports whether the sqlite driver was requested.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(strings.TrimSpace(db.Driver), DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"BANKMS_REDIS_URL"`
	Address      string        `envconfig:"BANKMS_REDIS_ADDR"`
	Password     string        `envconfig:"BANKMS_REDIS_PASSWORD"`
	DB           int           `envconfig:"BANKMS_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"BANKMS_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"BANKMS_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"BANKMS_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"BANKMS_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"BANKMS_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"BANKMS_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"BANKMS_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"BANKMS_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RateLimitConfig throttles money-moving requests per user and per client IP.
type RateLimitConfig struct {
	Window  time.Duration `envconfig:"BANKMS_RATE_LIMIT_WINDOW" default:"1m"`
	PerUser int           `envconfig:"BANKMS_RATE_LIMIT_PER_USER" default:"30"`
	PerIP   int           `envconfig:"BANKMS_RATE_LIMIT_PER_IP" default:"120"`
}

// WorkerConfig tunes the transaction-event dispatcher loop.
type WorkerConfig struct {
	PollInterval time.Duration `envconfig:"BANKMS_WORKER_POLL_INTERVAL" default:"2s"`
	ErrorBackoff time.Duration `envconfig:"BANKMS_WORKER_ERROR_BACKOFF" default:"1s"`
	MaxBackoff   time.Duration `envconfig:"BANKMS_WORKER_MAX_BACKOFF" default:"30s"`
	MaxDeferred  int           `envconfig:"BANKMS_WORKER_MAX_DEFERRED" default:"500"`
}

type FraudConfig struct {
	ScorerURL          string        `envconfig:"BANKMS_FRAUD_SCORER_URL" default:"http://localhost:8000"`
	ScorerTimeout      time.Duration `envconfig:"BANKMS_FRAUD_SCORER_TIMEOUT" default:"1500ms"`
	MLThreshold        float64       `envconfig:"BANKMS_FRAUD_ML_THRESHOLD" default:"0.75"`
	StepUpThreshold    string        `envconfig:"BANKMS_FRAUD_STEP_UP_THRESHOLD" default:"10000"`
	LargeDepositAmount string        `envconfig:"BANKMS_FRAUD_LARGE_DEPOSIT" default:"5000"`
	BurstWindow        time.Duration `envconfig:"BANKMS_FRAUD_BURST_WINDOW" default:"10s"`
	BurstCount         int64         `envconfig:"BANKMS_FRAUD_BURST_COUNT" default:"5"`
	RecentAlertLimit   int           `envconfig:"BANKMS_FRAUD_RECENT_ALERTS" default:"3"`
}

// StepUpAmount parses the OTP gate threshold.
func (f FraudConfig) StepUpAmount() (decimal.Decimal, error) {
	return parseAmount(EnvFraudStepUpThreshold, f.StepUpThreshold)
}

// LargeDeposit parses the advisory large-deposit threshold.
func (f FraudConfig) LargeDeposit() (decimal.Decimal, error) {
	return parseAmount(EnvFraudLargeDeposit, f.LargeDepositAmount)
}

type OTPConfig struct {
	Length        int           `envconfig:"BANKMS_OTP_LENGTH" default:"6"`
	TTL           time.Duration `envconfig:"BANKMS_OTP_TTL" default:"5m"`
	AttemptLimit  int64         `envconfig:"BANKMS_OTP_ATTEMPT_LIMIT" default:"5"`
	AttemptWindow time.Duration `envconfig:"BANKMS_OTP_ATTEMPT_WINDOW" default:"5m"`
	Retention     time.Duration `envconfig:"BANKMS_OTP_RETENTION" default:"720h"`
}

type EventingConfig struct {
	Broker         string        `envconfig:"BANKMS_EVENTING_BROKER" default:"log"`
	Topic          string        `envconfig:"BANKMS_EVENTING_TOPIC" default:"bank-transaction-events"`
	FraudTopic     string        `envconfig:"BANKMS_EVENTING_FRAUD_TOPIC" default:"bank-fraud-events"`
	NATSURL        string        `envconfig:"BANKMS_NATS_URL"`
	KafkaBrokers   []string      `envconfig:"BANKMS_KAFKA_BROKERS"`
	IdempotencyTTL time.Duration `envconfig:"BANKMS_EVENTING_IDEMPOTENCY_TTL" default:"24h"`
}

func (e EventingConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(e.Broker)) {
	case BrokerLog, BrokerPubSub:
		return nil
	case BrokerNATS:
		if strings.TrimSpace(e.NATSURL) == "" {
			return fmt.Errorf("%s is required when broker is %s", EnvNATSURL, BrokerNATS)
		}
		return nil
	case BrokerKafka:
		if len(e.KafkaBrokers) == 0 {
			return fmt.Errorf("%s is required when broker is %s", EnvKafkaBrokers, BrokerKafka)
		}
		return nil
	}
	return fmt.Errorf("unsupported %s %q", EnvEventingBroker, e.Broker)
}

type GCPConfig struct {
	ProjectID string `envconfig:"BANKMS_GCP_PROJECT_ID"`
}

// OutboxConfig tunes the outbox publisher and the retention of delivered rows.
type OutboxConfig struct {
	BatchSize    int           `envconfig:"BANKMS_OUTBOX_BATCH_SIZE" default:"50"`
	PollInterval time.Duration `envconfig:"BANKMS_OUTBOX_POLL_INTERVAL" default:"500ms"`
	MaxAttempts  int           `envconfig:"BANKMS_OUTBOX_MAX_ATTEMPTS" default:"10"`
	MaxBackoff   time.Duration `envconfig:"BANKMS_OUTBOX_MAX_BACKOFF" default:"10s"`
	Retention    time.Duration `envconfig:"BANKMS_OUTBOX_RETENTION" default:"168h"`
}

// CronConfig paces the retention jobs.
type CronConfig struct {
	Interval   time.Duration `envconfig:"BANKMS_CRON_INTERVAL" default:"1h"`
	JobTimeout time.Duration `envconfig:"BANKMS_CRON_JOB_TIMEOUT" default:"10m"`
}

type MetricsConfig struct {
	Enabled bool   `envconfig:"BANKMS_METRICS_ENABLED" default:"true"`
	Addr    string `envconfig:"BANKMS_METRICS_ADDR" default:":9102"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}
	if db.IsSQLite() {
		return fmt.Errorf("%s is required for the sqlite driver", EnvDBDSN)
	}

	missing := []string{}
	parts := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range dbPartEnvVars {
		if parts[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}

func parseAmount(env, raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing %s: %w", env, err)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("%s must be positive", env)
	}
	return amount, nil
}
