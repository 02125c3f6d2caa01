package config

const EnvPrefix = "BANKMS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DBDriverPostgres = "postgres"
	DBDriverSQLite   = "sqlite"

	BrokerLog    = "log"
	BrokerPubSub = "pubsub"
	BrokerNATS   = "nats"
	BrokerKafka  = "kafka"
)

const (
	EnvAppEnv      = "BANKMS_APP_ENV"
	EnvPort        = "BANKMS_APP_PORT"
	EnvLogLevel    = "BANKMS_LOG_LEVEL"
	EnvAutoMigrate = "BANKMS_AUTO_MIGRATE"

	EnvDBDSN    = "BANKMS_DB_DSN"
	EnvDBDriver = "BANKMS_DB_DRIVER"
	EnvDBHost   = "BANKMS_DB_HOST"
	EnvDBPort   = "BANKMS_DB_PORT"
	EnvDBUser   = "BANKMS_DB_USER"
	EnvDBName   = "BANKMS_DB_NAME"

	EnvRedisURL = "BANKMS_REDIS_URL"

	EnvJWTSecret = "BANKMS_JWT_SECRET"
	EnvJWTIssuer = "BANKMS_JWT_ISSUER"

	EnvWorkerPollInterval = "BANKMS_WORKER_POLL_INTERVAL"

	EnvFraudScorerURL       = "BANKMS_FRAUD_SCORER_URL"
	EnvFraudScorerTimeout   = "BANKMS_FRAUD_SCORER_TIMEOUT"
	EnvFraudStepUpThreshold = "BANKMS_FRAUD_STEP_UP_THRESHOLD"
	EnvFraudLargeDeposit    = "BANKMS_FRAUD_LARGE_DEPOSIT"

	EnvOTPTTL = "BANKMS_OTP_TTL"

	EnvEventingBroker = "BANKMS_EVENTING_BROKER"
	EnvNATSURL        = "BANKMS_NATS_URL"
	EnvKafkaBrokers   = "BANKMS_KAFKA_BROKERS"
)

var dbPartEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
