package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	EnvPrefix = "permitflow"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	EnvDBDSN  = "PERMITFLOW_DB_DSN"
	EnvDBHost = "PERMITFLOW_DB_HOST"
	EnvDBUser = "PERMITFLOW_DB_USER"
	EnvDBName = "PERMITFLOW_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

type Config struct {
	App          AppConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Documents    DocumentsConfig
	OCR          OCRConfig
	PubSub       PubSubConfig
	RateLimit    RateLimitConfig
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
	Env          string `envconfig:"PERMITFLOW_APP_ENV" required:"true"`
	Port         string `envconfig:"PERMITFLOW_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"PERMITFLOW_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"PERMITFLOW_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"PERMITFLOW_DB_DSN"`
	Driver string `envconfig:"PERMITFLOW_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"PERMITFLOW_DB_HOST"`
	LegacyPort     int    `envconfig:"PERMITFLOW_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"PERMITFLOW_DB_USER"`
	LegacyPassword string `envconfig:"PERMITFLOW_DB_PASSWORD"`
	LegacyName     string `envconfig:"PERMITFLOW_DB_NAME"`
	LegacySSLMode  string `envconfig:"PERMITFLOW_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"PERMITFLOW_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"PERMITFLOW_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"PERMITFLOW_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"PERMITFLOW_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"PERMITFLOW_REDIS_URL" required:"true"`
	Address      string        `envconfig:"PERMITFLOW_REDIS_ADDR"`
	Password     string        `envconfig:"PERMITFLOW_REDIS_PASSWORD"`
	DB           int           `envconfig:"PERMITFLOW_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"PERMITFLOW_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"PERMITFLOW_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"PERMITFLOW_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"PERMITFLOW_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"PERMITFLOW_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"PERMITFLOW_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"PERMITFLOW_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"PERMITFLOW_JWT_EXPIRATION_MINUTES" required:"true"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"PERMITFLOW_AUTO_MIGRATE" default:"false"`
	VirusScan   bool `envconfig:"PERMITFLOW_ENABLE_VIRUS_SCAN" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"PERMITFLOW_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"PERMITFLOW_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"PERMITFLOW_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"PERMITFLOW_GCS_BUCKET_NAME" required:"true"`
	DownloadURLExpiry time.Duration `envconfig:"PERMITFLOW_GCS_DOWNLOAD_URL_EXPIRY" default:"1h"`
	UploadURLExpiry   time.Duration `envconfig:"PERMITFLOW_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
}

type DocumentsConfig struct {
	MaxUploadMB    int `envconfig:"PERMITFLOW_MAX_UPLOAD_MB" default:"100"`
	ImageMaxWidth  int `envconfig:"PERMITFLOW_IMAGE_MAX_WIDTH" default:"4096"`
	ImageMaxHeight int `envconfig:"PERMITFLOW_IMAGE_MAX_HEIGHT" default:"4096"`
	ImageQuality   int `envconfig:"PERMITFLOW_IMAGE_QUALITY" default:"90"`
}

type OCRConfig struct {
	BaseURL          string        `envconfig:"PERMITFLOW_OCR_SERVICE_URL" default:"http://localhost:8001"`
	Timeout          time.Duration `envconfig:"PERMITFLOW_OCR_TIMEOUT" default:"60s"`
	BatchConcurrency int           `envconfig:"PERMITFLOW_OCR_BATCH_CONCURRENCY" default:"3"`
}

type RateLimitConfig struct {
	Window   time.Duration `envconfig:"PERMITFLOW_RATE_LIMIT_WINDOW" default:"1m"`
	Requests int           `envconfig:"PERMITFLOW_RATE_LIMIT_REQUESTS" default:"120"`
}

type PubSubConfig struct {
	StorageEventsTopic        string `envconfig:"PERMITFLOW_PUBSUB_STORAGE_EVENTS_TOPIC"`
	StorageEventsSubscription string `envconfig:"PERMITFLOW_PUBSUB_STORAGE_EVENTS_SUBSCRIPTION"`
}

// MaxUploadBytes converts the configured megabyte ceiling into bytes.
func (d DocumentsConfig) MaxUploadBytes() int64 {
	return int64(d.MaxUploadMB) * 1024 * 1024
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
