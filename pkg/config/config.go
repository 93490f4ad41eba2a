package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"
)

type Config struct {
	App      AppConfig
	Platform PlatformConfig
	Polling  PollingConfig
	Workflow WorkflowConfig
	Delta    DeltaConfig
	DB       DBConfig
	Redis    RedisConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	BigQuery BigQueryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.Platform.validate(); err != nil {
		return nil, err
	}
	if err := cfg.DB.validate(); err != nil {
		return nil, err
	}
	if (cfg.PubSub.Enabled() || cfg.BigQuery.Enabled()) && strings.TrimSpace(cfg.GCP.ProjectID) == "" {
		return nil, fmt.Errorf("%s is required to export delta changes", EnvGCPProjectID)
	}
	return &cfg, nil
}

// Secrets returns the configured credentials that must never be logged.
func (c *Config) Secrets() []string {
	var out []string
	for _, s := range []string{c.Platform.Token, c.Redis.Password} {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

type AppConfig struct {
	Env          string `envconfig:"TTD_APP_ENV" default:"dev"`
	Port         string `envconfig:"TTD_APP_PORT" default:"8080"`
	LogLevel     string `envconfig:"TTD_LOG_LEVEL" default:"info"`
	LogFormat    string `envconfig:"TTD_LOG_FORMAT" default:"json"`
	LogWarnStack bool   `envconfig:"TTD_LOG_WARN_STACK" default:"false"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// PlatformConfig selects the ad platform endpoints and credentials.
type PlatformConfig struct {
	Environment string        `envconfig:"TTD_PLATFORM_ENV" default:"sandbox"`
	Token       string        `envconfig:"TTD_AUTH_TOKEN" required:"true"`
	RESTURL     string        `envconfig:"TTD_REST_URL"`
	GraphQLURL  string        `envconfig:"TTD_GRAPHQL_URL"`
	HTTPTimeout time.Duration `envconfig:"TTD_HTTP_TIMEOUT" default:"30s"`
}

// BaseURLs returns the REST and GraphQL roots, honoring explicit overrides.
func (p PlatformConfig) BaseURLs() (rest string, graphql string) {
	switch strings.ToLower(strings.TrimSpace(p.Environment)) {
	case PlatformProduction:
		rest, graphql = ProductionRESTURL, ProductionGraphQLURL
	default:
		rest, graphql = SandboxRESTURL, SandboxGraphQLURL
	}
	if p.RESTURL != "" {
		rest = p.RESTURL
	}
	if p.GraphQLURL != "" {
		graphql = p.GraphQLURL
	}
	return strings.TrimRight(rest, "/"), graphql
}

func (p PlatformConfig) validate() error {
	switch strings.ToLower(strings.TrimSpace(p.Environment)) {
	case PlatformSandbox, PlatformProduction:
		return nil
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvPlatformEnv, PlatformSandbox, PlatformProduction, p.Environment)
	}
}

type PollingConfig struct {
	BulkInterval  time.Duration `envconfig:"TTD_BULK_POLL_INTERVAL" default:"30s"`
	BulkMaxWait   time.Duration `envconfig:"TTD_BULK_POLL_MAX_WAIT" default:"30m"`
	CloneInterval time.Duration `envconfig:"TTD_CLONE_POLL_INTERVAL" default:"10s"`
	CloneMaxWait  time.Duration `envconfig:"TTD_CLONE_POLL_MAX_WAIT" default:"10m"`
}

// WorkflowConfig carries the entity IDs and knobs each workflow acts on.
type WorkflowConfig struct {
	PartnerID    string `envconfig:"TTD_PARTNER_ID"`
	AdvertiserID string `envconfig:"TTD_ADVERTISER_ID"`
	CampaignID   string `envconfig:"TTD_CAMPAIGN_ID"`
	AdGroupID    string `envconfig:"TTD_AD_GROUP_ID"`
	SeedID       string `envconfig:"TTD_SEED_ID"`

	CloneNames           []string `envconfig:"TTD_CLONE_NAMES"`
	UpgradeClonesToKokai bool     `envconfig:"TTD_CLONE_UPGRADE_KOKAI" default:"false"`

	CampaignBudget decimal.Decimal `envconfig:"TTD_CAMPAIGN_BUDGET" default:"2000"`
	BulkCount      int             `envconfig:"TTD_BULK_CAMPAIGN_COUNT" default:"9"`

	SeedName                 string `envconfig:"TTD_SEED_NAME" default:"Seed from API"`
	SeedRename               string `envconfig:"TTD_SEED_RENAME"`
	FirstPartyLimit          int    `envconfig:"TTD_FIRST_PARTY_LIMIT" default:"3"`
	AlternativeFirstPartyIDs int    `envconfig:"TTD_FIRST_PARTY_ALTERNATIVES" default:"1"`

	ReportTile   string `envconfig:"TTD_REPORT_TILE" default:"OVERVIEW"`
	ReportType   string `envconfig:"TTD_REPORT_TYPE"`
	ReportOutput string `envconfig:"TTD_REPORT_OUTPUT"`
}

type DeltaConfig struct {
	StartingVersion     int64         `envconfig:"TTD_DELTA_STARTING_VERSION" default:"0"`
	AdGroupLastVersion  *int64        `envconfig:"TTD_DELTA_AD_GROUP_LAST_VERSION"`
	AdvertiserChunkSize int           `envconfig:"TTD_DELTA_ADVERTISER_CHUNK_SIZE" default:"100"`
	PageSize            int           `envconfig:"TTD_DELTA_PAGE_SIZE" default:"1000"`
	SyncInterval        time.Duration `envconfig:"TTD_DELTA_SYNC_INTERVAL" default:"15m"`
	Kinds               []string      `envconfig:"TTD_DELTA_KINDS" default:"advertisers,creatives,tracking_tags"`
	LockTTL             time.Duration `envconfig:"TTD_DELTA_LOCK_TTL" default:"10m"`
}

type DBConfig struct {
	Driver      string `envconfig:"TTD_DB_DRIVER" default:"sqlite"`
	DSN         string `envconfig:"TTD_DB_DSN" default:"file:ttd_delta.db?_foreign_keys=on"`
	AutoMigrate bool   `envconfig:"TTD_DB_AUTO_MIGRATE" default:"false"`

	MaxOpenConns    int           `envconfig:"TTD_DB_MAX_OPEN_CONNS" default:"10"`
	MaxIdleConns    int           `envconfig:"TTD_DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"TTD_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"TTD_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

func (db DBConfig) validate() error {
	switch db.Driver {
	case DBDriverSQLite, DBDriverPostgres:
	default:
		return fmt.Errorf("%s must be %q or %q, got %q", EnvDBDriver, DBDriverSQLite, DBDriverPostgres, db.Driver)
	}
	if strings.TrimSpace(db.DSN) == "" {
		return fmt.Errorf("%s is required", EnvDBDSN)
	}
	return nil
}

// RedisConfig is optional; an empty URL keeps checkpoints in memory.
type RedisConfig struct {
	URL          string        `envconfig:"TTD_REDIS_URL"`
	Address      string        `envconfig:"TTD_REDIS_ADDR"`
	Password     string        `envconfig:"TTD_REDIS_PASSWORD"`
	DB           int           `envconfig:"TTD_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"TTD_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"TTD_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"TTD_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"TTD_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"TTD_REDIS_WRITE_TIMEOUT" default:"5s"`
}

func (r RedisConfig) Enabled() bool {
	return r.URL != "" || r.Address != ""
}

// GCPConfig is only read when delta changes are exported.
type GCPConfig struct {
	ProjectID              string `envconfig:"TTD_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"TTD_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"TTD_GOOGLE_APPLICATION_CREDENTIALS"`
}

// PubSubConfig names the topic recorded delta changes are published to.
type PubSubConfig struct {
	DeltaTopic string `envconfig:"TTD_PUBSUB_DELTA_TOPIC"`
}

func (p PubSubConfig) Enabled() bool {
	return strings.TrimSpace(p.DeltaTopic) != ""
}

// BigQueryConfig names the table recorded delta changes are streamed to.
type BigQueryConfig struct {
	Dataset      string `envconfig:"TTD_BIGQUERY_DATASET"`
	ChangesTable string `envconfig:"TTD_BIGQUERY_CHANGES_TABLE" default:"delta_changes"`
	// CreateTable creates a missing changes table instead of failing startup.
	CreateTable bool `envconfig:"TTD_BIGQUERY_CREATE_TABLE" default:"false"`
}

func (b BigQueryConfig) Enabled() bool {
	return strings.TrimSpace(b.Dataset) != ""
}
