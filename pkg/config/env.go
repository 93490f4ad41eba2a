package config

const EnvPrefix = "TTD"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	PlatformSandbox    = "sandbox"
	PlatformProduction = "production"

	DBDriverSQLite   = "sqlite"
	DBDriverPostgres = "postgres"
)

const (
	SandboxRESTURL       = "https://ext-api.sb.thetradedesk.com/v3"
	SandboxGraphQLURL    = "https://ext-api.sb.thetradedesk.com/graphql"
	ProductionRESTURL    = "https://api.thetradedesk.com/v3"
	ProductionGraphQLURL = "https://desk.thetradedesk.com/graphql"
)

const (
	EnvAppEnv      = "TTD_APP_ENV"
	EnvPort        = "TTD_APP_PORT"
	EnvLogLevel    = "TTD_LOG_LEVEL"
	EnvPlatformEnv = "TTD_PLATFORM_ENV"
	EnvAuthToken   = "TTD_AUTH_TOKEN"
	EnvRESTURL     = "TTD_REST_URL"
	EnvGraphQLURL  = "TTD_GRAPHQL_URL"

	EnvAdvertiserID   = "TTD_ADVERTISER_ID"
	EnvCampaignID     = "TTD_CAMPAIGN_ID"
	EnvCloneNames     = "TTD_CLONE_NAMES"
	EnvCampaignBudget = "TTD_CAMPAIGN_BUDGET"

	EnvDeltaKinds          = "TTD_DELTA_KINDS"
	EnvDeltaAdGroupVersion = "TTD_DELTA_AD_GROUP_LAST_VERSION"
	EnvBulkPollInterval    = "TTD_BULK_POLL_INTERVAL"
	EnvClonePollMaxWait    = "TTD_CLONE_POLL_MAX_WAIT"
	EnvDBDriver            = "TTD_DB_DRIVER"
	EnvDBDSN               = "TTD_DB_DSN"
	EnvRedisURL            = "TTD_REDIS_URL"
	EnvGCPProjectID        = "TTD_GCP_PROJECT_ID"
	EnvPubSubDeltaTopic    = "TTD_PUBSUB_DELTA_TOPIC"
	EnvBigQueryDataset     = "TTD_BIGQUERY_DATASET"
)
