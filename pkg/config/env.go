package config

const (
	EnvPrefix = "NEXUS"

	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"

	EnvAppEnv     = "NEXUS_APP_ENV"
	EnvPort       = "NEXUS_APP_PORT"
	EnvDBDSN      = "NEXUS_DB_DSN"
	EnvDBDriver   = "NEXUS_DB_DRIVER"
	EnvRedisURL   = "NEXUS_REDIS_URL"
	EnvJWTSecret  = "NEXUS_JWT_SECRET"
	EnvJWTIssuer  = "NEXUS_JWT_ISSUER"
	EnvJWTExpMins = "NEXUS_JWT_EXPIRATION_MINUTES"
	EnvAPIURL     = "NEXUS_API_URL"
	EnvToken      = "NEXUS_TOKEN"
)
