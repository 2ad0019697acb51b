package config

// EnvPrefix is passed to envconfig; individual fields carry explicit
// SARVA_* tags so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "SARVA_DB_DSN"
	EnvDBHost = "SARVA_DB_HOST"
	EnvDBUser = "SARVA_DB_USER"
	EnvDBName = "SARVA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
