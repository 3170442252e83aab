package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "estanquillo"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "ESTANQUILLO_DB_DSN"
	EnvDBHost = "ESTANQUILLO_DB_HOST"
	EnvDBUser = "ESTANQUILLO_DB_USER"
	EnvDBName = "ESTANQUILLO_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
