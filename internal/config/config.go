package config

type Config interface {
	EnvConfig
	CorsConfig
	GatewayConfig
	ConsoleConfig
	StorageConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetDataFolder() string
	GetLogLevel() string
	GetEnv() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Gateway
	Console
	Storage
}

func New() Config {
	return mainConfig{}
}
