package config

type Config interface {
	EnvConfig
	CorsConfig
	OAuthConfig
	KeyConfig
	StoreConfig
	SecurityConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
	GetIssuerURL() string
	GetMetricsEnabled() bool
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	OAuth
	Keys
	Store
	Security
}

func New() Config {
	return mainConfig{}
}
