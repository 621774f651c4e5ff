package config

import "github.com/joho/godotenv"

type Config interface {
	EnvConfig
	CorsConfig
	IdentityConfig
	SessionConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetLogLevel() string
}

type CorsConfig interface {
	GetAllowedOrigins() AllowedOrigins
	GetAllowedMethods() string
	GetAllowedHeaders() string
}

type mainConfig struct {
	EnvVars
	Cors
	Identity
	Session
}

// New loads an optional .env file from the working directory and returns the
// environment backed configuration. Variables already set in the process
// environment win over the file.
func New() Config {
	_ = godotenv.Load()
	return mainConfig{}
}
