package config

import "time"

type Config interface {
	EnvConfig
	HTTPConfig
	RealtimeConfig
}

type EnvConfig interface {
	GetAppName() string
	GetBaseURL() string
	GetDataFolder() string
	GetEnv() string
}

type HTTPConfig interface {
	GetHTTPTimeout() time.Duration
}

type RealtimeConfig interface {
	GetWSPath() string
	GetPollInterval() time.Duration
}

type mainConfig struct {
	EnvVars
}

func New() Config {
	return mainConfig{}
}
