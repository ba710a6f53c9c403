package config

import (
	"os"
	"time"
)

const (
	appNameVar      = "APP_NAME"
	baseURLVar      = "PORTAL_BASE_URL"
	dataFolderVar   = "PORTAL_DATA_FOLDER"
	httpTimeoutVar  = "PORTAL_HTTP_TIMEOUT"
	wsPathVar       = "PORTAL_WS_PATH"
	pollIntervalVar = "PORTAL_POLL_INTERVAL"
)

type EnvVars struct{}

var _ EnvConfig = EnvVars{}

func (EnvVars) GetAppName() string {
	return GetEnv(appNameVar, "Employee Portal")
}

// GetBaseURL returns the backend base URL, e.g. "https://portal.example.com".
// All REST paths and the realtime socket URL are derived from it.
func (EnvVars) GetBaseURL() string {
	return GetEnv(baseURLVar, "http://localhost:8000")
}

func (EnvVars) GetDataFolder() string {
	return GetEnv(dataFolderVar, "./data")
}

func (EnvVars) GetEnv() string {
	env := os.Getenv("ENV")
	if env == "" {
		return "DEV"
	}
	return env
}

func (EnvVars) GetHTTPTimeout() time.Duration {
	return getDuration(httpTimeoutVar, 60*time.Second)
}

// GetWSPath returns the path of the online-presence socket endpoint.
func (EnvVars) GetWSPath() string {
	return GetEnv(wsPathVar, "/ws/online/")
}

// GetPollInterval returns the REST polling cadence used while no socket is connected.
func (EnvVars) GetPollInterval() time.Duration {
	return getDuration(pollIntervalVar, 30*time.Second)
}

func GetEnv(envVar, defaultValue string) string {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(envVar string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(envVar)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
