// Package config loads RAPP configuration from environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
)

// legacyUpdaterName is the name of a deprecated self-update helper service
// that pull_and_update must exclude from the set of services it reconciles,
// alongside the RAPP's own service.
const legacyUpdaterName = "updater"

// Config holds all RAPP configuration, read once at startup from the
// environment.
type Config struct {
	AgentcoreHost string
	AgentcorePort int

	ComposeFile string
	EnvFile     string
	ConfigFile  string
	ComposePath string // directory containing ComposeFile; cwd for runtime invocations

	UseDevelopment  bool
	SkipImagePrune  bool
	DataPath        string
	ServiceName     string
	ProjectName     string
	AllowRemote     bool
	AuditSchedule   string // cron expression for the supplemental audit sweep, empty = disabled
	MetricsTextfile string // node_exporter textfile collector path, empty = disabled

	LogLevel     string
	LogColorized bool
}

// Load reads configuration from the environment, applying the defaults
// shown below for every field that isn't set.
func Load() *Config {
	composeFile := envStr("COMPOSE_FILE", "/docker/docker-compose.yml")
	cfg := &Config{
		AgentcoreHost:   envStr("AGENTCORE_HOST", "127.0.0.1"),
		AgentcorePort:   envInt("AGENTCORE_PORT", 8770),
		ComposeFile:     composeFile,
		EnvFile:         envStr("ENV_FILE", "/docker/.env"),
		ConfigFile:      envStr("CONFIG_FILE", "/config/infrasonar.yaml"),
		ComposePath:     filepath.Dir(composeFile),
		UseDevelopment:  envBool("USE_DEVELOPMENT", false),
		SkipImagePrune:  envBool("SKIP_IMAGE_PRUNE", false),
		DataPath:        envStr("DATA_PATH", "./data"),
		ServiceName:     envStr("SERVICE_NAME", "rapp"),
		ProjectName:     envStr("PROJECT_NAME", "infrasonar"),
		AllowRemote:     envBool("ALLOW_REMOTE_ACCESS", false),
		AuditSchedule:   envStr("AUDIT_SCHEDULE", "0 * * * *"),
		MetricsTextfile: envStr("METRICS_TEXTFILE", ""),
		LogLevel:        envStr("LOG_LEVEL", "warning"),
		LogColorized:    envBool("LOG_COLORIZED", false),
	}
	return cfg
}

// LegacyUpdaterName returns the deprecated updater service name excluded
// from reconciliation (see runtime.Driver.PullAndUpdate).
func (c *Config) LegacyUpdaterName() string { return legacyUpdaterName }

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n != 0
}
