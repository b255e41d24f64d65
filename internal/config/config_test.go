package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"AGENTCORE_HOST", "AGENTCORE_PORT", "COMPOSE_FILE", "ENV_FILE",
		"CONFIG_FILE", "USE_DEVELOPMENT", "SKIP_IMAGE_PRUNE", "DATA_PATH",
		"SERVICE_NAME", "PROJECT_NAME", "ALLOW_REMOTE_ACCESS", "LOG_LEVEL",
		"LOG_COLORIZED",
	} {
		os.Unsetenv(k)
	}

	cfg := Load()
	if cfg.AgentcoreHost != "127.0.0.1" {
		t.Errorf("AgentcoreHost = %q, want 127.0.0.1", cfg.AgentcoreHost)
	}
	if cfg.AgentcorePort != 8770 {
		t.Errorf("AgentcorePort = %d, want 8770", cfg.AgentcorePort)
	}
	if cfg.ComposeFile != "/docker/docker-compose.yml" {
		t.Errorf("ComposeFile = %q", cfg.ComposeFile)
	}
	if cfg.ComposePath != "/docker" {
		t.Errorf("ComposePath = %q, want /docker", cfg.ComposePath)
	}
	if cfg.ProjectName != "infrasonar" {
		t.Errorf("ProjectName = %q, want infrasonar", cfg.ProjectName)
	}
	if cfg.ServiceName != "rapp" {
		t.Errorf("ServiceName = %q, want rapp", cfg.ServiceName)
	}
	if cfg.AllowRemote {
		t.Error("AllowRemote = true, want false")
	}
	if cfg.LegacyUpdaterName() != "updater" {
		t.Errorf("LegacyUpdaterName() = %q", cfg.LegacyUpdaterName())
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("AGENTCORE_HOST", "10.0.0.5")
	t.Setenv("AGENTCORE_PORT", "9999")
	t.Setenv("ALLOW_REMOTE_ACCESS", "1")
	t.Setenv("SKIP_IMAGE_PRUNE", "1")

	cfg := Load()
	if cfg.AgentcoreHost != "10.0.0.5" {
		t.Errorf("AgentcoreHost = %q", cfg.AgentcoreHost)
	}
	if cfg.AgentcorePort != 9999 {
		t.Errorf("AgentcorePort = %d", cfg.AgentcorePort)
	}
	if !cfg.AllowRemote {
		t.Error("AllowRemote = false, want true")
	}
	if !cfg.SkipImagePrune {
		t.Error("SkipImagePrune = false, want true")
	}
}
