package appconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaultsPlusEnv(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_APP_TOKEN", "xapp-test")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BrainFolder != "brain" {
		t.Errorf("expected default brain_folder, got %q", cfg.BrainFolder)
	}
	if cfg.MaxContextTokens != 6000 {
		t.Errorf("expected default max_context_tokens 6000, got %d", cfg.MaxContextTokens)
	}
	if cfg.SlackBotToken != "xoxb-test" || cfg.SlackAppToken != "xapp-test" {
		t.Errorf("expected env-provided tokens, got %+v", cfg)
	}
	if cfg.MCPConfigPath != "mcp_servers.json" {
		t.Errorf("expected default mcp_config_path, got %q", cfg.MCPConfigPath)
	}
}

func TestLoadMCPConfigPathEnvOverrides(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_APP_TOKEN", "xapp-test")
	t.Setenv("MCP_CONFIG_PATH", "/etc/brainbridge/mcp_servers.json")
	t.Setenv("MCP_LOCAL_CONFIG_PATH", "/etc/brainbridge/mcp_servers.local.json")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.MCPConfigPath != "/etc/brainbridge/mcp_servers.json" {
		t.Errorf("expected env-provided mcp_config_path, got %q", cfg.MCPConfigPath)
	}
	if cfg.MCPLocalConfigPath != "/etc/brainbridge/mcp_servers.local.json" {
		t.Errorf("expected env-provided mcp_local_config_path, got %q", cfg.MCPLocalConfigPath)
	}
}

func TestLoadMissingRequiredTokensFails(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "")
	t.Setenv("SLACK_APP_TOKEN", "")

	if _, err := Load(""); err == nil {
		t.Fatal("expected an error when slack tokens are missing")
	}
}

func TestLoadYAMLFileWithEnvExpansion(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-from-env")
	t.Setenv("SLACK_APP_TOKEN", "xapp-from-env")
	t.Setenv("BRAIN_PATH_OVERRIDE", "/tmp/custom-brain")

	path := filepath.Join(t.TempDir(), "brainbridge.yaml")
	contents := `
brain_folder: ${BRAIN_PATH_OVERRIDE}
model: mistral
max_context_tokens: 4000
enable_web_search: false
`
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BrainFolder != "/tmp/custom-brain" {
		t.Errorf("expected expanded brain_folder, got %q", cfg.BrainFolder)
	}
	if cfg.Model != "mistral" {
		t.Errorf("expected model mistral, got %q", cfg.Model)
	}
	if cfg.MaxContextTokens != 4000 {
		t.Errorf("expected max_context_tokens 4000, got %d", cfg.MaxContextTokens)
	}
	if cfg.EnableWebSearch {
		t.Error("expected enable_web_search false from file")
	}
}

func TestEnvOverridesFileValue(t *testing.T) {
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-env")
	t.Setenv("SLACK_APP_TOKEN", "xapp-env")
	t.Setenv("MODEL", "llama3.2-env-override")

	path := filepath.Join(t.TempDir(), "brainbridge.yaml")
	if err := os.WriteFile(path, []byte("model: from-file\n"), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Model != "llama3.2-env-override" {
		t.Errorf("expected env override to win, got %q", cfg.Model)
	}
}

func TestValidateRequiresBothSlackTokens(t *testing.T) {
	tests := []struct {
		name      string
		cfg       Config
		wantError bool
	}{
		{"both set", Config{SlackBotToken: "a", SlackAppToken: "b"}, false},
		{"missing bot token", Config{SlackAppToken: "b"}, true},
		{"missing app token", Config{SlackBotToken: "a"}, true},
		{"missing both", Config{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}
