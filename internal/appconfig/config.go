// Package appconfig loads the conversational-assistant service's
// configuration: a YAML file (gopkg.in/yaml.v3, the same primary config
// format the teacher's internal/config package uses, including its
// os.ExpandEnv-before-parse idiom so `${VAR}` references resolve against
// the environment) overlaid with the environment-variable table spec.md
// §6 names as the service's external configuration contract. Grounded
// on teacher's internal/config/loader.go for the YAML+env-expansion
// idiom and original_source/slack_bot.py's validate_environment for
// which variables are required vs. defaulted.
package appconfig

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the fully resolved service configuration: YAML file values
// overridden by any of the spec.md §6 environment variables that are
// set.
type Config struct {
	// Chat platform
	SlackBotToken string `yaml:"slack_bot_token"`
	SlackAppToken string `yaml:"slack_app_token"`

	// Knowledge base and persistence root (spec §6 BRAIN_FOLDER).
	BrainFolder string `yaml:"brain_folder"`

	// Semantic search (spec §6 SEARCH_URL).
	SearchURL string `yaml:"search_url"`

	// Default pipe-inference server (spec §6 LLM_URL, MODEL).
	LLMURL string `yaml:"llm_url"`
	Model  string `yaml:"model"`

	// Native-provider API keys, resolved via the Secret collaborator
	// when prefixed "secret:" (spec §4.1).
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`
	DefaultProvider string `yaml:"default_provider"`

	// Composer token budget (spec §6 MAX_CONTEXT_TOKENS).
	MaxContextTokens int `yaml:"max_context_tokens"`

	// Feature toggles (spec §6 ENABLE_BRAIN_SEARCH / ENABLE_WEB_SEARCH).
	EnableBrainSearch bool `yaml:"enable_brain_search"`
	EnableWebSearch   bool `yaml:"enable_web_search"`

	// Web search provider selection (spec §6 WEB_SEARCH_PROVIDER /
	// WEB_SEARCH_API_KEY).
	WebSearchProvider string `yaml:"web_search_provider"`
	WebSearchAPIKey   string `yaml:"web_search_api_key"`

	// Notification topic (spec §6 NOTIFY_TOPIC) and its ntfy-compatible
	// base URL.
	NotifyTopic   string `yaml:"notify_topic"`
	NotifyBaseURL string `yaml:"notify_base_url"`

	// Secret backend (spec §6 SECRET_STORE_URL / SECRET_STORE_TOKEN).
	SecretStoreURL   string `yaml:"secret_store_url"`
	SecretStoreToken string `yaml:"secret_store_token"`

	// Prometheus /metrics listen address; ambient, not named in spec §6.
	MetricsAddr string `yaml:"metrics_addr"`

	// Tool Server Configuration (spec §4.1/§4.3): a git-tracked base file
	// of MCP server definitions, optionally overlaid by a gitignored
	// local-override file of the same shape.
	MCPConfigPath      string `yaml:"mcp_config_path"`
	MCPLocalConfigPath string `yaml:"mcp_local_config_path"`
}

// defaults mirror validate_environment's "optional" table plus the
// values slack_bot.py's run() filled in from its own SLACK_*-prefixed
// variables.
func defaults() Config {
	return Config{
		BrainFolder:       "brain",
		SearchURL:         "http://localhost:9514",
		LLMURL:            "http://localhost:11434",
		Model:             "llama3.2",
		DefaultProvider:   "anthropic",
		MaxContextTokens:  6000,
		EnableBrainSearch: true,
		EnableWebSearch:   true,
		WebSearchProvider: "tavily",
		NotifyTopic:       "brain-notifications",
		NotifyBaseURL:     "https://ntfy.sh",
		MetricsAddr:       ":9515",
		MCPConfigPath:     "mcp_servers.json",
	}
}

// Load reads path (if it exists; a missing file is not an error, same
// as slack_bot.py falling back to "environment variables are already
// set"), expanding ${VAR} references against the environment before
// parsing, then overlays the spec.md §6 environment variables on top of
// whatever the file set.
func Load(path string) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			expanded := os.ExpandEnv(string(data))
			if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
				return Config{}, fmt.Errorf("parse config %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// fall through on defaults + env
		default:
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	strVar(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	strVar(&cfg.SlackAppToken, "SLACK_APP_TOKEN")
	strVar(&cfg.BrainFolder, "BRAIN_FOLDER")
	strVar(&cfg.SearchURL, "SEARCH_URL")
	strVar(&cfg.LLMURL, "LLM_URL")
	strVar(&cfg.Model, "MODEL")
	strVar(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	strVar(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	strVar(&cfg.WebSearchAPIKey, "WEB_SEARCH_API_KEY")
	strVar(&cfg.WebSearchProvider, "WEB_SEARCH_PROVIDER")
	strVar(&cfg.NotifyTopic, "NOTIFY_TOPIC")
	strVar(&cfg.SecretStoreURL, "SECRET_STORE_URL")
	strVar(&cfg.SecretStoreToken, "SECRET_STORE_TOKEN")
	strVar(&cfg.MCPConfigPath, "MCP_CONFIG_PATH")
	strVar(&cfg.MCPLocalConfigPath, "MCP_LOCAL_CONFIG_PATH")
	intVar(&cfg.MaxContextTokens, "MAX_CONTEXT_TOKENS")
	boolVar(&cfg.EnableBrainSearch, "ENABLE_BRAIN_SEARCH")
	boolVar(&cfg.EnableWebSearch, "ENABLE_WEB_SEARCH")
}

func strVar(dst *string, name string) {
	if v, ok := os.LookupEnv(name); ok && strings.TrimSpace(v) != "" {
		*dst = v
	}
}

func intVar(dst *int, name string) {
	if v, ok := os.LookupEnv(name); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func boolVar(dst *bool, name string) {
	if v, ok := os.LookupEnv(name); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate checks the required variables validate_environment enforces:
// the two Slack tokens, with no defaulting (missing either is a hard
// startup failure, exit code 1 per spec §6).
func (c Config) Validate() error {
	var missing []string
	if c.SlackBotToken == "" {
		missing = append(missing, "SLACK_BOT_TOKEN")
	}
	if c.SlackAppToken == "" {
		missing = append(missing, "SLACK_APP_TOKEN")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}
