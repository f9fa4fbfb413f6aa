package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

// SecretResolver resolves a named secret to its value. Implemented by
// internal/secretstore; declared locally to avoid an import cycle.
type SecretResolver interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// secretPrefix marks a config value as a secret reference to resolve at
// connect time, rather than a literal. Generalizes the original's
// "vaultwarden:NAME" convention (mcp_config.py/mcp_manager.py) to a
// backend-agnostic "secret:NAME".
const secretPrefix = "secret:"

type rawServerFile struct {
	MCPServers map[string]rawServer `json:"mcpServers"`
}

type rawServer struct {
	Name        string            `json:"name"`
	Transport   string            `json:"transport"`
	Command     string            `json:"command"`
	Args        []string          `json:"args"`
	Env         map[string]string `json:"env"`
	URL         string            `json:"url"`
	Headers     map[string]string `json:"headers"`
	Enabled     bool              `json:"enabled"`
	Description string            `json:"description"`
}

// LoadConfig loads MCP server configuration from a git-tracked base file
// overlaid by a gitignored local-override file, mirroring
// config/mcp_servers.json + config/mcp_servers.local.json in the
// original. The local file may omit any server present in the base; a
// server present in both is entirely replaced by the local entry.
func LoadConfig(basePath, localPath string) (*Config, error) {
	if localPath == "" {
		localPath = strings.TrimSuffix(basePath, ".json") + ".local.json"
	}

	base, err := loadServerFile(basePath)
	if err != nil {
		return nil, fmt.Errorf("load base MCP config: %w", err)
	}
	local, err := loadServerFile(localPath)
	if err != nil {
		return nil, fmt.Errorf("load local MCP config: %w", err)
	}

	merged := make(map[string]rawServer, len(base)+len(local))
	for name, s := range base {
		merged[name] = s
	}
	for name, s := range local {
		merged[name] = s
	}

	cfg := &Config{Enabled: len(merged) > 0}
	for name, s := range merged {
		transport := TransportStdio
		switch s.Transport {
		case "http", "sse", "http-sse":
			transport = TransportHTTP
		case "websocket", "ws":
			transport = TransportWS
		}
		cfg.Servers = append(cfg.Servers, &ServerConfig{
			ID:        name,
			Name:      name,
			Transport: transport,
			Command:   s.Command,
			Args:      s.Args,
			Env:       s.Env,
			URL:       s.URL,
			Headers:   s.Headers,
			AutoStart: s.Enabled,
		})
	}

	return cfg, nil
}

func loadServerFile(path string) (map[string]rawServer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var parsed rawServerFile
	if strings.HasSuffix(path, ".json5") {
		if err := json5.Unmarshal(data, &parsed); err != nil {
			return nil, err
		}
	} else if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, err
	}
	return parsed.MCPServers, nil
}

// hasSecretRefs reports whether any env or header value in cfg needs
// resolution through a SecretResolver.
func hasSecretRefs(cfg *ServerConfig) bool {
	for _, v := range cfg.Env {
		if strings.HasPrefix(v, secretPrefix) {
			return true
		}
	}
	for _, v := range cfg.Headers {
		if strings.HasPrefix(v, secretPrefix) {
			return true
		}
	}
	return false
}

// resolveSecrets resolves "secret:NAME" values in env and headers through
// resolver, leaving non-reference values untouched. A secret that fails
// to resolve is dropped with a warning rather than failing the connect —
// the server may still start with other env vars intact.
func resolveSecrets(ctx context.Context, cfg *ServerConfig, resolver SecretResolver, logger *slog.Logger) (env, headers map[string]string) {
	env = resolveMap(ctx, cfg.Env, resolver, logger, "env")
	headers = resolveMap(ctx, cfg.Headers, resolver, logger, "header")
	return env, headers
}

func resolveMap(ctx context.Context, in map[string]string, resolver SecretResolver, logger *slog.Logger, kind string) map[string]string {
	if len(in) == 0 {
		return in
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if !strings.HasPrefix(v, secretPrefix) {
			out[k] = v
			continue
		}
		if resolver == nil {
			continue
		}
		name := strings.TrimPrefix(v, secretPrefix)
		secret, err := resolver.GetSecret(ctx, name)
		if err != nil || secret == "" {
			logger.Warn("secret not resolved for MCP "+kind, "key", k, "secret", name, "error", err)
			continue
		}
		out[k] = secret
	}
	return out
}
