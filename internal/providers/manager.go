package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// Preference is a user's chosen (provider_id, model_name) pair.
type Preference struct {
	ProviderID string `json:"provider_id"`
	ModelName  string `json:"model_name"`
}

// Manager holds the set of registered providers, a configured default,
// and per-user model preferences persisted to disk. Grounded on
// services/model_manager.py's ModelManager: discover-register providers
// at startup, set_model/generate per request, falling back to the
// default when the preferred provider is not registered or reports
// quota exhaustion, rather than the original's raise-on-missing-provider
// (spec §4.6 requires silent fallback, not an error surface). Other
// provider errors are returned to the caller.
type Manager struct {
	mu        sync.RWMutex
	providers map[string]Provider
	defaultID string
	prefsPath string
	logger    *slog.Logger
}

// NewManager creates a manager with no providers registered yet; call
// Register for each backend. prefsPath is the JSON file backing
// per-user preferences (schema {user_id: {provider_id, model_name}}).
func NewManager(prefsPath, defaultProviderID string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		providers: make(map[string]Provider),
		defaultID: defaultProviderID,
		prefsPath: prefsPath,
		logger:    logger.With("component", "provider_manager"),
	}
}

// Register adds a backend under id (e.g. "anthropic", "openai").
func (m *Manager) Register(id string, p Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[id] = p
}

// Available lists registered provider ids with their models.
func (m *Manager) Available() map[string][]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string][]string, len(m.providers))
	for id, p := range m.providers {
		out[id] = p.ListModels()
	}
	return out
}

func (m *Manager) loadPrefs() map[string]Preference {
	data, err := os.ReadFile(m.prefsPath)
	if err != nil {
		return map[string]Preference{}
	}
	var out map[string]Preference
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return map[string]Preference{}
	}
	return out
}

func (m *Manager) savePrefs(prefs map[string]Preference) error {
	encoded, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal model preferences: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(m.prefsPath), 0o700); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	tmp := m.prefsPath + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o600); err != nil {
		return fmt.Errorf("write temp preferences file: %w", err)
	}
	if err := os.Rename(tmp, m.prefsPath); err != nil {
		return fmt.Errorf("rename preferences file: %w", err)
	}
	return os.Chmod(m.prefsPath, 0o600)
}

// SetPreference persists userID's chosen provider/model pair, validating
// the provider id is registered.
func (m *Manager) SetPreference(userID string, pref Preference) error {
	m.mu.RLock()
	_, ok := m.providers[pref.ProviderID]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("provider %q not registered", pref.ProviderID)
	}

	prefs := m.loadPrefs()
	prefs[userID] = pref
	return m.savePrefs(prefs)
}

// Preference returns userID's stored preference, if any.
func (m *Manager) Preference(userID string) (Preference, bool) {
	pref, ok := m.loadPrefs()[userID]
	return pref, ok
}

// Generate resolves userID's preferred provider/model (falling back to
// the configured default when unset), calls Generate, and on a
// quota-exhaustion error retries once against the configured default
// provider/model, annotating the result rather than surfacing an error —
// per spec §4.6.
func (m *Manager) Generate(ctx context.Context, userID string, req GenerateRequest) (GenerateResult, error) {
	providerID := m.defaultID
	if pref, ok := m.Preference(userID); ok {
		providerID = pref.ProviderID
		if req.Model == "" {
			req.Model = pref.ModelName
		}
	}

	m.mu.RLock()
	provider, ok := m.providers[providerID]
	defaultProvider, hasDefault := m.providers[m.defaultID]
	m.mu.RUnlock()

	if !ok {
		if !hasDefault {
			return GenerateResult{}, fmt.Errorf("provider %q not registered and no default configured", providerID)
		}
		provider = defaultProvider
		providerID = m.defaultID
	}

	text, err := provider.Generate(ctx, req)
	if err == nil {
		return GenerateResult{Text: text}, nil
	}

	if !IsQuotaExhausted(err) {
		return GenerateResult{}, err
	}

	m.logger.Warn("provider quota exhausted, falling back to default", "provider", providerID, "error", err)
	if providerID == m.defaultID || !hasDefault {
		return GenerateResult{}, err
	}

	fallbackReq := req
	fallbackReq.Model = ""
	text, err = defaultProvider.Generate(ctx, fallbackReq)
	if err != nil {
		return GenerateResult{}, err
	}
	return GenerateResult{Text: text, FellBackFrom: providerID}, nil
}
