// Package conversation implements the Conversation Manager (C2):
// per-(user,thread) message history, token counting, and summarization.
// Grounded on
// _examples/original_source/clients/conversation_manager.py's
// ConversationManager. Per DESIGN.md Open Question resolution 1, this
// JSON-file store is the sole source of truth; SearchPast is backed by
// an optional modernc.org/sqlite accelerant index, never a second
// authority.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/earchibald/brainbridge/internal/models"
	"github.com/earchibald/brainbridge/internal/providers"
)

// KeepRecent is the number of most-recent messages summarization always
// preserves untouched, matching conversation_manager.py's keep_recent
// default.
const KeepRecent = 3

// EstimateTokens applies the conversation_manager.py estimate: roughly
// one token per four characters. Deliberately crude — this is a budget
// heuristic, not a tokenizer.
func EstimateTokens(text string) int {
	return len(text) / 4
}

type record struct {
	ThreadID  string           `json:"thread_id"`
	UserID    string           `json:"user_id"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	Messages  []models.Message `json:"messages"`
}

// Manager persists conversation history under
// {baseDir}/users/{user}/conversations/{thread}.json, one file per
// (user, thread) pair, atomically written.
type Manager struct {
	mu      sync.Mutex
	baseDir string
	index   *searchIndex
	logger  *slog.Logger
}

// NewManager opens (creating if absent) the conversation store rooted at
// baseDir. If indexPath is non-empty, SearchPast is accelerated by a
// sqlite keyword index kept in sync on every Save; if sqlite is
// unavailable the index degrades to a nil no-op without affecting
// correctness (Load/Save always read the authoritative JSON files).
func NewManager(baseDir, indexPath string, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	usersDir := filepath.Join(baseDir, "users")
	if err := os.MkdirAll(usersDir, 0o700); err != nil {
		return nil, fmt.Errorf("create conversation store dir: %w", err)
	}

	idx, err := openSearchIndex(indexPath, logger)
	if err != nil {
		logger.Warn("conversation search index unavailable, SearchPast will scan JSON files", "error", err)
		idx = nil
	}

	return &Manager{baseDir: baseDir, index: idx, logger: logger.With("component", "conversation_manager")}, nil
}

func (m *Manager) path(userID, threadID string) string {
	safeThread := strings.NewReplacer("/", "_", "\\", "_").Replace(threadID)
	return filepath.Join(m.baseDir, "users", userID, "conversations", safeThread+".json")
}

func (m *Manager) load(userID, threadID string) (*record, error) {
	path := m.path(userID, threadID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &record{ThreadID: threadID, UserID: userID, CreatedAt: time.Now().UTC()}, nil
		}
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		m.logger.Warn("corrupt conversation file, starting fresh", "path", path, "error", err)
		return &record{ThreadID: threadID, UserID: userID, CreatedAt: time.Now().UTC()}, nil
	}
	return &rec, nil
}

func (m *Manager) writeLocked(rec *record) error {
	path := m.path(rec.UserID, rec.ThreadID)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create conversation dir: %w", err)
	}
	encoded, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, encoded, 0o600); err != nil {
		return fmt.Errorf("write temp conversation file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename conversation file: %w", err)
	}
	return os.Chmod(path, 0o600)
}

// Load returns the message history for (user, thread), or an empty slice
// if none exists yet.
func (m *Manager) Load(userID, threadID string) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.load(userID, threadID)
	if err != nil {
		return nil, err
	}
	return rec.Messages, nil
}

// Save appends one message and persists atomically, updating the
// optional search index.
func (m *Manager) Save(userID, threadID string, role models.Role, content string, metadata map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.load(userID, threadID)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	msg := models.Message{Role: role, Content: content, Timestamp: now, Metadata: metadata}
	rec.Messages = append(rec.Messages, msg)
	rec.UpdatedAt = now
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}

	if err := m.writeLocked(rec); err != nil {
		return err
	}

	if m.index != nil {
		if err := m.index.record(userID, threadID, msg); err != nil {
			m.logger.Warn("failed to update conversation search index", "error", err)
		}
	}
	return nil
}

// CountTokens sums EstimateTokens over every message's content.
func CountTokens(messages []models.Message) int {
	total := 0
	for _, msg := range messages {
		total += EstimateTokens(msg.Content)
	}
	return total
}

// Summarizer produces a prose summary of older turns when the
// conversation exceeds its token budget. Only needed when history must
// actually be compressed; Generate is reused as the summarization call,
// matching conversation_manager.py's reuse of llm_client.complete.
type Summarizer interface {
	Generate(ctx context.Context, req providers.GenerateRequest) (string, error)
}

// Summarize compresses messages to fit maxTokens, always preserving the
// last keepRecent messages verbatim. Strategy, exactly
// conversation_manager.py's summarize_if_needed:
//  1. If already under budget, return unchanged.
//  2. If no summarizer is configured, fall back to truncation: keep the
//     last keepRecent messages, whatever their size. If there are no
//     more than keepRecent messages (with or without a summarizer), keep
//     the most recent messages that fit maxTokens.
//  3. Otherwise summarize the older messages into one system message and
//     prepend it to the recent window.
func Summarize(ctx context.Context, summarizer Summarizer, messages []models.Message, maxTokens, keepRecent int) []models.Message {
	if keepRecent <= 0 {
		keepRecent = KeepRecent
	}
	if CountTokens(messages) <= maxTokens {
		return messages
	}

	if summarizer == nil {
		return truncateToFit(messages, maxTokens, keepRecent)
	}

	if len(messages) <= keepRecent {
		return truncateByTokens(messages, maxTokens)
	}

	old := messages[:len(messages)-keepRecent]
	recent := messages[len(messages)-keepRecent:]

	var b strings.Builder
	for i, msg := range old {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s: %s", strings.ToUpper(string(msg.Role)), msg.Content)
	}

	prompt := fmt.Sprintf(
		"Summarize this conversation history concisely, preserving key facts, decisions, and context. Keep it under 500 words.\n\nConversation:\n%s\n\nConcise summary:",
		b.String(),
	)

	summary, err := summarizer.Generate(ctx, providers.GenerateRequest{
		Messages:  []providers.Message{{Role: "user", Content: prompt}},
		MaxTokens: 1000,
	})
	if err != nil {
		return recent
	}

	summaryMsg := models.Message{
		Role:      models.RoleSystem,
		Content:   "[Previous conversation summary]: " + strings.TrimSpace(summary),
		Timestamp: time.Now().UTC(),
		Metadata: map[string]any{
			"type":                "summary",
			"summarized_messages": len(old),
		},
	}

	return append([]models.Message{summaryMsg}, recent...)
}

func truncateToFit(messages []models.Message, maxTokens, keepRecent int) []models.Message {
	if len(messages) <= keepRecent {
		return truncateByTokens(messages, maxTokens)
	}
	if keepRecent >= len(messages) {
		return messages
	}
	return messages[len(messages)-keepRecent:]
}

func truncateByTokens(messages []models.Message, maxTokens int) []models.Message {
	var out []models.Message
	tokenCount := 0
	for i := len(messages) - 1; i >= 0; i-- {
		msgTokens := EstimateTokens(messages[i].Content)
		if tokenCount+msgTokens > maxTokens {
			break
		}
		out = append([]models.Message{messages[i]}, out...)
		tokenCount += msgTokens
	}
	return out
}

// ThreadMetadata is one entry of List's result.
type ThreadMetadata struct {
	ThreadID     string    `json:"thread_id"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// List enumerates every conversation thread for a user, most recently
// updated first.
func (m *Manager) List(userID string) ([]ThreadMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := filepath.Join(m.baseDir, "users", userID, "conversations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var out []ThreadMetadata
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var rec record
		if err := json.Unmarshal(data, &rec); err != nil {
			m.logger.Warn("skipping unreadable conversation file", "file", entry.Name(), "error", err)
			continue
		}
		out = append(out, ThreadMetadata{
			ThreadID:     rec.ThreadID,
			CreatedAt:    rec.CreatedAt,
			UpdatedAt:    rec.UpdatedAt,
			MessageCount: len(rec.Messages),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// Delete removes a conversation thread's file, reporting whether it
// existed.
func (m *Manager) Delete(userID, threadID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	path := m.path(userID, threadID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := os.Remove(path); err != nil {
		return false, err
	}
	if m.index != nil {
		if err := m.index.deleteThread(userID, threadID); err != nil {
			m.logger.Warn("failed to clean up conversation search index", "error", err)
		}
	}
	return true, nil
}

// HistoryHit is one matched historical turn.
type HistoryHit struct {
	UserID    string
	ThreadID  string
	Role      models.Role
	Content   string
	Timestamp time.Time
}

// SearchPast does a keyword match over historical turns, optionally
// scoped to one user. When the sqlite accelerant index is unavailable,
// this degrades to scanning the user's JSON files directly — slower but
// equally correct, since the JSON store is always authoritative.
func (m *Manager) SearchPast(query, userID string, limit int) ([]HistoryHit, error) {
	if limit <= 0 {
		limit = 10
	}
	if m.index != nil {
		hits, err := m.index.search(query, userID, limit)
		if err == nil {
			return hits, nil
		}
		m.logger.Warn("search index query failed, falling back to file scan", "error", err)
	}
	return m.scanFiles(query, userID, limit)
}

func (m *Manager) scanFiles(query, userID string, limit int) ([]HistoryHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var userDirs []string
	if userID != "" {
		userDirs = []string{userID}
	} else {
		entries, err := os.ReadDir(filepath.Join(m.baseDir, "users"))
		if err != nil {
			if os.IsNotExist(err) {
				return nil, nil
			}
			return nil, err
		}
		for _, e := range entries {
			if e.IsDir() {
				userDirs = append(userDirs, e.Name())
			}
		}
	}

	queryLower := strings.ToLower(query)
	var hits []HistoryHit
	for _, uid := range userDirs {
		dir := filepath.Join(m.baseDir, "users", uid, "conversations")
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
			if err != nil {
				continue
			}
			var rec record
			if json.Unmarshal(data, &rec) != nil {
				continue
			}
			for _, msg := range rec.Messages {
				if strings.Contains(strings.ToLower(msg.Content), queryLower) {
					hits = append(hits, HistoryHit{
						UserID: uid, ThreadID: rec.ThreadID,
						Role: msg.Role, Content: msg.Content, Timestamp: msg.Timestamp,
					})
					if len(hits) >= limit {
						return hits, nil
					}
				}
			}
		}
	}
	return hits, nil
}
