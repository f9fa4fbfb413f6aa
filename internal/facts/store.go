// Package facts implements the per-user persistent facts store (spec §4.1,
// C1). Grounded on
// _examples/original_source/slack_bot/tools/builtin/facts_tool.py's
// FactsStore: one JSON file per user at mode 0600, slug-normalized keys,
// a closed category enum folding unknowns to "other". Unlike the Python
// original (which overwrites the file directly), every mutation here
// writes through a temp-file-then-rename, per spec §3/§4.1's explicit
// atomicity invariant and the teacher's storage idiom
// (internal/storage/memory.go's sentinel-error pattern).
package facts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/earchibald/brainbridge/internal/models"
)

var ErrNotFound = errors.New("fact not found")

var slugNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Normalize lowercases a key and collapses runs of non-alphanumeric
// characters to a single underscore, so "My Coffee" and "my_coffee" are
// the same slug.
func Normalize(key string) string {
	s := strings.ToLower(strings.TrimSpace(key))
	s = slugNonAlnum.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// Store is a per-user JSON file of facts keyed by normalized slug.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore opens (creating if absent) the facts file for userID under
// dir, mirroring the original's "~/.brain-facts-{user_id}.json" naming.
func NewStore(dir, userID string) (*Store, error) {
	path := filepath.Join(dir, fmt.Sprintf(".brain-facts-%s.json", userID))
	s := &Store{path: path}
	if err := s.ensureFile(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureFile() error {
	if _, err := os.Stat(s.path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return s.writeLocked(map[string]models.Fact{})
}

// load reads the store, treating corrupt or missing content as empty
// rather than failing the caller (spec §7: persistence corruption is
// logged and overwritten on next write, never lost-forever).
func (s *Store) load() map[string]models.Fact {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return map[string]models.Fact{}
	}
	var out map[string]models.Fact
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]models.Fact{}
	}
	if out == nil {
		out = map[string]models.Fact{}
	}
	return out
}

// writeLocked atomically persists facts; caller must hold s.mu.
func (s *Store) writeLocked(facts map[string]models.Fact) error {
	data, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal facts: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create facts dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write temp facts file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("rename facts file: %w", err)
	}
	return os.Chmod(s.path, 0o600)
}

// StoreResult reports whether Store() updated an existing fact.
type StoreResult struct {
	PrevValue string
	WasUpdate bool
}

// Store creates or updates a fact. Category values outside the closed
// enum fold to CategoryOther.
func (s *Store) Store(key, value, category string) (StoreResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slug := Normalize(key)
	if slug == "" {
		return StoreResult{}, fmt.Errorf("empty key")
	}

	facts := s.load()
	now := time.Now()

	existing, wasUpdate := facts[slug]
	facts[slug] = models.Fact{
		Key:         slug,
		Value:       value,
		Category:    models.NormalizeCategory(category),
		CreatedAt:   firstNonZero(existing.CreatedAt, now),
		LastUpdated: now,
	}

	if err := s.writeLocked(facts); err != nil {
		return StoreResult{}, err
	}

	return StoreResult{PrevValue: existing.Value, WasUpdate: wasUpdate}, nil
}

func firstNonZero(t, fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t
}

// Get retrieves a fact by key (normalized). Returns ErrNotFound if absent.
func (s *Store) Get(key string) (models.Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fact, ok := s.load()[Normalize(key)]
	if !ok {
		return models.Fact{}, ErrNotFound
	}
	return fact, nil
}

// List returns facts ordered most-recently-updated first. A nil category
// means no filter; a non-nil category (including CategoryOther) filters
// to exactly that category — this uses a pointer rather than the
// original's string-default to remove the "other means no filter, or
// filter=other?" ambiguity in facts_tool.py's list operation (see
// DESIGN.md Open Question resolutions).
func (s *Store) List(category *models.FactCategory) []models.Fact {
	s.mu.Lock()
	defer s.mu.Unlock()

	facts := s.load()
	out := make([]models.Fact, 0, len(facts))
	for _, f := range facts {
		if category != nil && f.Category != *category {
			continue
		}
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastUpdated.After(out[j].LastUpdated)
	})
	return out
}

// Delete removes a fact; returns false if it didn't exist.
func (s *Store) Delete(key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	facts := s.load()
	slug := Normalize(key)
	if _, ok := facts[slug]; !ok {
		return false, nil
	}
	delete(facts, slug)
	if err := s.writeLocked(facts); err != nil {
		return false, err
	}
	return true, nil
}

// ClearAll deletes every fact for this user, returning the count removed.
func (s *Store) ClearAll() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	facts := s.load()
	count := len(facts)
	if count == 0 {
		return 0, nil
	}
	if err := s.writeLocked(map[string]models.Fact{}); err != nil {
		return 0, err
	}
	return count, nil
}

// ContextString renders up to limit facts (most-recently-updated first)
// as a context-injection block, or "" if the user has none.
func (s *Store) ContextString(limit int) string {
	if limit <= 0 {
		limit = 20
	}
	facts := s.List(nil)
	if len(facts) == 0 {
		return ""
	}
	if len(facts) > limit {
		facts = facts[:limit]
	}

	var b strings.Builder
	b.WriteString("Known facts about this user:\n")
	for _, f := range facts {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", f.Category, f.Key, f.Value)
	}
	return b.String()
}

// personalPronouns and personalKeywords ground
// message_references_personal_context() in facts_tool.py.
var personalPronouns = []string{"my", "i'm", "im ", "i am", "mine", "myself"}

var personalKeywords = []string{
	"remember", "forget", "note that", "fyi", "preference", "favorite",
	"favourite", "allerg", "medication", "health", "family", "kid",
	"wife", "husband", "partner", "goal", "birthday", "anniversary",
}

// MessageReferencesPersonalContext reports whether text plausibly invokes
// the user's stored facts, used by the Context Composer to decide
// whether to inject fact context even without an explicit facts-tool
// call (spec §4.8 step 1).
func MessageReferencesPersonalContext(text string) bool {
	lower := strings.ToLower(text)

	hasPronoun := false
	for _, p := range personalPronouns {
		if strings.Contains(lower, p) {
			hasPronoun = true
			break
		}
	}
	if !hasPronoun {
		return false
	}

	for _, kw := range personalKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
