// Package sourcetrack implements the per-request Source Tracker: tools
// and hooks record which sources contributed to an answer, and the
// Citation hook reads them back after generation. Grounded on
// _examples/original_source/slack_bot/hooks/source_tracker.py, whose
// ContextVar-based SourceTracker is replaced here with a
// context.Context value, per spec §9 ("from request-local globals to
// explicit contexts") and the teacher's internal/agent/context
// context-scoped-accumulator pattern. The contract is unchanged: the
// pipeline installs a tracker before hooks/tools run and it is
// implicitly discarded once the request's context is.
package sourcetrack

import (
	"context"
	"sync"

	"github.com/earchibald/brainbridge/internal/models"
)

type ctxKey struct{}

// Tracker accumulates SourceRecords for a single in-flight request. Safe
// for concurrent use by tools running within the same request.
type Tracker struct {
	mu      sync.Mutex
	records []models.SourceRecord
}

// New creates an empty tracker.
func New() *Tracker {
	return &Tracker{}
}

// WithTracker returns a context carrying t, for the pipeline to install
// before running hooks/tools.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the tracker installed on ctx, or nil if none.
func FromContext(ctx context.Context) *Tracker {
	t, _ := ctx.Value(ctxKey{}).(*Tracker)
	return t
}

// RecordSource appends one tool's contribution.
func (t *Tracker) RecordSource(toolName string, success bool, sources, snippets []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, models.SourceRecord{
		ToolName: toolName,
		Success:  success,
		Sources:  sources,
		Snippets: snippets,
	})
}

// HasSources reports whether any successful record carried sources,
// matching source_tracker.py's has_sources (failed/empty records don't
// count).
func (t *Tracker) HasSources() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.records {
		if r.Success && len(r.Sources) > 0 {
			return true
		}
	}
	return false
}

// Records returns a snapshot of everything recorded so far.
func (t *Tracker) Records() []models.SourceRecord {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]models.SourceRecord, len(t.records))
	copy(out, t.records)
	return out
}

// SourcesByTool returns the deduplicated, order-preserving list of
// sources recorded under toolName, across all its (successful or not)
// records — matching source_tracker.py's get_sources(tool_name).
func (t *Tracker) SourcesByTool(toolName string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[string]bool)
	var out []string
	for _, r := range t.records {
		if r.ToolName != toolName {
			continue
		}
		for _, s := range r.Sources {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
