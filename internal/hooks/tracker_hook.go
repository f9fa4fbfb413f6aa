package hooks

import (
	"context"
	"strconv"

	"github.com/earchibald/brainbridge/internal/models"
	"github.com/earchibald/brainbridge/internal/sourcetrack"
)

// TrackerInstaller installs a fresh sourcetrack.Tracker into a
// request-scoped context before pre-hooks/tools run, replacing
// source_tracker.py's set_tracker(SourceTracker()) call. Because
// PreHook's signature is event-only (spec §4.7), the pipeline driver
// calls Install directly when building the per-request context rather
// than registering it as a PreHook — see internal/pipeline.
type TrackerInstaller struct{}

// Install returns a context carrying a new tracker for this request.
func (TrackerInstaller) Install(ctx context.Context) context.Context {
	return sourcetrack.WithTracker(ctx, sourcetrack.New())
}

// CitationPostHook appends a compact citation block to the response
// when the request's tracker recorded brain and/or web sources.
// Grounded on citation_hook.py's citation_hook / format_citations
// "compact" style: top-3 brain sources as *name*, top-2 web sources
// plain, each group "(+N more)" truncated, joined by "\n", the whole
// block appended after a "\n\n---\n" separator.
func CitationPostHook(ctx context.Context) PostHook {
	return func(response string, event *models.InboundEvent) (string, bool) {
		tracker := sourcetrack.FromContext(ctx)
		if tracker == nil || !tracker.HasSources() {
			return response, false
		}

		citations := formatCitations(tracker)
		if citations == "" {
			return response, false
		}

		return response + "\n\n---\n" + citations, true
	}
}

func formatCitations(tracker *sourcetrack.Tracker) string {
	brain := tracker.SourcesByTool("brain_search")
	web := tracker.SourcesByTool("web_search")

	var parts []string
	if len(brain) > 0 {
		parts = append(parts, "📚 Brain: "+compactList(brain, 3, true))
	}
	if len(web) > 0 {
		parts = append(parts, "🌐 Web: "+compactList(web, 2, false))
	}
	if len(parts) == 0 {
		return ""
	}

	out := parts[0]
	for _, p := range parts[1:] {
		out += "\n" + p
	}
	return out
}

func compactList(items []string, limit int, italic bool) string {
	shown := items
	remaining := 0
	if len(items) > limit {
		shown = items[:limit]
		remaining = len(items) - limit
	}

	out := ""
	for i, s := range shown {
		if i > 0 {
			out += ", "
		}
		if italic {
			out += "*" + s + "*"
		} else {
			out += s
		}
	}
	if remaining > 0 {
		out += " (+" + strconv.Itoa(remaining) + " more)"
	}
	return out
}
