package hooks

import (
	"context"
	"strings"
	"testing"

	"github.com/earchibald/brainbridge/internal/models"
	"github.com/earchibald/brainbridge/internal/sourcetrack"
)

func TestTrackerInstallerInstallsFreshTracker(t *testing.T) {
	ctx := TrackerInstaller{}.Install(context.Background())
	tracker := sourcetrack.FromContext(ctx)
	if tracker == nil {
		t.Fatal("expected a tracker to be installed")
	}
	if tracker.HasSources() {
		t.Fatal("expected a freshly installed tracker to have no sources")
	}
}

func TestCitationPostHookNoTrackerLeavesResponseUnchanged(t *testing.T) {
	hook := CitationPostHook(context.Background())
	got, replaced := hook("hello", &models.InboundEvent{})
	if replaced || got != "hello" {
		t.Fatalf("got = %q, replaced = %v, want unchanged", got, replaced)
	}
}

func TestCitationPostHookNoSourcesLeavesResponseUnchanged(t *testing.T) {
	ctx := sourcetrack.WithTracker(context.Background(), sourcetrack.New())
	hook := CitationPostHook(ctx)
	got, replaced := hook("hello", &models.InboundEvent{})
	if replaced || got != "hello" {
		t.Fatalf("got = %q, replaced = %v, want unchanged", got, replaced)
	}
}

func TestCitationPostHookAppendsBrainAndWebSources(t *testing.T) {
	tracker := sourcetrack.New()
	tracker.RecordSource("brain_search", true, []string{"notes.md", "journal.md"}, nil)
	tracker.RecordSource("web_search", true, []string{"https://example.com"}, nil)
	ctx := sourcetrack.WithTracker(context.Background(), tracker)

	hook := CitationPostHook(ctx)
	got, replaced := hook("hello", &models.InboundEvent{})
	if !replaced {
		t.Fatal("expected the response to be replaced with a citation block")
	}
	if !strings.HasPrefix(got, "hello\n\n---\n") {
		t.Fatalf("expected the citation block appended after a separator, got %q", got)
	}
	if !strings.Contains(got, "Brain:") || !strings.Contains(got, "notes.md") {
		t.Fatalf("expected brain sources listed, got %q", got)
	}
	if !strings.Contains(got, "Web:") || !strings.Contains(got, "example.com") {
		t.Fatalf("expected web sources listed, got %q", got)
	}
}

func TestCitationPostHookTruncatesToLimitsWithMoreCount(t *testing.T) {
	tracker := sourcetrack.New()
	tracker.RecordSource("brain_search", true, []string{"a.md", "b.md", "c.md", "d.md"}, nil)
	ctx := sourcetrack.WithTracker(context.Background(), tracker)

	hook := CitationPostHook(ctx)
	got, _ := hook("hello", &models.InboundEvent{})
	if !strings.Contains(got, "(+1 more)") {
		t.Fatalf("expected a truncation marker for the 4th brain source, got %q", got)
	}
	if strings.Contains(got, "d.md") {
		t.Fatalf("expected the 4th source to be truncated out, got %q", got)
	}
}
