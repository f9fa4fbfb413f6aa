// Package compose implements the Context Composer (C8): assembles the
// message list handed to a Provider from the system identity, date,
// shim-mode tool prelude, summarized conversation history, per-turn
// retrieved context (brain/web search, past-conversation hits), and the
// user turn. Grounded on spec.md §4.8's six-step ordered composition;
// the lines-builder idiom (trim-and-filter-then-join sections) is
// adapted from the teacher's internal/gateway/system_prompt.go
// buildSystemPrompt, since original_source has no standalone composer
// file to port line-for-line — slack_bot.py's own orchestration was
// trimmed out of the retrieval pack.
package compose

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/earchibald/brainbridge/internal/conversation"
	"github.com/earchibald/brainbridge/internal/facts"
	"github.com/earchibald/brainbridge/internal/models"
	"github.com/earchibald/brainbridge/internal/providers"
	"github.com/earchibald/brainbridge/internal/tools"
	"github.com/earchibald/brainbridge/internal/toolexec"
)

// DefaultTokenBudget is B in spec §4.8, the overall composer budget.
const DefaultTokenBudget = 6000

// minBrainQueryLength is the "query length exceeds a minimum" guard on
// brain-search injection (spec §4.8 step 5).
const minBrainQueryLength = 10

// pastConversationLimit bounds how many historical-turn hits the
// composer injects — "optional, small" per spec.
const pastConversationLimit = 3

// factContextTokenReserve is a rough reservation carved out of the
// budget ahead of summarizing conversation history, leaving room for
// the identity/date/tool-prelude/retrieved-context sections that are
// composed around it.
const factContextTokenReserve = 800

// FactsOpener opens (or lazily creates) a user's facts store. Reused
// from internal/tools so the composer and the facts tool share the
// exact same store-construction path.
type FactsOpener = tools.FactsStoreOpener

// Composer builds provider-ready message lists per inbound event.
type Composer struct {
	conv        *conversation.Manager
	openFacts   FactsOpener
	registry    *tools.Registry
	toolExec    *toolexec.ToolExecutor
	tokenBudget int
	logger      *slog.Logger
}

// New builds a Composer. tokenBudget <= 0 falls back to DefaultTokenBudget.
func New(conv *conversation.Manager, openFacts FactsOpener, registry *tools.Registry, toolExec *toolexec.ToolExecutor, tokenBudget int, logger *slog.Logger) *Composer {
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{
		conv:        conv,
		openFacts:   openFacts,
		registry:    registry,
		toolExec:    toolExec,
		tokenBudget: tokenBudget,
		logger:      logger.With("component", "context_composer"),
	}
}

// Request bundles the per-call inputs Build needs beyond the event
// itself: whether the active provider wants a shim-mode tool prelude
// (native providers receive specs out-of-band instead), the
// summarizer to compress history with, and any text already extracted
// from attachments.
type Request struct {
	Event             *models.InboundEvent
	UseShimToolPrompt bool
	Summarizer        conversation.Summarizer
	AttachmentContent string
}

// Composed is the output of Build: a system prompt (steps 1-3) handed to
// providers.GenerateRequest.System, and the message sequence (steps 4-6)
// handed to providers.GenerateRequest.Messages — matching the split the
// uniform Provider.Generate contract already expects.
type Composed struct {
	System   string
	Messages []providers.Message
}

// Build assembles the system prompt and message list for one turn, per
// spec §4.8.
func (c *Composer) Build(ctx context.Context, req Request) (Composed, error) {
	event := req.Event
	classification := event.Classification
	if classification == nil {
		classification = &models.IntentClassification{EnableBrain: true, EnableFacts: true}
	}

	var systemLines []string

	systemLines = append(systemLines, identityLine())

	if factCtx := c.factContext(event.UserID, event.Text, classification); factCtx != "" {
		systemLines = append(systemLines, factCtx)
	}

	systemLines = append(systemLines, dateLine())

	if req.UseShimToolPrompt && c.toolExec != nil {
		if shimPrompt := c.toolExec.BuildShimPrompt(event.UserID); shimPrompt != "" {
			systemLines = append(systemLines, shimPrompt)
		}
	}

	var messages []providers.Message

	messages = append(messages, c.history(ctx, req)...)

	if retrieved := c.retrievedContext(ctx, event, classification); retrieved != "" {
		messages = append(messages, providers.Message{Role: "system", Content: retrieved})
	}

	messages = append(messages, providers.Message{Role: "user", Content: userTurn(req.AttachmentContent, event.Text)})

	return Composed{System: strings.Join(systemLines, "\n\n"), Messages: messages}, nil
}

func identityLine() string {
	return "You are a helpful conversational assistant reachable by direct message. " +
		"Be concise, direct, and honest about uncertainty."
}

func dateLine() string {
	return fmt.Sprintf("Today is %s.", time.Now().Format("2006-01-02"))
}

func userTurn(attachmentContent, text string) string {
	attachmentContent = strings.TrimSpace(attachmentContent)
	if attachmentContent == "" {
		return text
	}
	return attachmentContent + "\n\n" + text
}

// factContext injects the user's stored facts only when the intent
// classifier both enabled facts and the message looks like it
// references personal context (facts.MessageReferencesPersonalContext).
func (c *Composer) factContext(userID, text string, classification *models.IntentClassification) string {
	if !classification.EnableFacts || c.openFacts == nil || !facts.MessageReferencesPersonalContext(text) {
		return ""
	}
	store, err := c.openFacts(userID)
	if err != nil {
		c.logger.Warn("failed to open facts store for context injection", "user_id", userID, "error", err)
		return ""
	}
	return store.ContextString(factCount)
}

const factCount = 20

func (c *Composer) history(ctx context.Context, req Request) []providers.Message {
	event := req.Event
	if c.conv == nil {
		return nil
	}
	messages, err := c.conv.Load(event.UserID, event.ThreadID)
	if err != nil {
		c.logger.Warn("failed to load conversation history", "user_id", event.UserID, "thread_id", event.ThreadID, "error", err)
		return nil
	}

	budget := c.tokenBudget - factContextTokenReserve
	if budget < 0 {
		budget = c.tokenBudget
	}
	summarized := conversation.Summarize(ctx, req.Summarizer, messages, budget, conversation.KeepRecent)

	out := make([]providers.Message, 0, len(summarized))
	for _, m := range summarized {
		out = append(out, providers.Message{Role: string(m.Role), Content: m.Content})
	}
	return out
}

// retrievedContext runs brain/web search and past-conversation lookup
// per the active intent flags and joins whatever comes back into one
// auxiliary system turn, spec §4.8 step 5.
func (c *Composer) retrievedContext(ctx context.Context, event *models.InboundEvent, classification *models.IntentClassification) string {
	var parts []string

	if classification.EnableBrain && !event.HasAttachments && len(strings.TrimSpace(event.Text)) >= minBrainQueryLength {
		if content := c.runTool(ctx, "brain_search", event.UserID, event.Text); content != "" {
			parts = append(parts, "Brain search results:\n"+content)
		}
	}

	if classification.EnableWeb && !event.HasAttachments {
		if content := c.runTool(ctx, "web_search", event.UserID, event.Text); content != "" {
			parts = append(parts, "Web search results:\n"+content)
		}
	}

	if past := c.pastConversationContext(event); past != "" {
		parts = append(parts, past)
	}

	if len(parts) == 0 {
		return ""
	}
	return strings.Join(parts, "\n\n")
}

// runTool directly invokes a registered builtin tool (rather than
// routing through the LLM tool loop) so the composer can pre-seed
// context without spending a tool-call round — grounded on
// tool_executor.py's execute_tool_call, reused here as a plain function
// call since the Registry already owns relevance filtering and source
// tracking for these tools.
func (c *Composer) runTool(ctx context.Context, name, userID, query string) string {
	if c.registry == nil {
		return ""
	}
	t, ok := c.registry.Get(name)
	if !ok {
		return ""
	}
	result, err := t.Execute(ctx, userID, map[string]any{"query": query})
	if err != nil || !result.Success {
		return ""
	}
	return result.Content
}

func (c *Composer) pastConversationContext(event *models.InboundEvent) string {
	if c.conv == nil {
		return ""
	}
	hits, err := c.conv.SearchPast(event.Text, event.UserID, pastConversationLimit)
	if err != nil || len(hits) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString("Relevant past conversation:\n")
	for _, h := range hits {
		fmt.Fprintf(&b, "- [%s] %s\n", h.Role, truncate(h.Content, 200))
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
