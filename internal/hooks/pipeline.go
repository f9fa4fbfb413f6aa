// Package hooks also provides the narrower pre/post Hook Pipeline (C7)
// used by the Message Pipeline around a single turn's generation step —
// distinct from the broader pub-sub event bus above (Registry/Event/
// Handler), which remains for lifecycle/tool/session events. Pipeline's
// registration-is-additive, execute-in-registration-order, a-failing-
// hook-is-logged-and-skipped contract is grounded on spec.md §4.7 and
// adapted from Registry's priority-ordered dispatch, simplified to plain
// append-order since C7 has no priority concept.
package hooks

import (
	"log/slog"

	"github.com/earchibald/brainbridge/internal/models"
)

// PreHook may mutate event in place (e.g. to attach an intent
// classification) before the turn is composed and generated.
type PreHook func(event *models.InboundEvent)

// PostHook observes the generated response and may replace it by
// returning a non-empty string and true; returning false keeps the
// prior response unchanged for the next hook in the chain.
type PostHook func(response string, event *models.InboundEvent) (string, bool)

// Pipeline holds the ordered pre/post hook chains for one pipeline
// instance (process-wide; not per-request).
type Pipeline struct {
	pre    []namedPreHook
	post   []namedPostHook
	logger *slog.Logger
}

type namedPreHook struct {
	name string
	fn   PreHook
}

type namedPostHook struct {
	name string
	fn   PostHook
}

// NewPipeline creates an empty pre/post hook pipeline.
func NewPipeline(logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{logger: logger.With("component", "hook_pipeline")}
}

// RegisterPre appends a pre-process hook. Registration order is
// execution order.
func (p *Pipeline) RegisterPre(name string, fn PreHook) {
	p.pre = append(p.pre, namedPreHook{name: name, fn: fn})
}

// RegisterPost appends a post-process hook.
func (p *Pipeline) RegisterPost(name string, fn PostHook) {
	p.post = append(p.post, namedPostHook{name: name, fn: fn})
}

// RunPre executes every pre-hook in registration order. A hook that
// panics is logged and skipped; subsequent hooks still run.
func (p *Pipeline) RunPre(event *models.InboundEvent) {
	for _, h := range p.pre {
		p.safeRunPre(h, event)
	}
}

func (p *Pipeline) safeRunPre(h namedPreHook, event *models.InboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("pre-hook panicked, skipping", "hook", h.name, "panic", r)
		}
	}()
	h.fn(event)
}

// RunPost executes every post-hook in registration order, threading the
// response through the chain: each hook sees the prior hook's output. A
// hook that panics is logged and skipped, preserving the response as it
// stood before that hook ran.
func (p *Pipeline) RunPost(response string, event *models.InboundEvent) string {
	current := response
	for _, h := range p.post {
		current = p.safeRunPost(h, current, event)
	}
	return current
}

func (p *Pipeline) safeRunPost(h namedPostHook, response string, event *models.InboundEvent) (result string) {
	result = response
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("post-hook panicked, keeping prior response", "hook", h.name, "panic", r)
			result = response
		}
	}()
	if next, replaced := h.fn(response, event); replaced {
		return next
	}
	return response
}
