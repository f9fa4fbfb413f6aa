package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/earchibald/brainbridge/internal/models"
)

// FactsCheckSkill is a category="skill" tool: it never appears on
// user-facing enable/disable surfaces (Registry.EnabledForLLM exempts
// skills from the per-user disable check), but remains LLM-callable at
// all times. Calling it returns an instruction reminding the LLM to
// consult FACTS context before answering a personal question, rather
// than performing any I/O itself. Grounded on facts_check_skill.py's
// FactsCheckSkill.
type FactsCheckSkill struct{}

// NewFactsCheckSkill builds the facts-check skill.
func NewFactsCheckSkill() *FactsCheckSkill {
	return &FactsCheckSkill{}
}

func (s *FactsCheckSkill) Spec() models.Tool {
	return models.Tool{
		Name:        "facts_check",
		DisplayName: "Facts Check",
		Description: "Check the user's stored personal facts before answering. Call this when the user asks about their preferences, personal details, health information, contacts, goals, or other personal context.",
		Category:    models.ToolCategorySkill,
		ParametersSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"context": map[string]any{
					"type":        "string",
					"description": "Brief description of what personal context is needed (e.g., 'coffee preferences', 'family members', 'health goals')",
				},
			},
			"required": []any{"context"},
		},
	}
}

func (s *FactsCheckSkill) Execute(ctx context.Context, userID string, args map[string]any) (models.ToolResult, error) {
	personalContext, _ := args["context"].(string)
	if personalContext == "" {
		personalContext = "personal information"
	}

	instruction := fmt.Sprintf(
		"REMINDER: Check the user's stored FACTS for %s. "+
			"The FACTS system contains personal details, preferences, health info, "+
			"contacts, goals, and other persistent user context. "+
			"If relevant facts have been injected into the system prompt, "+
			"use them to personalize your response. "+
			"If no matching facts are available, ask the user for the information "+
			"and suggest storing it with the FACTS tool for future reference.",
		personalContext,
	)

	return models.ToolResult{
		ToolName:   "facts_check",
		Success:    true,
		Content:    instruction,
		ExecutedAt: time.Now(),
	}, nil
}

func (s *FactsCheckSkill) HealthCheck(ctx context.Context) bool { return true }
