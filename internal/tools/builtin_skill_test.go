package tools

import (
	"context"
	"strings"
	"testing"

	"github.com/earchibald/brainbridge/internal/models"
)

func TestFactsCheckSkillSpecIsSkillCategory(t *testing.T) {
	skill := NewFactsCheckSkill()
	if skill.Spec().Category != models.ToolCategorySkill {
		t.Fatalf("expected skill category, got %q", skill.Spec().Category)
	}
}

func TestFactsCheckSkillExecuteIncludesContext(t *testing.T) {
	skill := NewFactsCheckSkill()
	result, err := skill.Execute(context.Background(), "u1", map[string]any{"context": "coffee preferences"})
	if err != nil || !result.Success {
		t.Fatalf("Execute() = %+v, err = %v", result, err)
	}
	if !strings.Contains(result.Content, "coffee preferences") {
		t.Fatalf("expected the requested context to appear in the instruction, got %q", result.Content)
	}
}

func TestFactsCheckSkillExecuteDefaultsContextWhenMissing(t *testing.T) {
	skill := NewFactsCheckSkill()
	result, _ := skill.Execute(context.Background(), "u1", map[string]any{})
	if !strings.Contains(result.Content, "personal information") {
		t.Fatalf("expected a default context phrase, got %q", result.Content)
	}
}

func TestFactsCheckSkillHealthCheckAlwaysTrue(t *testing.T) {
	skill := NewFactsCheckSkill()
	if !skill.HealthCheck(context.Background()) {
		t.Fatal("expected facts_check skill to always report healthy")
	}
}
