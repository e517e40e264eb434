// Package optimizer asks an LLM to draft improved variants of an existing
// prompt, optionally saving a chosen variant as the next version.
package optimizer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/promptlab/promptlab/internal/llm"
	"github.com/promptlab/promptlab/internal/models"
	"github.com/promptlab/promptlab/internal/rubric"
	"github.com/promptlab/promptlab/internal/store"
)

const (
	variantMaxTokens   = 4096
	variantTemperature = 0.8
	defaultVariants    = 3
	maxVariants        = 5
)

type Optimizer struct {
	llm    llm.Completer
	store  store.Store
	model  string
	logger *slog.Logger
}

func New(completer llm.Completer, st store.Store, model string, logger *slog.Logger) *Optimizer {
	return &Optimizer{
		llm:    completer,
		store:  st,
		model:  model,
		logger: logger,
	}
}

// GenerateVariants asks the oracle for count improved variants of original,
// focused on focus ("clarity", "brevity", "balanced", ...). Count is clamped
// to [1, 5]. The oracle may return fewer variants than asked; that is passed
// through, never padded.
func (o *Optimizer) GenerateVariants(ctx context.Context, original, focus string, count int) ([]string, error) {
	if count < 1 {
		count = defaultVariants
	}
	if count > maxVariants {
		count = maxVariants
	}

	reply, err := o.llm.Complete(ctx, llm.CompletionRequest{
		Prompt:      rubric.BuildVariantPrompt(original, focus, count),
		Model:       o.model,
		MaxTokens:   variantMaxTokens,
		Temperature: variantTemperature,
	})
	if err != nil {
		return nil, fmt.Errorf("generate variants: %w", err)
	}

	variants := rubric.SplitVariants(reply, count)
	if len(variants) < count {
		o.logger.Warn("oracle returned fewer variants than requested",
			"requested", count, "got", len(variants))
	}
	return variants, nil
}

// GenerateForVersion loads the version's content and generates variants
// from it.
func (o *Optimizer) GenerateForVersion(ctx context.Context, versionID uuid.UUID, focus string, count int) ([]string, error) {
	v, err := o.store.GetVersion(ctx, versionID)
	if err != nil {
		return nil, fmt.Errorf("load version: %w", err)
	}
	return o.GenerateVariants(ctx, v.Content, focus, count)
}

// SaveVariant records a chosen variant as the prompt's next version, noting
// the optimization focus it came from.
func (o *Optimizer) SaveVariant(ctx context.Context, promptID uuid.UUID, content, focus string) (*models.PromptVersion, error) {
	notes := "Generated variant"
	if focus != "" {
		notes = fmt.Sprintf("Generated variant (focus: %s)", focus)
	}
	v, err := o.store.CreateVersion(ctx, promptID, content, notes, []string{"generated"})
	if err != nil {
		return nil, fmt.Errorf("save variant: %w", err)
	}
	return v, nil
}
