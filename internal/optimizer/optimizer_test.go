package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptlab/promptlab/internal/llm"
	"github.com/promptlab/promptlab/internal/store"
)

type fixedCompleter struct {
	reply string
	err   error
	last  llm.CompletionRequest
}

func (c *fixedCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	c.last = req
	return c.reply, c.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&strings.Builder{}, nil))
}

func TestGenerateVariantsParsesBlocks(t *testing.T) {
	oracle := &fixedCompleter{reply: `VARIANT 1:
---
First improved prompt.
---

VARIANT 2:
---
Second improved prompt.
---
`}
	o := New(oracle, store.NewMemory(), "test-model", testLogger())

	variants, err := o.GenerateVariants(context.Background(), "original", "clarity", 2)
	require.NoError(t, err)
	require.Len(t, variants, 2)
	assert.Equal(t, "First improved prompt.", variants[0])
	assert.Equal(t, "Second improved prompt.", variants[1])
	assert.Contains(t, oracle.last.Prompt, "Optimization focus: clarity")
	assert.Contains(t, oracle.last.Prompt, "original")
}

func TestGenerateVariantsClampsCount(t *testing.T) {
	oracle := &fixedCompleter{reply: "VARIANT 1:\n---\nonly one\n---"}
	o := New(oracle, store.NewMemory(), "test-model", testLogger())

	_, err := o.GenerateVariants(context.Background(), "original", "", 0)
	require.NoError(t, err)
	assert.Contains(t, oracle.last.Prompt, "Generate 3 improved variants")

	_, err = o.GenerateVariants(context.Background(), "original", "", 99)
	require.NoError(t, err)
	assert.Contains(t, oracle.last.Prompt, "Generate 5 improved variants")
}

func TestGenerateVariantsFewerThanRequested(t *testing.T) {
	oracle := &fixedCompleter{reply: "VARIANT 1:\n---\nonly one\n---"}
	o := New(oracle, store.NewMemory(), "test-model", testLogger())

	variants, err := o.GenerateVariants(context.Background(), "original", "brevity", 3)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Equal(t, "only one", variants[0])
}

func TestGenerateVariantsOracleFailure(t *testing.T) {
	oracle := &fixedCompleter{err: fmt.Errorf("%w: down", llm.ErrUnavailable)}
	o := New(oracle, store.NewMemory(), "test-model", testLogger())

	_, err := o.GenerateVariants(context.Background(), "original", "", 2)
	assert.ErrorIs(t, err, llm.ErrUnavailable)
}

func TestGenerateForVersionUsesStoredContent(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	p, err := st.CreatePrompt(ctx, "p", "", "stored prompt content")
	require.NoError(t, err)
	v, err := st.GetCurrentVersion(ctx, p.ID)
	require.NoError(t, err)

	oracle := &fixedCompleter{reply: "VARIANT 1:\n---\nbetter\n---"}
	o := New(oracle, st, "test-model", testLogger())

	variants, err := o.GenerateForVersion(ctx, v.ID, "", 1)
	require.NoError(t, err)
	require.Len(t, variants, 1)
	assert.Contains(t, oracle.last.Prompt, "stored prompt content")
}

func TestSaveVariantCreatesNextVersion(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	p, err := st.CreatePrompt(ctx, "p", "", "v1")
	require.NoError(t, err)

	o := New(&fixedCompleter{}, st, "test-model", testLogger())
	v, err := o.SaveVariant(ctx, p.ID, "improved content", "safety")
	require.NoError(t, err)
	assert.Equal(t, 2, v.Version)
	assert.Equal(t, "improved content", v.Content)
	assert.Equal(t, "Generated variant (focus: safety)", v.Notes)
	assert.Equal(t, []string{"generated"}, v.Tags)
}
