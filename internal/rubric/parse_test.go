package rubric

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractScore(t *testing.T) {
	t.Run("well-formed label line", func(t *testing.T) {
		text := "CLARITY SCORE: 73\n\nISSUES FOUND:\nnone worth mentioning"
		score := ExtractScore(text, Clarity.ScorePattern())
		require.NotNil(t, score)
		assert.Equal(t, 73, *score)
	})

	t.Run("label embedded mid-text", func(t *testing.T) {
		text := "Here is my assessment.\nOVERALL SCORE: 88\nSTRENGTHS: concise"
		score := ExtractScore(text, General.ScorePattern())
		require.NotNil(t, score)
		assert.Equal(t, 88, *score)
	})

	t.Run("missing label returns nil not zero", func(t *testing.T) {
		score := ExtractScore("the prompt looks fine to me", Clarity.ScorePattern())
		assert.Nil(t, score)
	})

	t.Run("wrong label returns nil", func(t *testing.T) {
		score := ExtractScore("SAFETY SCORE: 50", Clarity.ScorePattern())
		assert.Nil(t, score)
	})

	t.Run("out of range returns nil", func(t *testing.T) {
		score := ExtractScore("CLARITY SCORE: 250", Clarity.ScorePattern())
		assert.Nil(t, score)
	})

	t.Run("boundary values accepted", func(t *testing.T) {
		zero := ExtractScore("CLARITY SCORE: 0", Clarity.ScorePattern())
		require.NotNil(t, zero)
		assert.Equal(t, 0, *zero)

		hundred := ExtractScore("CLARITY SCORE: 100", Clarity.ScorePattern())
		require.NotNil(t, hundred)
		assert.Equal(t, 100, *hundred)
	})

	t.Run("first match wins", func(t *testing.T) {
		score := ExtractScore("SCORE: 40\nSCORE: 90", EvalScorePattern)
		require.NotNil(t, score)
		assert.Equal(t, 40, *score)
	})
}

func TestExtractScoreFloat(t *testing.T) {
	t.Run("parses to float", func(t *testing.T) {
		score := ExtractScoreFloat("SCORE: 85\n\nSTRENGTHS: good", EvalScorePattern)
		require.NotNil(t, score)
		assert.InDelta(t, 85.0, *score, 0.001)
	})

	t.Run("absent returns nil", func(t *testing.T) {
		assert.Nil(t, ExtractScoreFloat("no verdict given", EvalScorePattern))
	})
}

func TestSplitVariants(t *testing.T) {
	t.Run("three well-formed blocks", func(t *testing.T) {
		text := `Here are the variants:

VARIANT 1:
---
You are a helpful assistant.
---

VARIANT 2:
---
You are a concise assistant.
Answer briefly.
---

VARIANT 3:
---
You are a careful assistant.
---
`
		variants := SplitVariants(text, 3)
		require.Len(t, variants, 3)
		assert.Equal(t, "You are a helpful assistant.", variants[0])
		assert.Equal(t, "You are a concise assistant.\nAnswer briefly.", variants[1])
		assert.Equal(t, "You are a careful assistant.", variants[2])
	})

	t.Run("fewer blocks than requested", func(t *testing.T) {
		text := `VARIANT 1:
---
first
---

VARIANT 2:
---
second
---
`
		variants := SplitVariants(text, 3)
		assert.Len(t, variants, 2)
	})

	t.Run("truncates surplus blocks", func(t *testing.T) {
		text := "VARIANT 1:\n---\na\n---\nVARIANT 2:\n---\nb\n---\nVARIANT 3:\n---\nc\n---\n"
		variants := SplitVariants(text, 2)
		require.Len(t, variants, 2)
		assert.Equal(t, []string{"a", "b"}, variants)
	})

	t.Run("dangling open block emitted", func(t *testing.T) {
		text := "VARIANT 1:\n---\nunterminated variant body"
		variants := SplitVariants(text, 3)
		require.Len(t, variants, 1)
		assert.Equal(t, "unterminated variant body", variants[0])
	})

	t.Run("prose outside blocks discarded", func(t *testing.T) {
		text := "Sure, here you go.\nVARIANT 1:\nsome chatter before the block\n---\nbody\n---\ntrailing chatter"
		variants := SplitVariants(text, 1)
		require.Len(t, variants, 1)
		assert.Equal(t, "body", variants[0])
	})

	t.Run("no blocks at all", func(t *testing.T) {
		assert.Empty(t, SplitVariants("I cannot produce variants.", 3))
	})
}
