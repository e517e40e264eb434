// Package rubric holds the evaluation templates sent to the judge and the
// parsers that recover structured signals from its free-form replies.
package rubric

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Dimension is one of the five fixed quality axes a prompt is scored on.
type Dimension string

const (
	Clarity      Dimension = "clarity"
	Completeness Dimension = "completeness"
	Efficiency   Dimension = "efficiency"
	Safety       Dimension = "safety"
	General      Dimension = "general"
)

// Dimensions returns all axes in the order analyses are run and displayed.
func Dimensions() []Dimension {
	return []Dimension{Clarity, Completeness, Efficiency, Safety, General}
}

// ParseDimension maps free text to a dimension, falling back to General for
// anything unrecognized.
func ParseDimension(s string) Dimension {
	switch Dimension(strings.ToLower(strings.TrimSpace(s))) {
	case Clarity:
		return Clarity
	case Completeness:
		return Completeness
	case Efficiency:
		return Efficiency
	case Safety:
		return Safety
	default:
		return General
	}
}

// ScoreLabel is the label the judge is instructed to put in front of the
// numeric score. The label varies per dimension but the line format is
// uniform: "<LABEL>: <0-100>".
func (d Dimension) ScoreLabel() string {
	if d == General {
		return "OVERALL SCORE"
	}
	return strings.ToUpper(string(d)) + " SCORE"
}

// ScorePattern returns the regexp that extracts this dimension's score line.
func (d Dimension) ScorePattern() *regexp.Regexp {
	return regexp.MustCompile(d.ScoreLabel() + `:\s*(\d+)`)
}

// EvalScorePattern matches the bare "SCORE:" line used by judge evaluations
// of test output.
var EvalScorePattern = regexp.MustCompile(`SCORE:\s*(\d+)`)

// analysisTemplates is the registry of meta-prompts, one per dimension. Each
// takes the subject text as its single argument and demands a fixed-format
// response whose first line carries the dimension's score label.
var analysisTemplates = map[Dimension]string{
	Clarity: `You are an expert in prompt engineering. Analyze the following system prompt for CLARITY and AMBIGUITY.

Evaluate:
1. Are instructions clear and unambiguous?
2. Could any part be misinterpreted?
3. Is the language precise and specific?
4. Are there any vague terms that need definition?

System prompt to analyze:
---
%s
---

Respond in this format:
CLARITY SCORE: [0-100]

ISSUES FOUND:
[List specific ambiguities and unclear instructions]

SUGGESTIONS:
[Concrete recommendations to improve clarity]
`,
	Completeness: `You are an expert in prompt engineering. Analyze the following system prompt for COMPLETENESS and ROBUSTNESS.

Evaluate:
1. Are edge cases handled?
2. Are there gaps in logic or instructions?
3. Does it handle malformed or unexpected inputs?
4. Are all necessary constraints specified?

System prompt to analyze:
---
%s
---

Respond in this format:
COMPLETENESS SCORE: [0-100]

MISSING ELEMENTS:
[List gaps in coverage]

EDGE CASES NOT HANDLED:
[List specific edge cases]

SUGGESTIONS:
[Concrete recommendations to improve completeness]
`,
	Efficiency: `You are an expert in prompt engineering. Analyze the following system prompt for EFFICIENCY and TOKEN USAGE.

Evaluate:
1. Is there unnecessary verbosity?
2. Can instructions be more concise without losing meaning?
3. Are there redundant statements?
4. Is the structure optimal?

System prompt to analyze:
---
%s
---

Respond in this format:
EFFICIENCY SCORE: [0-100]

REDUNDANCIES:
[List verbose or redundant parts]

OPTIMIZATION OPPORTUNITIES:
[Specific ways to reduce tokens while maintaining effectiveness]
`,
	Safety: `You are an expert in AI safety and prompt engineering. Analyze the following system prompt for SAFETY and ETHICAL CONSIDERATIONS.

Evaluate:
1. Are there potential misuse vectors?
2. Does it include appropriate safety guardrails?
3. Are there concerning biases?
4. Does it handle harmful requests appropriately?

System prompt to analyze:
---
%s
---

Respond in this format:
SAFETY SCORE: [0-100]

POTENTIAL RISKS:
[List safety concerns]

MISSING SAFEGUARDS:
[What safety measures should be added]

SUGGESTIONS:
[Concrete recommendations to improve safety]
`,
	General: `You are an expert in prompt engineering. Provide a comprehensive analysis of the following system prompt.

Evaluate across multiple dimensions:
1. Clarity and precision
2. Completeness and robustness
3. Efficiency and token usage
4. Safety and ethics

System prompt to analyze:
---
%s
---

Respond in this format:
OVERALL SCORE: [0-100]

STRENGTHS:
[What works well]

WEAKNESSES:
[What needs improvement]

PRIORITY RECOMMENDATIONS:
1. [Most important improvement]
2. [Second priority]
3. [Third priority]
`,
}

// BuildAnalysisPrompt renders the meta-prompt for one dimension. Unknown
// dimensions degrade to the general template; any input renders.
func BuildAnalysisPrompt(subject string, dim Dimension) string {
	tmpl, ok := analysisTemplates[dim]
	if !ok {
		tmpl = analysisTemplates[General]
	}
	return fmt.Sprintf(tmpl, subject)
}

// BuildVariantPrompt asks the judge for count improved variants of a prompt,
// each delimited by a "VARIANT <n>:" header and a "---" block.
func BuildVariantPrompt(original, focus string, count int) string {
	if count < 1 {
		count = 1
	}
	if focus == "" {
		focus = "balanced"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `You are an expert in prompt engineering. Generate %d improved variants of the following system prompt.

Optimization focus: %s

Original prompt:
---
%s
---

Generate %d variants, each optimizing for %s while maintaining the core intent.

Respond with each variant clearly separated:

`, count, focus, original, count, focus)

	for i := 1; i <= count; i++ {
		fmt.Fprintf(&b, "VARIANT %d:\n---\n[Variant %d]\n---\n\n", i, i)
	}
	return b.String()
}

// BuildJudgeEvaluationPrompt asks the judge to score a test output against
// free-text criteria, with an optional reference output.
func BuildJudgeEvaluationPrompt(output string, expected *string, criteria string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `You are an expert evaluator. Evaluate the following output based on the criteria provided.

Evaluation Criteria:
%s

`, criteria)

	if expected != nil && *expected != "" {
		fmt.Fprintf(&b, "Expected Output:\n---\n%s\n---\n\n", *expected)
	}

	fmt.Fprintf(&b, `Actual Output:
---
%s
---

Provide:
1. Score from 0-100
2. What was done well
3. What could be improved
4. Whether it meets the criteria

Format:
SCORE: [0-100]

STRENGTHS:
[What was done well]

WEAKNESSES:
[What could be improved]

VERDICT:
[Does it meet the criteria? Yes/No and why]
`, output)
	return b.String()
}

// NamedResponse pairs a display name with a candidate response for
// comparative ranking. VersionID lets callers correlate the ranked names
// back to stored versions; the prompt itself only uses the name.
type NamedResponse struct {
	Name      string    `json:"name"`
	Response  string    `json:"response"`
	VersionID uuid.UUID `json:"version_id,omitempty"`
}

// BuildComparisonPrompt asks the judge to rank several responses against the
// same criteria. The comparison is qualitative; no numeric score is
// requested.
func BuildComparisonPrompt(responses []NamedResponse, criteria string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert evaluator. Compare the following responses based on these criteria:\n\n%s\n\n", criteria)

	for i, resp := range responses {
		fmt.Fprintf(&b, "RESPONSE %d (%s):\n---\n%s\n---\n\n", i+1, resp.Name, resp.Response)
	}

	b.WriteString(`Provide:
1. Ranking from best to worst
2. Specific strengths and weaknesses of each
3. Overall recommendation

Format:
RANKING:
1. [Name] - [Brief reason]
2. [Name] - [Brief reason]
...

DETAILED ANALYSIS:
[Response name]: [Strengths] | [Weaknesses]
...

RECOMMENDATION:
[Which response is best and why]
`)
	return b.String()
}
