package reasoner

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// SystemPrompt is the fixed instruction describing the agent's mandate and
// the required final answer shape.
const SystemPrompt = `You are an autonomous agent solving a data analysis quiz.
Your goal is to:
1. Identify the question and the submission URL from the page content.
2. Solve the question. Use the ` + "`run_python`" + ` tool to process data, download files, or perform calculations.
3. Return the final answer and submission URL in JSON format.

When using ` + "`run_python`" + `:
- You can use requests to download files.
- You can use pandas to analyze data.
- PRINT the result you want to see.

Format your FINAL response (when you have the answer) as a JSON object:
{
    "answer": <answer>,
    "submission_url": <url>,
    "reasoning": <brief reasoning>
}`

// userPrompt renders the page content, truncated, plus any rejection feedback.
func (e *Engine) userPrompt(req Request) string {
	var b strings.Builder

	if req.URL != "" {
		fmt.Fprintf(&b, "Page URL: %s\n\n", req.URL)
	}
	fmt.Fprintf(&b, "Page Text:\n%s\n\nPage HTML Source:\n%s",
		truncate(req.Text, e.config.TextLimit),
		truncate(req.Markup, e.config.MarkupLimit),
	)

	if len(req.Feedback) > 0 {
		b.WriteString("\n\nPrevious answers to this question were rejected:\n")
		for i, reason := range req.Feedback {
			if reason == "" {
				reason = "no reason given"
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, reason)
		}
		b.WriteString("Solve the question again and return a different answer.")
	}

	return b.String()
}

// truncate returns at most limit bytes of s without splitting a UTF-8 sequence.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
