package solvecmder

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"gopkg.in/yaml.v3"

	"github.com/papercomputeco/quizagent/pkg/quiz"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	labelStyle   = lipgloss.NewStyle().Faint(true).Width(12)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

// RenderSummary formats a run outcome for the terminal.
func RenderSummary(outcome *quiz.RunOutcome) string {
	causeStyle := failureStyle
	if outcome.Cause.Succeeded() {
		causeStyle = successStyle
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Quiz run"))
	b.WriteString("\n")
	row := func(label, value string) {
		b.WriteString(labelStyle.Render(label))
		b.WriteString(value)
		b.WriteString("\n")
	}
	row("cause", causeStyle.Render(string(outcome.Cause)))
	row("start", outcome.StartURL)
	row("last", outcome.LastURL)
	row("questions", fmt.Sprintf("%d", outcome.Iterations))
	row("duration", outcome.Duration().Round(time.Millisecond).String())
	if outcome.Reason != "" {
		row("reason", outcome.Reason)
	}
	if outcome.Error != "" {
		row("error", outcome.Error)
	}

	for i, q := range outcome.Questions {
		b.WriteString("\n")
		verdict := failureStyle.Render(string(q.Verdict))
		if q.Verdict == quiz.VerdictCorrect {
			verdict = successStyle.Render(string(q.Verdict))
		}
		b.WriteString(fmt.Sprintf("%d. %s  %s", i+1, verdict, q.URL))
		if q.Answer != nil {
			b.WriteString(fmt.Sprintf("  answer=%s", formatAnswer(q.Answer)))
		}
		if q.Attempts > 1 {
			b.WriteString(fmt.Sprintf("  attempts=%d", q.Attempts))
		}
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func formatAnswer(answer any) string {
	s := formatAnswerExact(answer)
	if len(s) > 60 {
		s = s[:60] + "..."
	}
	return s
}

// MarshalReport encodes outcome as YAML. Answers keep their JSON form so
// numbers stay exact.
func MarshalReport(outcome *quiz.RunOutcome) ([]byte, error) {
	report := *outcome
	report.Questions = make([]quiz.QuestionOutcome, len(outcome.Questions))
	for i, q := range outcome.Questions {
		if q.Answer != nil {
			q.Answer = formatAnswerExact(q.Answer)
		}
		report.Questions[i] = q
	}

	data, err := yaml.Marshal(&report)
	if err != nil {
		return nil, fmt.Errorf("could not encode report: %w", err)
	}
	return data, nil
}

func formatAnswerExact(answer any) string {
	data, err := json.Marshal(answer)
	if err != nil {
		return fmt.Sprint(answer)
	}
	return string(data)
}
