package llm

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoFinalAnswer is returned when reply text contains no final answer object.
var ErrNoFinalAnswer = errors.New("no final answer object in reply")

// FinalAnswer is the terminal artifact of a reasoning invocation.
type FinalAnswer struct {
	// Answer is submitted verbatim. Numbers are kept as json.Number so they
	// are re-encoded exactly as the model wrote them.
	Answer any `json:"answer" yaml:"answer"`

	SubmissionURL string `json:"submission_url" yaml:"submission_url"`
	Reasoning     string `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

// ParseFinalAnswer extracts a FinalAnswer from assistant reply text.
//
// The whole text is tried first. If it is not a JSON object, the substring
// between the first '{' and the last '}' is tried, which recovers answers
// wrapped in prose or markdown fences. The object must carry an "answer" key.
func ParseFinalAnswer(text string) (*FinalAnswer, error) {
	answer, err := decodeFinalAnswer(strings.TrimSpace(text))
	if err == nil {
		return answer, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: %v", ErrNoFinalAnswer, err)
	}

	answer, fallbackErr := decodeFinalAnswer(text[start : end+1])
	if fallbackErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoFinalAnswer, fallbackErr)
	}
	return answer, nil
}

func decodeFinalAnswer(text string) (*FinalAnswer, error) {
	var fields map[string]json.RawMessage
	if err := decodeStrict(text, &fields); err != nil {
		return nil, err
	}
	if _, ok := fields["answer"]; !ok {
		return nil, errors.New(`object has no "answer" field`)
	}

	var answer FinalAnswer
	if err := decodeStrict(text, &answer); err != nil {
		return nil, err
	}
	return &answer, nil
}

// decodeStrict decodes exactly one JSON value, keeping numbers as json.Number.
func decodeStrict(text string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return errors.New("trailing data after JSON value")
	}
	return nil
}
