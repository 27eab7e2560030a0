package extract

import (
	"bytes"
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/goccy/go-json"

	"github.com/mailsort/server/internal/classifier/model"
)

// basic safety limits to avoid pathological replies
const (
	maxPayloadLen = 256 * 1024
	maxErrSnippet = 120
)

var (
	openFence  = regexp.MustCompile("(?i)^```[a-z0-9_+-]*[ \t]*\r?\n?")
	closeFence = regexp.MustCompile("\r?\n?[ \t]*```$")
)

var (
	categories = map[string]string{
		model.CategoryProductive:   model.CategoryProductive,
		model.CategoryUnproductive: model.CategoryUnproductive,
	}
	urgencies = map[string]string{
		model.UrgencyHigh:   model.UrgencyHigh,
		model.UrgencyMedium: model.UrgencyMedium,
		"Media":             model.UrgencyMedium,
		model.UrgencyLow:    model.UrgencyLow,
	}
	sentiments = map[string]string{
		model.SentimentPositive: model.SentimentPositive,
		model.SentimentNeutral:  model.SentimentNeutral,
		model.SentimentNegative: model.SentimentNegative,
	}
)

// Candidate isolates the JSON object candidate in a free-form model reply.
//
// Fence delimiters (with an optional language tag) are removed from both ends,
// then the text between the first '{' and the last '}' is returned. Without a
// well-ordered pair of braces the fence-stripped text is returned as is.
func Candidate(raw string) string {
	s := strings.TrimSpace(raw)
	s = openFence.ReplaceAllString(s, "")
	s = closeFence.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

// Extract parses raw into a ClassificationResult, validating every field.
func Extract(raw string) (model.ClassificationResult, error) {
	var out model.ClassificationResult

	payload := Candidate(raw)
	if payload == "" {
		return out, fmt.Errorf("%w: empty reply", ErrMalformedOutput)
	}
	if len(payload) > maxPayloadLen {
		return out, fmt.Errorf("%w: payload exceeds %d bytes", ErrMalformedOutput, maxPayloadLen)
	}
	if !utf8.ValidString(payload) {
		return out, fmt.Errorf("%w: invalid utf8", ErrMalformedOutput)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &fields); err != nil {
		return out, fmt.Errorf("%w: %v (near %q)", ErrMalformedOutput, err, snippet(payload))
	}
	if fields == nil {
		return out, fmt.Errorf("%w: reply is not a JSON object", ErrMalformedOutput)
	}

	var err error
	if out.Category, err = enumField(fields, "category", categories); err != nil {
		return model.ClassificationResult{}, err
	}
	if out.Confidence, err = confidenceField(fields); err != nil {
		return model.ClassificationResult{}, err
	}
	if out.Urgency, err = enumField(fields, "urgency", urgencies); err != nil {
		return model.ClassificationResult{}, err
	}
	if out.Sentiment, err = enumField(fields, "sentiment", sentiments); err != nil {
		return model.ClassificationResult{}, err
	}
	if out.Summary, err = stringField(fields, "summary"); err != nil {
		return model.ClassificationResult{}, err
	}
	if out.ActionSuggested, err = stringField(fields, "action_suggested"); err != nil {
		return model.ClassificationResult{}, err
	}
	if out.Entities, err = entitiesField(fields); err != nil {
		return model.ClassificationResult{}, err
	}
	if out.DraftResponse, err = stringField(fields, "draft_response"); err != nil {
		return model.ClassificationResult{}, err
	}
	return out, nil
}

func present(fields map[string]json.RawMessage, name string) (json.RawMessage, error) {
	v, ok := fields[name]
	if !ok {
		return nil, fmt.Errorf("%w: field %q: missing", ErrSchemaViolation, name)
	}
	if bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, fmt.Errorf("%w: field %q: null", ErrSchemaViolation, name)
	}
	return v, nil
}

func stringField(fields map[string]json.RawMessage, name string) (string, error) {
	v, err := present(fields, name)
	if err != nil {
		return "", err
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return "", fmt.Errorf("%w: field %q: expected string", ErrSchemaViolation, name)
	}
	return s, nil
}

func enumField(fields map[string]json.RawMessage, name string, allowed map[string]string) (string, error) {
	s, err := stringField(fields, name)
	if err != nil {
		return "", err
	}
	canonical, ok := allowed[strings.TrimSpace(s)]
	if !ok {
		return "", fmt.Errorf("%w: field %q: unexpected value %q", ErrSchemaViolation, name, s)
	}
	return canonical, nil
}

func confidenceField(fields map[string]json.RawMessage) (float64, error) {
	v, err := present(fields, "confidence")
	if err != nil {
		return 0, err
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return 0, fmt.Errorf("%w: field %q: expected number", ErrSchemaViolation, "confidence")
	}
	if math.IsNaN(f) || f < 0 || f > 1 {
		return 0, fmt.Errorf("%w: field %q: %v out of range [0,1]", ErrSchemaViolation, "confidence", f)
	}
	return f, nil
}

func entitiesField(fields map[string]json.RawMessage) ([]string, error) {
	v, err := present(fields, "entities")
	if err != nil {
		return nil, err
	}
	var items []string
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, fmt.Errorf("%w: field %q: expected array of strings", ErrSchemaViolation, "entities")
	}
	if items == nil {
		items = []string{}
	}
	return items, nil
}

func snippet(s string) string {
	if len(s) <= maxErrSnippet {
		return s
	}
	return s[:maxErrSnippet] + "..."
}
