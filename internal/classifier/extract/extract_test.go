package extract

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsort/server/internal/classifier/model"
)

const validPayload = `{"category":"Produtivo","confidence":0.92,"urgency":"Alta","sentiment":"Neutro","summary":"Pedido de status","action_suggested":"Responder com o status","entities":["protocolo 123"],"draft_response":"Olá"}`

func TestCandidate(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"bare object", validPayload, validPayload},
		{"json fence", "```json\n" + validPayload + "\n```", validPayload},
		{"uppercase fence", "```JSON\n" + validPayload + "\n```", validPayload},
		{"untagged fence", "```\n" + validPayload + "\n```", validPayload},
		{"fence with whitespace", "  \n```json  \n" + validPayload + "\n```  \n", validPayload},
		{"inline fence", "```json " + validPayload + "```", validPayload},
		{"prose around", "Here is the analysis:\n" + validPayload + "\nLet me know.", validPayload},
		{"no braces", "sorry, I cannot help", "sorry, I cannot help"},
		{"reversed braces", "} nope {", "} nope {"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Candidate(tt.raw))
		})
	}
}

func TestExtract_ProductiveReply(t *testing.T) {
	raw := "```json\n" + validPayload + "\n```"

	got, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryProductive, got.Category)
	assert.InDelta(t, 0.92, got.Confidence, 1e-9)
	assert.Equal(t, model.UrgencyHigh, got.Urgency)
	assert.Equal(t, model.SentimentNeutral, got.Sentiment)
	assert.Equal(t, []string{"protocolo 123"}, got.Entities)
	assert.Equal(t, "Olá", got.DraftResponse)
}

func TestExtract_IgnoresUnknownAndNestedFields(t *testing.T) {
	raw := `{"meta":{"source":{"kind":"x"}},` + validPayload[1:]

	got, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryProductive, got.Category)
}

func TestExtract_NormalisesMedia(t *testing.T) {
	raw := strings.Replace(validPayload, `"Alta"`, `"Media"`, 1)

	got, err := Extract(raw)
	require.NoError(t, err)
	assert.Equal(t, model.UrgencyMedium, got.Urgency)
}

func TestExtract_Idempotent(t *testing.T) {
	first, err := Extract("noise " + validPayload + " noise")
	require.NoError(t, err)

	encoded, err := json.Marshal(first)
	require.NoError(t, err)

	second, err := Extract(string(encoded))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestExtract_Malformed(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":       "   ",
		"prose only":  "I could not classify this email.",
		"broken json": `{"category": "Produtivo", "confidence": }`,
		"array":       `[1, 2, 3]`,
		"oversized":   "{" + strings.Repeat(" ", maxPayloadLen) + "}",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Extract(raw)
			assert.ErrorIs(t, err, ErrMalformedOutput)
		})
	}
}

func TestExtract_SchemaViolation(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{"missing category", strings.Replace(validPayload, `"category":"Produtivo",`, "", 1), "category"},
		{"null summary", strings.Replace(validPayload, `"summary":"Pedido de status"`, `"summary":null`, 1), "summary"},
		{"string confidence", strings.Replace(validPayload, `0.92`, `"high"`, 1), "confidence"},
		{"confidence above one", strings.Replace(validPayload, `0.92`, `92`, 1), "confidence"},
		{"negative confidence", strings.Replace(validPayload, `0.92`, `-0.1`, 1), "confidence"},
		{"unknown category", strings.Replace(validPayload, `"Produtivo"`, `"Spam"`, 1), "category"},
		{"unknown sentiment", strings.Replace(validPayload, `"Neutro"`, `"Feliz"`, 1), "sentiment"},
		{"entities not array", strings.Replace(validPayload, `["protocolo 123"]`, `"protocolo 123"`, 1), "entities"},
		{"missing draft", strings.Replace(validPayload, `,"draft_response":"Olá"`, "", 1), "draft_response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Extract(tt.raw)
			require.ErrorIs(t, err, ErrSchemaViolation)
			assert.Contains(t, err.Error(), `"`+tt.field+`"`)
		})
	}
}

func TestExtract_EmptyEntities(t *testing.T) {
	raw := strings.Replace(validPayload, `["protocolo 123"]`, `[]`, 1)

	got, err := Extract(raw)
	require.NoError(t, err)
	assert.NotNil(t, got.Entities)
	assert.Empty(t, got.Entities)
}
