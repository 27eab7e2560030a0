package model

import "time"

// Category values accepted in a classification.
const (
	CategoryProductive   = "Produtivo"
	CategoryUnproductive = "Improdutivo"
)

// Urgency values accepted in a classification.
const (
	UrgencyHigh   = "Alta"
	UrgencyMedium = "Média"
	UrgencyLow    = "Baixa"
)

// Sentiment values accepted in a classification.
const (
	SentimentPositive = "Positivo"
	SentimentNeutral  = "Neutro"
	SentimentNegative = "Negativo"
)

// ClassificationResult is the fixed-shape record extracted from a model reply.
// Confidence is a fraction in [0, 1].
type ClassificationResult struct {
	Category        string   `json:"category"`
	Confidence      float64  `json:"confidence"`
	Urgency         string   `json:"urgency"`
	Sentiment       string   `json:"sentiment"`
	Summary         string   `json:"summary"`
	ActionSuggested string   `json:"action_suggested"`
	Entities        []string `json:"entities"`
	DraftResponse   string   `json:"draft_response"`
}

// ClassifyInput is the inbound classify request.
type ClassifyInput struct {
	EmailContent string `json:"emailContent"`
	FileName     string `json:"fileName,omitempty"`
}

// ClassifyEnvelope wraps a result with completion metadata.
type ClassifyEnvelope struct {
	Success    bool                 `json:"success"`
	Result     ClassificationResult `json:"result"`
	AnalyzedAt string               `json:"analyzedAt"`
	Model      string               `json:"model,omitempty"`
}

// NewEnvelope builds the response for a completed analysis.
func NewEnvelope(result ClassificationResult, model string, at time.Time) *ClassifyEnvelope {
	return &ClassifyEnvelope{
		Success:    true,
		Result:     result,
		AnalyzedAt: at.UTC().Format(time.RFC3339Nano),
		Model:      model,
	}
}
