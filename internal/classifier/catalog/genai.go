package catalog

import (
	"context"
	"strings"

	"google.golang.org/genai"
)

// GenaiLister lists models through the genai SDK.
type GenaiLister struct {
	client *genai.Client
}

func NewGenaiLister(client *genai.Client) *GenaiLister {
	return &GenaiLister{client: client}
}

// ListModels walks every catalog page. Identifiers are returned without the
// "models/" resource prefix.
func (l *GenaiLister) ListModels(ctx context.Context) ([]Entry, error) {
	var entries []Entry
	for m, err := range l.client.Models.All(ctx) {
		if err != nil {
			return nil, err
		}
		if m == nil {
			continue
		}
		entries = append(entries, Entry{
			ID:      strings.TrimPrefix(m.Name, "models/"),
			Actions: m.SupportedActions,
		})
	}
	return entries, nil
}
