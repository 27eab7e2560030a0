package invoke

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mailsort/server/internal/classifier/model"
)

func newGeminiServer(t *testing.T, handler http.HandlerFunc) model.ProviderConfig {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return model.ProviderConfig{APIKey: "test-key", BaseURL: srv.URL}
}

func TestGeminiGenerator_Generate(t *testing.T) {
	var paths []string
	provider := newGeminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"category\":\"Produtivo\"}"}]},"finishReason":"STOP"}],"usageMetadata":{"promptTokenCount":12,"candidatesTokenCount":5,"totalTokenCount":17}}`)
	})

	gen, err := NewGeminiGenerator(context.Background(), GeminiConfig{Provider: provider})
	require.NoError(t, err)
	require.NotNil(t, gen.Client(model.APIVersionPrimary))
	require.NotNil(t, gen.Client(model.APIVersionSecondary))

	resp, err := gen.Generate(context.Background(), Request{Model: "gemini-2.0-flash", Variant: model.APIVersionSecondary, Prompt: "classify"})
	require.NoError(t, err)
	assert.Equal(t, `{"category":"Produtivo"}`, resp.Text)
	require.Len(t, paths, 1)
	assert.Equal(t, "/v1/models/gemini-2.0-flash:generateContent", paths[0])
}

func TestGeminiGenerator_EndpointFailureThroughEngine(t *testing.T) {
	provider := newGeminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1beta/models/gemini-2.0-flash:generateContent" {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, "Not Found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"ok"}]},"finishReason":"STOP"}]}`)
	})

	gen, err := NewGeminiGenerator(context.Background(), GeminiConfig{Provider: provider})
	require.NoError(t, err)

	res, err := NewEngine(gen).Invoke(context.Background(), "classify", candidates("gemini-2.0-flash"))
	require.NoError(t, err)
	assert.Equal(t, model.APIVersionSecondary, res.Variant)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, model.KindNotFoundEndpoint, res.Attempts[0].Kind)
}

func TestNewGenaiClient_RequiresKey(t *testing.T) {
	_, err := NewGenaiClient(context.Background(), model.ProviderConfig{}, model.APIVersionPrimary, nil)
	assert.ErrorIs(t, err, ErrMissingCredential)
}
