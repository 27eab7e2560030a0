package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/mailsort/server/internal/classifier/model"
)

type fakeLister struct {
	entries []Entry
	err     error
	calls   int
}

func (f *fakeLister) ListModels(context.Context) ([]Entry, error) {
	f.calls++
	return f.entries, f.err
}

func gen(ids ...string) []Entry {
	out := make([]Entry, 0, len(ids))
	for _, id := range ids {
		out = append(out, Entry{ID: id, Actions: []string{"countTokens", GenerateContentAction}})
	}
	return out
}

func ids(cs []model.ModelCandidate) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.ID)
	}
	return out
}

func TestPolicyRank_OrderAndExclusion(t *testing.T) {
	p := DefaultPolicy()
	got := p.Rank([]string{
		"gemini-2.5-pro",
		"gemini-2.0-flash-exp",
		"gemini-2.0-flash-001",
		"gemini-2.0-flash-lite-preview-02-05",
		"gemini-2.0-flash-lite",
		"gemini-1.5-flash",
		"gemini-2.5-flash-preview-tts",
	})

	assert.Equal(t, []string{"gemini-2.0-flash-lite", "gemini-2.0-flash-001", "gemini-1.5-flash", "gemini-2.5-pro"}, ids(got))
	for i, c := range got {
		assert.Equal(t, i, c.Rank)
		assert.Equal(t, model.SourceCatalog, c.Source)
	}
}

func TestPolicyRank_FamilyFallback(t *testing.T) {
	p := DefaultPolicy()
	got := p.Rank([]string{"gemma-3-27b-it", "gemini-3.0-ultra", "gemini-3.0-ultra-preview"})

	assert.Equal(t, []string{"gemini-3.0-ultra"}, ids(got))
}

func TestPolicyRank_NothingUsable(t *testing.T) {
	p := DefaultPolicy()
	assert.Empty(t, p.Rank([]string{"gemma-3-27b-it", "gemini-exp-1206"}))
}

func TestResolve_Deterministic(t *testing.T) {
	lister := &fakeLister{entries: gen("gemini-1.5-pro", "gemini-2.0-flash", "gemini-1.5-flash")}
	r := NewResolver(lister, DefaultPolicy())

	first := r.Resolve(context.Background())
	second := r.Resolve(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, []string{"gemini-2.0-flash", "gemini-1.5-flash", "gemini-1.5-pro"}, ids(first.Candidates))
	assert.False(t, first.Degraded)
	assert.NoError(t, first.Warning)
	assert.Equal(t, 2, lister.calls)
}

func TestResolve_SkipsModelsWithoutGenerateContent(t *testing.T) {
	lister := &fakeLister{entries: []Entry{
		{ID: "gemini-2.0-flash-lite", Actions: []string{"embedContent"}},
		{ID: "gemini-1.5-flash", Actions: []string{GenerateContentAction}},
	}}

	res := NewResolver(lister, DefaultPolicy()).Resolve(context.Background())
	assert.Equal(t, []string{"gemini-1.5-flash"}, ids(res.Candidates))
}

func TestResolve_CatalogErrorDegrades(t *testing.T) {
	lister := &fakeLister{err: errors.New("dial tcp: connection refused")}
	r := NewResolver(lister, DefaultPolicy())

	res := r.Resolve(context.Background())

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, r.Fallback(), res.Candidates[0])
	assert.Equal(t, model.SourceFallback, res.Candidates[0].Source)
	assert.True(t, res.Degraded)
	assert.ErrorIs(t, res.Warning, ErrCatalogUnavailable)
}

func TestResolve_EmptyCatalogDegrades(t *testing.T) {
	res := NewResolver(&fakeLister{}, DefaultPolicy()).Resolve(context.Background())

	assert.Equal(t, []string{"gemini-2.0-flash"}, ids(res.Candidates))
	assert.True(t, res.Degraded)
	assert.ErrorIs(t, res.Warning, ErrCatalogUnavailable)
}

func TestResolve_NoPolicyMatchUsesFallback(t *testing.T) {
	res := NewResolver(&fakeLister{entries: gen("gemma-3-27b-it")}, DefaultPolicy()).Resolve(context.Background())

	assert.Equal(t, []string{"gemini-2.0-flash"}, ids(res.Candidates))
	assert.False(t, res.Degraded)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *genai.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{BaseURL: srv.URL},
	})
	require.NoError(t, err)
	return client
}

func TestGenaiLister_WalksPages(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/models"), r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("pageToken") == "" {
			fmt.Fprint(w, `{"models":[{"name":"models/gemini-1.5-flash","supportedGenerationMethods":["generateContent"]}],"nextPageToken":"p2"}`)
			return
		}
		fmt.Fprint(w, `{"models":[{"name":"models/text-embedding-004","supportedGenerationMethods":["embedContent"]}]}`)
	})

	entries, err := NewGenaiLister(client).ListModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{ID: "gemini-1.5-flash", Actions: []string{"generateContent"}},
		{ID: "text-embedding-004", Actions: []string{"embedContent"}},
	}, entries)
}

func TestGenaiLister_AuthorizationFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		fmt.Fprint(w, `{"error":{"code":403,"message":"API key not valid","status":"PERMISSION_DENIED"}}`)
	})

	res := NewResolver(NewGenaiLister(client), DefaultPolicy()).Resolve(context.Background())
	assert.True(t, res.Degraded)
	assert.Contains(t, res.Warning.Error(), "API key not valid")
}
