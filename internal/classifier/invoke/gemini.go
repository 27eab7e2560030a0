package invoke

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/mailsort/server/internal/classifier/model"
	logx "github.com/mailsort/server/pkg/logger"
)

// NewGenaiClient creates a Gemini API client pinned to one API version.
func NewGenaiClient(ctx context.Context, cfg model.ProviderConfig, apiVersion string, httpClient *http.Client) (*genai.Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrMissingCredential
	}
	clientCfg := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	}
	clientCfg.HTTPOptions.APIVersion = apiVersion
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Str("api_version", apiVersion).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}
	return client, nil
}

// GeminiConfig holds the generator settings.
type GeminiConfig struct {
	Provider    model.ProviderConfig
	Variants    []string
	Temperature float32
	MaxTokens   int
	// Callbacks receive chat model lifecycle events; nil disables them.
	Callbacks  einocb.Handler
	HTTPClient *http.Client
}

// GeminiGenerator calls Gemini through eino chat models, one genai client
// per API version.
type GeminiGenerator struct {
	cfg     GeminiConfig
	clients map[string]*genai.Client

	mu     sync.Mutex
	models map[string]*gemini.ChatModel
}

// NewGeminiGenerator builds clients for every configured variant. Without an
// API key the generator is still returned but refuses every call.
func NewGeminiGenerator(ctx context.Context, cfg GeminiConfig) (*GeminiGenerator, error) {
	if len(cfg.Variants) == 0 {
		cfg.Variants = model.APIVersions()
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = model.GenerationTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = model.GenerationMaxTokens
	}

	g := &GeminiGenerator{
		cfg:     cfg,
		clients: make(map[string]*genai.Client, len(cfg.Variants)),
		models:  make(map[string]*gemini.ChatModel),
	}
	if cfg.Provider.APIKey == "" {
		logx.Warn().Msg("GOOGLE_API_KEY is empty, model calls will be refused")
		return g, nil
	}

	for _, v := range cfg.Variants {
		client, err := NewGenaiClient(ctx, cfg.Provider, v, cfg.HTTPClient)
		if err != nil {
			return nil, err
		}
		g.clients[v] = client
	}
	return g, nil
}

// Client returns the client for an API version, nil when none was built.
func (g *GeminiGenerator) Client(variant string) *genai.Client {
	return g.clients[variant]
}

func (g *GeminiGenerator) chatModel(ctx context.Context, variant, id string) (*gemini.ChatModel, error) {
	client, ok := g.clients[variant]
	if !ok {
		if g.cfg.Provider.APIKey == "" {
			return nil, ErrMissingCredential
		}
		return nil, fmt.Errorf("no client for api version %q", variant)
	}

	key := variant + "/" + id
	g.mu.Lock()
	defer g.mu.Unlock()
	if cm, ok := g.models[key]; ok {
		return cm, nil
	}

	temperature := g.cfg.Temperature
	maxTokens := g.cfg.MaxTokens
	cm, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       id,
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Str("model", id).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating chat model %s: %w", id, err)
	}
	g.models[key] = cm
	return cm, nil
}

// Generate sends the prompt as a single user turn.
func (g *GeminiGenerator) Generate(ctx context.Context, req Request) (*Response, error) {
	cm, err := g.chatModel(ctx, req.Variant, req.Model)
	if err != nil {
		return nil, err
	}

	if g.cfg.Callbacks != nil {
		ctx = einocb.InitCallbacks(ctx, &einocb.RunInfo{
			Name:      req.Model,
			Type:      "Gemini/" + req.Variant,
			Component: components.ComponentOfChatModel,
		}, g.cfg.Callbacks)
	}

	msg, err := cm.Generate(ctx, []*schema.Message{schema.UserMessage(req.Prompt)})
	if err != nil {
		return nil, err
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return nil, fmt.Errorf("model %s returned an empty reply", req.Model)
	}

	out := &Response{Text: msg.Content}
	if msg.ResponseMeta != nil {
		out.Usage = msg.ResponseMeta.Usage
	}
	return out, nil
}
