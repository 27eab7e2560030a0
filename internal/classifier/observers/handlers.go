package observers

import (
	"context"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
)

// NewAllCallbacks aggregates the prompt and chat model observers into one callbacks.Handler.
func NewAllCallbacks() einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		ChatModel(newModelHandler()).
		Prompt(newPromptHandler()).
		Handler()
}

// WithPrompt attaches handler to ctx for a prompt component run.
func WithPrompt(ctx context.Context, name string, handler einocb.Handler) context.Context {
	if handler == nil {
		return ctx
	}
	return einocb.InitCallbacks(ctx, &einocb.RunInfo{
		Name:      name,
		Type:      "ChatTemplate",
		Component: components.ComponentOfPrompt,
	}, handler)
}
