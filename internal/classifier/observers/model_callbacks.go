package observers

import (
	"context"
	"strings"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"

	logx "github.com/mailsort/server/pkg/logger"
)

const maxLoggedChars = 500

type startKey struct{}

// newModelHandler builds a typed ModelCallbackHandler that logs each chat model call.
func newModelHandler() *callbackHelper.ModelCallbackHandler {
	return &callbackHelper.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ev := logx.Debug().Str("component", "chat_model").Str("model", info.Name).Str("type", info.Type)
			if input != nil {
				ev = ev.Int("messages", len(input.Messages)).Int("prompt_chars", promptChars(input.Messages))
			}
			ev.Msg("model call start")
			return context.WithValue(ctx, startKey{}, time.Now())
		},
		OnEnd: func(ctx context.Context, info *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			ev := logx.Debug().Str("component", "chat_model").Str("model", info.Name).Str("type", info.Type)
			if started, ok := ctx.Value(startKey{}).(time.Time); ok {
				ev = ev.Dur("took", time.Since(started))
			}
			if output != nil && output.Message != nil {
				ev = ev.Str("reply", clip(output.Message.Content))
			}
			if output != nil && output.TokenUsage != nil {
				ev = ev.Int("prompt_tokens", output.TokenUsage.PromptTokens).
					Int("completion_tokens", output.TokenUsage.CompletionTokens)
			}
			ev.Msg("model call end")
			return ctx
		},
		OnError: func(ctx context.Context, info *einocb.RunInfo, err error) context.Context {
			logx.Warn().Err(err).Str("component", "chat_model").Str("model", info.Name).Str("type", info.Type).Msg("model call error")
			return ctx
		},
	}
}

func promptChars(msgs []*schema.Message) int {
	n := 0
	for _, m := range msgs {
		if m != nil {
			n += len(m.Content)
		}
	}
	return n
}

func clip(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxLoggedChars {
		return s
	}
	return s[:maxLoggedChars] + "..."
}
