package prompts

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"

	"github.com/mailsort/server/internal/classifier/model"
)

//go:embed template/classify_prompt.txt
var classifyPrompt string

const noFileName = "(texto colado)"

// RenderClassify renders the classification prompt via Eino prompt component.
// This triggers Prompt callbacks and returns the final prompt string.
func RenderClassify(ctx context.Context, in model.ClassifyInput) (string, error) {
	fileName := strings.TrimSpace(in.FileName)
	if fileName == "" {
		fileName = noFileName
	}

	// Only known tokens are replaced; the JSON braces in the template stay literal.
	content := strings.NewReplacer(
		"{file_name}", fileName,
		"{email_content}", in.EmailContent,
	).Replace(classifyPrompt)

	tpl := prompt.FromMessages(
		schema.FString,
		schema.MessagesPlaceholder("user_messages", false),
	)
	msgs, err := tpl.Format(ctx, map[string]any{
		"user_messages": []*schema.Message{schema.UserMessage(content)},
	})
	if err != nil {
		return "", fmt.Errorf("classify prompt callbacks: %w", err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("classify prompt callbacks: empty result")
	}
	return msgs[0].Content, nil
}
