package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/chathub/internal/model/chat"
)

// Client produces the assistant's replies. It never returns an error: any
// generation failure is logged and replaced by the persona's fallback text.
type Client struct {
	persona Persona
	timeout time.Duration
	chain   compose.Runnable[map[string]any, *schema.Message]
	log     *zap.Logger
}

// NewClient compiles the prompt chain around chatModel. A nil chatModel
// yields a client that always answers with the fallback.
func NewClient(ctx context.Context, chatModel model.BaseChatModel, persona Persona, timeout time.Duration, log *zap.Logger) (*Client, error) {
	c := &Client{
		persona: persona,
		timeout: timeout,
		log:     log,
	}
	if chatModel == nil {
		return c, nil
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("User \"{author}\" says: {body}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}
	c.chain = runnable
	return c, nil
}

// Persona returns the persona the client speaks as.
func (c *Client) Persona() Persona {
	return c.persona
}

// Generate answers body, written by author.
func (c *Client) Generate(ctx context.Context, body, author string) string {
	text, err := c.complete(ctx, body, author)
	if err != nil {
		c.log.Warn("assistant reply fell back", zap.String("author", author), zap.Error(err))
		return c.persona.Fallback
	}
	return text
}

func (c *Client) complete(ctx context.Context, body, author string) (string, error) {
	if c.chain == nil {
		return "", fmt.Errorf("%w: chat model not configured", chat.ErrGenerationFailed)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	input := map[string]any{
		"system": c.persona.SystemPrompt,
		"author": author,
		"body":   body,
	}

	start := time.Now()
	resp, err := c.chain.Invoke(ctx, input)
	if err != nil {
		return "", fmt.Errorf("%w: %w", chat.ErrGenerationFailed, err)
	}
	if resp == nil {
		return "", fmt.Errorf("%w: empty response", chat.ErrGenerationFailed)
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return "", fmt.Errorf("%w: empty response", chat.ErrGenerationFailed)
	}

	c.log.Debug("assistant reply generated",
		zap.String("author", author),
		zap.Int("length", len(text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}
