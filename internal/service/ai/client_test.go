package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeModel struct {
	reply string
	err   error
	delay time.Duration
	seen  []*schema.Message
}

func (f *fakeModel) Generate(ctx context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.seen = input
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func newTestClient(t *testing.T, m model.BaseChatModel, timeout time.Duration) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), m, DefaultPersona(), timeout, zap.NewNop())
	require.NoError(t, err)
	return c
}

func TestGenerateReturnsModelText(t *testing.T) {
	m := &fakeModel{reply: "  Hi Alice!  "}
	c := newTestClient(t, m, time.Second)

	got := c.Generate(context.Background(), "hello {there}", "Alice")

	require.Equal(t, "Hi Alice!", got)
	require.Len(t, m.seen, 2)
	require.Equal(t, schema.System, m.seen[0].Role)
	require.Equal(t, DefaultPersona().SystemPrompt, m.seen[0].Content)
	require.Equal(t, schema.User, m.seen[1].Role)
	require.Equal(t, `User "Alice" says: hello {there}`, m.seen[1].Content)
}

func TestGenerateFallsBackOnError(t *testing.T) {
	c := newTestClient(t, &fakeModel{err: errors.New("rate limited")}, time.Second)

	require.Equal(t, DefaultPersona().Fallback, c.Generate(context.Background(), "hi", "Alice"))
}

func TestGenerateFallsBackOnEmptyContent(t *testing.T) {
	c := newTestClient(t, &fakeModel{reply: "   "}, time.Second)

	require.Equal(t, DefaultPersona().Fallback, c.Generate(context.Background(), "hi", "Alice"))
}

func TestGenerateFallsBackOnTimeout(t *testing.T) {
	c := newTestClient(t, &fakeModel{reply: "late", delay: time.Second}, 20*time.Millisecond)

	require.Equal(t, DefaultPersona().Fallback, c.Generate(context.Background(), "hi", "Alice"))
}

func TestGenerateWithoutModelFallsBack(t *testing.T) {
	c := newTestClient(t, nil, time.Second)

	require.Equal(t, DefaultPersona().Fallback, c.Generate(context.Background(), "hi", "Alice"))
}

func TestWelcomeForNamesParticipant(t *testing.T) {
	welcome := DefaultPersona().WelcomeFor("Alice")
	require.Contains(t, welcome, "Hello Alice!")
}
