// Command chatprobe exercises a chathub deployment by hand.
//
//	chatprobe -mode=reply -text="what is the capital of France?"
//	chatprobe -mode=ws -url=ws://localhost:3000/api/ws -name=probe -text="hello @ai"
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zhouzirui/chathub/internal/config"
	"github.com/zhouzirui/chathub/internal/logging"
	"github.com/zhouzirui/chathub/internal/service/ai"
)

func main() {
	envErr := godotenv.Load()

	mode := flag.String("mode", "", "probe mode: reply or ws")
	text := flag.String("text", "", "message body to send")
	author := flag.String("author", "probe", "author name used in the reply prompt")
	url := flag.String("url", "ws://localhost:3000/api/ws", "websocket endpoint for -mode=ws")
	name := flag.String("name", "", "display name to join with, defaults to probe-<unix>")
	timeout := flag.Duration("timeout", 45*time.Second, "overall timeout")
	flag.Parse()

	logger, err := logging.New(config.LogConfig{Level: "debug", Format: "console"})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if envErr != nil {
		logger.Debug("no .env file loaded", zap.Error(envErr))
	}
	if *text == "" {
		flag.Usage()
		logger.Fatal("provide the message with -text")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	switch *mode {
	case "reply":
		runReply(ctx, logger, *text, *author)
	case "ws":
		displayName := *name
		if displayName == "" {
			displayName = fmt.Sprintf("probe-%d", time.Now().Unix())
		}
		runWebSocket(ctx, logger, *url, displayName, *text)
	default:
		flag.Usage()
		logger.Fatal("select a probe with -mode=reply or -mode=ws")
	}
}

// runReply asks the configured model for a reply the way the hub would.
func runReply(ctx context.Context, logger *zap.Logger, text, author string) {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		logger.Fatal("chat model unavailable", zap.Error(err))
	}

	client, err := ai.NewClient(ctx, chatModel, ai.DefaultPersona(), cfg.AI.Timeout, logger)
	if err != nil {
		logger.Fatal("failed to build completion client", zap.Error(err))
	}

	start := time.Now()
	reply := client.Generate(ctx, text, author)
	logger.Info("reply received",
		zap.String("reply", reply),
		zap.Bool("fallback", reply == client.Persona().Fallback),
		zap.Duration("elapsed", time.Since(start)),
	)
}

// runWebSocket joins a live room, sends one message and prints events until
// the context expires.
func runWebSocket(ctx context.Context, logger *zap.Logger, url, name, text string) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		logger.Fatal("failed to connect", zap.String("url", url), zap.Error(err))
	}
	defer conn.Close()

	frames := []map[string]any{
		{"type": "join", "data": map[string]string{"name": name}},
		{"type": "send-message", "data": map[string]string{"body": text}},
	}
	for _, frame := range frames {
		if err := conn.WriteJSON(frame); err != nil {
			logger.Fatal("failed to send frame", zap.Any("frame", frame["type"]), zap.Error(err))
		}
	}
	logger.Info("joined and sent", zap.String("name", name), zap.String("text", text))

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
	}
	for {
		var ev struct {
			Type      string          `json:"type"`
			Data      json.RawMessage `json:"data"`
			Timestamp int64           `json:"timestamp"`
		}
		if err := conn.ReadJSON(&ev); err != nil {
			logger.Info("stream ended", zap.Error(err))
			return
		}
		logger.Info("event", zap.String("type", ev.Type), zap.ByteString("data", ev.Data))
	}
}
