package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/contract-approvals/internal/config"
	"github.com/garyjia/contract-approvals/internal/container"
	infraLark "github.com/garyjia/contract-approvals/internal/infrastructure/external/lark"
)

// Isolated test for Lark IM delivery. Without --drain it sends one message
// straight through the messenger; with --drain it runs the notification
// outbox once against the configured database.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config.yaml")
	openID := flag.String("open-id", "", "Lark open_id to send the test message to")
	text := flag.String("text", "Contract approvals: test notification", "Message text")
	drain := flag.Bool("drain", false, "Deliver pending outbox notifications and exit")
	timeout := flag.Duration("timeout", 30*time.Second, "Overall timeout")
	flag.Parse()

	fmt.Println("=== Lark IM Notification Test ===")

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	larkCfg := infraLark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
		BaseURL:   cfg.Lark.BaseURL,
		Timeout:   cfg.Lark.Timeout,
	}
	if !larkCfg.Enabled() {
		log.Fatal("lark.app_id and lark.app_secret (or LARK_APP_ID / LARK_APP_SECRET) are required")
	}
	fmt.Printf("App ID: %s\n", mask(cfg.Lark.AppID))

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *drain {
		drainOutbox(ctx, cfg, logger)
		return
	}

	if *openID == "" {
		fmt.Fprintln(os.Stderr, "Usage: test-notification --open-id ou_... [--text ...] | --drain")
		os.Exit(1)
	}

	messenger := infraLark.NewMessenger(infraLark.NewSDKClient(larkCfg, logger), logger)
	if err := messenger.SendText(ctx, *openID, *text); err != nil {
		log.Fatalf("✗ Send failed: %v", err)
	}
	fmt.Printf("✓ Message sent to %s\n", *openID)
}

func drainOutbox(ctx context.Context, cfg *config.Config, logger *zap.Logger) {
	c, err := container.NewContainer(cfg.ToContainerConfig(), logger)
	if err != nil {
		log.Fatalf("Failed to create container: %v", err)
	}
	if err := c.Start(ctx); err != nil {
		log.Fatalf("Failed to start container: %v", err)
	}
	defer func() { _ = c.Close() }()

	report, err := c.Services().Notifications.DeliverPending(ctx)
	if err != nil {
		log.Printf("✗ Outbox run failed: %v", err)
		return
	}
	fmt.Printf("✓ Outbox run finished: %+v\n", *report)
}

func mask(s string) string {
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "..." + s[len(s)-4:]
}
